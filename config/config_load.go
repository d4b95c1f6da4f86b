package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix applied to every environment variable
// recognized by Load, e.g. EVENTLOGGER_QUEUE_CAPACITY.
const EnvPrefix = "EVENTLOGGER"

// Load builds a Config by layering, in increasing priority: the
// specification's documented defaults, an optional config file (YAML,
// JSON, or TOML, detected from its extension), and environment variables
// prefixed with EnvPrefix. path may be empty to skip the file layer.
//
// This plays the same role as the reference sources' own
// LoadConfigFromEnvironment, but delegates the overlay mechanics to
// Viper rather than hand-rolling an os.Getenv scan per field.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("eventlogger: reading config file %q: %w", path, err)
		}
	}

	cfg.API.BaseURI = v.GetString("api.base_uri")
	cfg.API.ApplicationID = v.GetString("api.application_id")
	cfg.API.MaxRetries = v.GetInt("api.max_retries")
	cfg.API.BaseDelay = v.GetDuration("api.base_delay")
	cfg.API.MaxDelay = v.GetDuration("api.max_delay")
	cfg.API.RequestTimeout = v.GetDuration("api.request_timeout")

	cfg.Queue.Capacity = v.GetInt("queue.capacity")
	cfg.Queue.BatchSize = v.GetInt("queue.batch_size")
	cfg.Queue.MaxBatchWait = v.GetDuration("queue.max_batch_wait")
	cfg.Queue.SenderThreads = v.GetInt("queue.sender_threads")

	cfg.Retry.MaxRetries = v.GetInt("retry.max_retries")
	cfg.Retry.BaseDelay = v.GetDuration("retry.base_delay")
	cfg.Retry.MaxDelay = v.GetDuration("retry.max_delay")

	cfg.Breaker.Threshold = v.GetInt("breaker.threshold")
	cfg.Breaker.Reset = v.GetDuration("breaker.reset")

	cfg.Spillover.Path = v.GetString("spillover.path")
	cfg.Spillover.MaxEvents = v.GetInt("spillover.max_events")
	cfg.Spillover.MaxBytes = v.GetInt64("spillover.max_bytes")
	cfg.Spillover.ReplayInterval = v.GetDuration("spillover.replay_interval")
	cfg.Spillover.WriterGrace = v.GetDuration("spillover.writer_grace")

	cfg.Lifecycle.RegisterShutdownHook = v.GetBool("lifecycle.register_shutdown_hook")
	cfg.Lifecycle.ShutdownGrace = v.GetDuration("lifecycle.shutdown_grace")

	return cfg, nil
}

func bindDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("api.max_retries", cfg.API.MaxRetries)
	v.SetDefault("api.base_delay", cfg.API.BaseDelay)
	v.SetDefault("api.max_delay", cfg.API.MaxDelay)
	v.SetDefault("api.request_timeout", cfg.API.RequestTimeout)

	v.SetDefault("queue.capacity", cfg.Queue.Capacity)
	v.SetDefault("queue.batch_size", cfg.Queue.BatchSize)
	v.SetDefault("queue.max_batch_wait", cfg.Queue.MaxBatchWait)
	v.SetDefault("queue.sender_threads", cfg.Queue.SenderThreads)

	v.SetDefault("retry.max_retries", cfg.Retry.MaxRetries)
	v.SetDefault("retry.base_delay", cfg.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", cfg.Retry.MaxDelay)

	v.SetDefault("breaker.threshold", cfg.Breaker.Threshold)
	v.SetDefault("breaker.reset", cfg.Breaker.Reset)

	v.SetDefault("spillover.max_events", cfg.Spillover.MaxEvents)
	v.SetDefault("spillover.max_bytes", cfg.Spillover.MaxBytes)
	v.SetDefault("spillover.replay_interval", cfg.Spillover.ReplayInterval)
	v.SetDefault("spillover.writer_grace", cfg.Spillover.WriterGrace)

	v.SetDefault("lifecycle.register_shutdown_hook", cfg.Lifecycle.RegisterShutdownHook)
	v.SetDefault("lifecycle.shutdown_grace", cfg.Lifecycle.ShutdownGrace)

	// Bind the API keys that have no default, so their environment
	// variables are registered even before a config file (if any) sets them.
	for _, key := range []string{
		"api.base_uri", "api.application_id",
	} {
		_ = v.BindEnv(key)
	}
}
