// Package config describes the configuration for an eventlogger instance.
//
// If you are embedding eventlogger in your own code and configuring it
// programmatically, it is best to start from config.Default() and then
// change only the fields you need to change.
package config

import "time"

const (
	DefaultQueueCapacity         = 10000
	DefaultBatchSize             = 50
	DefaultMaxBatchWait          = 100 * time.Millisecond
	DefaultSenderThreads         = 1
	DefaultMaxRetries            = 3
	DefaultBaseRetryDelay        = 1000 * time.Millisecond
	DefaultMaxRetryDelay         = 30000 * time.Millisecond
	DefaultCircuitBreakerThresh  = 5
	DefaultCircuitBreakerReset   = 30000 * time.Millisecond
	DefaultMaxSpilloverEvents    = 10000
	DefaultMaxSpilloverBytes     = 50 * 1024 * 1024
	DefaultReplayInterval        = 10000 * time.Millisecond
	DefaultRegisterShutdownHook  = true
	DefaultAPIClientMaxRetries   = 3
	DefaultAPIClientBaseDelay    = 200 * time.Millisecond
	DefaultAPIClientMaxDelay     = 5 * time.Second
	DefaultRequestTimeout        = 10 * time.Second
	DefaultOAuthRefreshBuffer    = 60 * time.Second
	DefaultOAuthRequestTimeout   = 10 * time.Second
	DefaultShutdownGracePeriod   = 5 * time.Second
	DefaultSpillGracePeriod      = 2 * time.Second
)

// Config is the full configuration for an eventlogger.Logger.
//
// Each nested struct groups the options for one component, including the
// API Client's own retry/timeout settings and the shutdown grace periods.
type Config struct {
	API        APIConfig
	Queue      QueueConfig
	Retry      RetryConfig
	Breaker    BreakerConfig
	Spillover  SpilloverConfig
	Lifecycle  LifecycleConfig
}

// APIConfig describes how to reach the ingestion HTTP service.
type APIConfig struct {
	// BaseURI is the root of the ingestion service, e.g. "https://ingest.example.com".
	BaseURI string
	// ApplicationID is sent as X-Application-Id when non-empty.
	ApplicationID string
	// MaxRetries is the API Client's own per-request retry budget (distinct
	// from the event-level retry budget in Retry).
	MaxRetries int
	// BaseDelay is the base of the API Client's linear retry schedule
	// (delay = BaseDelay * attempt, capped at MaxDelay).
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// RequestTimeout bounds every individual HTTP call.
	RequestTimeout time.Duration
}

// QueueConfig describes the in-memory bounded queue and batcher.
type QueueConfig struct {
	Capacity      int
	BatchSize     int
	MaxBatchWait  time.Duration
	SenderThreads int
}

// RetryConfig describes the per-event retry schedule.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// BreakerConfig describes the circuit breaker.
type BreakerConfig struct {
	Threshold int
	Reset     time.Duration
}

// SpilloverConfig describes the disk spillover store and replay scheduler.
// Path == "" disables spillover entirely.
type SpilloverConfig struct {
	Path            string
	MaxEvents       int
	MaxBytes        int64
	ReplayInterval  time.Duration
	WriterGrace     time.Duration
}

// LifecycleConfig describes shutdown behavior.
type LifecycleConfig struct {
	RegisterShutdownHook bool
	ShutdownGrace        time.Duration
}

// Default returns a Config populated with the specification's documented
// defaults.
func Default() Config {
	return Config{
		API: APIConfig{
			MaxRetries:     DefaultAPIClientMaxRetries,
			BaseDelay:      DefaultAPIClientBaseDelay,
			MaxDelay:       DefaultAPIClientMaxDelay,
			RequestTimeout: DefaultRequestTimeout,
		},
		Queue: QueueConfig{
			Capacity:      DefaultQueueCapacity,
			BatchSize:     DefaultBatchSize,
			MaxBatchWait:  DefaultMaxBatchWait,
			SenderThreads: DefaultSenderThreads,
		},
		Retry: RetryConfig{
			MaxRetries: DefaultMaxRetries,
			BaseDelay:  DefaultBaseRetryDelay,
			MaxDelay:   DefaultMaxRetryDelay,
		},
		Breaker: BreakerConfig{
			Threshold: DefaultCircuitBreakerThresh,
			Reset:     DefaultCircuitBreakerReset,
		},
		Spillover: SpilloverConfig{
			MaxEvents:      DefaultMaxSpilloverEvents,
			MaxBytes:       DefaultMaxSpilloverBytes,
			ReplayInterval: DefaultReplayInterval,
			WriterGrace:    DefaultSpillGracePeriod,
		},
		Lifecycle: LifecycleConfig{
			RegisterShutdownHook: DefaultRegisterShutdownHook,
			ShutdownGrace:        DefaultShutdownGracePeriod,
		},
	}
}

// SpilloverEnabled reports whether disk spillover is configured.
func (c Config) SpilloverEnabled() bool {
	return c.Spillover.Path != ""
}
