// Command eventlogger-demo exercises a Logger end to end: it loads
// configuration, constructs a token provider and a Logger, logs a batch
// of sample events, waits for the queue to drain, and prints a metrics
// snapshot before shutting down.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srinathv31/eventlogger"
	"github.com/srinathv31/eventlogger/config"
	"github.com/srinathv31/eventlogger/internal/logging"
	"github.com/srinathv31/eventlogger/internal/token"
)

var (
	configFile  string
	eventCount  int
	processName string
	staticToken string
	logLevel    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "eventlogger-demo: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eventlogger-demo",
	Short: "Log a batch of sample events through an eventlogger.Logger",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "path to a YAML/JSON/TOML config file (optional)")
	rootCmd.Flags().IntVar(&eventCount, "events", 20, "number of sample events to log")
	rootCmd.Flags().StringVar(&processName, "process-name", "demo-process", "process_name field on sample events")
	rootCmd.Flags().StringVar(&staticToken, "token", "", "static bearer token; if empty, OAuth settings come from EVENTLOGGER_OAUTH_* environment variables, else a fixed demo token is used")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func run(cmd *cobra.Command, args []string) error {
	base := logrus.New()
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	base.SetLevel(level)
	loggers := logging.New(base)

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tokens, err := buildTokenProvider(cfg)
	if err != nil {
		return fmt.Errorf("building token provider: %w", err)
	}

	logger, err := eventlogger.New(cfg, tokens, loggers)
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}

	var lost int
	logger.OnEventLoss(func(ev eventlogger.Event, reason eventlogger.LossReason) {
		lost++
		base.Warnf("demo: lost event correlation_id=%v reason=%s", ev[eventlogger.CorrelationIDField], reason)
	})

	correlationID := uuid.NewString()
	events := make([]eventlogger.Event, 0, eventCount)
	for i := 0; i < eventCount; i++ {
		events = append(events, eventlogger.Event{
			eventlogger.CorrelationIDField: correlationID,
			eventlogger.ProcessNameField:   processName,
			"sequence":                     i,
			"emitted_at":                   time.Now().Format(time.RFC3339Nano),
		})
	}

	accepted := logger.LogMany(events)
	base.Infof("demo: enqueued %d/%d sample events under correlation_id=%s", accepted, eventCount, correlationID)

	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := logger.Flush(flushCtx); err != nil {
		base.Warnf("demo: flush did not complete cleanly: %v", err)
	}

	snap := logger.Metrics()
	base.Infof(
		"demo: final metrics queued=%d sent=%d failed=%d spilled=%d replayed=%d circuit_open=%t lost_via_callback=%d",
		snap.Queued, snap.Sent, snap.Failed, snap.Spilled, snap.Replayed, snap.CircuitOpen, lost,
	)

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), cfg.Lifecycle.ShutdownGrace+5*time.Second)
	defer cancel2()
	return logger.Shutdown(shutdownCtx)
}

func buildTokenProvider(cfg config.Config) (token.Provider, error) {
	if staticToken != "" {
		return token.NewStaticProvider(staticToken)
	}
	tokenURL := os.Getenv("EVENTLOGGER_OAUTH_TOKEN_URL")
	if tokenURL == "" {
		return token.NewStaticProvider("demo-token")
	}
	return token.NewOAuthProvider(token.OAuthOptions{
		TokenURL:     tokenURL,
		ClientID:     os.Getenv("EVENTLOGGER_OAUTH_CLIENT_ID"),
		ClientSecret: os.Getenv("EVENTLOGGER_OAUTH_CLIENT_SECRET"),
		Scope:        os.Getenv("EVENTLOGGER_OAUTH_SCOPE"),
	}), nil
}
