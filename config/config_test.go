package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultQueueCapacity, cfg.Queue.Capacity)
	assert.Equal(t, DefaultMaxRetries, cfg.Retry.MaxRetries)
	assert.Equal(t, DefaultCircuitBreakerThresh, cfg.Breaker.Threshold)
	assert.False(t, cfg.SpilloverEnabled(), "spillover is disabled until Spillover.Path is set")
}

func TestSpilloverEnabledTracksPath(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.SpilloverEnabled())
	cfg.Spillover.Path = "/var/lib/eventlogger/spill"
	assert.True(t, cfg.SpilloverEnabled())
}

func TestLoadAppliesDefaultsWithoutAFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultQueueCapacity, cfg.Queue.Capacity)
	assert.Equal(t, DefaultBaseRetryDelay, cfg.Retry.BaseDelay)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("EVENTLOGGER_API_BASE_URI", "https://events.example.com")
	t.Setenv("EVENTLOGGER_QUEUE_CAPACITY", "500")
	t.Setenv("EVENTLOGGER_BREAKER_RESET", "15s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://events.example.com", cfg.API.BaseURI)
	assert.Equal(t, 500, cfg.Queue.Capacity)
	assert.Equal(t, 15*time.Second, cfg.Breaker.Reset)
}
