package eventlogger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srinathv31/eventlogger/config"
	"github.com/srinathv31/eventlogger/internal/logging"
	"github.com/srinathv31/eventlogger/internal/token"
)

func testLoggers() logging.Loggers { return logging.New(nil) }

func mustStaticToken(t *testing.T) token.Provider {
	t.Helper()
	p, err := token.NewStaticProvider("test-token")
	require.NoError(t, err)
	return p
}

func TestLogAndFlushHappyPath(t *testing.T) {
	var received atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "execution_ids": []string{"exec"}})
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.API.BaseURI = server.URL
	cfg.API.MaxRetries = 0
	cfg.API.RequestTimeout = 2 * time.Second
	cfg.Queue.Capacity = 100
	cfg.Queue.BatchSize = 1
	cfg.Queue.MaxBatchWait = 10 * time.Millisecond
	cfg.Queue.SenderThreads = 2
	cfg.Lifecycle.RegisterShutdownHook = false

	logger, err := New(cfg, mustStaticToken(t), testLoggers())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, logger.Log(Event{"sequence": i}))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, logger.Flush(flushCtx))

	snap := logger.Metrics()
	assert.Equal(t, uint64(5), snap.Sent)
	assert.Equal(t, uint64(0), snap.Failed)
	assert.False(t, snap.CircuitOpen)
	assert.Equal(t, int64(5), received.Load())

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, logger.Shutdown(shutdownCtx))
}

func TestQueueFullReportsLoss(t *testing.T) {
	cfg := config.Default()
	cfg.API.BaseURI = "http://127.0.0.1:0" // never reached: no sender threads drain the queue
	cfg.Queue.Capacity = 1
	cfg.Queue.SenderThreads = 0
	cfg.Lifecycle.RegisterShutdownHook = false
	cfg.Lifecycle.ShutdownGrace = 50 * time.Millisecond

	logger, err := New(cfg, mustStaticToken(t), testLoggers())
	require.NoError(t, err)

	var lost []LossReason
	logger.OnEventLoss(func(_ Event, reason LossReason) {
		lost = append(lost, reason)
	})

	require.NoError(t, logger.Log(Event{"i": 1}))
	err = logger.Log(Event{"i": 2})
	require.Error(t, err)

	require.Len(t, lost, 1)
	assert.Equal(t, ReasonQueueFull, lost[0])
	assert.Equal(t, 1, logger.QueueDepth())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, logger.Shutdown(shutdownCtx))
}

func TestShutdownDrainsRemainingQueuedEvents(t *testing.T) {
	cfg := config.Default()
	cfg.API.BaseURI = "http://127.0.0.1:0"
	cfg.Queue.Capacity = 10
	cfg.Queue.SenderThreads = 0 // nothing drains the queue before Shutdown runs
	cfg.Lifecycle.RegisterShutdownHook = false
	cfg.Lifecycle.ShutdownGrace = 50 * time.Millisecond

	logger, err := New(cfg, mustStaticToken(t), testLoggers())
	require.NoError(t, err)

	var lost []LossReason
	logger.OnEventLoss(func(_ Event, reason LossReason) {
		lost = append(lost, reason)
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, logger.Log(Event{"i": i}))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, logger.Shutdown(shutdownCtx))

	require.Len(t, lost, 3)
	for _, r := range lost {
		assert.Equal(t, ReasonShutdownInProgress, r)
	}
	assert.Equal(t, uint64(3), logger.Metrics().Failed)

	assert.Error(t, logger.Log(Event{"i": 99}), "Log after Shutdown must be rejected")
}

// TestShutdownDrainsQueueThroughActiveSenders guards against Shutdown
// cutting sender workers off the instant it is called: with a queue
// backlog much larger than one batch and at least one active sender
// thread, every event must still be sent during the grace period rather
// than swept up by the shutdown-in-progress drain.
func TestShutdownDrainsQueueThroughActiveSenders(t *testing.T) {
	// received counts events, not requests: a batch of up to BatchSize
	// events arrives in one request.
	var received atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Events json.RawMessage `json:"events"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		var batch []map[string]any
		if err := json.Unmarshal(body.Events, &batch); err == nil {
			received.Add(int64(len(batch)))
		} else {
			received.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "execution_ids": []string{"exec"}})
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.API.BaseURI = server.URL
	cfg.API.MaxRetries = 0
	cfg.API.RequestTimeout = 2 * time.Second
	cfg.Queue.Capacity = 200
	cfg.Queue.BatchSize = 5
	cfg.Queue.MaxBatchWait = 10 * time.Millisecond
	cfg.Queue.SenderThreads = 1
	cfg.Lifecycle.RegisterShutdownHook = false
	cfg.Lifecycle.ShutdownGrace = 2 * time.Second

	logger, err := New(cfg, mustStaticToken(t), testLoggers())
	require.NoError(t, err)

	const total = 100
	events := make([]Event, total)
	for i := range events {
		events[i] = Event{"sequence": i}
	}
	require.Equal(t, total, logger.LogMany(events))

	// Shutdown is called immediately, with the full backlog still queued
	// and only one sender thread working through it a batch at a time.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, logger.Shutdown(shutdownCtx))

	snap := logger.Metrics()
	assert.Equal(t, uint64(total), snap.Sent)
	assert.Equal(t, uint64(0), snap.Failed)
	assert.Equal(t, int64(total), received.Load())
}

func TestRejectsMissingBaseURI(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg, mustStaticToken(t), testLoggers())
	assert.Error(t, err)
}
