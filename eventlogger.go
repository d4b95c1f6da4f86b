// Package eventlogger implements a resilient, asynchronous event-delivery
// client: a bounded in-memory queue, a batching sender pool with
// per-event retry and a circuit breaker, and an optional bounded disk
// spillover with background replay, all behind a small public surface
// (New, Log, LogMany, Flush, Shutdown).
package eventlogger

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/srinathv31/eventlogger/internal/apiclient"
	"github.com/srinathv31/eventlogger/internal/breaker"
	"github.com/srinathv31/eventlogger/internal/httpconfig"
	"github.com/srinathv31/eventlogger/internal/logging"
	"github.com/srinathv31/eventlogger/internal/metrics"
	"github.com/srinathv31/eventlogger/internal/model"
	"github.com/srinathv31/eventlogger/internal/queue"
	"github.com/srinathv31/eventlogger/internal/reason"
	"github.com/srinathv31/eventlogger/internal/sender"
	"github.com/srinathv31/eventlogger/internal/spillover"
	"github.com/srinathv31/eventlogger/internal/token"
	"github.com/srinathv31/eventlogger/internal/transport"

	"github.com/prometheus/client_golang/prometheus"
)

// Logger is the entry point of the event-delivery core: it owns the
// queue, the sender pool, the circuit breaker, and (if configured) the
// spillover store and replay scheduler, and coordinates their shutdown.
type Logger struct {
	cfg Config

	queue   *queue.Queue
	pool    *sender.Pool
	breaker *breaker.Breaker
	metrics *metrics.Metrics
	client  *apiclient.Client
	spill   *spillover.Store // nil if disabled
	replay  *spillover.Replayer
	loggers logging.Loggers

	onLossMu sync.RWMutex
	onLoss   EventLossFunc

	ctx    context.Context
	cancel context.CancelFunc

	shuttingDown atomic.Bool
	shutdownOnce sync.Once

	signalCh chan os.Signal
	doneCh   chan struct{}
}

// New builds and starts a Logger: the sender pool's worker goroutines,
// and, if spillover is configured, the spillover writer and replay
// scheduler. tokens authorizes every outgoing request; pass a
// token.StaticProvider for a fixed bearer token or a token.OAuthProvider
// for client-credentials.
func New(cfg Config, tokens token.Provider, loggers logging.Loggers) (*Logger, error) {
	if cfg.API.BaseURI == "" {
		return nil, fmt.Errorf("eventlogger: API.BaseURI is required")
	}
	if cfg.Queue.Capacity <= 0 {
		return nil, fmt.Errorf("eventlogger: Queue.Capacity must be positive")
	}

	m := metrics.New()

	httpClient := httpconfig.NewClient(httpconfig.Config{RequestTimeout: cfg.API.RequestTimeout})
	tr := transport.NewHTTPTransport(httpClient, 2, loggers)
	client := apiclient.New(apiclient.Config{
		BaseURI:        cfg.API.BaseURI,
		ApplicationID:  cfg.API.ApplicationID,
		MaxRetries:     cfg.API.MaxRetries,
		BaseDelay:      cfg.API.BaseDelay,
		MaxDelay:       cfg.API.MaxDelay,
		RequestTimeout: cfg.API.RequestTimeout,
	}, tr, tokens, loggers)

	q := queue.New(cfg.Queue.Capacity)
	brk := breaker.New(cfg.Breaker.Threshold, cfg.Breaker.Reset)

	ctx, cancel := context.WithCancel(context.Background())

	l := &Logger{
		cfg:     cfg,
		queue:   q,
		breaker: brk,
		metrics: m,
		client:  client,
		loggers: loggers,
		ctx:     ctx,
		cancel:  cancel,
		doneCh:  make(chan struct{}),
	}

	if cfg.SpilloverEnabled() {
		store, err := spillover.New(spillover.Config{
			Dir:       cfg.Spillover.Path,
			MaxEvents: cfg.Spillover.MaxEvents,
			MaxBytes:  cfg.Spillover.MaxBytes,
		}, loggers, l, m)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("eventlogger: opening spillover store: %w", err)
		}
		l.spill = store
		l.replay = spillover.NewReplayer(store, client, brk, m, loggers, cfg.Spillover.ReplayInterval)
	}

	l.pool = sender.New(sender.Config{
		Threads:      cfg.Queue.SenderThreads,
		BatchSize:    cfg.Queue.BatchSize,
		MaxBatchWait: cfg.Queue.MaxBatchWait,
		MaxRetries:   cfg.Retry.MaxRetries,
		BaseDelay:    cfg.Retry.BaseDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
	}, q, client, brk, m, l.spill, loggers, l)

	l.pool.Start()
	if l.spill != nil {
		l.spill.Start()
		l.replay.Start(ctx)
	}

	if cfg.Lifecycle.RegisterShutdownHook {
		l.registerShutdownHook()
	}

	return l, nil
}

// NewCollector builds a prometheus.Collector exposing this Logger's
// metrics. labels typically distinguish multiple Logger instances
// registered with the same registry.
func (l *Logger) NewCollector(labels prometheus.Labels) *metrics.Collector {
	return metrics.NewCollector(l.metrics, labels)
}

// Log enqueues a single event, non-blocking. It returns an error only if
// the event was rejected outright (queue full, or shutdown in progress);
// the corresponding loss is also reported via OnEventLoss / a WARN log,
// so callers that only care about aggregate loss can ignore the error.
func (l *Logger) Log(ev Event) error {
	return l.enqueue(ev)
}

// LogMany enqueues several events, offering each independently; one
// rejected event does not prevent the others from being accepted. It
// returns the number successfully enqueued.
func (l *Logger) LogMany(evs []Event) int {
	accepted := 0
	for _, ev := range evs {
		if err := l.enqueue(ev); err == nil {
			accepted++
		}
	}
	return accepted
}

func (l *Logger) enqueue(ev Event) error {
	if l.shuttingDown.Load() {
		l.ReportLoss(ev, reason.ShutdownInProgress)
		return fmt.Errorf("eventlogger: shutdown in progress")
	}

	qe := model.QueuedEvent{Event: ev, FirstEnqueueTime: time.Now()}
	if !l.queue.TryOffer(qe) {
		l.ReportLoss(ev, reason.QueueFull)
		return fmt.Errorf("eventlogger: queue full")
	}
	l.metrics.IncQueued(1)
	l.metrics.SetQueueDepth(l.queue.Len())
	return nil
}

// Flush blocks until the queue is observed empty with no retry pending, or
// ctx is done. It is a best-effort wait, not a guarantee: a batch a sender
// has already taken off the queue and is still sending is not waited for,
// and an event accepted after Flush begins observing an empty queue is not
// covered by the wait.
func (l *Logger) Flush(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if l.queue.Len() == 0 && l.pool.PendingRetries().Len() == 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// waitQueueDrained blocks until the in-memory queue is observed empty.
// Shutdown races this against Lifecycle.ShutdownGrace: senders keep
// pulling from the queue the whole time (they are not stopped until
// that race resolves), so this returns early whenever they finish before
// the grace period would otherwise expire.
func (l *Logger) waitQueueDrained(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for l.queue.Len() > 0 {
		<-ticker.C
	}
}

// QueueDepth reports the number of events currently resident in the
// in-memory queue.
func (l *Logger) QueueDepth() int { return l.queue.Len() }

// CircuitOpen reports whether the circuit breaker is currently open.
func (l *Logger) CircuitOpen() bool { return l.breaker.IsOpen() }

// Metrics returns a point-in-time snapshot of this Logger's counters.
func (l *Logger) Metrics() metrics.Snapshot { return l.metrics.Snapshot() }

// OnEventLoss installs fn as the callback invoked whenever an event is
// permanently lost. Passing nil falls back to a WARN-level log line per
// loss.
func (l *Logger) OnEventLoss(fn EventLossFunc) {
	l.onLossMu.Lock()
	l.onLoss = fn
	l.onLossMu.Unlock()
}

// ReportLoss implements reason.Reporter: it invokes the installed
// OnEventLoss callback, or logs a WARN if none is installed. It does not
// itself touch any counter — every caller that can determine an event's
// final fate owns incrementing metrics at the point that fate is known.
func (l *Logger) ReportLoss(ev model.Event, r reason.Reason) {
	l.onLossMu.RLock()
	fn := l.onLoss
	l.onLossMu.RUnlock()
	if fn != nil {
		fn(ev, LossReason(r))
		return
	}
	l.loggers.WithEvent(ev.CorrelationID(), ev.ProcessName()).Warnf("event lost: reason=%s", r)
}

func (l *Logger) registerShutdownHook() {
	l.signalCh = make(chan os.Signal, 1)
	signal.Notify(l.signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-l.signalCh:
			l.loggers.Infof("received shutdown signal, draining")
			_ = l.Shutdown(context.Background())
		case <-l.doneCh:
		}
	}()
}

// Shutdown executes the seven-step graceful drain: new events are
// rejected immediately; senders are given up to Lifecycle.ShutdownGrace to
// drain the queue (step 3), a separate cancellation from the retry
// scheduler cutoff (step 2, l.cancel — nothing currently reads l.ctx for
// scheduling retries, since scheduleRetry uses a bare time.AfterFunc, but
// l.cancel is still the hook that role would use; it does end the replay
// loop). After the grace period the sender workers are stopped and waited
// for; then whatever remains pending-retry or still queued is spilled (if
// enabled) or reported lost, and the replay scheduler and spillover writer
// are stopped in turn. It is safe to call more than once; only the first
// call does anything.
func (l *Logger) Shutdown(ctx context.Context) error {
	l.shutdownOnce.Do(func() {
		l.shuttingDown.Store(true)
		l.cancel()

		grace := l.cfg.Lifecycle.ShutdownGrace
		drained := make(chan struct{})
		go func() {
			l.waitQueueDrained(20 * time.Millisecond)
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(grace):
			l.loggers.Warnf("shutdown: sender pool did not drain within %s", grace)
		case <-ctx.Done():
		}

		l.pool.Stop()
		l.pool.StopWorkers()

		l.pool.PendingRetries().Each(func(id string, qe model.QueuedEvent) {
			if _, ok := l.pool.PendingRetries().Remove(id); !ok {
				return
			}
			l.spillOrReport(qe, reason.ShutdownPendingRetry)
		})

		for _, qe := range l.queue.DrainAll() {
			l.spillOrReport(qe, reason.ShutdownInProgress)
		}

		if l.replay != nil {
			l.replay.Stop()
		}
		if l.spill != nil {
			l.spill.Stop(l.cfg.Spillover.WriterGrace)
		}

		if l.signalCh != nil {
			signal.Stop(l.signalCh)
		}
		close(l.doneCh)
	})
	return nil
}

func (l *Logger) spillOrReport(qe model.QueuedEvent, lossReason reason.Reason) {
	if l.spill != nil {
		ok, spillReason := l.spill.Offer(qe)
		if ok {
			return
		}
		l.ReportLoss(qe.Event, spillReason)
		l.metrics.IncFailed(1)
		return
	}
	l.ReportLoss(qe.Event, lossReason)
	l.metrics.IncFailed(1)
}
