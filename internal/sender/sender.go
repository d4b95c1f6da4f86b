// Package sender implements the Sender Loop (§4.E) and the per-event
// retry path (§4.F): one or more worker goroutines draining the queue,
// dispatching through the circuit breaker and API client, and
// classifying results into success, retry, or permanent failure.
package sender

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/srinathv31/eventlogger/internal/apiclient"
	"github.com/srinathv31/eventlogger/internal/breaker"
	"github.com/srinathv31/eventlogger/internal/logging"
	"github.com/srinathv31/eventlogger/internal/metrics"
	"github.com/srinathv31/eventlogger/internal/model"
	"github.com/srinathv31/eventlogger/internal/queue"
	"github.com/srinathv31/eventlogger/internal/reason"
	"github.com/srinathv31/eventlogger/internal/retryset"
	"github.com/srinathv31/eventlogger/internal/spillover"
)

// Config configures a Pool of sender workers.
type Config struct {
	Threads      int
	BatchSize    int
	MaxBatchWait time.Duration
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
}

// Pool owns the sender worker goroutines and the retry timers they spawn.
//
// The workers' own lifetime is governed by workCtx/Stop, not by the ctx
// handed to outgoing requests: the lifecycle supervisor needs to let
// workers keep draining the queue for up to Lifecycle.ShutdownGrace after
// shutdown begins (§4.J step 3), which is a separate cancellation from
// whatever cancels an individual in-flight request.
type Pool struct {
	cfg     Config
	queue   *queue.Queue
	client  *apiclient.Client
	breaker *breaker.Breaker
	metrics *metrics.Metrics
	spill   *spillover.Store // nil if spillover is disabled
	loggers logging.Loggers
	reports reason.Reporter

	pending *retryset.Set[string, model.QueuedEvent]

	workCtx    context.Context
	workCancel context.CancelFunc
	stopOnce   sync.Once

	wg sync.WaitGroup
}

// New builds a sender Pool. spill may be nil if spillover is disabled.
func New(
	cfg Config,
	q *queue.Queue,
	client *apiclient.Client,
	brk *breaker.Breaker,
	m *metrics.Metrics,
	spill *spillover.Store,
	loggers logging.Loggers,
	reports reason.Reporter,
) *Pool {
	workCtx, workCancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:        cfg,
		queue:      q,
		client:     client,
		breaker:    brk,
		metrics:    m,
		spill:      spill,
		loggers:    loggers,
		reports:    reports,
		pending:    retryset.New[string, model.QueuedEvent](),
		workCtx:    workCtx,
		workCancel: workCancel,
	}
}

// Start launches cfg.Threads worker goroutines. They run until Stop is
// called.
func (p *Pool) Start() {
	for i := 0; i < p.cfg.Threads; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
}

// Stop signals every worker goroutine to exit after whatever batch it is
// currently handling; it does not wait for them. Safe to call more than
// once.
func (p *Pool) Stop() {
	p.stopOnce.Do(p.workCancel)
}

// StopWorkers blocks until every worker goroutine has exited. Call Stop
// first, or workers may run indefinitely.
func (p *Pool) StopWorkers() {
	p.wg.Wait()
}

// PendingRetries returns the set tracking in-flight retry timers, for the
// lifecycle supervisor's shutdown drain.
func (p *Pool) PendingRetries() *retryset.Set[string, model.QueuedEvent] {
	return p.pending
}

func (p *Pool) workerLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.workCtx.Done():
			return
		default:
		}

		batch := p.queue.DrainUpTo(p.cfg.BatchSize, p.cfg.MaxBatchWait)
		if len(batch) == 0 {
			continue
		}
		p.metrics.SetQueueDepth(p.queue.Len())
		p.processBatch(context.Background(), batch)
	}
}

func (p *Pool) processBatch(ctx context.Context, batch []model.QueuedEvent) {
	if !p.breaker.Allow() {
		p.metrics.SetCircuitOpen(true)
		if p.spill != nil {
			p.loggers.Warnf("circuit open, routing batch of %d to spillover", len(batch))
			for _, qe := range batch {
				p.spillOrLose(qe, reason.RetriesExhausted)
			}
			return
		}
		p.loggers.Warnf("circuit open and spillover disabled, deferring batch of %d via retry", len(batch))
		for _, qe := range batch {
			p.scheduleRetry(qe)
		}
		return
	}
	p.metrics.SetCircuitOpen(p.breaker.IsOpen())

	events := make([]model.Event, len(batch))
	for i, qe := range batch {
		events[i] = qe.Event
	}

	if p.cfg.BatchSize > 1 && len(batch) > 1 {
		result, err := p.client.CreateEvents(ctx, events)
		p.classifyBatch(batch, result, err)
		return
	}

	for _, qe := range batch {
		_, err := p.client.CreateEvent(ctx, qe.Event)
		if err != nil {
			p.breaker.RecordFailure()
			p.metrics.SetCircuitOpen(p.breaker.IsOpen())
			p.handleFailure(qe)
			continue
		}
		p.breaker.RecordSuccess()
		p.metrics.IncSent(1)
	}
}

func (p *Pool) classifyBatch(batch []model.QueuedEvent, result model.BatchResult, err error) {
	switch result.Kind {
	case model.AllSuccess:
		p.breaker.RecordSuccess()
		p.metrics.SetCircuitOpen(p.breaker.IsOpen())
		p.metrics.IncSent(uint64(len(batch)))

	case model.PartialFailure:
		p.breaker.RecordSuccess()
		p.metrics.SetCircuitOpen(p.breaker.IsOpen())
		failedSet := make(map[int]bool, len(result.FailedIndices))
		for _, idx := range result.FailedIndices {
			failedSet[idx] = true
		}
		succeeded := 0
		for i, qe := range batch {
			if failedSet[i] {
				p.handleFailure(qe)
				continue
			}
			succeeded++
		}
		p.metrics.IncSent(uint64(succeeded))

	case model.TotalFailure:
		if err != nil {
			p.loggers.Warnf("batch send failed: %v", err)
		}
		p.breaker.RecordFailure()
		p.metrics.SetCircuitOpen(p.breaker.IsOpen())
		for _, qe := range batch {
			p.handleFailure(qe)
		}
	}
}

// handleFailure implements §4.F for one event at its current attempt.
func (p *Pool) handleFailure(qe model.QueuedEvent) {
	if qe.Attempts < p.maxRetries() {
		p.scheduleRetry(qe)
		return
	}
	p.spillOrLose(qe, reason.RetriesExhausted)
}

func (p *Pool) maxRetries() int { return p.cfg.MaxRetries }

// scheduleRetry computes the backoff delay for qe's next attempt using a
// fresh exponential-backoff-with-jitter sequence (the same arithmetic
// cenkalti/backoff/v4 already implements, rather than a hand-rolled
// rand.Float64 jitter), tracks it in the pending-retry set, and schedules
// the re-enqueue.
func (p *Pool) scheduleRetry(qe model.QueuedEvent) {
	delay := p.delayFor(qe.Attempts)
	id := uuid.NewString()
	next := qe.NextAttempt()
	p.pending.Add(id, next)

	timer := time.AfterFunc(delay, func() {
		p.fireRetry(id)
	})
	_ = timer // the timer need not be retained: shutdown relies on the
	// pending-retry set's atomic Remove, not on canceling timers, per
	// the specification's CAS-gate design (§4.J).
}

func (p *Pool) fireRetry(id string) {
	qe, ok := p.pending.Remove(id)
	if !ok {
		// Shutdown's drain already claimed this event.
		return
	}
	if !p.queue.TryOffer(qe) {
		p.spillOrLose(qe, reason.RetryRequeueFailed)
		return
	}
	p.metrics.SetQueueDepth(p.queue.Len())
}

// delayFor returns the delay before the (attempt+1)th retry, per
// min(baseDelay*2^attempt, maxDelay) jittered uniformly in ±25%.
func (p *Pool) delayFor(attempt int) time.Duration {
	bo := &backoff.ExponentialBackOff{
		InitialInterval:     p.cfg.BaseDelay,
		RandomizationFactor: 0.25,
		Multiplier:          2,
		MaxInterval:         p.cfg.MaxDelay,
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	bo.Reset()
	var d time.Duration
	for i := 0; i <= attempt; i++ {
		d = bo.NextBackOff()
	}
	return d
}

// spillOrLose hands qe to disk spillover if enabled, otherwise reports it
// as permanently lost. When spillover is enabled, Offer only admits qe to
// the writer goroutine's inbox; the writer itself is the sole place that
// increments the spilled or failed counter once the record's disk fate is
// known, so a successful Offer here does not touch metrics.
func (p *Pool) spillOrLose(qe model.QueuedEvent, lossReason reason.Reason) {
	if p.spill != nil {
		ok, spillReason := p.spill.Offer(qe)
		if ok {
			return
		}
		p.reports.ReportLoss(qe.Event, spillReason)
		p.metrics.IncFailed(1)
		return
	}
	p.reports.ReportLoss(qe.Event, lossReason)
	p.metrics.IncFailed(1)
}
