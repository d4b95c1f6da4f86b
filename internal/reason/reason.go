// Package reason defines the stable loss-reason codes shared by every
// internal component, so they can report event loss without importing
// the root eventlogger package (which would create an import cycle).
package reason

import "github.com/srinathv31/eventlogger/internal/model"

// Reason is one of the stable reason codes reported when an event is
// permanently lost. These strings are a wire-level contract with existing
// consumers and must not change.
type Reason string

const (
	QueueFull             Reason = "queue_full"
	ShutdownInProgress    Reason = "shutdown_in_progress"
	ShutdownPendingRetry  Reason = "shutdown_pending_retry"
	RetriesExhausted      Reason = "retries_exhausted"
	RetryRequeueFailed    Reason = "retry_requeue_failed"
	RetryExecutorRejected Reason = "retry_executor_rejected"
	SpilloverQueueFull    Reason = "spillover_queue_full"
	SpilloverMaxEvents    Reason = "spillover_max_events"
	SpilloverMaxSize      Reason = "spillover_max_size"
)

// Reporter is implemented by anything that can record a permanent event
// loss: invoke the host callback (or log a WARN if none is installed). It
// does not touch the failed counter; the caller increments that itself.
type Reporter interface {
	ReportLoss(event model.Event, reason Reason)
}
