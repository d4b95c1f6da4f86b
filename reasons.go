package eventlogger

import "github.com/srinathv31/eventlogger/internal/reason"

// LossReason is one of the stable reason codes reported to an
// OnEventLoss callback (or logged at WARN if no callback is installed).
// These strings are part of the wire-level contract with existing
// consumers and must not change.
type LossReason = reason.Reason

const (
	ReasonQueueFull             = reason.QueueFull
	ReasonShutdownInProgress    = reason.ShutdownInProgress
	ReasonShutdownPendingRetry  = reason.ShutdownPendingRetry
	ReasonRetriesExhausted      = reason.RetriesExhausted
	ReasonRetryRequeueFailed    = reason.RetryRequeueFailed
	ReasonRetryExecutorRejected = reason.RetryExecutorRejected
	ReasonSpilloverQueueFull    = reason.SpilloverQueueFull
	ReasonSpilloverMaxEvents    = reason.SpilloverMaxEvents
	ReasonSpilloverMaxSize      = reason.SpilloverMaxSize
)

// EventLossFunc is a host-installable callback invoked whenever an event
// is permanently lost. reason is always one of the LossReason constants.
type EventLossFunc func(event Event, reason LossReason)
