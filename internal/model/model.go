// Package model holds the data types shared across the queue, sender,
// API client, and spillover packages, so none of them has to import the
// public eventlogger package (which imports all of them).
package model

import (
	"encoding/json"
	"time"
)

// Event mirrors eventlogger.Event: an opaque map of application-supplied
// fields. Defined independently here to avoid an import cycle with the
// root package; eventlogger.Event is defined as an alias of this type.
type Event map[string]any

// CorrelationID returns the event's correlation id, or "" if absent.
func (e Event) CorrelationID() string { return stringField(e, "correlation_id") }

// ProcessName returns the event's process name, or "" if absent.
func (e Event) ProcessName() string { return stringField(e, "process_name") }

func stringField(e Event, key string) string {
	if v, ok := e[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// QueuedEvent is an Event together with its retry bookkeeping. It is
// immutable after creation: a retry produces a new QueuedEvent with
// Attempts+1 rather than mutating this one.
type QueuedEvent struct {
	Event            Event
	Attempts         int
	FirstEnqueueTime time.Time
}

// NextAttempt returns a new QueuedEvent representing a retry of q.
func (q QueuedEvent) NextAttempt() QueuedEvent {
	return QueuedEvent{
		Event:            q.Event,
		Attempts:         q.Attempts + 1,
		FirstEnqueueTime: q.FirstEnqueueTime,
	}
}

// BatchResultKind discriminates the three shapes a Batch Result can take.
type BatchResultKind int

const (
	AllSuccess BatchResultKind = iota
	PartialFailure
	TotalFailure
)

// IndexedError is one per-index failure reported by the batch ingestion
// endpoint.
type IndexedError struct {
	Index   int
	Message string
}

// BatchResult is the outcome of dispatching one batch to the API Client.
type BatchResult struct {
	Kind          BatchResultKind
	FailedIndices []int
	Errors        []IndexedError
	Err           error
}

// SpilloverRecord is the on-disk, line-delimited JSON representation of
// one spilled QueuedEvent.
type SpilloverRecord struct {
	Event            Event     `json:"event"`
	Attempts         int       `json:"attempts"`
	FirstEnqueueTime time.Time `json:"first_enqueue_time"`
}

func (q QueuedEvent) ToRecord() SpilloverRecord {
	return SpilloverRecord{Event: q.Event, Attempts: q.Attempts, FirstEnqueueTime: q.FirstEnqueueTime}
}

func (r SpilloverRecord) ToQueuedEvent() QueuedEvent {
	return QueuedEvent{Event: r.Event, Attempts: r.Attempts, FirstEnqueueTime: r.FirstEnqueueTime}
}

// MarshalRecord serializes a QueuedEvent to one spillover line (without a
// trailing newline; the caller appends it).
func MarshalRecord(q QueuedEvent) ([]byte, error) {
	return json.Marshal(q.ToRecord())
}

// UnmarshalRecord parses one spillover line back into a QueuedEvent. A
// corrupt line produces an error; the caller's policy is to skip it and
// continue (see the specification's serialization-error handling).
func UnmarshalRecord(line []byte) (QueuedEvent, error) {
	var r SpilloverRecord
	if err := json.Unmarshal(line, &r); err != nil {
		return QueuedEvent{}, err
	}
	return r.ToQueuedEvent(), nil
}
