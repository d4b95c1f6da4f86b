// Package queue implements the bounded FIFO of pending events and its
// batching drain, backed by a buffered Go channel — the idiomatic bounded
// concurrent queue for this language. A channel's own internal lock is
// the synchronization the specification requires ("mutation is serialized
// by the queue's own synchronization"); no external queue library is
// needed or appears anywhere in the reference corpus for this role.
package queue

import (
	"time"

	"github.com/srinathv31/eventlogger/internal/model"
)

// Queue is a bounded, first-in-first-out queue of model.QueuedEvent.
type Queue struct {
	ch chan model.QueuedEvent
}

// New builds a Queue with the given capacity.
func New(capacity int) *Queue {
	return &Queue{ch: make(chan model.QueuedEvent, capacity)}
}

// TryOffer attempts to enqueue ev without blocking. It returns false if
// the queue is full.
func (q *Queue) TryOffer(ev model.QueuedEvent) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		return false
	}
}

// DrainUpTo blocks up to maxWait for the first element, then greedily
// takes up to n-1 more without blocking. It returns nil if no element
// arrived within maxWait.
func (q *Queue) DrainUpTo(n int, maxWait time.Duration) []model.QueuedEvent {
	if n <= 0 {
		return nil
	}

	var batch []model.QueuedEvent
	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case ev := <-q.ch:
		batch = append(batch, ev)
	case <-timer.C:
		return nil
	}

	for len(batch) < n {
		select {
		case ev := <-q.ch:
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

// DrainAll greedily takes every event currently buffered, without
// blocking. Unlike DrainUpTo(n, 0), it never races a timer against the
// channel's readiness: it stops only when the channel has nothing ready
// to receive, so a caller that needs the queue's entire resident content
// (e.g. Logger.Shutdown) gets exactly that.
func (q *Queue) DrainAll() []model.QueuedEvent {
	var batch []model.QueuedEvent
	for {
		select {
		case ev := <-q.ch:
			batch = append(batch, ev)
		default:
			return batch
		}
	}
}

// Len reports the number of events currently resident in the queue. It is
// a snapshot, racy by nature for a concurrently-mutated channel; it feeds
// the observability gauge (Logger.QueueDepth()) and the polling in
// Logger.Flush and the shutdown drain.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap reports the queue's configured capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
