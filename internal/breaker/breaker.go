// Package breaker implements the fail-fast circuit breaker gating the
// Sender Loop. No circuit-breaker library appears anywhere in the
// reference corpus, and the state machine required here — closed / open /
// a single implicit half-open probe, with no periodic background health
// check — is narrow enough that a generic breaker library (most of which
// poll on a timer while half-open) would need to be fought rather than
// used. Hand-rolled atomics are the correct tool.
package breaker

import (
	"sync/atomic"
	"time"
)

// Breaker is a closed/open circuit breaker with consecutive-failure
// tracking and a timed, single-probe reset.
type Breaker struct {
	threshold int
	resetAfter time.Duration

	consecutiveFailures atomic.Int64
	open                atomic.Bool
	openedAtUnixNano    atomic.Int64
}

// New builds a Breaker that opens after threshold consecutive failures
// and becomes eligible for a single half-open probe resetAfter the open
// transition.
func New(threshold int, resetAfter time.Duration) *Breaker {
	return &Breaker{threshold: threshold, resetAfter: resetAfter}
}

// Allow reports whether the Sender Loop may attempt the next batch. It
// implements the Open -> Half-Open transition: if the breaker has been
// open for at least resetAfter, it flips to Closed and lets exactly one
// batch through as a probe. A failure in that probe will immediately
// reopen the breaker via RecordFailure.
func (b *Breaker) Allow() bool {
	if !b.open.Load() {
		return true
	}
	openedAt := time.Unix(0, b.openedAtUnixNano.Load())
	if time.Since(openedAt) < b.resetAfter {
		return false
	}
	// Eligible for the probe, but only one caller may take it: the Sender
	// Loop and the Replay Scheduler share this breaker, and both can reach
	// this point in the same reset window. The CAS is the single probe
	// gate; whichever goroutine wins flips Closed, every other loses the
	// race and is still told no.
	if !b.open.CompareAndSwap(true, false) {
		return false
	}
	// Leave the counter one short of threshold, so a single failure of the
	// probe reopens the breaker; a success resets it via RecordSuccess.
	b.consecutiveFailures.Store(int64(b.threshold) - 1)
	return true
}

// RecordSuccess resets the consecutive-failure counter. Closed stays
// Closed.
func (b *Breaker) RecordSuccess() {
	b.consecutiveFailures.Store(0)
}

// RecordFailure increments the consecutive-failure counter and opens the
// breaker if it reaches threshold.
func (b *Breaker) RecordFailure() {
	n := b.consecutiveFailures.Add(1)
	if n >= int64(b.threshold) {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.open.Store(true)
	b.openedAtUnixNano.Store(time.Now().UnixNano())
}

// IsOpen reports the breaker's current state, for observability
// (Logger.CircuitOpen()). It does not perform the half-open transition —
// only Allow() does that, since flipping state is a side effect that
// should only happen when the Sender Loop is actually about to dispatch.
func (b *Breaker) IsOpen() bool {
	return b.open.Load()
}
