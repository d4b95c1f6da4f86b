package breaker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClosedByDefault(t *testing.T) {
	b := New(3, time.Minute)
	assert.True(t, b.Allow())
	assert.False(t, b.IsOpen())
}

func TestTripsAtThreshold(t *testing.T) {
	b := New(3, time.Minute)
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen(), "should still be closed below threshold")
	b.RecordFailure()
	assert.True(t, b.IsOpen())
	assert.False(t, b.Allow(), "open breaker should not allow before reset window elapses")
}

func TestSuccessResetsConsecutiveFailures(t *testing.T) {
	b := New(3, time.Minute)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen(), "success should have reset the consecutive-failure count")
}

func TestHalfOpenProbeAfterResetWindow(t *testing.T) {
	b := New(1, 10*time.Millisecond)
	b.RecordFailure()
	a := assert.New(t)
	a.True(b.IsOpen())

	time.Sleep(20 * time.Millisecond)
	a.True(b.Allow(), "a single probe should be allowed once the reset window elapses")
	a.False(b.IsOpen(), "Allow should have closed the breaker for the probe")
}

func TestFailedProbeReopensImmediately(t *testing.T) {
	b := New(1, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

// TestConcurrentAllowYieldsExactlyOneProbe mimics the Sender Loop and the
// Replay Scheduler both calling Allow() on the same breaker at the reset
// boundary: only one of them may win the probe.
func TestConcurrentAllowYieldsExactlyOneProbe(t *testing.T) {
	b := New(1, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	const callers = 50
	var wg sync.WaitGroup
	var allowed atomic.Int64
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if b.Allow() {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), allowed.Load(), "exactly one caller should win the half-open probe")
}
