package spillover

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srinathv31/eventlogger/internal/logging"
	"github.com/srinathv31/eventlogger/internal/metrics"
	"github.com/srinathv31/eventlogger/internal/model"
	"github.com/srinathv31/eventlogger/internal/reason"
)

type lossRecorder struct {
	mu     sync.Mutex
	losses []reason.Reason
}

func (r *lossRecorder) ReportLoss(_ model.Event, lossReason reason.Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.losses = append(r.losses, lossReason)
}

func (r *lossRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.losses)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition did not become true within %s", timeout)
}

func TestOfferPersistsToDisk(t *testing.T) {
	dir := t.TempDir()
	reports := &lossRecorder{}
	m := metrics.New()
	store, err := New(Config{Dir: dir, MaxEvents: 100, MaxBytes: 1 << 20}, logging.New(nil), reports, m)
	require.NoError(t, err)
	store.Start()
	defer store.Stop(time.Second)

	ok, _ := store.Offer(model.QueuedEvent{Event: model.Event{"i": 1}})
	require.True(t, ok)

	waitFor(t, time.Second, func() bool { return store.EventCount() == 1 })
	assert.Equal(t, uint64(1), m.Snapshot().Spilled)

	data, err := os.ReadFile(filepath.Join(dir, activeFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"i":1`)
}

func TestMaxEventsBoundRejectsAndReportsLoss(t *testing.T) {
	dir := t.TempDir()
	reports := &lossRecorder{}
	m := metrics.New()
	store, err := New(Config{Dir: dir, MaxEvents: 1, MaxBytes: 1 << 20}, logging.New(nil), reports, m)
	require.NoError(t, err)
	store.Start()
	defer store.Stop(time.Second)

	ok1, _ := store.Offer(model.QueuedEvent{Event: model.Event{"i": 1}})
	require.True(t, ok1)
	waitFor(t, time.Second, func() bool { return store.EventCount() == 1 })

	ok2, _ := store.Offer(model.QueuedEvent{Event: model.Event{"i": 2}})
	require.True(t, ok2, "Offer only rejects synchronously when the in-memory write queue itself is full")

	waitFor(t, time.Second, func() bool { return reports.count() == 1 })
	assert.Equal(t, reason.SpilloverMaxEvents, reports.losses[0])
	assert.Equal(t, uint64(1), m.Snapshot().Failed)
	assert.Equal(t, uint64(1), m.Snapshot().Spilled, "the first, accepted event should still count as spilled")
}

func TestRestartRescansExistingActiveFile(t *testing.T) {
	dir := t.TempDir()
	reports := &lossRecorder{}
	m := metrics.New()

	store, err := New(Config{Dir: dir, MaxEvents: 10, MaxBytes: 1 << 20}, logging.New(nil), reports, m)
	require.NoError(t, err)
	store.Start()
	ok, _ := store.Offer(model.QueuedEvent{Event: model.Event{"i": 1}})
	require.True(t, ok)
	waitFor(t, time.Second, func() bool { return store.EventCount() == 1 })
	store.Stop(time.Second)

	reopened, err := New(Config{Dir: dir, MaxEvents: 10, MaxBytes: 1 << 20}, logging.New(nil), reports, m)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.EventCount(), "counters must be rebuilt from the existing active file on restart")
}
