package spillover

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"time"

	"github.com/srinathv31/eventlogger/internal/apiclient"
	"github.com/srinathv31/eventlogger/internal/breaker"
	"github.com/srinathv31/eventlogger/internal/logging"
	"github.com/srinathv31/eventlogger/internal/metrics"
	"github.com/srinathv31/eventlogger/internal/model"
)

// Replayer periodically rotates the active spillover file and attempts to
// re-ingest its contents, one event at a time. Replay is intentionally
// serial and non-batching — a single probe per line — so a partially
// recovered API is not re-poisoned by a full-size batch.
type Replayer struct {
	store    *Store
	client   *apiclient.Client
	breaker  *breaker.Breaker
	metrics  *metrics.Metrics
	loggers  logging.Loggers
	interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewReplayer builds a Replayer over store, dispatching through client.
func NewReplayer(store *Store, client *apiclient.Client, brk *breaker.Breaker, m *metrics.Metrics, loggers logging.Loggers, interval time.Duration) *Replayer {
	return &Replayer{
		store:    store,
		client:   client,
		breaker:  brk,
		metrics:  m,
		loggers:  loggers,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the replay loop.
func (r *Replayer) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop cancels the replay loop and waits for it to exit.
func (r *Replayer) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Replayer) run(ctx context.Context) {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx)
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runOnce executes one replay pass, per the specification's §4.I
// algorithm.
func (r *Replayer) runOnce(ctx context.Context) {
	if r.breaker.IsOpen() && !r.breaker.Allow() {
		return
	}

	lines, rotated := r.rotateIfNeeded()
	if !rotated && lines == nil {
		return
	}

	remaining, consumed := r.replayLines(ctx, lines)
	r.metrics.IncReplayed(uint64(consumed))

	r.store.lock.Lock()
	defer r.store.lock.Unlock()
	if len(remaining) == 0 {
		_ = os.Remove(r.store.replayPath())
		return
	}
	if err := rewriteReplayFile(r.store.replayPath(), remaining); err != nil {
		r.loggers.Errorf("spillover: rewriting replay file: %v", err)
	}
}

// rotateIfNeeded takes the spillover lock, rotates the active file to the
// replay file if one isn't already pending, and returns the replay file's
// lines (nil, false if there is genuinely nothing to do).
func (r *Replayer) rotateIfNeeded() (lines [][]byte, rotated bool) {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	replayPath := r.store.replayPath()
	activePath := r.store.activePath()

	if _, err := os.Stat(replayPath); err == nil {
		lines, _ = readLines(replayPath)
		return lines, true
	}

	info, err := os.Stat(activePath)
	if os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		return nil, false
	}
	if err != nil {
		r.loggers.Errorf("spillover: stat active file: %v", err)
		return nil, false
	}

	if err := rotateFile(activePath, replayPath); err != nil {
		r.loggers.Errorf("spillover: rotating active file: %v", err)
		return nil, false
	}
	r.store.eventCount = 0
	r.store.byteCount = 0

	lines, _ = readLines(replayPath)
	return lines, true
}

// replayLines sends each line through the API client in order, stopping
// at the first send failure and returning the lines not yet consumed
// (including the one that failed, so it is retried next cycle).
func (r *Replayer) replayLines(ctx context.Context, lines [][]byte) (remaining [][]byte, consumed int) {
	for i, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		ev, err := unmarshalLine(line)
		if err != nil {
			r.loggers.Warnf("spillover: skipping corrupt replay line: %v", err)
			continue
		}
		if _, err := r.client.CreateEvent(ctx, ev.Event); err != nil {
			r.loggers.Warnf("spillover: replay send failed, stopping pass: %v", err)
			return lines[i:], consumed
		}
		consumed++
	}
	return nil, consumed
}

func rotateFile(from, to string) error {
	if err := os.Rename(from, to); err == nil {
		return nil
	}
	// Fallback for filesystems without atomic rename: copy then replace.
	data, err := os.ReadFile(from)
	if err != nil {
		return err
	}
	if err := os.WriteFile(to, data, 0o644); err != nil {
		return err
	}
	return os.Remove(from)
}

func rewriteReplayFile(path string, lines [][]byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			f.Close()
			_ = os.Remove(tmp)
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			_ = os.Remove(tmp)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

var errCorruptLine = errors.New("eventlogger: corrupt spillover line")

func unmarshalLine(line []byte) (model.QueuedEvent, error) {
	ev, err := model.UnmarshalRecord(line)
	if err != nil {
		return model.QueuedEvent{}, errCorruptLine
	}
	return ev, nil
}
