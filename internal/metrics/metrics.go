// Package metrics implements the Metrics Snapshot named in the
// specification, plus a Prometheus collector so a host process can
// export it. Export is the host's concern; this package only maintains
// and exposes the numbers.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is the monotonic-counters-plus-gauges view of one Logger's
// lifetime activity.
type Snapshot struct {
	Queued      uint64
	Sent        uint64
	Failed      uint64
	Spilled     uint64
	Replayed    uint64
	QueueDepth  int
	CircuitOpen bool
}

// Metrics holds the live, concurrently-updated counters backing a
// Snapshot. All fields are safe for concurrent use.
type Metrics struct {
	queued      atomic.Uint64
	sent        atomic.Uint64
	failed      atomic.Uint64
	spilled     atomic.Uint64
	replayed    atomic.Uint64
	queueDepth  atomic.Int64
	circuitOpen atomic.Bool
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncQueued(n uint64)   { m.queued.Add(n) }
func (m *Metrics) IncSent(n uint64)     { m.sent.Add(n) }
func (m *Metrics) IncFailed(n uint64)   { m.failed.Add(n) }
func (m *Metrics) IncSpilled(n uint64)  { m.spilled.Add(n) }
func (m *Metrics) IncReplayed(n uint64) { m.replayed.Add(n) }

func (m *Metrics) SetQueueDepth(n int)    { m.queueDepth.Store(int64(n)) }
func (m *Metrics) SetCircuitOpen(open bool) { m.circuitOpen.Store(open) }
func (m *Metrics) CircuitOpen() bool        { return m.circuitOpen.Load() }
func (m *Metrics) QueueDepth() int          { return int(m.queueDepth.Load()) }

// Snapshot returns a point-in-time copy of every counter and gauge.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Queued:      m.queued.Load(),
		Sent:        m.sent.Load(),
		Failed:      m.failed.Load(),
		Spilled:     m.spilled.Load(),
		Replayed:    m.replayed.Load(),
		QueueDepth:  int(m.queueDepth.Load()),
		CircuitOpen: m.circuitOpen.Load(),
	}
}

// Collector adapts Metrics to prometheus.Collector, so a host process can
// register one eventlogger.Logger's metrics (or several, with distinct
// ConstLabels) with its own registry. Implemented as a collector reading
// straight from the live atomics on every scrape, rather than a second
// bookkeeping layer kept in sync with Metrics — there is exactly one
// source of truth.
type Collector struct {
	metrics     *Metrics
	constLabels prometheus.Labels

	queuedDesc      *prometheus.Desc
	sentDesc        *prometheus.Desc
	failedDesc      *prometheus.Desc
	spilledDesc     *prometheus.Desc
	replayedDesc    *prometheus.Desc
	queueDepthDesc  *prometheus.Desc
	circuitOpenDesc *prometheus.Desc
}

// NewCollector builds a Collector for m. labels are attached to every
// exported metric, typically to distinguish multiple Logger instances in
// one process (e.g. {"logger": "primary"}).
func NewCollector(m *Metrics, labels prometheus.Labels) *Collector {
	return &Collector{
		metrics:         m,
		constLabels:     labels,
		queuedDesc:      prometheus.NewDesc("eventlogger_events_queued_total", "Total events accepted onto the queue.", nil, labels),
		sentDesc:        prometheus.NewDesc("eventlogger_events_sent_total", "Total events successfully delivered.", nil, labels),
		failedDesc:      prometheus.NewDesc("eventlogger_events_failed_total", "Total events permanently lost.", nil, labels),
		spilledDesc:     prometheus.NewDesc("eventlogger_events_spilled_total", "Total events written to disk spillover.", nil, labels),
		replayedDesc:    prometheus.NewDesc("eventlogger_events_replayed_total", "Total events re-ingested from spillover.", nil, labels),
		queueDepthDesc:  prometheus.NewDesc("eventlogger_queue_depth", "Current number of events resident in the in-memory queue.", nil, labels),
		circuitOpenDesc: prometheus.NewDesc("eventlogger_circuit_open", "1 if the circuit breaker is currently open, else 0.", nil, labels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queuedDesc
	ch <- c.sentDesc
	ch <- c.failedDesc
	ch <- c.spilledDesc
	ch <- c.replayedDesc
	ch <- c.queueDepthDesc
	ch <- c.circuitOpenDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.queuedDesc, prometheus.CounterValue, float64(snap.Queued))
	ch <- prometheus.MustNewConstMetric(c.sentDesc, prometheus.CounterValue, float64(snap.Sent))
	ch <- prometheus.MustNewConstMetric(c.failedDesc, prometheus.CounterValue, float64(snap.Failed))
	ch <- prometheus.MustNewConstMetric(c.spilledDesc, prometheus.CounterValue, float64(snap.Spilled))
	ch <- prometheus.MustNewConstMetric(c.replayedDesc, prometheus.CounterValue, float64(snap.Replayed))
	ch <- prometheus.MustNewConstMetric(c.queueDepthDesc, prometheus.GaugeValue, float64(snap.QueueDepth))
	circuitOpen := 0.0
	if snap.CircuitOpen {
		circuitOpen = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.circuitOpenDesc, prometheus.GaugeValue, circuitOpen)
}
