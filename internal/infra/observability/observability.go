// Package observability provides the reactor's tracing and metrics
// surface: a lightweight in-memory span recorder (no external tracing SDK
// dependency) plus the Prometheus counters and gauges exported over the
// status HTTP server.
package observability

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Trace Spans ────────────────────────────────────────────────────────────

// SpanStatus indicates whether a span completed without error.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

// Span represents one traced reactor operation (a tick, a datagram
// handled, a probe sent).
type Span struct {
	ID        string        `json:"id"`
	Operation string        `json:"operation"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Status    SpanStatus    `json:"status"`
	Err       string        `json:"error,omitempty"`

	tracer *Tracer
}

// End completes the span, recording its duration and any error, and
// appends it to the tracer's ring buffer. A span from a disabled tracer
// is a no-op.
func (s *Span) End(err error) {
	if s == nil || s.tracer == nil {
		return
	}
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	if err != nil {
		s.Status = SpanError
		s.Err = err.Error()
	}
	s.tracer.record(*s)
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int
}

// DefaultTracerConfig returns production defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{Enabled: true, MaxSpans: 10_000}
}

// Tracer is a ring-buffer span recorder. In production this would wrap an
// OpenTelemetry exporter; here it just keeps the most recent spans for
// inspection over the status surface.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
}

// NewTracer creates a tracer from cfg.
func NewTracer(cfg TracerConfig) *Tracer {
	return &Tracer{
		spans:    make([]Span, 0, cfg.MaxSpans),
		maxSpans: cfg.MaxSpans,
		enabled:  cfg.Enabled,
	}
}

// Start begins a span for operation. Callers must call End on the result.
func (t *Tracer) Start(operation string) *Span {
	if t == nil || !t.enabled {
		return &Span{Operation: operation}
	}
	return &Span{
		ID:        generateID(),
		Operation: operation,
		StartTime: time.Now(),
		Status:    SpanOK,
		tracer:    t,
	}
}

func (t *Tracer) record(s Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, s)
}

// Spans returns a copy of the most recent limit spans (all, if limit<=0).
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}
	start := len(t.spans) - limit
	out := make([]Span, limit)
	copy(out, t.spans[start:])
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// Reset clears all recorded spans.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = t.spans[:0]
}

var spanCounter atomic.Int64

func generateID() string {
	n := spanCounter.Add(1)
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102150405.000"), n)
}

// ─── Metrics ────────────────────────────────────────────────────────────────

// Metrics groups the Prometheus series the reactor exports. Grouping them
// in a struct instead of package-level vars lets tests register against
// an isolated prometheus.Registry instead of the global default.
type Metrics struct {
	RequestsSent     *prometheus.CounterVec
	RequestsReceived *prometheus.CounterVec
	IndirectRescues  prometheus.Counter
	SuspicionsRaised prometheus.Counter
	Confirmations    prometheus.Counter
	DigestTruncations prometheus.Counter
	TableSize        prometheus.Gauge
}

// NewMetrics registers the reactor's series against reg and returns the
// handle used to update them.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epidemic",
			Subsystem: "gossip",
			Name:      "requests_sent_total",
			Help:      "Total requests transmitted by kind.",
		}, []string{"kind"}),
		RequestsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epidemic",
			Subsystem: "gossip",
			Name:      "requests_received_total",
			Help:      "Total requests received by kind.",
		}, []string{"kind"}),
		IndirectRescues: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "epidemic",
			Subsystem: "gossip",
			Name:      "indirect_rescues_total",
			Help:      "Total indirect-probe fanouts triggered by a missed direct ack.",
		}),
		SuspicionsRaised: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "epidemic",
			Subsystem: "gossip",
			Name:      "suspicions_raised_total",
			Help:      "Total transitions into the suspect state.",
		}),
		Confirmations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "epidemic",
			Subsystem: "gossip",
			Name:      "confirmations_total",
			Help:      "Total transitions from suspect back to alive.",
		}),
		DigestTruncations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "epidemic",
			Subsystem: "gossip",
			Name:      "digest_truncations_total",
			Help:      "Total outgoing digests truncated to fit the network MTU.",
		}),
		TableSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "epidemic",
			Subsystem: "gossip",
			Name:      "table_size",
			Help:      "Current number of available (not down or left) members in the member table.",
		}),
	}
}

func (m *Metrics) recordSent(kind string) {
	if m == nil {
		return
	}
	m.RequestsSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) recordReceived(kind string) {
	if m == nil {
		return
	}
	m.RequestsReceived.WithLabelValues(kind).Inc()
}

// RecordSent increments the sent counter for kind.
func (m *Metrics) RecordSent(kind string) { m.recordSent(kind) }

// RecordReceived increments the received counter for kind.
func (m *Metrics) RecordReceived(kind string) { m.recordReceived(kind) }
