package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ─── Tracer ─────────────────────────────────────────────────────────────────

func TestTracer_StartEnd_RecordsSpan(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())

	span := tr.Start("test-op")
	span.End(nil)

	if tr.SpanCount() != 1 {
		t.Fatalf("SpanCount() = %d, want 1", tr.SpanCount())
	}

	spans := tr.Spans(1)
	if len(spans) != 1 {
		t.Fatalf("Spans(1) returned %d, want 1", len(spans))
	}
	if spans[0].Operation != "test-op" {
		t.Errorf("Operation = %q, want %q", spans[0].Operation, "test-op")
	}
	if spans[0].Status != SpanOK {
		t.Errorf("Status = %d, want SpanOK", spans[0].Status)
	}
	if spans[0].EndTime.Before(spans[0].StartTime) {
		t.Error("EndTime should not be before StartTime")
	}
}

func TestTracer_EndSpan_RecordsError(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())

	span := tr.Start("err-op")
	span.End(errors.New("boom"))

	spans := tr.Spans(1)
	if spans[0].Status != SpanError {
		t.Errorf("Status = %d, want SpanError", spans[0].Status)
	}
	if spans[0].Err != "boom" {
		t.Errorf("Err = %q, want %q", spans[0].Err, "boom")
	}
}

func TestTracer_Disabled(t *testing.T) {
	tr := NewTracer(TracerConfig{Enabled: false, MaxSpans: 100})
	span := tr.Start("noop")
	span.End(nil)

	if tr.SpanCount() != 0 {
		t.Errorf("disabled tracer SpanCount() = %d, want 0", tr.SpanCount())
	}
}

func TestTracer_RingBuffer_Overflow(t *testing.T) {
	tr := NewTracer(TracerConfig{Enabled: true, MaxSpans: 3})

	for i := 0; i < 5; i++ {
		span := tr.Start("op")
		span.End(nil)
	}

	if tr.SpanCount() != 3 {
		t.Errorf("SpanCount() = %d, want 3 (ring buffer overflow)", tr.SpanCount())
	}
}

func TestTracer_Spans_Limit(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	for i := 0; i < 10; i++ {
		span := tr.Start("op")
		span.End(nil)
	}

	spans := tr.Spans(3)
	if len(spans) != 3 {
		t.Errorf("Spans(3) returned %d, want 3", len(spans))
	}
}

func TestTracer_Spans_ZeroLimit(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	for i := 0; i < 5; i++ {
		span := tr.Start("op")
		span.End(nil)
	}

	spans := tr.Spans(0)
	if len(spans) != 5 {
		t.Errorf("Spans(0) returned %d, want all 5", len(spans))
	}
}

func TestTracer_Reset(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	span := tr.Start("op")
	span.End(nil)

	tr.Reset()
	if tr.SpanCount() != 0 {
		t.Errorf("SpanCount() after Reset = %d, want 0", tr.SpanCount())
	}
}

func TestTracer_SpanIDUnique(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())

	span1 := tr.Start("op1")
	span2 := tr.Start("op2")

	if span1.ID == span2.ID {
		t.Errorf("span IDs should be unique, both = %q", span1.ID)
	}

	span1.End(nil)
	span2.End(nil)
}

func TestTracer_NilSafe(t *testing.T) {
	var tr *Tracer
	span := tr.Start("op")
	span.End(nil) // must not panic
}

// ─── Metrics ────────────────────────────────────────────────────────────────

func TestMetrics_RecordSentReceived(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSent("ping")
	m.RecordSent("ping")
	m.RecordReceived("ack")

	if got := testutil.ToFloat64(m.RequestsSent.WithLabelValues("ping")); got != 2 {
		t.Errorf("RequestsSent[ping] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RequestsReceived.WithLabelValues("ack")); got != 1 {
		t.Errorf("RequestsReceived[ack] = %v, want 1", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordSent("ping")
	m.RecordReceived("ack")
}
