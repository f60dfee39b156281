package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// OperationTally aggregates outcomes for one instrumented operation: total
// elapsed time in milliseconds plus success and error counts.
type OperationTally struct {
	TotalMS float64 `json:"total_ms"`
	Success int64   `json:"success"`
	Error   int64   `json:"error"`
}

// ExpvarMetricsRecorder publishes per-operation tallies via expvar. It
// fulfills MetricsRecorder for deployments that prefer process-local metrics
// over an external backend.
type ExpvarMetricsRecorder struct {
	name    string
	mu      sync.Mutex
	tallies map[string]OperationTally
}

// ExpvarMetricsSnapshot captures a read-only view of the recorded tallies.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationTally `json:"operations"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// NewExpvarMetricsRecorder constructs an expvar-backed recorder and publishes
// it under the supplied name. When name is empty, a unique identifier is
// generated.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("abattoir_service_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{
		name:    name,
		tallies: make(map[string]OperationTally),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Snapshot returns an immutable copy of the aggregated tallies.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make(map[string]OperationTally, len(r.tallies))
	for op, tally := range r.tallies {
		ops[op] = tally
	}
	return ExpvarMetricsSnapshot{
		Operations: ops,
		RecordedAt: time.Now().UTC(),
	}
}

// Observe records a service operation outcome. Empty operation names are
// dropped.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.mu.Lock()
	tally := r.tallies[operation]
	tally.TotalMS += float64(duration) / float64(time.Millisecond)
	if success {
		tally.Success++
	} else {
		tally.Error++
	}
	r.tallies[operation] = tally
	r.mu.Unlock()
}

// TraceEvent is one completed span emitted by the JSON tracer.
type TraceEvent struct {
	Operation string    `json:"operation"`
	Outcome   string    `json:"outcome"`
	ElapsedMS float64   `json:"elapsed_ms"`
	Err       string    `json:"err,omitempty"`
	Begin     time.Time `json:"begin"`
	End       time.Time `json:"end"`
}

// JSONTracer writes each finished span as one JSON line and retains the
// events for inspection via Entries.
type JSONTracer struct {
	mu     sync.Mutex
	nowFn  func() time.Time
	events []TraceEvent
	enc    *json.Encoder
}

// NewJSONTracer constructs a tracer writing spans to w. A nil writer retains
// events without emitting them.
func NewJSONTracer(w io.Writer) *JSONTracer {
	t := &JSONTracer{
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of all recorded events.
func (t *JSONTracer) Entries() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Start implements the Tracer interface.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{tracer: t, operation: operation, begin: t.nowFn()}
}

func (t *JSONTracer) record(ev TraceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
	if t.enc != nil {
		_ = t.enc.Encode(ev)
	}
}

type jsonSpan struct {
	tracer    *JSONTracer
	operation string
	begin     time.Time
}

func (s *jsonSpan) End(err error) {
	end := s.tracer.nowFn()
	ev := TraceEvent{
		Operation: s.operation,
		Outcome:   "success",
		ElapsedMS: float64(end.Sub(s.begin)) / float64(time.Millisecond),
		Begin:     s.begin,
		End:       end,
	}
	if err != nil {
		ev.Outcome = "error"
		ev.Err = err.Error()
	}
	s.tracer.record(ev)
}
