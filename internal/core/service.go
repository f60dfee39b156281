// Package core exposes the transactional services for livestock intake,
// processing-line workflow, inventory, compliance, and identity over a shared
// persistent store guarded by a commit-time rules engine.
package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"abattoircore/internal/infra/persistence/memory"
	"abattoircore/pkg/domain"
)

// DefaultLineNames are the processing lines provisioned by EnsureDefaultLines
// and used by the default batch line selector.
var DefaultLineNames = []string{"Line A", "Line B", "Line C"}

// Service exposes higher-level transactional operations over the core schema.
type Service struct {
	store        domain.PersistentStore
	logger       Logger
	audit        AuditRecorder
	metrics      MetricsRecorder
	tracer       Tracer
	nowFn        func() time.Time
	lineSelector func(names []string) string
	traceCode    func(now time.Time) string
	batchID      func(now time.Time, seq int) string
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditRecorder installs an audit sink for operation outcomes.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithMetricsRecorder installs a metrics backend.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer installs a tracer around service operations.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the time source used for service timestamps. A store
// exposing its own NowFunc still takes precedence so both layers agree.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.nowFn = selectNowFunc(s.store, clock)
		}
	}
}

// WithLineSelector overrides the strategy that picks a processing line name
// during batch submission.
func WithLineSelector(selector func(names []string) string) Option {
	return func(s *Service) {
		if selector != nil {
			s.lineSelector = selector
		}
	}
}

// WithTraceCodeSource overrides traceability code generation.
func WithTraceCodeSource(source func(now time.Time) string) Option {
	return func(s *Service) {
		if source != nil {
			s.traceCode = source
		}
	}
}

// WithBatchIDSource overrides batch ID generation during submission. The
// source must produce distinct IDs for distinct seq values at the same
// instant.
func WithBatchIDSource(source func(now time.Time, seq int) string) Option {
	return func(s *Service) {
		if source != nil {
			s.batchID = source
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:        store,
		logger:       noopLogger{},
		audit:        noopAuditRecorder{},
		metrics:      noopMetricsRecorder{},
		tracer:       noopTracer{},
		nowFn:        selectNowFunc(store, nil),
		lineSelector: defaultLineSelector,
		batchID:      defaultBatchID,
	}
	s.traceCode = s.defaultTraceCode
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

func defaultLineSelector(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[rand.Intn(len(names))]
}

func defaultBatchID(now time.Time, seq int) string {
	return fmt.Sprintf("BATCH-%d", now.UnixMilli()+int64(seq))
}

const base36Digits = "0123456789abcdefghijklmnopqrstuvwxyz"

func (s *Service) defaultTraceCode(now time.Time) string {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = base36Digits[rand.Intn(len(base36Digits))]
	}
	return fmt.Sprintf("TC-%s-%s", formatBase36(now.UnixMilli()), suffix)
}

func formatBase36(v int64) string {
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = base36Digits[v%36]
		v /= 36
	}
	return string(buf[i:])
}

// run wraps a service operation with tracing, metrics, and audit recording.
// entityID may be nil when the operation has no single subject.
func (s *Service) run(ctx context.Context, operation string, entityID *string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	err := fn(ctx)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	if err != nil {
		s.recordAuditError(ctx, operation, err, duration)
		s.logger.Error("operation failed", "operation", operation, "error", err)
		return err
	}
	id := ""
	if entityID != nil {
		id = *entityID
	}
	s.recordAuditSuccess(ctx, operation, id, duration)
	s.logger.Debug("operation completed", "operation", operation, "entity_id", id, "duration", duration)
	return nil
}

func (s *Service) recordAuditSuccess(ctx context.Context, operation, entityID string, duration time.Duration) {
	meta, ok := operationMeta[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    meta.Entity,
		Action:    meta.Action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.nowFn(),
	})
}

func (s *Service) recordAuditError(ctx context.Context, operation string, err error, duration time.Duration) {
	meta, ok := operationMeta[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    meta.Entity,
		Action:    meta.Action,
		Status:    AuditStatusError,
		Error:     err.Error(),
		Duration:  duration,
		Timestamp: s.nowFn(),
	})
}

// ErrNotFound is returned when reference validation fails within transactional helpers.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError reports a missing required input field.
type ValidationError struct {
	Field string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// InvalidValueError reports a rejected numeric input (negative, NaN, or infinite).
type InvalidValueError struct {
	Field string
	Value float64
}

func (e InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %v for %s", e.Value, e.Field)
}

// DuplicateAnimalIDError reports an animal ID already present in the pending
// queue or holding pen.
type DuplicateAnimalIDError struct {
	AnimalID string
}

func (e DuplicateAnimalIDError) Error() string {
	return fmt.Sprintf("animal id %s already registered", e.AnimalID)
}

// IncompleteBatchError reports a completion attempt while animals remain unfinished.
type IncompleteBatchError struct {
	LineID    string
	Remaining int
}

func (e IncompleteBatchError) Error() string {
	return fmt.Sprintf("line %s has %d unfinished animals", e.LineID, e.Remaining)
}

// ErrNoActiveBatch is returned when completing a line that holds no batch.
var ErrNoActiveBatch = errors.New("line has no active batch")
