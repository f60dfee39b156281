package core

import (
	"context"
	"time"

	"abattoircore/pkg/domain"
)

// Logger is the minimal structured logging contract used by the service.
// Arguments follow the slog convention of alternating keys and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus marks the outcome recorded for an audited operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry captures one service operation for external audit sinks.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries emitted by instrumented operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder observes operation outcomes for metrics backends.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan finishes a traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopSpan) End(error) {}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

// Clock supplies the current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface. A nil function falls
// back to the system clock. Times are normalized to UTC.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// operationMeta maps instrumented operation names to the entity and action
// recorded in audit entries. Operations absent from the map are not audited.
var operationMeta = map[string]struct {
	Entity EntityType
	Action Action
}{
	"add_entry":             {EntityIntakeEntry, ActionCreate},
	"update_entry":          {EntityIntakeEntry, ActionUpdate},
	"remove_entry":          {EntityIntakeEntry, ActionDelete},
	"submit_batch":          {EntityHoldingEntry, ActionUpdate},
	"update_vet_inspection": {EntityIntakeEntry, ActionUpdate},
	"create_line":           {EntityProcessingLine, ActionCreate},
	"assign_batch":          {EntityProcessingLine, ActionUpdate},
	"advance_stage":         {EntityProcessingLine, ActionUpdate},
	"set_animal_status":     {EntityProcessingLine, ActionUpdate},
	"assign_operator":       {EntityProcessingLine, ActionUpdate},
	"record_measurements":   {EntityProcessingLine, ActionUpdate},
	"pause_line":            {EntityProcessingLine, ActionUpdate},
	"resume_line":           {EntityProcessingLine, ActionUpdate},
	"complete_batch":        {EntityProcessingLine, ActionUpdate},
	"add_inventory_item":    {EntityInventoryItem, ActionCreate},
	"adjust_quantity":       {EntityInventoryItem, ActionUpdate},
	"set_quantity":          {EntityInventoryItem, ActionUpdate},
	"set_cost":              {EntityInventoryItem, ActionUpdate},
	"set_price":             {EntityInventoryItem, ActionUpdate},
	"remove_inventory_item": {EntityInventoryItem, ActionDelete},
	"add_compliance_check":  {EntityComplianceCheck, ActionCreate},
	"update_check_status":   {EntityComplianceCheck, ActionUpdate},
	"add_check_comment":     {EntityComplianceCheck, ActionUpdate},
	"signup":                {EntityUser, ActionCreate},
	"login":                 {EntityUser, ActionUpdate},
	"logout":                {EntityUser, ActionUpdate},
	"tick":                  {EntityHoldingEntry, ActionUpdate},
}

// selectNowFunc prefers the store's own time provider when it exposes one so
// service timestamps and store timestamps agree, then the configured clock,
// then the system clock in UTC.
func selectNowFunc(store domain.PersistentStore, clock Clock) func() time.Time {
	type nowProvider interface {
		NowFunc() func() time.Time
	}
	if p, ok := store.(nowProvider); ok {
		if fn := p.NowFunc(); fn != nil {
			return func() time.Time { return fn().UTC() }
		}
	}
	if clock != nil {
		return clock.Now
	}
	return func() time.Time { return time.Now().UTC() }
}

// extractRulesEngine returns the store's engine when the store exposes one.
func extractRulesEngine(store domain.PersistentStore) *RulesEngine {
	type engineProvider interface {
		RulesEngine() *domain.RulesEngine
	}
	if p, ok := store.(engineProvider); ok {
		return p.RulesEngine()
	}
	return nil
}
