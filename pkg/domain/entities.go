// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by abattoircore.
package domain

import (
	"math"
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityIntakeEntry identifies a pending livestock intake entry.
	EntityIntakeEntry EntityType = "intake_entry"
	// EntityHoldingEntry identifies a holding-pen entry awaiting line assignment.
	EntityHoldingEntry EntityType = "holding_entry"
	// EntityProcessingLine identifies a processing line record.
	EntityProcessingLine EntityType = "processing_line"
	// EntityInventoryItem identifies a stock-keeping record.
	EntityInventoryItem EntityType = "inventory_item"
	// EntityComplianceCheck identifies a compliance checklist record.
	EntityComplianceCheck EntityType = "compliance_check"
	// EntityUser identifies a user account record.
	EntityUser EntityType = "user"
	// EntityAuditLog identifies an audit trail entry.
	EntityAuditLog EntityType = "audit_log"
)

// IntakeStatus enumerates livestock entry lifecycle states from arrival to hand-off.
type IntakeStatus string

// Canonical intake statuses. An entry is quarantine iff its quarantine flag was
// set at creation; vet inspection may move it afterwards.
const (
	IntakePending    IntakeStatus = "pending"
	IntakeInspected  IntakeStatus = "inspected"
	IntakeCleared    IntakeStatus = "cleared"
	IntakeProcessing IntakeStatus = "processing"
	IntakeQuarantine IntakeStatus = "quarantine"
)

// VetInspectionStatus enumerates veterinary inspection outcomes.
type VetInspectionStatus string

const (
	VetInspectionPending VetInspectionStatus = "pending"
	VetInspectionPassed  VetInspectionStatus = "passed"
	VetInspectionFailed  VetInspectionStatus = "failed"
)

// LineStatus enumerates processing line states.
type LineStatus string

const (
	LineIdle      LineStatus = "idle"
	LineActive    LineStatus = "active"
	LinePaused    LineStatus = "paused"
	LineCompleted LineStatus = "completed"
)

// AnimalStatus enumerates per-animal workflow states. Complete is terminal;
// hold, quarantine, and rework are side states that block stage advancement
// until the animal is resumed.
type AnimalStatus string

const (
	AnimalInProgress AnimalStatus = "in-progress"
	AnimalComplete   AnimalStatus = "complete"
	AnimalHold       AnimalStatus = "hold"
	AnimalQuarantine AnimalStatus = "quarantine"
	AnimalRework     AnimalStatus = "rework"
)

// StockStatus is derived from quantity thresholds and never stored independently.
type StockStatus string

const (
	StockOptimal  StockStatus = "optimal"
	StockLow      StockStatus = "low"
	StockCritical StockStatus = "critical"
)

// CheckStatus enumerates compliance check outcomes.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckFailed  CheckStatus = "failed"
	CheckPending CheckStatus = "pending"
)

// Processing stage identifiers. Stages are strictly ordered; advancing past
// StagePackaging completes the animal.
const (
	StageReceiving    = 1
	StageInspection   = 2
	StageProcessing   = 3
	StageQualityCheck = 4
	StagePackaging    = 5
	// StageCount is the number of workflow stages.
	StageCount = 5
)

// StageName returns the display name for a stage index, or "Complete" past the
// terminal stage.
func StageName(stage int) string {
	switch stage {
	case StageReceiving:
		return "Receiving"
	case StageInspection:
		return "Inspection"
	case StageProcessing:
		return "Processing"
	case StageQualityCheck:
		return "Quality Check"
	case StagePackaging:
		return "Packaging"
	default:
		if stage > StageCount {
			return "Complete"
		}
		return "Unknown"
	}
}

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LivestockEntry is one intake record for a batch of same-type animals. The
// intake registry owns it until batch submission moves it to the holding pen;
// the pipeline claims it from there and the registry never mutates it again.
type LivestockEntry struct {
	Base
	AnimalID               string              `json:"animalId"`
	Type                   string              `json:"type"`
	Breed                  string              `json:"breed"`
	Quantity               int                 `json:"quantity"`
	Weight                 string              `json:"weight"`
	Supplier               string              `json:"supplier"`
	Origin                 string              `json:"origin"`
	TransportID            string              `json:"transportId"`
	HealthCert             string              `json:"healthCert"`
	TraceabilityCode       string              `json:"traceabilityCode"`
	PurchasePrice          float64             `json:"purchasePrice"`
	QualityGrade           string              `json:"qualityGrade"`
	VetInspectionStatus    VetInspectionStatus `json:"vetInspectionStatus"`
	VetInspectionNotes     string              `json:"vetInspectionNotes"`
	QuarantineFlag         bool                `json:"quarantineFlag"`
	QuarantineReason       string              `json:"quarantineReason"`
	IntakeTimestamp        time.Time           `json:"intakeTimestamp"`
	ExpectedProcessingDate time.Time           `json:"expectedProcessingDate"`
	HoldingDuration        int                 `json:"holdingDuration"`
	Status                 IntakeStatus        `json:"status"`
	ProcessingBatchID      string              `json:"processingBatchId,omitempty"`
	ProcessingLineAssigned string              `json:"processingLineAssigned,omitempty"`
	Notes                  string              `json:"notes"`
}

// IndividualAnimal is one unit moving through the five-stage pipeline. Owned
// exclusively by its processing line.
type IndividualAnimal struct {
	ID                 string       `json:"id"`
	AnimalID           string       `json:"animalId"`
	BatchID            string       `json:"batchId"`
	Type               string       `json:"type"`
	CurrentStage       int          `json:"currentStage"`
	Status             AnimalStatus `json:"status"`
	Operator           string       `json:"operator"`
	TimeInStage        int          `json:"timeInStage"`
	StartTime          time.Time    `json:"startTime"`
	LiveWeight         float64      `json:"liveWeight,omitempty"`
	CarcassWeight      float64      `json:"carcassWeight,omitempty"`
	DressingPercentage float64      `json:"dressingPercentage,omitempty"`
	QualityGrade       string       `json:"qualityGrade,omitempty"`
	Defects            []string     `json:"defects,omitempty"`
	StorageLocation    string       `json:"storageLocation,omitempty"`
	Notes              string       `json:"notes,omitempty"`
}

// RecomputeDressing derives the dressing percentage when both weights are
// present. The field is never set directly.
func (a *IndividualAnimal) RecomputeDressing() {
	if a.LiveWeight > 0 && a.CarcassWeight > 0 {
		a.DressingPercentage = a.CarcassWeight / a.LiveWeight * 100
	}
}

// Terminal reports whether the animal has advanced past the final stage.
func (a IndividualAnimal) Terminal() bool {
	return a.CurrentStage > StageCount
}

// ProcessingLine is one of a fixed small set of parallel processing channels.
// The line owns its animal collection exclusively.
type ProcessingLine struct {
	Base
	Name      string             `json:"name"`
	Status    LineStatus         `json:"status"`
	BatchID   string             `json:"batchId"`
	Type      string             `json:"type"`
	Quantity  int                `json:"quantity"`
	Processed int                `json:"processed"`
	StartTime time.Time          `json:"startTime"`
	Animals   []IndividualAnimal `json:"animals"`
}

// CompletedCount returns the number of animals in terminal state.
func (l ProcessingLine) CompletedCount() int {
	n := 0
	for _, a := range l.Animals {
		if a.Status == AnimalComplete {
			n++
		}
	}
	return n
}

// InventoryItem is one stock-keeping record. Each finished-good event appends a
// new row; rows are never merged.
type InventoryItem struct {
	Base
	Name          string      `json:"name"`
	Category      string      `json:"category"`
	Quantity      int         `json:"quantity"`
	Unit          string      `json:"unit"`
	Location      string      `json:"location"`
	Status        StockStatus `json:"status"`
	CostPerUnit   float64     `json:"costPerUnit"`
	SellingPrice  float64     `json:"sellingPrice"`
	TotalValue    float64     `json:"totalValue"`
	ProfitMargin  float64     `json:"profitMargin"`
	AnimalID      string      `json:"animalId,omitempty"`
	BatchNumber   string      `json:"batchNumber,omitempty"`
	FarmOrigin    string      `json:"farmOrigin,omitempty"`
	DateReceived  time.Time   `json:"dateReceived"`
	DateProcessed time.Time   `json:"dateProcessed,omitempty"`
	DaysInStock   int         `json:"daysInStock"`
}

// StockStatusFor derives the stock status from quantity thresholds:
// below 50 critical, below 100 low, otherwise optimal.
func StockStatusFor(quantity int) StockStatus {
	switch {
	case quantity < 50:
		return StockCritical
	case quantity < 100:
		return StockLow
	default:
		return StockOptimal
	}
}

// ProfitMarginFor computes (selling - cost) / selling * 100, or 0 when the
// selling price is zero.
func ProfitMarginFor(costPerUnit, sellingPrice float64) float64 {
	if sellingPrice <= 0 {
		return 0
	}
	return (sellingPrice - costPerUnit) / sellingPrice * 100
}

// RecomputeDerived refreshes status, total value, and profit margin from the
// current quantity, cost, and price. Call after every mutation of those fields.
func (i *InventoryItem) RecomputeDerived() {
	i.Status = StockStatusFor(i.Quantity)
	i.TotalValue = float64(i.Quantity) * i.CostPerUnit
	i.ProfitMargin = ProfitMarginFor(i.CostPerUnit, i.SellingPrice)
}

// ValidMoney reports whether v is a usable non-negative monetary or quantity value.
func ValidMoney(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// StatusHistory records a compliance check status change.
type StatusHistory struct {
	Status    CheckStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	ChangedBy string      `json:"changedBy"`
	Notes     string      `json:"notes,omitempty"`
}

// CheckComment is a free-form note attached to a compliance check.
type CheckComment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ComplianceCheck is one recurring checklist item with its audit history.
type ComplianceCheck struct {
	Base
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Status      CheckStatus     `json:"status"`
	LastCheck   time.Time       `json:"lastCheck"`
	NextDue     time.Time       `json:"nextDue"`
	Score       int             `json:"score"`
	Description string          `json:"description,omitempty"`
	Inspector   string          `json:"inspector,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	History     []StatusHistory `json:"history"`
	Comments    []CheckComment  `json:"comments"`
	LinkedBatch string          `json:"linkedBatch,omitempty"`
}

// UserRole enumerates the access roles recognised by the permission map.
type UserRole string

const (
	RoleAdmin              UserRole = "admin"
	RoleSupervisor         UserRole = "supervisor"
	RoleIntakeOperator     UserRole = "intake_operator"
	RoleProcessingOperator UserRole = "processing_operator"
	RoleQualityControl     UserRole = "quality_control"
	RoleInventoryManager   UserRole = "inventory_manager"
	RoleViewer             UserRole = "viewer"
)

// RolePermissions maps each role to the resources it may access. "*" grants
// full access.
var RolePermissions = map[UserRole][]string{
	RoleAdmin:              {"*"},
	RoleSupervisor:         {"dashboard", "intake", "processing", "inventory", "compliance", "reports"},
	RoleIntakeOperator:     {"dashboard", "intake"},
	RoleProcessingOperator: {"dashboard", "processing"},
	RoleQualityControl:     {"dashboard", "compliance", "reports"},
	RoleInventoryManager:   {"dashboard", "inventory", "reports"},
	RoleViewer:             {"dashboard", "reports:read"},
}

// HasPermission reports whether the role may access the named resource.
func HasPermission(role UserRole, resource string) bool {
	for _, p := range RolePermissions[role] {
		if p == "*" || p == resource {
			return true
		}
	}
	return false
}

// User is an operator or administrator account.
type User struct {
	Base
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      UserRole  `json:"role"`
	LastLogin time.Time `json:"lastLogin"`
}

// AuthSession is the single active login session.
type AuthSession struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session has passed its expiry at the given time.
func (s AuthSession) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// AuditLog is one audit trail entry. The trail keeps the 1000 most recent
// entries, newest first.
type AuditLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	UserEmail string    `json:"userEmail"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditLogCap bounds the retained audit trail.
const AuditLogCap = 1000

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	names := make([]string, 0, len(e.Result.Violations))
	seen := map[string]struct{}{}
	for _, v := range e.Result.Violations {
		if v.Severity != SeverityBlock {
			continue
		}
		if _, dup := seen[v.Rule]; dup {
			continue
		}
		seen[v.Rule] = struct{}{}
		names = append(names, v.Rule)
	}
	if len(names) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + strings.Join(names, ", ")
}
