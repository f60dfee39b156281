package core

import "abattoircore/pkg/domain"

type (
	EntityType         = domain.EntityType
	IntakeStatus       = domain.IntakeStatus
	LineStatus         = domain.LineStatus
	AnimalStatus       = domain.AnimalStatus
	StockStatus        = domain.StockStatus
	CheckStatus        = domain.CheckStatus
	UserRole           = domain.UserRole
	Severity           = domain.Severity
	Base               = domain.Base
	LivestockEntry     = domain.LivestockEntry
	IndividualAnimal   = domain.IndividualAnimal
	ProcessingLine     = domain.ProcessingLine
	InventoryItem      = domain.InventoryItem
	ComplianceCheck    = domain.ComplianceCheck
	StatusHistory      = domain.StatusHistory
	CheckComment       = domain.CheckComment
	User               = domain.User
	AuthSession        = domain.AuthSession
	AuditLog           = domain.AuditLog
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	RulesEngine        = domain.RulesEngine
)

const (
	EntityIntakeEntry     = domain.EntityIntakeEntry
	EntityHoldingEntry    = domain.EntityHoldingEntry
	EntityProcessingLine  = domain.EntityProcessingLine
	EntityInventoryItem   = domain.EntityInventoryItem
	EntityComplianceCheck = domain.EntityComplianceCheck
	EntityUser            = domain.EntityUser
	EntityAuditLog        = domain.EntityAuditLog
)

const (
	IntakePending    = domain.IntakePending
	IntakeInspected  = domain.IntakeInspected
	IntakeCleared    = domain.IntakeCleared
	IntakeProcessing = domain.IntakeProcessing
	IntakeQuarantine = domain.IntakeQuarantine
)

const (
	LineIdle      = domain.LineIdle
	LineActive    = domain.LineActive
	LinePaused    = domain.LinePaused
	LineCompleted = domain.LineCompleted
)

const (
	AnimalInProgress = domain.AnimalInProgress
	AnimalComplete   = domain.AnimalComplete
	AnimalHold       = domain.AnimalHold
	AnimalQuarantine = domain.AnimalQuarantine
	AnimalRework     = domain.AnimalRework
)

const (
	StockOptimal  = domain.StockOptimal
	StockLow      = domain.StockLow
	StockCritical = domain.StockCritical
)

const (
	CheckPassed  = domain.CheckPassed
	CheckFailed  = domain.CheckFailed
	CheckPending = domain.CheckPending
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
