package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateIntakeEntry(LivestockEntry) (LivestockEntry, error)
	UpdateIntakeEntry(id string, mutator func(*LivestockEntry) error) (LivestockEntry, error)
	DeleteIntakeEntry(id string) error
	CreateHoldingEntry(LivestockEntry) (LivestockEntry, error)
	UpdateHoldingEntry(id string, mutator func(*LivestockEntry) error) (LivestockEntry, error)
	DeleteHoldingEntry(id string) error
	CreateLine(ProcessingLine) (ProcessingLine, error)
	UpdateLine(id string, mutator func(*ProcessingLine) error) (ProcessingLine, error)
	DeleteLine(id string) error
	CreateInventoryItem(InventoryItem) (InventoryItem, error)
	UpdateInventoryItem(id string, mutator func(*InventoryItem) error) (InventoryItem, error)
	DeleteInventoryItem(id string) error
	CreateComplianceCheck(ComplianceCheck) (ComplianceCheck, error)
	UpdateComplianceCheck(id string, mutator func(*ComplianceCheck) error) (ComplianceCheck, error)
	DeleteComplianceCheck(id string) error
	CreateUser(User) (User, error)
	UpdateUser(id string, mutator func(*User) error) (User, error)
	DeleteUser(id string) error
	SetPassword(userID, password string) error
	Password(userID string) (string, bool)
	SetSession(AuthSession)
	ClearSession()
	AppendAuditLog(AuditLog) AuditLog
	FindHoldingEntry(id string) (LivestockEntry, bool)
	FindLine(id string) (ProcessingLine, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// service queries. It extends RuleView with the non-entity state.
type TransactionView interface {
	RuleView
	FindUserByEmail(email string) (User, bool)
	ListAuditLogs() []AuditLog
	Session() (AuthSession, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	ListIntakeEntries() []LivestockEntry
	ListHoldingEntries() []LivestockEntry
	GetHoldingEntry(id string) (LivestockEntry, bool)
	ListLines() []ProcessingLine
	GetLine(id string) (ProcessingLine, bool)
	ListInventory() []InventoryItem
	GetInventoryItem(id string) (InventoryItem, bool)
	ListComplianceChecks() []ComplianceCheck
	ListUsers() []User
	ListAuditLogs() []AuditLog
	Session() (AuthSession, bool)
}
