// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"abattoircore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// LivestockEntry aliases domain.LivestockEntry for in-memory persistence operations.
	LivestockEntry = domain.LivestockEntry
	// ProcessingLine aliases domain.ProcessingLine.
	ProcessingLine = domain.ProcessingLine
	// IndividualAnimal aliases domain.IndividualAnimal.
	IndividualAnimal = domain.IndividualAnimal
	// InventoryItem aliases domain.InventoryItem.
	InventoryItem = domain.InventoryItem
	// ComplianceCheck aliases domain.ComplianceCheck.
	ComplianceCheck = domain.ComplianceCheck
	// User aliases domain.User.
	User = domain.User
	// AuthSession aliases domain.AuthSession.
	AuthSession = domain.AuthSession
	// AuditLog aliases domain.AuditLog.
	AuditLog = domain.AuditLog
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	entries   map[string]LivestockEntry
	holding   map[string]LivestockEntry
	lines     map[string]ProcessingLine
	inventory map[string]InventoryItem
	checks    map[string]ComplianceCheck
	users     map[string]User
	passwords map[string]string
	session   *AuthSession
	logs      []AuditLog
}

// Snapshot captures a point-in-time clone of the store state. JSON field names
// match the storage keys used by the legacy dashboard so existing stored data
// remains readable.
type Snapshot struct {
	Entries   map[string]LivestockEntry  `json:"intakeEntries"`
	Holding   map[string]LivestockEntry  `json:"holdingPenAnimals"`
	Lines     map[string]ProcessingLine  `json:"processingLines"`
	Inventory map[string]InventoryItem   `json:"inventory"`
	Checks    map[string]ComplianceCheck `json:"complianceChecks"`
	Users     map[string]User            `json:"users"`
	Passwords map[string]string          `json:"user_passwords"`
	Session   *AuthSession               `json:"auth_session,omitempty"`
	Logs      []AuditLog                 `json:"audit_logs"`
}

func newMemoryState() memoryState {
	return memoryState{
		entries:   make(map[string]LivestockEntry),
		holding:   make(map[string]LivestockEntry),
		lines:     make(map[string]ProcessingLine),
		inventory: make(map[string]InventoryItem),
		checks:    make(map[string]ComplianceCheck),
		users:     make(map[string]User),
		passwords: make(map[string]string),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.entries {
		cloned.entries[k] = cloneEntry(v)
	}
	for k, v := range s.holding {
		cloned.holding[k] = cloneEntry(v)
	}
	for k, v := range s.lines {
		cloned.lines[k] = cloneLine(v)
	}
	for k, v := range s.inventory {
		cloned.inventory[k] = cloneItem(v)
	}
	for k, v := range s.checks {
		cloned.checks[k] = cloneCheck(v)
	}
	for k, v := range s.users {
		cloned.users[k] = cloneUser(v)
	}
	for k, v := range s.passwords {
		cloned.passwords[k] = v
	}
	if s.session != nil {
		sess := *s.session
		cloned.session = &sess
	}
	cloned.logs = append([]AuditLog(nil), s.logs...)
	return cloned
}

func cloneEntry(e LivestockEntry) LivestockEntry { return e }

func cloneLine(l ProcessingLine) ProcessingLine {
	cp := l
	if l.Animals != nil {
		cp.Animals = make([]IndividualAnimal, len(l.Animals))
		for i, a := range l.Animals {
			cp.Animals[i] = cloneAnimal(a)
		}
	}
	return cp
}

func cloneAnimal(a IndividualAnimal) IndividualAnimal {
	cp := a
	cp.Defects = append([]string(nil), a.Defects...)
	return cp
}

func cloneItem(i InventoryItem) InventoryItem { return i }

func cloneCheck(c ComplianceCheck) ComplianceCheck {
	cp := c
	cp.History = append([]domain.StatusHistory(nil), c.History...)
	cp.Comments = append([]domain.CheckComment(nil), c.Comments...)
	return cp
}

func cloneUser(u User) User { return u }

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Entries:   make(map[string]LivestockEntry, len(state.entries)),
		Holding:   make(map[string]LivestockEntry, len(state.holding)),
		Lines:     make(map[string]ProcessingLine, len(state.lines)),
		Inventory: make(map[string]InventoryItem, len(state.inventory)),
		Checks:    make(map[string]ComplianceCheck, len(state.checks)),
		Users:     make(map[string]User, len(state.users)),
		Passwords: make(map[string]string, len(state.passwords)),
	}
	for k, v := range state.entries {
		s.Entries[k] = cloneEntry(v)
	}
	for k, v := range state.holding {
		s.Holding[k] = cloneEntry(v)
	}
	for k, v := range state.lines {
		s.Lines[k] = cloneLine(v)
	}
	for k, v := range state.inventory {
		s.Inventory[k] = cloneItem(v)
	}
	for k, v := range state.checks {
		s.Checks[k] = cloneCheck(v)
	}
	for k, v := range state.users {
		s.Users[k] = cloneUser(v)
	}
	for k, v := range state.passwords {
		s.Passwords[k] = v
	}
	if state.session != nil {
		sess := *state.session
		s.Session = &sess
	}
	s.Logs = append([]AuditLog(nil), state.logs...)
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Entries {
		state.entries[k] = cloneEntry(v)
	}
	for k, v := range s.Holding {
		state.holding[k] = cloneEntry(v)
	}
	for k, v := range s.Lines {
		state.lines[k] = cloneLine(v)
	}
	for k, v := range s.Inventory {
		state.inventory[k] = cloneItem(v)
	}
	for k, v := range s.Checks {
		state.checks[k] = cloneCheck(v)
	}
	for k, v := range s.Users {
		state.users[k] = cloneUser(v)
	}
	for k, v := range s.Passwords {
		state.passwords[k] = v
	}
	if s.Session != nil {
		sess := *s.Session
		state.session = &sess
	}
	state.logs = append([]AuditLog(nil), s.Logs...)
	if len(state.logs) > domain.AuditLogCap {
		state.logs = state.logs[:domain.AuditLogCap]
	}
	return state
}

func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Entries == nil {
		snapshot.Entries = map[string]LivestockEntry{}
	}
	if snapshot.Holding == nil {
		snapshot.Holding = map[string]LivestockEntry{}
	}
	if snapshot.Lines == nil {
		snapshot.Lines = map[string]ProcessingLine{}
	}
	if snapshot.Inventory == nil {
		snapshot.Inventory = map[string]InventoryItem{}
	}
	if snapshot.Checks == nil {
		snapshot.Checks = map[string]ComplianceCheck{}
	}
	if snapshot.Users == nil {
		snapshot.Users = map[string]User{}
	}
	if snapshot.Passwords == nil {
		snapshot.Passwords = map[string]string{}
	}
	return snapshot
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the store's time provider; used by tests and the core
// service clock option.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListIntakeEntries returns all pending intake entries, oldest first.
func (v transactionView) ListIntakeEntries() []LivestockEntry {
	return sortedEntries(v.state.entries)
}

// ListHoldingEntries returns all holding-pen entries, oldest first.
func (v transactionView) ListHoldingEntries() []LivestockEntry {
	return sortedEntries(v.state.holding)
}

func sortedEntries(m map[string]LivestockEntry) []LivestockEntry {
	out := make([]LivestockEntry, 0, len(m))
	for _, e := range m {
		out = append(out, cloneEntry(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IntakeTimestamp.Equal(out[j].IntakeTimestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].IntakeTimestamp.Before(out[j].IntakeTimestamp)
	})
	return out
}

// ListLines returns all processing lines ordered by name.
func (v transactionView) ListLines() []ProcessingLine {
	return sortedLines(v.state.lines)
}

func sortedLines(m map[string]ProcessingLine) []ProcessingLine {
	out := make([]ProcessingLine, 0, len(m))
	for _, l := range m {
		out = append(out, cloneLine(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListInventory returns all inventory items ordered by creation time then ID.
func (v transactionView) ListInventory() []InventoryItem {
	return sortedInventory(v.state.inventory)
}

func sortedInventory(m map[string]InventoryItem) []InventoryItem {
	out := make([]InventoryItem, 0, len(m))
	for _, i := range m {
		out = append(out, cloneItem(i))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ListComplianceChecks returns all compliance checks ordered by name.
func (v transactionView) ListComplianceChecks() []ComplianceCheck {
	out := make([]ComplianceCheck, 0, len(v.state.checks))
	for _, c := range v.state.checks {
		out = append(out, cloneCheck(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListUsers returns all users ordered by email.
func (v transactionView) ListUsers() []User {
	out := make([]User, 0, len(v.state.users))
	for _, u := range v.state.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// FindIntakeEntry retrieves a pending entry by ID from the snapshot.
func (v transactionView) FindIntakeEntry(id string) (LivestockEntry, bool) {
	e, ok := v.state.entries[id]
	if !ok {
		return LivestockEntry{}, false
	}
	return cloneEntry(e), true
}

// FindHoldingEntry retrieves a holding-pen entry by ID from the snapshot.
func (v transactionView) FindHoldingEntry(id string) (LivestockEntry, bool) {
	e, ok := v.state.holding[id]
	if !ok {
		return LivestockEntry{}, false
	}
	return cloneEntry(e), true
}

// FindLine retrieves a processing line by ID from the snapshot.
func (v transactionView) FindLine(id string) (ProcessingLine, bool) {
	l, ok := v.state.lines[id]
	if !ok {
		return ProcessingLine{}, false
	}
	return cloneLine(l), true
}

// FindInventoryItem retrieves an inventory item by ID from the snapshot.
func (v transactionView) FindInventoryItem(id string) (InventoryItem, bool) {
	i, ok := v.state.inventory[id]
	if !ok {
		return InventoryItem{}, false
	}
	return cloneItem(i), true
}

// FindUser retrieves a user by ID from the snapshot.
func (v transactionView) FindUser(id string) (User, bool) {
	u, ok := v.state.users[id]
	if !ok {
		return User{}, false
	}
	return cloneUser(u), true
}

// FindUserByEmail retrieves a user by case-insensitive email match.
func (v transactionView) FindUserByEmail(email string) (User, bool) {
	for _, u := range v.state.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), true
		}
	}
	return User{}, false
}

// ListAuditLogs returns the audit trail, newest first.
func (v transactionView) ListAuditLogs() []AuditLog {
	return append([]AuditLog(nil), v.state.logs...)
}

// Session returns the active auth session, if any.
func (v transactionView) Session() (AuthSession, bool) {
	if v.state.session == nil {
		return AuthSession{}, false
	}
	return *v.state.session, true
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// CreateIntakeEntry stores a new pending intake entry within the transaction.
func (tx *transaction) CreateIntakeEntry(e LivestockEntry) (LivestockEntry, error) {
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	if _, exists := tx.state.entries[e.ID]; exists {
		return LivestockEntry{}, fmt.Errorf("intake entry %q already exists", e.ID)
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.entries[e.ID] = cloneEntry(e)
	tx.recordChange(Change{Entity: domain.EntityIntakeEntry, Action: domain.ActionCreate, After: cloneEntry(e)})
	return cloneEntry(e), nil
}

// UpdateIntakeEntry mutates a pending entry using the provided mutator function.
func (tx *transaction) UpdateIntakeEntry(id string, mutator func(*LivestockEntry) error) (LivestockEntry, error) {
	current, ok := tx.state.entries[id]
	if !ok {
		return LivestockEntry{}, fmt.Errorf("intake entry %q not found", id)
	}
	before := cloneEntry(current)
	if err := mutator(&current); err != nil {
		return LivestockEntry{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.entries[id] = cloneEntry(current)
	tx.recordChange(Change{Entity: domain.EntityIntakeEntry, Action: domain.ActionUpdate, Before: before, After: cloneEntry(current)})
	return cloneEntry(current), nil
}

// DeleteIntakeEntry removes a pending entry from the transaction state.
func (tx *transaction) DeleteIntakeEntry(id string) error {
	current, ok := tx.state.entries[id]
	if !ok {
		return fmt.Errorf("intake entry %q not found", id)
	}
	delete(tx.state.entries, id)
	tx.recordChange(Change{Entity: domain.EntityIntakeEntry, Action: domain.ActionDelete, Before: cloneEntry(current)})
	return nil
}

// CreateHoldingEntry stores an entry in the holding pen.
func (tx *transaction) CreateHoldingEntry(e LivestockEntry) (LivestockEntry, error) {
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	if _, exists := tx.state.holding[e.ID]; exists {
		return LivestockEntry{}, fmt.Errorf("holding entry %q already exists", e.ID)
	}
	e.UpdatedAt = tx.now
	tx.state.holding[e.ID] = cloneEntry(e)
	tx.recordChange(Change{Entity: domain.EntityHoldingEntry, Action: domain.ActionCreate, After: cloneEntry(e)})
	return cloneEntry(e), nil
}

// UpdateHoldingEntry mutates a holding-pen entry.
func (tx *transaction) UpdateHoldingEntry(id string, mutator func(*LivestockEntry) error) (LivestockEntry, error) {
	current, ok := tx.state.holding[id]
	if !ok {
		return LivestockEntry{}, fmt.Errorf("holding entry %q not found", id)
	}
	before := cloneEntry(current)
	if err := mutator(&current); err != nil {
		return LivestockEntry{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.holding[id] = cloneEntry(current)
	tx.recordChange(Change{Entity: domain.EntityHoldingEntry, Action: domain.ActionUpdate, Before: before, After: cloneEntry(current)})
	return cloneEntry(current), nil
}

// DeleteHoldingEntry removes a holding-pen entry.
func (tx *transaction) DeleteHoldingEntry(id string) error {
	current, ok := tx.state.holding[id]
	if !ok {
		return fmt.Errorf("holding entry %q not found", id)
	}
	delete(tx.state.holding, id)
	tx.recordChange(Change{Entity: domain.EntityHoldingEntry, Action: domain.ActionDelete, Before: cloneEntry(current)})
	return nil
}

// CreateLine stores a new processing line.
func (tx *transaction) CreateLine(l ProcessingLine) (ProcessingLine, error) {
	if l.ID == "" {
		l.ID = tx.store.newID()
	}
	if _, exists := tx.state.lines[l.ID]; exists {
		return ProcessingLine{}, fmt.Errorf("processing line %q already exists", l.ID)
	}
	l.CreatedAt = tx.now
	l.UpdatedAt = tx.now
	tx.state.lines[l.ID] = cloneLine(l)
	tx.recordChange(Change{Entity: domain.EntityProcessingLine, Action: domain.ActionCreate, After: cloneLine(l)})
	return cloneLine(l), nil
}

// UpdateLine mutates an existing processing line.
func (tx *transaction) UpdateLine(id string, mutator func(*ProcessingLine) error) (ProcessingLine, error) {
	current, ok := tx.state.lines[id]
	if !ok {
		return ProcessingLine{}, fmt.Errorf("processing line %q not found", id)
	}
	before := cloneLine(current)
	if err := mutator(&current); err != nil {
		return ProcessingLine{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.lines[id] = cloneLine(current)
	tx.recordChange(Change{Entity: domain.EntityProcessingLine, Action: domain.ActionUpdate, Before: before, After: cloneLine(current)})
	return cloneLine(current), nil
}

// DeleteLine removes a processing line.
func (tx *transaction) DeleteLine(id string) error {
	current, ok := tx.state.lines[id]
	if !ok {
		return fmt.Errorf("processing line %q not found", id)
	}
	delete(tx.state.lines, id)
	tx.recordChange(Change{Entity: domain.EntityProcessingLine, Action: domain.ActionDelete, Before: cloneLine(current)})
	return nil
}

// CreateInventoryItem stores a new stock record.
func (tx *transaction) CreateInventoryItem(i InventoryItem) (InventoryItem, error) {
	if i.ID == "" {
		i.ID = tx.store.newID()
	}
	if _, exists := tx.state.inventory[i.ID]; exists {
		return InventoryItem{}, fmt.Errorf("inventory item %q already exists", i.ID)
	}
	i.CreatedAt = tx.now
	i.UpdatedAt = tx.now
	tx.state.inventory[i.ID] = cloneItem(i)
	tx.recordChange(Change{Entity: domain.EntityInventoryItem, Action: domain.ActionCreate, After: cloneItem(i)})
	return cloneItem(i), nil
}

// UpdateInventoryItem mutates an existing stock record.
func (tx *transaction) UpdateInventoryItem(id string, mutator func(*InventoryItem) error) (InventoryItem, error) {
	current, ok := tx.state.inventory[id]
	if !ok {
		return InventoryItem{}, fmt.Errorf("inventory item %q not found", id)
	}
	before := cloneItem(current)
	if err := mutator(&current); err != nil {
		return InventoryItem{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.inventory[id] = cloneItem(current)
	tx.recordChange(Change{Entity: domain.EntityInventoryItem, Action: domain.ActionUpdate, Before: before, After: cloneItem(current)})
	return cloneItem(current), nil
}

// DeleteInventoryItem removes a stock record.
func (tx *transaction) DeleteInventoryItem(id string) error {
	current, ok := tx.state.inventory[id]
	if !ok {
		return fmt.Errorf("inventory item %q not found", id)
	}
	delete(tx.state.inventory, id)
	tx.recordChange(Change{Entity: domain.EntityInventoryItem, Action: domain.ActionDelete, Before: cloneItem(current)})
	return nil
}

// CreateComplianceCheck stores a new compliance check.
func (tx *transaction) CreateComplianceCheck(c ComplianceCheck) (ComplianceCheck, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.checks[c.ID]; exists {
		return ComplianceCheck{}, fmt.Errorf("compliance check %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.checks[c.ID] = cloneCheck(c)
	tx.recordChange(Change{Entity: domain.EntityComplianceCheck, Action: domain.ActionCreate, After: cloneCheck(c)})
	return cloneCheck(c), nil
}

// UpdateComplianceCheck mutates an existing compliance check.
func (tx *transaction) UpdateComplianceCheck(id string, mutator func(*ComplianceCheck) error) (ComplianceCheck, error) {
	current, ok := tx.state.checks[id]
	if !ok {
		return ComplianceCheck{}, fmt.Errorf("compliance check %q not found", id)
	}
	before := cloneCheck(current)
	if err := mutator(&current); err != nil {
		return ComplianceCheck{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.checks[id] = cloneCheck(current)
	tx.recordChange(Change{Entity: domain.EntityComplianceCheck, Action: domain.ActionUpdate, Before: before, After: cloneCheck(current)})
	return cloneCheck(current), nil
}

// DeleteComplianceCheck removes a compliance check.
func (tx *transaction) DeleteComplianceCheck(id string) error {
	current, ok := tx.state.checks[id]
	if !ok {
		return fmt.Errorf("compliance check %q not found", id)
	}
	delete(tx.state.checks, id)
	tx.recordChange(Change{Entity: domain.EntityComplianceCheck, Action: domain.ActionDelete, Before: cloneCheck(current)})
	return nil
}

// CreateUser stores a new user account.
func (tx *transaction) CreateUser(u User) (User, error) {
	if u.ID == "" {
		u.ID = tx.store.newID()
	}
	if _, exists := tx.state.users[u.ID]; exists {
		return User{}, fmt.Errorf("user %q already exists", u.ID)
	}
	u.CreatedAt = tx.now
	u.UpdatedAt = tx.now
	tx.state.users[u.ID] = cloneUser(u)
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: cloneUser(u)})
	return cloneUser(u), nil
}

// UpdateUser mutates an existing user account.
func (tx *transaction) UpdateUser(id string, mutator func(*User) error) (User, error) {
	current, ok := tx.state.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %q not found", id)
	}
	before := cloneUser(current)
	if err := mutator(&current); err != nil {
		return User{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.users[id] = cloneUser(current)
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionUpdate, Before: before, After: cloneUser(current)})
	return cloneUser(current), nil
}

// DeleteUser removes a user account and its stored password.
func (tx *transaction) DeleteUser(id string) error {
	current, ok := tx.state.users[id]
	if !ok {
		return fmt.Errorf("user %q not found", id)
	}
	delete(tx.state.users, id)
	delete(tx.state.passwords, id)
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionDelete, Before: cloneUser(current)})
	return nil
}

// SetPassword stores a user's password.
func (tx *transaction) SetPassword(userID, password string) error {
	if _, ok := tx.state.users[userID]; !ok {
		return fmt.Errorf("user %q not found", userID)
	}
	tx.state.passwords[userID] = password
	return nil
}

// Password retrieves a user's stored password.
func (tx *transaction) Password(userID string) (string, bool) {
	p, ok := tx.state.passwords[userID]
	return p, ok
}

// SetSession replaces the active auth session.
func (tx *transaction) SetSession(sess AuthSession) {
	tx.state.session = &sess
}

// ClearSession removes the active auth session.
func (tx *transaction) ClearSession() {
	tx.state.session = nil
}

// AppendAuditLog prepends an audit entry, enforcing the retention cap.
func (tx *transaction) AppendAuditLog(log AuditLog) AuditLog {
	if log.ID == "" {
		log.ID = tx.store.newID()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = tx.now
	}
	tx.state.logs = append([]AuditLog{log}, tx.state.logs...)
	if len(tx.state.logs) > domain.AuditLogCap {
		tx.state.logs = tx.state.logs[:domain.AuditLogCap]
	}
	tx.recordChange(Change{Entity: domain.EntityAuditLog, Action: domain.ActionCreate, After: log})
	return log
}

// FindHoldingEntry retrieves a holding-pen entry within the transaction.
func (tx *transaction) FindHoldingEntry(id string) (LivestockEntry, bool) {
	e, ok := tx.state.holding[id]
	if !ok {
		return LivestockEntry{}, false
	}
	return cloneEntry(e), true
}

// FindLine retrieves a processing line within the transaction.
func (tx *transaction) FindLine(id string) (ProcessingLine, bool) {
	l, ok := tx.state.lines[id]
	if !ok {
		return ProcessingLine{}, false
	}
	return cloneLine(l), true
}

// Read helpers ---------------------------------------------------------------

// ListIntakeEntries returns all pending entries from committed state.
func (s *Store) ListIntakeEntries() []LivestockEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedEntries(s.state.entries)
}

// ListHoldingEntries returns all holding-pen entries from committed state.
func (s *Store) ListHoldingEntries() []LivestockEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedEntries(s.state.holding)
}

// GetHoldingEntry retrieves a holding-pen entry by ID from committed state.
func (s *Store) GetHoldingEntry(id string) (LivestockEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.holding[id]
	if !ok {
		return LivestockEntry{}, false
	}
	return cloneEntry(e), true
}

// ListLines returns all processing lines from committed state.
func (s *Store) ListLines() []ProcessingLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedLines(s.state.lines)
}

// GetLine retrieves a processing line by ID from committed state.
func (s *Store) GetLine(id string) (ProcessingLine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.state.lines[id]
	if !ok {
		return ProcessingLine{}, false
	}
	return cloneLine(l), true
}

// ListInventory returns all stock records from committed state.
func (s *Store) ListInventory() []InventoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedInventory(s.state.inventory)
}

// GetInventoryItem retrieves a stock record by ID from committed state.
func (s *Store) GetInventoryItem(id string) (InventoryItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.state.inventory[id]
	if !ok {
		return InventoryItem{}, false
	}
	return cloneItem(i), true
}

// ListComplianceChecks returns all compliance checks from committed state.
func (s *Store) ListComplianceChecks() []ComplianceCheck {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ComplianceCheck, 0, len(s.state.checks))
	for _, c := range s.state.checks {
		out = append(out, cloneCheck(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListUsers returns all user accounts from committed state.
func (s *Store) ListUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.state.users))
	for _, u := range s.state.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// ListAuditLogs returns the audit trail from committed state, newest first.
func (s *Store) ListAuditLogs() []AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AuditLog(nil), s.state.logs...)
}

// Session returns the committed auth session, if any.
func (s *Store) Session() (AuthSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.session == nil {
		return AuthSession{}, false
	}
	return *s.state.session, true
}
