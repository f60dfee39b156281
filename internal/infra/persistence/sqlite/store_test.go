package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"abattoircore/pkg/domain"
)

func TestPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abattoir.db")

	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, txErr := tx.CreateHoldingEntry(domain.LivestockEntry{
			AnimalID:          "CTL-20250601-0001",
			Type:              "cattle",
			Quantity:          24,
			Status:            domain.IntakeCleared,
			ProcessingBatchID: "BATCH-1748764800000",
		}); txErr != nil {
			return txErr
		}
		item, txErr := tx.CreateInventoryItem(domain.InventoryItem{Name: "Beef Cuts - Standard", Quantity: 120, CostPerUnit: 3})
		if txErr != nil {
			return txErr
		}
		if item.ID == "" {
			return errors.New("missing item id")
		}
		tx.AppendAuditLog(domain.AuditLog{Action: "submit_batch", Resource: "intake"})
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reloaded.Close() }()

	holding := reloaded.ListHoldingEntries()
	if len(holding) != 1 || holding[0].ProcessingBatchID != "BATCH-1748764800000" {
		t.Fatalf("unexpected holding entries: %+v", holding)
	}
	if got := len(reloaded.ListInventory()); got != 1 {
		t.Fatalf("inventory = %d, want 1", got)
	}
	logs := reloaded.ListAuditLogs()
	if len(logs) != 1 || logs[0].Action != "submit_batch" {
		t.Fatalf("unexpected audit logs: %+v", logs)
	}
}

func TestEmptyDatabaseStartsEmpty(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "fresh.db"), domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()
	if got := len(store.ListIntakeEntries()); got != 0 {
		t.Fatalf("expected empty store, got %d entries", got)
	}
}

func TestCorruptBucketSurfacesError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := store.DB().Exec(
		`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
		"inventory", []byte("{not json"),
	); err != nil {
		t.Fatalf("inject corrupt payload: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err = NewStore(path, domain.NewRulesEngine())
	var corrupt domain.CorruptStateError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptStateError, got %v", err)
	}
	if corrupt.Bucket != "inventory" {
		t.Fatalf("bucket = %q, want inventory", corrupt.Bucket)
	}
}

func TestBlockingRuleSkipsPersist(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(rejectInventoryRule{})
	path := filepath.Join(t.TempDir(), "rules.db")
	store, err := NewStore(path, engine)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, txErr := tx.CreateInventoryItem(domain.InventoryItem{Name: "Blocked"})
		return txErr
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if got := len(store.ListInventory()); got != 0 {
		t.Fatalf("blocked commit persisted %d items", got)
	}
}

type rejectInventoryRule struct{}

func (rejectInventoryRule) Name() string { return "reject_inventory" }

func (rejectInventoryRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	for _, change := range changes {
		if change.Entity == domain.EntityInventoryItem {
			return domain.Result{Violations: []domain.Violation{{
				Rule:     "reject_inventory",
				Severity: domain.SeverityBlock,
				Message:  "inventory writes rejected",
			}}}, nil
		}
	}
	return domain.Result{}, nil
}
