package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"abattoircore/internal/infra/persistence/memory"
	"abattoircore/pkg/domain"

	_ "modernc.org/sqlite"
)

// openViaSQLite swaps the Postgres driver for a file-backed SQLite handle so
// the snapshot SQL can be exercised without a running server. The upsert and
// DDL used by the store are valid in both dialects.
func openViaSQLite(t *testing.T, path string) func() {
	t.Helper()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		return sql.Open("sqlite", path)
	})
	t.Cleanup(restore)
	return restore
}

func TestPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")
	openViaSQLite(t, path)

	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, txErr := tx.CreateIntakeEntry(domain.LivestockEntry{AnimalID: "PIG-20250601-0001", Type: "pig", Quantity: 8}); txErr != nil {
			return txErr
		}
		_, txErr := tx.CreateComplianceCheck(domain.ComplianceCheck{Name: "Knife sanitation", Status: domain.CheckPending})
		return txErr
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reloaded.Close() }()

	entries := reloaded.ListIntakeEntries()
	if len(entries) != 1 || entries[0].AnimalID != "PIG-20250601-0001" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if got := len(reloaded.ListComplianceChecks()); got != 1 {
		t.Fatalf("compliance checks = %d, want 1", got)
	}
}

func TestOpenErrorPropagates(t *testing.T) {
	boom := errors.New("refused")
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, boom })
	defer restore()

	if _, err := NewStore("postgres://nowhere/none", domain.NewRulesEngine()); !errors.Is(err, boom) {
		t.Fatalf("expected open error to propagate, got %v", err)
	}
}

func TestCorruptBucketSurfacesError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.db")
	openViaSQLite(t, path)

	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := store.DB().Exec(
		`INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`,
		"users", []byte("[broken"),
	); err != nil {
		t.Fatalf("inject corrupt payload: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err = NewStore("", domain.NewRulesEngine())
	var corrupt domain.CorruptStateError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptStateError, got %v", err)
	}
	if corrupt.Bucket != "users" {
		t.Fatalf("bucket = %q, want users", corrupt.Bucket)
	}
}

func TestUnknownBucketIgnoredOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.db")
	openViaSQLite(t, path)

	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := store.DB().Exec(
		`INSERT INTO state(bucket,payload) VALUES($1,$2)`,
		"legacyWidget", []byte(`{"ignored":true}`),
	); err != nil {
		t.Fatalf("insert extra bucket: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := NewStore("", domain.NewRulesEngine()); err != nil {
		t.Fatalf("unknown buckets should be skipped, got %v", err)
	}
}

func TestBucketPayloadCoversAllBuckets(t *testing.T) {
	snapshot := memory.Snapshot{
		Entries:   map[string]domain.LivestockEntry{"e1": {AnimalID: "CTL-20250601-0001"}},
		Users:     map[string]domain.User{"u1": {Email: "ops@plant.example"}},
		Passwords: map[string]string{"u1": "secret1"},
	}
	for _, bucket := range postgresBuckets {
		data, err := bucketPayload(snapshot, bucket)
		if err != nil {
			t.Fatalf("bucketPayload(%s): %v", bucket, err)
		}
		if !json.Valid(data) {
			t.Fatalf("bucketPayload(%s) produced invalid JSON", bucket)
		}
		if bucketTarget(&snapshot, bucket) == nil {
			t.Fatalf("bucketTarget(%s) returned nil", bucket)
		}
	}
	if _, err := bucketPayload(snapshot, "bogus"); err == nil {
		t.Fatalf("expected error for unknown bucket")
	}
}
