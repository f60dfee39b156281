package export

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"abattoircore/internal/blob"
	"abattoircore/internal/core"
	"abattoircore/internal/infra/persistence/memory"
)

func newExportService(t *testing.T) *core.Service {
	t.Helper()
	store := memory.NewStore(core.NewDefaultRulesEngine())
	store.SetNowFunc(func() time.Time {
		return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	})
	return core.NewService(store)
}

func TestArchiveAuditCSV(t *testing.T) {
	svc := newExportService(t)
	ctx := context.Background()
	if _, _, err := svc.RecordAuditLog(ctx, core.AuditLog{
		Action:   "login",
		Resource: "auth",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := blob.NewMemory()
	now := time.Date(2025, 6, 1, 9, 15, 30, 0, time.UTC)
	info, err := ArchiveAuditCSV(ctx, store, svc, core.AuditFilter{}, now)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if info.Key != "audit/20250601T091530Z.csv" {
		t.Fatalf("key = %q", info.Key)
	}
	if info.ContentType != "text/csv" {
		t.Fatalf("content type = %q", info.ContentType)
	}

	_, rc, err := store.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	body := string(data)
	if !strings.HasPrefix(body, "Timestamp,User,Email,Action,Resource,Details") {
		t.Fatalf("unexpected header: %q", body)
	}
	if !strings.Contains(body, "login,auth") {
		t.Fatalf("seeded entry missing: %q", body)
	}
}

func TestArchiveComplianceSnapshot(t *testing.T) {
	svc := newExportService(t)
	ctx := context.Background()
	if _, _, err := svc.AddComplianceCheck(ctx, core.ComplianceCheck{Name: "Knife sanitation"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := svc.AddComplianceCheck(ctx, core.ComplianceCheck{Name: "Cold chain log"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := blob.NewMemory()
	now := time.Date(2025, 6, 1, 9, 15, 30, 0, time.UTC)
	info, err := ArchiveComplianceSnapshot(ctx, store, svc, now)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if info.Key != "compliance/20250601T091530Z.json" {
		t.Fatalf("key = %q", info.Key)
	}
	if info.Metadata["checks"] != "2" {
		t.Fatalf("metadata = %v", info.Metadata)
	}

	_, rc, err := store.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	var checks []core.ComplianceCheck
	if err := json.NewDecoder(rc).Decode(&checks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(checks) != 2 {
		t.Fatalf("snapshot = %d checks, want 2", len(checks))
	}
}
