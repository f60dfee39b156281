// Package export archives audit trails and compliance snapshots to a blob
// store for offline reporting.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"abattoircore/internal/blob"
	"abattoircore/internal/core"
)

const keyTimeLayout = "20060102T150405Z"

// ArchiveAuditCSV writes the filtered audit trail as CSV under
// audit/<timestamp>.csv.
func ArchiveAuditCSV(ctx context.Context, store blob.Store, svc *core.Service, filter core.AuditFilter, now time.Time) (blob.Info, error) {
	var buf bytes.Buffer
	if err := svc.ExportAuditCSV(&buf, filter); err != nil {
		return blob.Info{}, fmt.Errorf("render audit csv: %w", err)
	}
	key := fmt.Sprintf("audit/%s.csv", now.UTC().Format(keyTimeLayout))
	info, err := store.Put(ctx, key, &buf, blob.PutOptions{ContentType: "text/csv"})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store audit export: %w", err)
	}
	return info, nil
}

// ArchiveComplianceSnapshot writes the full checklist state as JSON under
// compliance/<timestamp>.json.
func ArchiveComplianceSnapshot(ctx context.Context, store blob.Store, svc *core.Service, now time.Time) (blob.Info, error) {
	checks := svc.ListComplianceChecks()
	payload, err := json.MarshalIndent(checks, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode compliance snapshot: %w", err)
	}
	key := fmt.Sprintf("compliance/%s.json", now.UTC().Format(keyTimeLayout))
	info, err := store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"checks": fmt.Sprintf("%d", len(checks))},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store compliance snapshot: %w", err)
	}
	return info, nil
}
