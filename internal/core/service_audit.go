package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"abattoircore/pkg/domain"
)

// RecordAuditLog appends a user-action entry to the store-backed audit trail.
// The trail keeps the most recent entries up to the retention cap.
func (s *Service) RecordAuditLog(ctx context.Context, log AuditLog) (AuditLog, Result, error) {
	var appended AuditLog
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if log.Timestamp.IsZero() {
			log.Timestamp = s.nowFn()
		}
		appended = tx.AppendAuditLog(log)
		return nil
	})
	return appended, res, err
}

// ListAuditLogs returns the audit trail, newest first.
func (s *Service) ListAuditLogs() []AuditLog {
	return s.store.ListAuditLogs()
}

// AuditFilter narrows the exported audit trail. Zero values match everything.
type AuditFilter struct {
	UserID   string
	Action   string
	Resource string
	Since    time.Time
	Until    time.Time
}

func (f AuditFilter) matches(log AuditLog) bool {
	if f.UserID != "" && log.UserID != f.UserID {
		return false
	}
	if f.Action != "" && !strings.EqualFold(log.Action, f.Action) {
		return false
	}
	if f.Resource != "" && !strings.EqualFold(log.Resource, f.Resource) {
		return false
	}
	if !f.Since.IsZero() && log.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && log.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// FilterAuditLogs returns trail entries matching the filter, newest first.
func (s *Service) FilterAuditLogs(filter AuditFilter) []AuditLog {
	var out []AuditLog
	for _, log := range s.store.ListAuditLogs() {
		if filter.matches(log) {
			out = append(out, log)
		}
	}
	return out
}

// auditCSVHeader matches the export format consumed by downstream reporting.
var auditCSVHeader = []string{"Timestamp", "User", "Email", "Action", "Resource", "Details"}

// WriteAuditCSV writes trail entries as CSV, newest first.
func WriteAuditCSV(w io.Writer, logs []AuditLog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(auditCSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, log := range logs {
		record := []string{
			log.Timestamp.UTC().Format(time.RFC3339),
			log.UserName,
			log.UserEmail,
			log.Action,
			log.Resource,
			log.Details,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportAuditCSV writes the filtered audit trail as CSV.
func (s *Service) ExportAuditCSV(w io.Writer, filter AuditFilter) error {
	return WriteAuditCSV(w, s.FilterAuditLogs(filter))
}

// StoreAuditRecorder mirrors instrumented operation outcomes into the
// store-backed audit trail, attributing them to the active session when one
// exists.
type StoreAuditRecorder struct {
	store domain.PersistentStore
}

// NewStoreAuditRecorder constructs a recorder writing into the given store.
func NewStoreAuditRecorder(store domain.PersistentStore) *StoreAuditRecorder {
	return &StoreAuditRecorder{store: store}
}

// Record implements AuditRecorder. Failures are dropped; the audit trail never
// fails the recorded operation.
func (r *StoreAuditRecorder) Record(ctx context.Context, entry AuditEntry) {
	log := AuditLog{
		Action:    entry.Operation,
		Resource:  string(entry.Entity),
		Details:   fmt.Sprintf("status=%s entity_id=%s", entry.Status, entry.EntityID),
		Timestamp: entry.Timestamp,
	}
	if entry.Error != "" {
		log.Details += " error=" + entry.Error
	}
	if session, ok := r.store.Session(); ok {
		log.UserID = session.User.ID
		log.UserName = session.User.FullName
		log.UserEmail = session.User.Email
	}
	_, _ = r.store.RunInTransaction(ctx, func(tx Transaction) error {
		tx.AppendAuditLog(log)
		return nil
	})
}
