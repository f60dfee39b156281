package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// AddComplianceCheck registers a recurring checklist item.
func (s *Service) AddComplianceCheck(ctx context.Context, check ComplianceCheck) (ComplianceCheck, Result, error) {
	if strings.TrimSpace(check.Name) == "" {
		return ComplianceCheck{}, Result{}, ValidationError{Field: "name"}
	}
	var created ComplianceCheck
	var res Result
	err := s.run(ctx, "add_compliance_check", &created.ID, func(ctx context.Context) error {
		if check.Status == "" {
			check.Status = CheckPending
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateComplianceCheck(check)
			return txErr
		})
		return err
	})
	return created, res, err
}

// UpdateCheckStatus records a new status on a check, appending a history entry
// and stamping the check time.
func (s *Service) UpdateCheckStatus(ctx context.Context, id string, status CheckStatus, score int, changedBy, notes string) (ComplianceCheck, Result, error) {
	switch status {
	case CheckPassed, CheckFailed, CheckPending:
	default:
		return ComplianceCheck{}, Result{}, ValidationError{Field: "status"}
	}
	var updated ComplianceCheck
	var res Result
	err := s.run(ctx, "update_check_status", &id, func(ctx context.Context) error {
		now := s.nowFn()
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateComplianceCheck(id, func(c *ComplianceCheck) error {
				c.Status = status
				c.Score = score
				c.LastCheck = now
				c.History = append(c.History, StatusHistory{
					Status:    status,
					Timestamp: now,
					ChangedBy: changedBy,
					Notes:     notes,
				})
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// AddCheckComment attaches a free-form note to a check.
func (s *Service) AddCheckComment(ctx context.Context, id, author, text string) (ComplianceCheck, Result, error) {
	if strings.TrimSpace(text) == "" {
		return ComplianceCheck{}, Result{}, ValidationError{Field: "text"}
	}
	var updated ComplianceCheck
	var res Result
	err := s.run(ctx, "add_check_comment", &id, func(ctx context.Context) error {
		now := s.nowFn()
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateComplianceCheck(id, func(c *ComplianceCheck) error {
				c.Comments = append(c.Comments, CheckComment{
					ID:        commentID(),
					Author:    author,
					Text:      text,
					Timestamp: now,
				})
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

func commentID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ListComplianceChecks returns all checklist items.
func (s *Service) ListComplianceChecks() []ComplianceCheck {
	return s.store.ListComplianceChecks()
}

// OverallComplianceScore averages scores across non-pending checks. Returns 0
// when nothing has been scored.
func (s *Service) OverallComplianceScore() int {
	total, n := 0, 0
	for _, c := range s.store.ListComplianceChecks() {
		if c.Status == CheckPending {
			continue
		}
		total += c.Score
		n++
	}
	if n == 0 {
		return 0
	}
	return total / n
}
