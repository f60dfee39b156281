package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"abattoircore/pkg/domain"
)

// animalIDPrefixes maps livestock types to their tag prefix. Keys match the
// intake form's type values. Unknown types fall back to the generic prefix.
var animalIDPrefixes = map[string]string{
	"cattle":  "CTL",
	"pigs":    "PIG",
	"sheep":   "SHP",
	"goats":   "GOT",
	"poultry": "PLT",
}

const genericAnimalPrefix = "ANM"

// AnimalIDPrefix returns the tag prefix for a livestock type.
func AnimalIDPrefix(animalType string) string {
	if p, ok := animalIDPrefixes[strings.ToLower(strings.TrimSpace(animalType))]; ok {
		return p
	}
	return genericAnimalPrefix
}

// GenerateAnimalID produces the next tag of the form PREFIX-YYYYMMDD-SEQ4 for
// the given livestock type. The sequence counts same-type entries registered
// today across the pending queue and holding pen. Uniqueness is enforced by
// ValidateAnimalID and the identity rule, not by the generator.
func (s *Service) GenerateAnimalID(ctx context.Context, animalType string) (string, error) {
	prefix := AnimalIDPrefix(animalType)
	now := s.nowFn()
	day := now.Format("20060102")
	seq := 1
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, e := range view.ListIntakeEntries() {
			if sameTypeToday(e, animalType, now) {
				seq++
			}
		}
		for _, e := range view.ListHoldingEntries() {
			if sameTypeToday(e, animalType, now) {
				seq++
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, day, seq), nil
}

func sameTypeToday(e LivestockEntry, animalType string, now time.Time) bool {
	if !strings.EqualFold(e.Type, animalType) {
		return false
	}
	y1, m1, d1 := e.IntakeTimestamp.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// ValidateAnimalID reports whether the given tag is free. Comparison is
// case-insensitive across the pending queue and holding pen.
func (s *Service) ValidateAnimalID(ctx context.Context, animalID string) (bool, error) {
	free := true
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		free = !animalIDTaken(view, animalID)
		return nil
	})
	return free, err
}

func animalIDTaken(view domain.RuleView, animalID string) bool {
	for _, e := range view.ListIntakeEntries() {
		if strings.EqualFold(e.AnimalID, animalID) {
			return true
		}
	}
	for _, e := range view.ListHoldingEntries() {
		if strings.EqualFold(e.AnimalID, animalID) {
			return true
		}
	}
	return false
}

// AddEntry registers a new livestock arrival in the pending queue. The entry
// receives a traceability code, intake timestamp, expected processing date
// 24 hours out, and a status derived from its quarantine flag.
func (s *Service) AddEntry(ctx context.Context, entry LivestockEntry) (LivestockEntry, Result, error) {
	if strings.TrimSpace(entry.AnimalID) == "" {
		return LivestockEntry{}, Result{}, ValidationError{Field: "animalId"}
	}
	if strings.TrimSpace(entry.Type) == "" {
		return LivestockEntry{}, Result{}, ValidationError{Field: "type"}
	}
	if entry.Quantity < 1 {
		return LivestockEntry{}, Result{}, ValidationError{Field: "quantity"}
	}
	if strings.TrimSpace(entry.Supplier) == "" {
		return LivestockEntry{}, Result{}, ValidationError{Field: "supplier"}
	}

	var created LivestockEntry
	var res Result
	err := s.run(ctx, "add_entry", &created.ID, func(ctx context.Context) error {
		now := s.nowFn()
		entry.TraceabilityCode = s.traceCode(now)
		entry.IntakeTimestamp = now
		entry.ExpectedProcessingDate = now.Add(24 * time.Hour)
		entry.HoldingDuration = 0
		entry.ProcessingBatchID = ""
		entry.ProcessingLineAssigned = ""
		if entry.VetInspectionStatus == "" {
			entry.VetInspectionStatus = domain.VetInspectionPending
		}
		if entry.QuarantineFlag {
			entry.Status = IntakeQuarantine
		} else {
			entry.Status = IntakePending
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if animalIDTaken(tx.Snapshot(), entry.AnimalID) {
				return DuplicateAnimalIDError{AnimalID: entry.AnimalID}
			}
			var txErr error
			created, txErr = tx.CreateIntakeEntry(entry)
			return txErr
		})
		return err
	})
	return created, res, err
}

// UpdateEntry mutates a pending entry using the provided mutator.
func (s *Service) UpdateEntry(ctx context.Context, id string, mutator func(*LivestockEntry) error) (LivestockEntry, Result, error) {
	var updated LivestockEntry
	var res Result
	err := s.run(ctx, "update_entry", &id, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateIntakeEntry(id, mutator)
			return txErr
		})
		return err
	})
	return updated, res, err
}

// RemoveEntry deletes a pending entry before batch submission.
func (s *Service) RemoveEntry(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.run(ctx, "remove_entry", &id, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteIntakeEntry(id)
		})
		return err
	})
	return res, err
}

// SubmitBatch moves every pending entry into the holding pen. Each
// non-quarantined entry becomes its own batch: it is stamped with a fresh
// batch ID, a processing line from the configured selector, and the cleared
// status. Quarantined entries move over unassigned. The pending queue is
// empty afterwards.
func (s *Service) SubmitBatch(ctx context.Context) ([]LivestockEntry, Result, error) {
	var moved []LivestockEntry
	var res Result
	err := s.run(ctx, "submit_batch", nil, func(ctx context.Context) error {
		now := s.nowFn()
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			taken := map[string]struct{}{}
			for _, e := range tx.Snapshot().ListHoldingEntries() {
				if e.ProcessingBatchID != "" {
					taken[e.ProcessingBatchID] = struct{}{}
				}
			}
			seq := 0
			nextBatchID := func() string {
				for {
					id := s.batchID(now, seq)
					seq++
					if _, dup := taken[id]; !dup {
						taken[id] = struct{}{}
						return id
					}
				}
			}
			pending := tx.Snapshot().ListIntakeEntries()
			moved = moved[:0]
			for _, entry := range pending {
				if err := tx.DeleteIntakeEntry(entry.ID); err != nil {
					return err
				}
				if entry.Status == IntakeQuarantine {
					entry.ProcessingBatchID = ""
					entry.ProcessingLineAssigned = ""
				} else {
					entry.Status = IntakeCleared
					entry.ProcessingBatchID = nextBatchID()
					entry.ProcessingLineAssigned = s.lineSelector(DefaultLineNames)
				}
				held, err := tx.CreateHoldingEntry(entry)
				if err != nil {
					return err
				}
				moved = append(moved, held)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return nil, res, err
	}
	return moved, res, nil
}

// UpdateVetInspection records a veterinary inspection outcome on a pending
// entry. Passed clears the entry, failed quarantines it, pending marks it
// inspected.
func (s *Service) UpdateVetInspection(ctx context.Context, id string, status domain.VetInspectionStatus, notes string) (LivestockEntry, Result, error) {
	var updated LivestockEntry
	var res Result
	err := s.run(ctx, "update_vet_inspection", &id, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateIntakeEntry(id, func(e *LivestockEntry) error {
				e.VetInspectionStatus = status
				e.VetInspectionNotes = notes
				switch status {
				case domain.VetInspectionPassed:
					e.Status = IntakeCleared
				case domain.VetInspectionFailed:
					e.Status = IntakeQuarantine
					e.QuarantineFlag = true
					if notes != "" {
						e.QuarantineReason = notes
					}
				case domain.VetInspectionPending:
					e.Status = IntakeInspected
				default:
					return fmt.Errorf("unknown inspection status %q", status)
				}
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// ListPendingEntries returns the pending intake queue.
func (s *Service) ListPendingEntries() []LivestockEntry {
	return s.store.ListIntakeEntries()
}

// ListHoldingPen returns the holding-pen contents.
func (s *Service) ListHoldingPen() []LivestockEntry {
	return s.store.ListHoldingEntries()
}
