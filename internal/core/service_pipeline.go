package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"abattoircore/pkg/domain"
)

// EnsureDefaultLines provisions the fixed processing lines when absent. Safe
// to call repeatedly.
func (s *Service) EnsureDefaultLines(ctx context.Context) ([]ProcessingLine, Result, error) {
	var lines []ProcessingLine
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		existing := map[string]ProcessingLine{}
		for _, l := range tx.Snapshot().ListLines() {
			existing[l.Name] = l
		}
		lines = lines[:0]
		for _, name := range DefaultLineNames {
			if l, ok := existing[name]; ok {
				lines = append(lines, l)
				continue
			}
			created, err := tx.CreateLine(ProcessingLine{Name: name, Status: LineIdle})
			if err != nil {
				return err
			}
			lines = append(lines, created)
		}
		return nil
	})
	if err != nil {
		return nil, res, err
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })
	return lines, res, nil
}

// CreateLine persists an additional processing line in the idle state.
func (s *Service) CreateLine(ctx context.Context, name string) (ProcessingLine, Result, error) {
	var created ProcessingLine
	var res Result
	err := s.run(ctx, "create_line", &created.ID, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateLine(ProcessingLine{Name: name, Status: LineIdle})
			return txErr
		})
		return err
	})
	return created, res, err
}

// buildAnimals instantiates the per-unit workflow records for a claimed batch.
// IDs are <batch>-NNN in intake order.
func buildAnimals(batchID string, entries []LivestockEntry, now time.Time) []IndividualAnimal {
	var animals []IndividualAnimal
	n := 0
	for _, entry := range entries {
		for i := 0; i < entry.Quantity; i++ {
			n++
			animals = append(animals, IndividualAnimal{
				ID:           fmt.Sprintf("%s-%03d", batchID, n),
				AnimalID:     entry.AnimalID,
				BatchID:      batchID,
				Type:         entry.Type,
				CurrentStage: domain.StageReceiving,
				Status:       AnimalInProgress,
				TimeInStage:  0,
				StartTime:    now,
			})
		}
	}
	return animals
}

func batchEntries(view domain.RuleView, batchID string) []LivestockEntry {
	var out []LivestockEntry
	for _, e := range view.ListHoldingEntries() {
		if e.ProcessingBatchID == batchID {
			out = append(out, e)
		}
	}
	return out
}

// assignBatchToLine activates the line with the given batch inside an open
// transaction, marking the claimed holding entries as processing.
func (s *Service) assignBatchToLine(tx Transaction, batchID string, lineID string, now time.Time) (ProcessingLine, error) {
	entries := batchEntries(tx.Snapshot(), batchID)
	if len(entries) == 0 {
		return ProcessingLine{}, ErrNotFound{Entity: EntityHoldingEntry, ID: batchID}
	}
	total := 0
	for _, e := range entries {
		total += e.Quantity
	}
	animals := buildAnimals(batchID, entries, now)
	updated, err := tx.UpdateLine(lineID, func(l *ProcessingLine) error {
		if l.Status != LineIdle {
			return fmt.Errorf("line %s is %s, want idle", lineID, l.Status)
		}
		l.Status = LineActive
		l.BatchID = batchID
		l.Type = entries[0].Type
		l.Quantity = total
		l.Processed = 0
		l.StartTime = now
		l.Animals = animals
		return nil
	})
	if err != nil {
		return ProcessingLine{}, err
	}
	for _, e := range entries {
		if _, err := tx.UpdateHoldingEntry(e.ID, func(h *LivestockEntry) error {
			h.Status = IntakeProcessing
			return nil
		}); err != nil {
			return ProcessingLine{}, err
		}
	}
	return updated, nil
}

// AssignBatch claims a cleared holding batch for an idle line, instantiating
// one workflow record per animal at the receiving stage.
func (s *Service) AssignBatch(ctx context.Context, batchID, lineID string) (ProcessingLine, Result, error) {
	var line ProcessingLine
	var res Result
	err := s.run(ctx, "assign_batch", &lineID, func(ctx context.Context) error {
		now := s.nowFn()
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if _, ok := tx.FindLine(lineID); !ok {
				return ErrNotFound{Entity: EntityProcessingLine, ID: lineID}
			}
			var txErr error
			line, txErr = s.assignBatchToLine(tx, batchID, lineID, now)
			return txErr
		})
		return err
	})
	return line, res, err
}

func (s *Service) updateAnimal(tx Transaction, lineID, animalID string, mutate func(line *ProcessingLine, animal *IndividualAnimal) error) (ProcessingLine, error) {
	return tx.UpdateLine(lineID, func(l *ProcessingLine) error {
		for i := range l.Animals {
			if l.Animals[i].ID == animalID {
				if err := mutate(l, &l.Animals[i]); err != nil {
					return err
				}
				l.Processed = l.CompletedCount()
				return nil
			}
		}
		return fmt.Errorf("animal %s not found on line %s", animalID, lineID)
	})
}

// AdvanceStage moves an in-progress animal to its next stage and resets its
// stage timer. Advancing past the final stage completes the animal and emits
// its finished good to the inventory ledger exactly once.
func (s *Service) AdvanceStage(ctx context.Context, lineID, animalID string) (ProcessingLine, Result, error) {
	var line ProcessingLine
	var res Result
	err := s.run(ctx, "advance_stage", &animalID, func(ctx context.Context) error {
		now := s.nowFn()
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var finished *IndividualAnimal
			var txErr error
			line, txErr = s.updateAnimal(tx, lineID, animalID, func(l *ProcessingLine, a *IndividualAnimal) error {
				if a.Status != AnimalInProgress {
					return fmt.Errorf("animal %s is %s, want %s", animalID, a.Status, AnimalInProgress)
				}
				a.CurrentStage++
				a.TimeInStage = 0
				if a.Terminal() {
					a.Status = AnimalComplete
					cp := *a
					finished = &cp
				}
				return nil
			})
			if txErr != nil {
				return txErr
			}
			if finished != nil {
				if _, err := tx.CreateInventoryItem(finishedGoodItem(*finished, now)); err != nil {
					return err
				}
			}
			return nil
		})
		return err
	})
	return line, res, err
}

// SetAnimalStatus places an animal in a side state (hold, quarantine, rework),
// recording the reason as a defect. Completed animals cannot be moved.
func (s *Service) SetAnimalStatus(ctx context.Context, lineID, animalID string, status AnimalStatus, reason string) (ProcessingLine, Result, error) {
	switch status {
	case AnimalHold, AnimalQuarantine, AnimalRework:
	default:
		return ProcessingLine{}, Result{}, fmt.Errorf("unsupported side state %q", status)
	}
	var line ProcessingLine
	var res Result
	err := s.run(ctx, "set_animal_status", &animalID, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			line, txErr = s.updateAnimal(tx, lineID, animalID, func(_ *ProcessingLine, a *IndividualAnimal) error {
				if a.Status == AnimalComplete {
					return fmt.Errorf("animal %s already complete", animalID)
				}
				a.Status = status
				if reason != "" {
					a.Defects = append(a.Defects, reason)
				}
				return nil
			})
			return txErr
		})
		return err
	})
	return line, res, err
}

// ResumeAnimal returns a side-state animal to in-progress without touching its
// stage or stage timer.
func (s *Service) ResumeAnimal(ctx context.Context, lineID, animalID string) (ProcessingLine, Result, error) {
	var line ProcessingLine
	var res Result
	err := s.run(ctx, "set_animal_status", &animalID, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			line, txErr = s.updateAnimal(tx, lineID, animalID, func(_ *ProcessingLine, a *IndividualAnimal) error {
				switch a.Status {
				case AnimalHold, AnimalQuarantine, AnimalRework:
					a.Status = AnimalInProgress
					return nil
				default:
					return fmt.Errorf("animal %s is %s, not in a side state", animalID, a.Status)
				}
			})
			return txErr
		})
		return err
	})
	return line, res, err
}

// AssignOperator records the operator handling an animal.
func (s *Service) AssignOperator(ctx context.Context, lineID, animalID, operator string) (ProcessingLine, Result, error) {
	var line ProcessingLine
	var res Result
	err := s.run(ctx, "assign_operator", &animalID, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			line, txErr = s.updateAnimal(tx, lineID, animalID, func(_ *ProcessingLine, a *IndividualAnimal) error {
				a.Operator = operator
				return nil
			})
			return txErr
		})
		return err
	})
	return line, res, err
}

// Measurements carries the recordable per-animal processing data. Zero-valued
// fields are left untouched; the dressing percentage is always derived.
type Measurements struct {
	LiveWeight      float64
	CarcassWeight   float64
	QualityGrade    string
	StorageLocation string
	Notes           string
}

// RecordMeasurements stores weights, grade, location, and notes on an animal,
// recomputing the dressing percentage when both weights are present.
func (s *Service) RecordMeasurements(ctx context.Context, lineID, animalID string, m Measurements) (ProcessingLine, Result, error) {
	if m.LiveWeight != 0 && !domain.ValidMoney(m.LiveWeight) {
		return ProcessingLine{}, Result{}, InvalidValueError{Field: "liveWeight", Value: m.LiveWeight}
	}
	if m.CarcassWeight != 0 && !domain.ValidMoney(m.CarcassWeight) {
		return ProcessingLine{}, Result{}, InvalidValueError{Field: "carcassWeight", Value: m.CarcassWeight}
	}
	var line ProcessingLine
	var res Result
	err := s.run(ctx, "record_measurements", &animalID, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			line, txErr = s.updateAnimal(tx, lineID, animalID, func(_ *ProcessingLine, a *IndividualAnimal) error {
				if m.LiveWeight > 0 {
					a.LiveWeight = m.LiveWeight
				}
				if m.CarcassWeight > 0 {
					a.CarcassWeight = m.CarcassWeight
				}
				if m.QualityGrade != "" {
					a.QualityGrade = m.QualityGrade
				}
				if m.StorageLocation != "" {
					a.StorageLocation = m.StorageLocation
				}
				if m.Notes != "" {
					a.Notes = m.Notes
				}
				a.RecomputeDressing()
				return nil
			})
			return txErr
		})
		return err
	})
	return line, res, err
}

// PauseLine suspends an active line.
func (s *Service) PauseLine(ctx context.Context, lineID string) (ProcessingLine, Result, error) {
	return s.setLineStatus(ctx, "pause_line", lineID, LineActive, LinePaused)
}

// ResumeLine reactivates a paused line.
func (s *Service) ResumeLine(ctx context.Context, lineID string) (ProcessingLine, Result, error) {
	return s.setLineStatus(ctx, "resume_line", lineID, LinePaused, LineActive)
}

func (s *Service) setLineStatus(ctx context.Context, operation, lineID string, from, to LineStatus) (ProcessingLine, Result, error) {
	var line ProcessingLine
	var res Result
	err := s.run(ctx, operation, &lineID, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			line, txErr = tx.UpdateLine(lineID, func(l *ProcessingLine) error {
				if l.Status != from {
					return fmt.Errorf("line %s is %s, want %s", lineID, l.Status, from)
				}
				l.Status = to
				return nil
			})
			return txErr
		})
		return err
	})
	return line, res, err
}

// CompleteBatch finishes the line's current batch. Every animal must be in the
// terminal state (a batch with no animals completes vacuously). The claimed
// holding entries are retired, and the next cleared batch assigned to this
// line, if any, is claimed immediately; otherwise the line returns to idle.
func (s *Service) CompleteBatch(ctx context.Context, lineID string) (ProcessingLine, Result, error) {
	var line ProcessingLine
	var res Result
	err := s.run(ctx, "complete_batch", &lineID, func(ctx context.Context) error {
		now := s.nowFn()
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			current, ok := tx.FindLine(lineID)
			if !ok {
				return ErrNotFound{Entity: EntityProcessingLine, ID: lineID}
			}
			if current.BatchID == "" {
				return ErrNoActiveBatch
			}
			if remaining := len(current.Animals) - current.CompletedCount(); remaining > 0 {
				return IncompleteBatchError{LineID: lineID, Remaining: remaining}
			}
			for _, e := range batchEntries(tx.Snapshot(), current.BatchID) {
				if err := tx.DeleteHoldingEntry(e.ID); err != nil {
					return err
				}
			}
			next := nextEligibleBatch(tx.Snapshot(), current.Name)
			var txErr error
			line, txErr = tx.UpdateLine(lineID, func(l *ProcessingLine) error {
				l.Status = LineIdle
				l.BatchID = ""
				l.Type = ""
				l.Quantity = 0
				l.Processed = 0
				l.Animals = nil
				return nil
			})
			if txErr != nil {
				return txErr
			}
			if next != "" {
				line, txErr = s.assignBatchToLine(tx, next, lineID, now)
				if txErr != nil {
					return txErr
				}
			}
			return nil
		})
		return err
	})
	return line, res, err
}

// nextEligibleBatch returns the oldest cleared, unclaimed batch assigned to
// the named line, or "".
func nextEligibleBatch(view domain.RuleView, lineName string) string {
	for _, e := range view.ListHoldingEntries() {
		if e.ProcessingLineAssigned == lineName && e.Status == IntakeCleared && e.ProcessingBatchID != "" {
			return e.ProcessingBatchID
		}
	}
	return ""
}

// ListLines returns all processing lines.
func (s *Service) ListLines() []ProcessingLine {
	return s.store.ListLines()
}

// GetLine returns one processing line by ID.
func (s *Service) GetLine(id string) (ProcessingLine, bool) {
	return s.store.GetLine(id)
}
