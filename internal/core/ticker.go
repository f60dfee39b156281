package core

import (
	"context"
	"time"
)

// TickInterval is the wall-clock period of the background time recompute.
const TickInterval = time.Minute

// Tick advances the time-derived counters by one interval: holding duration
// for every penned entry and stage time for every in-progress animal on an
// unpaused line. The method is idempotent per interval and safe to drive from
// tests without a timer.
func (s *Service) Tick(ctx context.Context) (Result, error) {
	var res Result
	err := s.run(ctx, "tick", nil, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			for _, entry := range tx.Snapshot().ListHoldingEntries() {
				if _, err := tx.UpdateHoldingEntry(entry.ID, func(e *LivestockEntry) error {
					e.HoldingDuration++
					return nil
				}); err != nil {
					return err
				}
			}
			for _, line := range tx.Snapshot().ListLines() {
				if line.Status != LineActive {
					continue
				}
				if _, err := tx.UpdateLine(line.ID, func(l *ProcessingLine) error {
					for i := range l.Animals {
						if l.Animals[i].Status == AnimalInProgress {
							l.Animals[i].TimeInStage++
						}
					}
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
		return err
	})
	return res, err
}

// RunTicker drives Tick on the configured interval until the context is
// cancelled. Errors are logged and do not stop the loop.
func (s *Service) RunTicker(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Warn("tick failed", "error", err)
			}
		}
	}
}
