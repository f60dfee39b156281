package core

import (
	"context"
	"fmt"

	"abattoircore/pkg/domain"
)

// NewStageTransitionRule blocks commits that put animals or lines into
// unknown states, revive completed animals, or leave an idle line holding a
// batch or animals.
func NewStageTransitionRule() domain.Rule {
	return stageTransitionRule{}
}

type stageTransitionRule struct{}

var (
	validAnimalStatuses = toSet(
		string(AnimalInProgress),
		string(AnimalComplete),
		string(AnimalHold),
		string(AnimalQuarantine),
		string(AnimalRework),
	)
	validLineStatuses = toSet(
		string(LineIdle),
		string(LineActive),
		string(LinePaused),
		string(LineCompleted),
	)
)

func (stageTransitionRule) Name() string { return "stage_transition" }

func (stageTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != EntityProcessingLine {
			continue
		}
		after, ok := lineFromChange(change.After)
		if !ok {
			continue
		}
		if _, valid := validLineStatuses[string(after.Status)]; !valid {
			res.Violations = append(res.Violations, blockLine(after.ID,
				fmt.Sprintf("line %s is set to invalid status %s", after.ID, after.Status)))
		}
		if after.Status == LineIdle && (after.BatchID != "" || len(after.Animals) > 0) {
			res.Violations = append(res.Violations, blockLine(after.ID,
				fmt.Sprintf("idle line %s must not hold a batch or animals", after.ID)))
		}
		for _, a := range after.Animals {
			if _, valid := validAnimalStatuses[string(a.Status)]; !valid {
				res.Violations = append(res.Violations, blockLine(after.ID,
					fmt.Sprintf("animal %s is set to invalid status %s", a.ID, a.Status)))
			}
			if a.Status == AnimalComplete && !a.Terminal() {
				res.Violations = append(res.Violations, blockLine(after.ID,
					fmt.Sprintf("animal %s is complete at stage %d", a.ID, a.CurrentStage)))
			}
		}
		before, ok := lineFromChange(change.Before)
		if !ok {
			continue
		}
		completed := map[string]struct{}{}
		for _, a := range before.Animals {
			if a.Status == AnimalComplete {
				completed[a.ID] = struct{}{}
			}
		}
		for _, a := range after.Animals {
			if _, was := completed[a.ID]; was && a.Status != AnimalComplete {
				res.Violations = append(res.Violations, blockLine(after.ID,
					fmt.Sprintf("animal %s cannot leave the complete state", a.ID)))
			}
		}
	}
	return res, nil
}

func blockLine(lineID, message string) domain.Violation {
	return domain.Violation{
		Rule:     "stage_transition",
		Severity: SeverityBlock,
		Message:  message,
		Entity:   EntityProcessingLine,
		EntityID: lineID,
	}
}
