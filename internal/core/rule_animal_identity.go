package core

import (
	"context"
	"fmt"
	"strings"

	"abattoircore/pkg/domain"
)

// NewAnimalIdentityRule blocks commits that would duplicate an animal tag
// (case-insensitive) or a traceability code across the pending queue and the
// holding pen.
func NewAnimalIdentityRule() domain.Rule {
	return animalIdentityRule{}
}

type animalIdentityRule struct{}

func (animalIdentityRule) Name() string { return "animal_identity" }

func (animalIdentityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	touched := false
	for _, change := range changes {
		if change.Entity == EntityIntakeEntry || change.Entity == EntityHoldingEntry {
			touched = true
			break
		}
	}
	res := domain.Result{}
	if !touched {
		return res, nil
	}

	tagOwners := map[string]string{}
	codeOwners := map[string]string{}
	check := func(entity EntityType, e LivestockEntry) {
		tag := strings.ToLower(e.AnimalID)
		if owner, seen := tagOwners[tag]; seen && owner != e.ID {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "animal_identity",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("animal id %s is already registered", e.AnimalID),
				Entity:   entity,
				EntityID: e.ID,
			})
		} else {
			tagOwners[tag] = e.ID
		}
		if e.TraceabilityCode == "" {
			return
		}
		if owner, seen := codeOwners[e.TraceabilityCode]; seen && owner != e.ID {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "animal_identity",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("traceability code %s is already registered", e.TraceabilityCode),
				Entity:   entity,
				EntityID: e.ID,
			})
		} else {
			codeOwners[e.TraceabilityCode] = e.ID
		}
	}
	for _, e := range view.ListIntakeEntries() {
		check(EntityIntakeEntry, e)
	}
	for _, e := range view.ListHoldingEntries() {
		check(EntityHoldingEntry, e)
	}
	return res, nil
}
