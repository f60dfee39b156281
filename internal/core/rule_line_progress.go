package core

import (
	"context"
	"fmt"

	"abattoircore/pkg/domain"
)

// NewLineProgressRule blocks commits where a line's processed counter drifts
// from the number of completed animals it holds.
func NewLineProgressRule() domain.Rule {
	return lineProgressRule{}
}

type lineProgressRule struct{}

func (lineProgressRule) Name() string { return "line_progress" }

func (lineProgressRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != EntityProcessingLine {
			continue
		}
		line, ok := lineFromChange(change.After)
		if !ok {
			continue
		}
		if completed := line.CompletedCount(); line.Processed != completed {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "line_progress",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("line %s reports %d processed but holds %d completed animals", line.ID, line.Processed, completed),
				Entity:   EntityProcessingLine,
				EntityID: line.ID,
			})
		}
	}
	return res, nil
}
