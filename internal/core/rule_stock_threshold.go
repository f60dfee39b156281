package core

import (
	"context"
	"fmt"
	"math"

	"abattoircore/pkg/domain"
)

// NewStockThresholdRule blocks commits where an inventory item's derived
// fields disagree with its quantity, cost, or price.
func NewStockThresholdRule() domain.Rule {
	return stockThresholdRule{}
}

type stockThresholdRule struct{}

const valueEpsilon = 1e-9

func (stockThresholdRule) Name() string { return "stock_threshold" }

func (stockThresholdRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != EntityInventoryItem || change.Action == ActionDelete {
			continue
		}
		item, ok := itemFromChange(change.After)
		if !ok {
			continue
		}
		if want := domain.StockStatusFor(item.Quantity); item.Status != want {
			res.Violations = append(res.Violations, blockItem(item.ID,
				fmt.Sprintf("item %s quantity %d requires status %s, has %s", item.ID, item.Quantity, want, item.Status)))
		}
		if want := float64(item.Quantity) * item.CostPerUnit; math.Abs(item.TotalValue-want) > valueEpsilon {
			res.Violations = append(res.Violations, blockItem(item.ID,
				fmt.Sprintf("item %s total value %.4f does not match quantity*cost %.4f", item.ID, item.TotalValue, want)))
		}
	}
	return res, nil
}

func blockItem(itemID, message string) domain.Violation {
	return domain.Violation{
		Rule:     "stock_threshold",
		Severity: SeverityBlock,
		Message:  message,
		Entity:   EntityInventoryItem,
		EntityID: itemID,
	}
}
