package core

import (
	"context"
	"math"
	"strings"
	"time"

	"abattoircore/pkg/domain"
)

// Finished-good defaults applied when the processed animal carries no pricing
// or measurement data.
const (
	defaultFinishedGoodQuantity = 100
	defaultFinishedGoodCost     = 8.50
	defaultFinishedGoodPrice    = 15.00
	defaultStorageLocation      = "Cold Storage A1"
	carcassYieldRatio           = 0.7
)

// finishedGoodItem builds the inventory row emitted when an animal completes
// the final stage. Each completion appends a new row; rows are never merged.
func finishedGoodItem(animal IndividualAnimal, now time.Time) InventoryItem {
	grade := animal.QualityGrade
	if grade == "" {
		grade = "Standard"
	}
	quantity := defaultFinishedGoodQuantity
	if animal.CarcassWeight > 0 {
		quantity = int(math.Floor(animal.CarcassWeight * carcassYieldRatio))
	}
	location := animal.StorageLocation
	if location == "" {
		location = defaultStorageLocation
	}
	item := InventoryItem{
		Name:          titleCase(animal.Type) + " Cuts - " + grade,
		Category:      "Fresh Meat",
		Quantity:      quantity,
		Unit:          "kg",
		Location:      location,
		CostPerUnit:   defaultFinishedGoodCost,
		SellingPrice:  defaultFinishedGoodPrice,
		AnimalID:      animal.ID,
		BatchNumber:   animal.BatchID,
		DateReceived:  now,
		DateProcessed: now,
	}
	item.RecomputeDerived()
	return item
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// AddItem registers a stock record directly, recomputing derived fields.
func (s *Service) AddItem(ctx context.Context, item InventoryItem) (InventoryItem, Result, error) {
	if strings.TrimSpace(item.Name) == "" {
		return InventoryItem{}, Result{}, ValidationError{Field: "name"}
	}
	if item.Quantity < 0 {
		return InventoryItem{}, Result{}, InvalidValueError{Field: "quantity", Value: float64(item.Quantity)}
	}
	if !domain.ValidMoney(item.CostPerUnit) {
		return InventoryItem{}, Result{}, InvalidValueError{Field: "costPerUnit", Value: item.CostPerUnit}
	}
	if !domain.ValidMoney(item.SellingPrice) {
		return InventoryItem{}, Result{}, InvalidValueError{Field: "sellingPrice", Value: item.SellingPrice}
	}
	var created InventoryItem
	var res Result
	err := s.run(ctx, "add_inventory_item", &created.ID, func(ctx context.Context) error {
		if item.DateReceived.IsZero() {
			item.DateReceived = s.nowFn()
		}
		item.RecomputeDerived()
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateInventoryItem(item)
			return txErr
		})
		return err
	})
	return created, res, err
}

// AdjustQuantity applies a signed delta to an item's quantity, clamping at
// zero, and re-derives status and valuation.
func (s *Service) AdjustQuantity(ctx context.Context, id string, delta int) (InventoryItem, Result, error) {
	return s.mutateItem(ctx, "adjust_quantity", id, func(i *InventoryItem) error {
		i.Quantity += delta
		if i.Quantity < 0 {
			i.Quantity = 0
		}
		return nil
	})
}

// SetQuantity replaces an item's quantity. Negative values are rejected.
func (s *Service) SetQuantity(ctx context.Context, id string, quantity int) (InventoryItem, Result, error) {
	if quantity < 0 {
		return InventoryItem{}, Result{}, InvalidValueError{Field: "quantity", Value: float64(quantity)}
	}
	return s.mutateItem(ctx, "set_quantity", id, func(i *InventoryItem) error {
		i.Quantity = quantity
		return nil
	})
}

// SetCost replaces an item's unit cost. Negative, NaN, and infinite values are
// rejected.
func (s *Service) SetCost(ctx context.Context, id string, cost float64) (InventoryItem, Result, error) {
	if !domain.ValidMoney(cost) {
		return InventoryItem{}, Result{}, InvalidValueError{Field: "costPerUnit", Value: cost}
	}
	return s.mutateItem(ctx, "set_cost", id, func(i *InventoryItem) error {
		i.CostPerUnit = cost
		return nil
	})
}

// SetPrice replaces an item's selling price. Negative, NaN, and infinite
// values are rejected.
func (s *Service) SetPrice(ctx context.Context, id string, price float64) (InventoryItem, Result, error) {
	if !domain.ValidMoney(price) {
		return InventoryItem{}, Result{}, InvalidValueError{Field: "sellingPrice", Value: price}
	}
	return s.mutateItem(ctx, "set_price", id, func(i *InventoryItem) error {
		i.SellingPrice = price
		return nil
	})
}

func (s *Service) mutateItem(ctx context.Context, operation, id string, mutate func(*InventoryItem) error) (InventoryItem, Result, error) {
	var updated InventoryItem
	var res Result
	err := s.run(ctx, operation, &id, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateInventoryItem(id, func(i *InventoryItem) error {
				if err := mutate(i); err != nil {
					return err
				}
				i.RecomputeDerived()
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// RemoveItem hard-deletes a stock record.
func (s *Service) RemoveItem(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.run(ctx, "remove_inventory_item", &id, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteInventoryItem(id)
		})
		return err
	})
	return res, err
}

// ListInventory returns all stock records.
func (s *Service) ListInventory() []InventoryItem {
	return s.store.ListInventory()
}

// GetInventoryItem returns one stock record by ID.
func (s *Service) GetInventoryItem(id string) (InventoryItem, bool) {
	return s.store.GetInventoryItem(id)
}

// TotalInventoryValue sums totalValue across all stock records.
func (s *Service) TotalInventoryValue() float64 {
	total := 0.0
	for _, item := range s.store.ListInventory() {
		total += item.TotalValue
	}
	return total
}
