package core

import "abattoircore/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewAnimalIdentityRule())
	engine.Register(NewStageTransitionRule())
	engine.Register(NewLineProgressRule())
	engine.Register(NewStockThresholdRule())
	return engine
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func entryFromChange(payload any) (LivestockEntry, bool) {
	e, ok := payload.(LivestockEntry)
	return e, ok
}

func lineFromChange(payload any) (ProcessingLine, bool) {
	l, ok := payload.(ProcessingLine)
	return l, ok
}

func itemFromChange(payload any) (InventoryItem, bool) {
	i, ok := payload.(InventoryItem)
	return i, ok
}
