package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

// startBatch registers one cattle entry, submits it, provisions the default
// lines, and claims the batch on Line A. Returns the active line.
func startBatch(t *testing.T, env *testEnv, quantity int) ProcessingLine {
	t.Helper()
	ctx := context.Background()
	env.addCattle(t, "CTL-20250601-0001", quantity)
	moved, _, err := env.svc.SubmitBatch(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	lines, _, err := env.svc.EnsureDefaultLines(ctx)
	if err != nil {
		t.Fatalf("ensure lines: %v", err)
	}
	line, _, err := env.svc.AssignBatch(ctx, moved[0].ProcessingBatchID, lines[0].ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	return line
}

func TestEnsureDefaultLinesIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first, _, err := env.svc.EnsureDefaultLines(ctx)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("lines = %d, want 3", len(first))
	}
	second, _, err := env.svc.EnsureDefaultLines(ctx)
	if err != nil {
		t.Fatalf("re-ensure: %v", err)
	}
	if len(second) != 3 || second[0].ID != first[0].ID {
		t.Fatalf("repeat call must not duplicate lines")
	}
	names := []string{second[0].Name, second[1].Name, second[2].Name}
	for i, want := range DefaultLineNames {
		if names[i] != want {
			t.Fatalf("line names = %v", names)
		}
	}
}

func TestAssignBatchActivatesLine(t *testing.T) {
	env := newTestEnv(t)
	line := startBatch(t, env, 5)

	if line.Status != LineActive {
		t.Fatalf("line status = %s, want active", line.Status)
	}
	if line.Quantity != 5 || len(line.Animals) != 5 {
		t.Fatalf("line should carry 5 animals, got quantity=%d animals=%d", line.Quantity, len(line.Animals))
	}
	if line.Processed != 0 {
		t.Fatalf("processed = %d, want 0", line.Processed)
	}
	for i, a := range line.Animals {
		if a.CurrentStage != 1 || a.Status != AnimalInProgress {
			t.Fatalf("animal %d should start in-progress at stage 1, got %+v", i, a)
		}
		if a.BatchID != line.BatchID {
			t.Fatalf("animal %d batch = %q, want %q", i, a.BatchID, line.BatchID)
		}
	}
	for _, e := range env.svc.ListHoldingPen() {
		if e.Status != IntakeProcessing {
			t.Fatalf("claimed holding entry should be processing, got %s", e.Status)
		}
	}
}

func TestAssignBatchRequiresIdleLine(t *testing.T) {
	env := newTestEnv(t)
	line := startBatch(t, env, 2)
	ctx := context.Background()

	env.addCattle(t, "CTL-20250601-0002", 3)
	moved, _, err := env.svc.SubmitBatch(ctx)
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}
	if _, _, err := env.svc.AssignBatch(ctx, moved[0].ProcessingBatchID, line.ID); err == nil {
		t.Fatalf("expected error assigning to an active line")
	}
}

func TestAssignBatchUnknownTargets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lines, _, err := env.svc.EnsureDefaultLines(ctx)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	var notFound ErrNotFound
	if _, _, err := env.svc.AssignBatch(ctx, "BATCH-absent", lines[0].ID); !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound for unknown batch, got %v", err)
	}
	if _, _, err := env.svc.AssignBatch(ctx, "BATCH-absent", "no-such-line"); !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound for unknown line, got %v", err)
	}
}

func TestAdvanceStageResetsTimer(t *testing.T) {
	env := newTestEnv(t)
	line := startBatch(t, env, 1)
	ctx := context.Background()
	animalID := line.Animals[0].ID

	if _, err := env.svc.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	got, _ := env.svc.GetLine(line.ID)
	if got.Animals[0].TimeInStage != 1 {
		t.Fatalf("time in stage = %d, want 1", got.Animals[0].TimeInStage)
	}

	advanced, _, err := env.svc.AdvanceStage(ctx, line.ID, animalID)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if advanced.Animals[0].CurrentStage != 2 {
		t.Fatalf("stage = %d, want 2", advanced.Animals[0].CurrentStage)
	}
	if advanced.Animals[0].TimeInStage != 0 {
		t.Fatalf("timer should reset on advance, got %d", advanced.Animals[0].TimeInStage)
	}
}

func TestAdvancePastFinalStageEmitsFinishedGood(t *testing.T) {
	env := newTestEnv(t)
	line := startBatch(t, env, 1)
	ctx := context.Background()
	animalID := line.Animals[0].ID

	for stage := 1; stage <= 4; stage++ {
		if _, _, err := env.svc.AdvanceStage(ctx, line.ID, animalID); err != nil {
			t.Fatalf("advance from stage %d: %v", stage, err)
		}
	}
	final, _, err := env.svc.AdvanceStage(ctx, line.ID, animalID)
	if err != nil {
		t.Fatalf("final advance: %v", err)
	}
	if final.Animals[0].Status != AnimalComplete {
		t.Fatalf("animal should complete, got %s", final.Animals[0].Status)
	}
	if final.Processed != 1 {
		t.Fatalf("processed = %d, want 1", final.Processed)
	}

	items := env.svc.ListInventory()
	if len(items) != 1 {
		t.Fatalf("inventory = %d items, want 1", len(items))
	}
	item := items[0]
	if item.Name != "Cattle Cuts - Standard" {
		t.Fatalf("item name = %q", item.Name)
	}
	if item.Quantity != 100 || item.CostPerUnit != 8.50 || item.SellingPrice != 15.00 {
		t.Fatalf("unexpected defaults: %+v", item)
	}
	if item.Location != "Cold Storage A1" || item.Category != "Fresh Meat" {
		t.Fatalf("unexpected placement: %+v", item)
	}
	if item.AnimalID != animalID || item.BatchNumber != line.BatchID {
		t.Fatalf("traceability not carried: %+v", item)
	}

	if _, _, err := env.svc.AdvanceStage(ctx, line.ID, animalID); err == nil {
		t.Fatalf("completed animal must not advance again")
	}
	if got := len(env.svc.ListInventory()); got != 1 {
		t.Fatalf("finished good must be emitted exactly once, got %d items", got)
	}
}

func TestFinishedGoodUsesMeasurements(t *testing.T) {
	env := newTestEnv(t)
	line := startBatch(t, env, 1)
	ctx := context.Background()
	animalID := line.Animals[0].ID

	if _, _, err := env.svc.RecordMeasurements(ctx, line.ID, animalID, Measurements{
		LiveWeight:      500,
		CarcassWeight:   301,
		QualityGrade:    "Prime",
		StorageLocation: "Cold Storage B2",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	for stage := 1; stage <= 5; stage++ {
		if _, _, err := env.svc.AdvanceStage(ctx, line.ID, animalID); err != nil {
			t.Fatalf("advance from stage %d: %v", stage, err)
		}
	}
	items := env.svc.ListInventory()
	if len(items) != 1 {
		t.Fatalf("inventory = %d items, want 1", len(items))
	}
	item := items[0]
	if item.Name != "Cattle Cuts - Prime" {
		t.Fatalf("item name = %q", item.Name)
	}
	if item.Quantity != 210 {
		t.Fatalf("quantity = %d, want floor(301*0.7)=210", item.Quantity)
	}
	if item.Location != "Cold Storage B2" {
		t.Fatalf("location = %q", item.Location)
	}
}

func TestRecordMeasurementsDerivesDressing(t *testing.T) {
	env := newTestEnv(t)
	line := startBatch(t, env, 1)
	ctx := context.Background()

	updated, _, err := env.svc.RecordMeasurements(ctx, line.ID, line.Animals[0].ID, Measurements{
		LiveWeight:    500,
		CarcassWeight: 300,
		Notes:         "clean split",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	a := updated.Animals[0]
	if a.DressingPercentage != 60 {
		t.Fatalf("dressing = %v, want 60", a.DressingPercentage)
	}
	if a.Notes != "clean split" {
		t.Fatalf("notes = %q", a.Notes)
	}

	var invalid InvalidValueError
	_, _, err = env.svc.RecordMeasurements(ctx, line.ID, line.Animals[0].ID, Measurements{LiveWeight: -4})
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidValueError, got %v", err)
	}
}

func TestSideStatesAndResume(t *testing.T) {
	env := newTestEnv(t)
	line := startBatch(t, env, 2)
	ctx := context.Background()
	animalID := line.Animals[0].ID

	held, _, err := env.svc.SetAnimalStatus(ctx, line.ID, animalID, AnimalHold, "awaiting vet")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if held.Animals[0].Status != AnimalHold {
		t.Fatalf("status = %s, want hold", held.Animals[0].Status)
	}
	if len(held.Animals[0].Defects) != 1 || held.Animals[0].Defects[0] != "awaiting vet" {
		t.Fatalf("reason should be recorded as defect, got %v", held.Animals[0].Defects)
	}

	if _, _, err := env.svc.SetAnimalStatus(ctx, line.ID, animalID, AnimalComplete, ""); err == nil {
		t.Fatalf("complete is not a side state")
	}
	if _, _, err := env.svc.AdvanceStage(ctx, line.ID, animalID); err == nil {
		t.Fatalf("held animal must not advance")
	}

	resumed, _, err := env.svc.ResumeAnimal(ctx, line.ID, animalID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Animals[0].Status != AnimalInProgress {
		t.Fatalf("status = %s, want in-progress", resumed.Animals[0].Status)
	}
	if resumed.Animals[0].CurrentStage != 1 {
		t.Fatalf("resume must not change stage, got %d", resumed.Animals[0].CurrentStage)
	}
	if _, _, err := env.svc.ResumeAnimal(ctx, line.ID, animalID); err == nil {
		t.Fatalf("resume requires a side state")
	}
}

func TestAssignOperator(t *testing.T) {
	env := newTestEnv(t)
	line := startBatch(t, env, 1)
	updated, _, err := env.svc.AssignOperator(context.Background(), line.ID, line.Animals[0].ID, "J. Mbeki")
	if err != nil {
		t.Fatalf("assign operator: %v", err)
	}
	if updated.Animals[0].Operator != "J. Mbeki" {
		t.Fatalf("operator = %q", updated.Animals[0].Operator)
	}
}

func TestPauseAndResumeLine(t *testing.T) {
	env := newTestEnv(t)
	line := startBatch(t, env, 1)
	ctx := context.Background()

	paused, _, err := env.svc.PauseLine(ctx, line.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Status != LinePaused {
		t.Fatalf("status = %s, want paused", paused.Status)
	}
	if _, _, err := env.svc.PauseLine(ctx, line.ID); err == nil {
		t.Fatalf("pausing a paused line should fail")
	}

	resumed, _, err := env.svc.ResumeLine(ctx, line.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != LineActive {
		t.Fatalf("status = %s, want active", resumed.Status)
	}
}

func TestCompleteBatchGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lines, _, err := env.svc.EnsureDefaultLines(ctx)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, _, err := env.svc.CompleteBatch(ctx, lines[0].ID); !errors.Is(err, ErrNoActiveBatch) {
		t.Fatalf("expected ErrNoActiveBatch, got %v", err)
	}

	line := startBatch(t, env, 3)
	var incomplete IncompleteBatchError
	_, _, err = env.svc.CompleteBatch(ctx, line.ID)
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteBatchError, got %v", err)
	}
	if incomplete.Remaining != 3 {
		t.Fatalf("remaining = %d, want 3", incomplete.Remaining)
	}
}

func TestCompleteBatchRetiresEntriesAndIdlesLine(t *testing.T) {
	env := newTestEnv(t)
	line := startBatch(t, env, 2)
	ctx := context.Background()

	for _, a := range line.Animals {
		for stage := 1; stage <= 5; stage++ {
			if _, _, err := env.svc.AdvanceStage(ctx, line.ID, a.ID); err != nil {
				t.Fatalf("advance %s from stage %d: %v", a.ID, stage, err)
			}
		}
	}
	done, _, err := env.svc.CompleteBatch(ctx, line.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != LineIdle || done.BatchID != "" || len(done.Animals) != 0 {
		t.Fatalf("line should reset to idle, got %+v", done)
	}
	if got := len(env.svc.ListHoldingPen()); got != 0 {
		t.Fatalf("claimed holding entries should retire, got %d", got)
	}
}

func TestCompleteBatchClaimsNextAssignedBatch(t *testing.T) {
	env := newTestEnv(t)
	line := startBatch(t, env, 1)
	ctx := context.Background()

	// Queue a second cleared batch routed to the same line name.
	env.addCattle(t, "CTL-20250601-0002", 4)
	moved, _, err := env.svc.SubmitBatch(ctx)
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}
	nextBatch := moved[0].ProcessingBatchID

	for stage := 1; stage <= 5; stage++ {
		if _, _, err := env.svc.AdvanceStage(ctx, line.ID, line.Animals[0].ID); err != nil {
			t.Fatalf("advance from stage %d: %v", stage, err)
		}
	}
	claimed, _, err := env.svc.CompleteBatch(ctx, line.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if claimed.Status != LineActive || claimed.BatchID != nextBatch {
		t.Fatalf("line should claim the queued batch %s, got %+v", nextBatch, claimed)
	}
	if len(claimed.Animals) != 4 {
		t.Fatalf("claimed batch should carry 4 animals, got %d", len(claimed.Animals))
	}
}

// Exercises the full flow for a 24-head cattle batch from registration to
// ledger and back to an idle line.
func TestTwentyFourCattleEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	line := startBatch(t, env, 24)

	if len(line.Animals) != 24 {
		t.Fatalf("expected 24 workflow records, got %d", len(line.Animals))
	}
	for _, a := range line.Animals {
		for stage := 1; stage <= 5; stage++ {
			if _, _, err := env.svc.AdvanceStage(ctx, line.ID, a.ID); err != nil {
				t.Fatalf("advance %s from stage %d: %v", a.ID, stage, err)
			}
		}
		env.advance(time.Minute)
	}
	if got := len(env.svc.ListInventory()); got != 24 {
		t.Fatalf("inventory = %d items, want 24", got)
	}
	done, _, err := env.svc.CompleteBatch(ctx, line.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != LineIdle {
		t.Fatalf("line should return to idle, got %s", done.Status)
	}
	wantTotal := 24.0 * 100 * 8.50
	if got := env.svc.TotalInventoryValue(); got != wantTotal {
		t.Fatalf("total inventory value = %v, want %v", got, wantTotal)
	}
}
