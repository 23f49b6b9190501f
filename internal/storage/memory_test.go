package storage

import (
	"context"
	"reflect"
	"testing"

	"kinesis/internal/model"
)

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.RunRecord{
		VersionedRecord: Stamp(),
		ID:              "run-1",
		Scenario:        "biped-balance",
		Morphology:      "biped",
		Ticks:           600,
		Degraded:        2,
	}
	if err := store.SaveRun(ctx, input); err != nil {
		t.Fatalf("save run: %v", err)
	}

	output, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected run to exist")
	}
	if !reflect.DeepEqual(input, output) {
		t.Fatalf("round trip mismatch: %+v != %+v", input, output)
	}

	if _, ok, _ := store.GetRun(ctx, "missing"); ok {
		t.Fatal("unexpected hit for missing run")
	}
}

func TestMemoryStoreListRunsSorted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, id := range []string{"run-c", "run-a", "run-b"} {
		if err := store.SaveRun(ctx, model.RunRecord{VersionedRecord: Stamp(), ID: id}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "run-a" || runs[2].ID != "run-c" {
		t.Fatalf("unexpected order: %+v", runs)
	}
}

func TestMemoryStoreSnapshotsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for tick := uint64(0); tick < 3; tick++ {
		record := model.SnapshotRecord{
			VersionedRecord: Stamp(),
			RunID:           "run-1",
			Snapshot: model.Snapshot{
				Tick:   tick,
				States: []model.JointState{{JointID: "hip", Position: []float64{0.1 * float64(tick)}}},
			},
		}
		if err := store.AppendSnapshot(ctx, "run-1", record); err != nil {
			t.Fatalf("append tick %d: %v", tick, err)
		}
	}

	snaps, ok, err := store.GetSnapshots(ctx, "run-1")
	if err != nil {
		t.Fatalf("get snapshots: %v", err)
	}
	if !ok || len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d (ok=%v)", len(snaps), ok)
	}
	if snaps[2].Snapshot.Tick != 2 {
		t.Fatalf("snapshots out of order: %+v", snaps)
	}

	if _, ok, _ := store.GetSnapshots(ctx, "missing"); ok {
		t.Fatal("unexpected hit for missing run")
	}
}

func TestMemoryStoreDiagnosticsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.TickDiagnostics{
		{Tick: 0, Iterations: 8, Residual: 0.01},
		{Tick: 1, Iterations: 3, Relaxations: 1, BudgetExceeded: true},
	}
	if err := store.SaveDiagnostics(ctx, "run-1", input); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}

	output, ok, err := store.GetDiagnostics(ctx, "run-1")
	if err != nil {
		t.Fatalf("get diagnostics: %v", err)
	}
	if !ok || !reflect.DeepEqual(input, output) {
		t.Fatalf("round trip mismatch: %+v != %+v", input, output)
	}
}

func TestMemoryStoreMorphologyRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.MorphologyRecord{
		VersionedRecord: Stamp(),
		Name:            "biped",
		Payload:         []byte(`{"name":"biped"}`),
	}
	if err := store.SaveMorphology(ctx, input); err != nil {
		t.Fatalf("save morphology: %v", err)
	}

	output, ok, err := store.GetMorphology(ctx, "biped")
	if err != nil {
		t.Fatalf("get morphology: %v", err)
	}
	if !ok || !reflect.DeepEqual(input, output) {
		t.Fatalf("round trip mismatch: %+v != %+v", input, output)
	}
}
