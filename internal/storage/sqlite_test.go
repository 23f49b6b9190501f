//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"kinesis/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "kinesis.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	input := model.RunRecord{
		VersionedRecord: Stamp(),
		ID:              "run-1",
		Scenario:        "biped-balance",
		Ticks:           600,
	}
	if err := store.SaveRun(ctx, input); err != nil {
		t.Fatalf("save run: %v", err)
	}

	output, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok || !reflect.DeepEqual(input, output) {
		t.Fatalf("round trip mismatch: %+v != %+v", input, output)
	}

	// Saving again overwrites rather than duplicating.
	input.Ticks = 601
	if err := store.SaveRun(ctx, input); err != nil {
		t.Fatalf("resave run: %v", err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Ticks != 601 {
		t.Fatalf("unexpected run list: %+v", runs)
	}
}

func TestSQLiteSnapshotOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	for _, tick := range []uint64{2, 0, 1} {
		record := model.SnapshotRecord{
			VersionedRecord: Stamp(),
			RunID:           "run-1",
			Snapshot:        model.Snapshot{Tick: tick},
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
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	for i, rec := range snaps {
		if rec.Snapshot.Tick != uint64(i) {
			t.Fatalf("snapshot %d has tick %d", i, rec.Snapshot.Tick)
		}
	}
}

func TestSQLiteDiagnosticsAndMorphology(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	diagnostics := []model.TickDiagnostics{{Tick: 0, Iterations: 8}, {Tick: 1, Relaxations: 1}}
	if err := store.SaveDiagnostics(ctx, "run-1", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	gotDiag, ok, err := store.GetDiagnostics(ctx, "run-1")
	if err != nil {
		t.Fatalf("get diagnostics: %v", err)
	}
	if !ok || !reflect.DeepEqual(diagnostics, gotDiag) {
		t.Fatalf("diagnostics mismatch: %+v", gotDiag)
	}

	morph := model.MorphologyRecord{VersionedRecord: Stamp(), Name: "biped", Payload: []byte("{}")}
	if err := store.SaveMorphology(ctx, morph); err != nil {
		t.Fatalf("save morphology: %v", err)
	}
	gotMorph, ok, err := store.GetMorphology(ctx, "biped")
	if err != nil {
		t.Fatalf("get morphology: %v", err)
	}
	if !ok || !reflect.DeepEqual(morph, gotMorph) {
		t.Fatalf("morphology mismatch: %+v", gotMorph)
	}
}

func TestSQLiteUninitializedStore(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "kinesis.db"))
	if _, _, err := store.GetRun(context.Background(), "run-1"); err == nil {
		t.Fatal("expected an error before Init")
	}
}
