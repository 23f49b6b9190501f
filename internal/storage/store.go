package storage

import (
	"context"

	"kinesis/internal/model"
)

// Store persists recorded runs: their identity, per-tick snapshots,
// solver diagnostics and the morphology documents they ran against.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	AppendSnapshot(ctx context.Context, runID string, snap model.SnapshotRecord) error
	GetSnapshots(ctx context.Context, runID string) ([]model.SnapshotRecord, bool, error)
	SaveDiagnostics(ctx context.Context, runID string, diagnostics []model.TickDiagnostics) error
	GetDiagnostics(ctx context.Context, runID string) ([]model.TickDiagnostics, bool, error)
	SaveMorphology(ctx context.Context, record model.MorphologyRecord) error
	GetMorphology(ctx context.Context, name string) (model.MorphologyRecord, bool, error)
}
