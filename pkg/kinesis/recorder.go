package kinesis

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"kinesis/internal/model"
	"kinesis/internal/storage"
)

// storeRecorder streams frames into the store as they are produced and
// buffers diagnostics for a single flush at run end. Frame persistence
// failures are logged, not propagated; a recording gap must never stall
// the tick loop.
type storeRecorder struct {
	ctx    context.Context
	store  storage.Store
	runID  string
	logger *zap.Logger

	mu       sync.Mutex
	diags    []model.TickDiagnostics
	frames   int
	degraded int
}

func newStoreRecorder(ctx context.Context, store storage.Store, runID string, logger *zap.Logger) *storeRecorder {
	return &storeRecorder{ctx: ctx, store: store, runID: runID, logger: logger}
}

func (r *storeRecorder) RecordFrame(entityID string, snap model.Snapshot) {
	rec := model.SnapshotRecord{
		VersionedRecord: storage.Stamp(),
		RunID:           r.runID,
		Snapshot:        snap,
	}
	if err := r.store.AppendSnapshot(r.ctx, r.runID, rec); err != nil {
		r.logger.Warn("snapshot not persisted",
			zap.String("run", r.runID),
			zap.String("entity", entityID),
			zap.Uint64("tick", snap.Tick),
			zap.Error(err))
	}
	r.mu.Lock()
	r.frames++
	if snap.Flags.Degraded {
		r.degraded++
	}
	r.mu.Unlock()
}

func (r *storeRecorder) RecordDiagnostics(entityID string, diag model.TickDiagnostics) {
	r.mu.Lock()
	r.diags = append(r.diags, diag)
	r.mu.Unlock()
}

func (r *storeRecorder) flush() error {
	r.mu.Lock()
	diags := append([]model.TickDiagnostics(nil), r.diags...)
	r.mu.Unlock()
	return r.store.SaveDiagnostics(r.ctx, r.runID, diags)
}

func (r *storeRecorder) counts() (frames, degraded int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames, r.degraded
}
