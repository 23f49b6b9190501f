// Package kinesis is the public face of the motion engine: scenario
// runs, recorded-run replay and morphology validation over a pluggable
// recording store.
package kinesis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kinesis/internal/config"
	"kinesis/internal/engine"
	"kinesis/internal/model"
	"kinesis/internal/morphology"
	"kinesis/internal/storage"
)

// Options configures a Client. Zero values fall back to defaults: the
// default engine config, the memory store and a nop logger.
type Options struct {
	Config    config.Config
	StoreKind string
	DBPath    string
	Logger    *zap.Logger
}

// Client ties the engine to a recording store.
type Client struct {
	cfg    config.Config
	store  storage.Store
	logger *zap.Logger
}

// RunResult summarizes one completed scenario run.
type RunResult struct {
	ID       string
	Scenario string
	Ticks    int
	Degraded int
}

// Recording is a fully loaded recorded run.
type Recording struct {
	Run         model.RunRecord
	Frames      []model.Snapshot
	Diagnostics []model.TickDiagnostics
}

// New builds a Client and initializes its store.
func New(ctx context.Context, opts Options) (*Client, error) {
	cfg := opts.Config
	if cfg.TickRate == 0 {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	kind := opts.StoreKind
	if kind == "" {
		kind = cfg.Storage.Kind
	}
	path := opts.DBPath
	if path == "" {
		path = cfg.Storage.Path
	}
	store, err := storage.NewStore(kind, path)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	return &Client{cfg: cfg, store: store, logger: logger}, nil
}

// Close releases the store if it holds resources.
func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// ValidateDocument checks a morphology document the same way Spawn
// would, without registering anything.
func ValidateDocument(doc morphology.Document) error {
	_, err := morphology.Load(doc)
	return err
}

// RunScenario executes a named built-in scenario and records it.
func (c *Client) RunScenario(ctx context.Context, name string) (RunResult, error) {
	sc, ok := builtinScenarios()[name]
	if !ok {
		return RunResult{}, fmt.Errorf("unknown scenario %q", name)
	}

	runID := uuid.NewString()
	rec := newStoreRecorder(ctx, c.store, runID, c.logger)

	eng := engine.New(c.cfg, c.logger)
	eng.SetRecorder(rec)
	e, err := eng.Spawn(sc.Name, sc.Morphology)
	if err != nil {
		return RunResult{}, err
	}
	if sc.Setup != nil {
		if err := sc.Setup(e); err != nil {
			return RunResult{}, fmt.Errorf("scenario setup: %w", err)
		}
	}

	payload, err := morphology.EncodeDocument(sc.Morphology)
	if err != nil {
		return RunResult{}, err
	}
	if err := c.store.SaveMorphology(ctx, model.MorphologyRecord{
		VersionedRecord: storage.Stamp(),
		Name:            sc.Morphology.Name,
		Payload:         payload,
	}); err != nil {
		return RunResult{}, err
	}

	for tick := 0; tick < sc.Ticks; tick++ {
		if sc.FrameAt != nil {
			e.OfferEnvironment(sc.FrameAt(uint64(tick)))
		}
		if err := eng.StepAll(ctx); err != nil {
			return RunResult{}, err
		}
	}

	if err := rec.flush(); err != nil {
		return RunResult{}, fmt.Errorf("flush diagnostics: %w", err)
	}
	frames, degraded := rec.counts()
	run := model.RunRecord{
		VersionedRecord: storage.Stamp(),
		ID:              runID,
		Scenario:        sc.Name,
		Morphology:      sc.Morphology.Name,
		Ticks:           frames,
		Degraded:        degraded,
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunResult{}, err
	}

	c.logger.Info("scenario recorded",
		zap.String("run", runID),
		zap.String("scenario", sc.Name),
		zap.Int("ticks", frames),
		zap.Int("degraded", degraded))
	return RunResult{ID: runID, Scenario: sc.Name, Ticks: frames, Degraded: degraded}, nil
}

// Replay loads a recorded run, its frames and its diagnostics.
func (c *Client) Replay(ctx context.Context, runID string) (Recording, error) {
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return Recording{}, err
	}
	if !ok {
		return Recording{}, fmt.Errorf("run %q not found", runID)
	}
	records, ok, err := c.store.GetSnapshots(ctx, runID)
	if err != nil {
		return Recording{}, err
	}
	if !ok {
		return Recording{}, fmt.Errorf("run %q has no recorded frames", runID)
	}
	frames := make([]model.Snapshot, len(records))
	for i, r := range records {
		frames[i] = r.Snapshot
	}
	diags, _, err := c.store.GetDiagnostics(ctx, runID)
	if err != nil {
		return Recording{}, err
	}
	return Recording{Run: run, Frames: frames, Diagnostics: diags}, nil
}

// ListRuns returns every recorded run.
func (c *Client) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	return c.store.ListRuns(ctx)
}

// Morphology loads a stored morphology document by name.
func (c *Client) Morphology(ctx context.Context, name string) (morphology.Document, error) {
	rec, ok, err := c.store.GetMorphology(ctx, name)
	if err != nil {
		return morphology.Document{}, err
	}
	if !ok {
		return morphology.Document{}, fmt.Errorf("morphology %q not found", name)
	}
	return morphology.ParseDocument(rec.Payload)
}
