// Package engine composes the per-tick pipeline: environment update,
// intent collection, constraint assembly, hybrid solve, plasticity
// feedback and trajectory emission. One Engine drives any number of
// entities on a shared fixed-rate clock; entities never share mutable
// state, so their ticks run in parallel.
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kinesis/internal/config"
	"kinesis/internal/constraint"
	"kinesis/internal/envctx"
	"kinesis/internal/intent"
	"kinesis/internal/model"
	"kinesis/internal/morphology"
	"kinesis/internal/plasticity"
	"kinesis/internal/solver"
	"kinesis/internal/trajectory"
)

// Recorder receives frames and diagnostics as they are produced.
// Implementations must be safe for concurrent calls across entities.
type Recorder interface {
	RecordFrame(entityID string, snap model.Snapshot)
	RecordDiagnostics(entityID string, diag model.TickDiagnostics)
}

// Entity is one simulated body and its full solving pipeline. All
// mutating methods are driven by the owning Engine's tick; intent
// submission and environment offers may come from any goroutine.
type Entity struct {
	ID string

	skel      *morphology.Skeleton
	intents   *intent.Stream
	tracker   *envctx.Tracker
	assembler *constraint.Assembler
	solve     *solver.Solver
	plast     *plasticity.Controller
	carry     *solver.Carry
	stream    *trajectory.Stream

	dt        float64
	tick      atomic.Uint64
	prevFrame envctx.Frame
	logger    *zap.Logger
}

// SubmitIntent registers a goal for this entity.
func (e *Entity) SubmitIntent(in intent.Intent) (intent.Handle, error) {
	return e.intents.Submit(in)
}

// CancelIntent withdraws a previously submitted goal.
func (e *Entity) CancelIntent(h intent.Handle) bool {
	return e.intents.Cancel(h)
}

// OfferEnvironment hands the entity a fresh fact frame. The frame is
// consumed at the next tick boundary, never mid-solve.
func (e *Entity) OfferEnvironment(f envctx.Frame) {
	e.tracker.Offer(f)
}

// Trajectory exposes the entity's output stream.
func (e *Entity) Trajectory() *trajectory.Stream {
	return e.stream
}

// Tick is the next tick the entity will simulate. Safe to call from
// any goroutine.
func (e *Entity) Tick() uint64 {
	return e.tick.Load()
}

// Skeleton returns the live skeleton. The solve mutates it while a
// tick is in flight, so read it only between StepAll calls.
func (e *Entity) Skeleton() *morphology.Skeleton {
	return e.skel
}

// step runs one full tick for the entity and emits exactly one frame.
func (e *Entity) step(ctx context.Context, rec Recorder) {
	tick := e.tick.Load()
	facts := e.tracker.Update(tick)
	change := envctx.ChangeMagnitude(e.prevFrame, facts.Frame)
	perturbed := e.plast.Observe(tick, change)
	e.prevFrame = facts.Frame

	actives := e.intents.Active(tick)
	sys := e.assembler.Assemble(e.skel, actives, facts, tick)

	_, report := e.solve.Solve(ctx, e.skel, sys, e.plast.Weights(), e.carry)

	timeAt := float64(tick) * e.dt
	flags := model.FrameFlags{
		StaleContext: facts.Stale,
		Relaxed:      report.Relaxations > 0,
		Degraded:     report.BudgetExceeded || report.Relaxations > 0,
	}

	snap := model.Snapshot{
		Tick:   tick,
		Time:   timeAt,
		States: e.skel.States(),
		Flags:  flags,
	}
	emitted := snap
	if !statesFinite(snap.States) {
		// The solve produced garbage; hold the last valid pose instead
		// of publishing it.
		emitted = e.stream.Repeat(timeAt, flags)
		e.logger.Error("non-finite solve output, frame repeated",
			zap.String("entity", e.ID),
			zap.Uint64("tick", tick))
	} else if err := e.stream.Commit(snap); err != nil {
		emitted = e.stream.Repeat(timeAt, flags)
		e.logger.Error("frame commit failed, frame repeated",
			zap.String("entity", e.ID),
			zap.Uint64("tick", tick),
			zap.Error(err))
	}

	diag := model.TickDiagnostics{
		Tick:           tick,
		Iterations:     report.Iterations,
		Relaxations:    report.Relaxations,
		Residual:       report.Residual,
		SolveMicros:    report.Duration.Microseconds(),
		BudgetExceeded: report.BudgetExceeded,
		StaleContext:   facts.Stale,
		Perturbed:      perturbed,
	}

	if rec != nil {
		rec.RecordFrame(e.ID, emitted)
		rec.RecordDiagnostics(e.ID, diag)
	}
	e.tick.Add(1)
}

func statesFinite(states []model.JointState) bool {
	for _, js := range states {
		for _, v := range js.Position {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
		for _, v := range js.Velocity {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Engine owns the entity registry and the shared tick configuration.
type Engine struct {
	cfg    config.Config
	logger *zap.Logger

	mu       sync.RWMutex
	entities map[string]*Entity
	order    []string
	recorder Recorder

	// stepMu is held for the whole of StepAll so that Remove lands on
	// a tick boundary, never mid-solve.
	stepMu sync.Mutex
}

func New(cfg config.Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		logger:   logger,
		entities: make(map[string]*Entity),
	}
}

// SetRecorder installs the frame/diagnostics sink. Pass nil to detach.
func (g *Engine) SetRecorder(rec Recorder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recorder = rec
}

// Spawn validates and loads a morphology document and registers a new
// entity for it. An empty id gets a generated one.
func (g *Engine) Spawn(id string, doc morphology.Document) (*Entity, error) {
	skel, err := morphology.Load(doc)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.entities[id]; exists {
		return nil, fmt.Errorf("entity %q already exists", id)
	}

	logger := g.logger.With(zap.String("entity", id))
	e := &Entity{
		ID:        id,
		skel:      skel,
		intents:   intent.NewStream(logger),
		tracker:   envctx.NewTracker(logger),
		assembler: constraint.NewAssembler(constraint.DefaultParams()),
		solve:     solver.New(g.cfg.SolverRuntime(), logger),
		plast:     plasticity.New(g.cfg.PlasticityRuntime(), logger),
		carry:     solver.NewCarry(),
		stream:    trajectory.NewStream(g.cfg.Trajectory.WindowFrames, logger),
		dt:        g.cfg.DT(),
		logger:    logger,
	}
	g.entities[id] = e
	g.order = append(g.order, id)
	g.logger.Info("entity spawned",
		zap.String("entity", id),
		zap.String("morphology", doc.Name),
		zap.Int("joints", len(doc.Joints)))
	return e, nil
}

// Entity looks up a registered entity.
func (g *Engine) Entity(id string) (*Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.entities[id]
	return e, ok
}

// Remove tears an entity down. If a tick is in flight the call blocks
// until it completes, so the entity finishes its current frame and is
// gone before the next one.
func (g *Engine) Remove(id string) bool {
	g.stepMu.Lock()
	defer g.stepMu.Unlock()
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entities[id]; !ok {
		return false
	}
	delete(g.entities, id)
	for i, other := range g.order {
		if other == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true
}

// Entities returns the registered entities in spawn order.
func (g *Engine) Entities() []*Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Entity, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.entities[id])
	}
	return out
}

// StepAll advances every entity by one tick. Entities solve in
// parallel; the call returns when all of them have emitted a frame.
func (g *Engine) StepAll(ctx context.Context) error {
	g.stepMu.Lock()
	defer g.stepMu.Unlock()

	entities := g.Entities()
	g.mu.RLock()
	rec := g.recorder
	g.mu.RUnlock()

	grp, ctx := errgroup.WithContext(ctx)
	for _, e := range entities {
		e := e
		grp.Go(func() error {
			e.step(ctx, rec)
			return nil
		})
	}
	return grp.Wait()
}

// Run steps all entities for n ticks or until the context ends.
func (g *Engine) Run(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.StepAll(ctx); err != nil {
			return err
		}
	}
	return nil
}
