package engine

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"kinesis/internal/config"
	"kinesis/internal/envctx"
	"kinesis/internal/intent"
	"kinesis/internal/model"
	"kinesis/internal/morphology"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func armDocument() morphology.Document {
	return morphology.Document{
		Name: "arm",
		Joints: []morphology.JointSpec{
			{
				ID:        "shoulder",
				Kind:      morphology.KindRevolute,
				Axis:      [3]float64{0, 0, 1},
				Mass:      1,
				Inertia:   0.1,
				Limits:    []morphology.Limit{{Min: -1.5, Max: 1.5, MaxVelocity: 20, MaxAcceleration: 2400}},
				Actuation: morphology.Actuation{MaxTorque: 5000},
			},
			{
				ID:        "elbow",
				Parent:    "shoulder",
				Kind:      morphology.KindRevolute,
				Offset:    [3]float64{0, -0.4, 0},
				Axis:      [3]float64{0, 0, 1},
				Mass:      1,
				Inertia:   0.1,
				Limits:    []morphology.Limit{{Min: -2.5, Max: 2.5, MaxVelocity: 20, MaxAcceleration: 2400}},
				Actuation: morphology.Actuation{MaxTorque: 5000},
			},
		},
	}
}

type captureRecorder struct {
	mu     sync.Mutex
	frames map[string][]model.Snapshot
	diags  map[string][]model.TickDiagnostics
}

func newCaptureRecorder() *captureRecorder {
	return &captureRecorder{
		frames: make(map[string][]model.Snapshot),
		diags:  make(map[string][]model.TickDiagnostics),
	}
}

func (r *captureRecorder) RecordFrame(entityID string, snap model.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[entityID] = append(r.frames[entityID], snap)
}

func (r *captureRecorder) RecordDiagnostics(entityID string, diag model.TickDiagnostics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags[entityID] = append(r.diags[entityID], diag)
}

func TestSpawnRejectsInvalidMorphology(t *testing.T) {
	g := New(config.Default(), nil)
	doc := armDocument()
	doc.Joints[0].Mass = 0
	if _, err := g.Spawn("bad", doc); err == nil {
		t.Fatal("expected an invalid morphology error")
	}
}

func TestSpawnRejectsDuplicateID(t *testing.T) {
	g := New(config.Default(), nil)
	if _, err := g.Spawn("a", armDocument()); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, err := g.Spawn("a", armDocument()); err == nil {
		t.Fatal("expected a duplicate id error")
	}
}

func TestStepEmitsOneFramePerTick(t *testing.T) {
	g := New(config.Default(), nil)
	e, err := g.Spawn("arm", armDocument())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := g.StepAll(ctx); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if e.Tick() != 10 {
		t.Fatalf("entity tick = %d, want 10", e.Tick())
	}
	win := e.Trajectory().Window(0)
	if len(win) != 10 {
		t.Fatalf("trajectory holds %d frames, want 10", len(win))
	}
	for i, f := range win {
		if f.Tick != uint64(i) {
			t.Fatalf("frame %d has tick %d; the stream skipped a tick", i, f.Tick)
		}
	}
}

func TestIntentDrivesJointTowardTarget(t *testing.T) {
	g := New(config.Default(), nil)
	e, err := g.Spawn("arm", armDocument())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	_, err = e.SubmitIntent(intent.Intent{
		Kind:     intent.GoalPose,
		JointID:  "shoulder",
		Target:   []float64{0.9},
		Weight:   1,
		Priority: 1,
		Validity: intent.ValidityPersistent,
	})
	if err != nil {
		t.Fatalf("submit intent: %v", err)
	}

	if err := g.Run(context.Background(), 120); err != nil {
		t.Fatalf("run: %v", err)
	}

	shoulder, _ := e.Skeleton().Joint("shoulder")
	got := shoulder.Position[0]
	if math.Abs(got-0.9) > 0.05 {
		t.Fatalf("shoulder at %v after 120 ticks, want near 0.9", got)
	}
}

func TestMissedEnvironmentFrameFlagsStaleContext(t *testing.T) {
	g := New(config.Default(), nil)
	e, err := g.Spawn("arm", armDocument())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	e.OfferEnvironment(envctx.Frame{
		Contacts: []envctx.Contact{{JointID: "elbow", Tag: "ground"}},
	})
	ctx := context.Background()
	if err := g.StepAll(ctx); err != nil {
		t.Fatalf("step 0: %v", err)
	}
	// No new frame offered: the tracker reuses the old facts, flagged.
	if err := g.StepAll(ctx); err != nil {
		t.Fatalf("step 1: %v", err)
	}

	win := e.Trajectory().Window(0)
	if win[0].Flags.StaleContext {
		t.Fatal("first tick consumed a fresh frame, should not be stale")
	}
	if !win[1].Flags.StaleContext {
		t.Fatal("second tick ran on reused facts, should be stale")
	}
}

func TestRecorderReceivesFramesAndDiagnostics(t *testing.T) {
	g := New(config.Default(), nil)
	rec := newCaptureRecorder()
	g.SetRecorder(rec)

	if _, err := g.Spawn("a", armDocument()); err != nil {
		t.Fatalf("spawn a: %v", err)
	}
	if _, err := g.Spawn("b", armDocument()); err != nil {
		t.Fatalf("spawn b: %v", err)
	}

	if err := g.Run(context.Background(), 5); err != nil {
		t.Fatalf("run: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, id := range []string{"a", "b"} {
		if len(rec.frames[id]) != 5 {
			t.Fatalf("entity %s recorded %d frames, want 5", id, len(rec.frames[id]))
		}
		if len(rec.diags[id]) != 5 {
			t.Fatalf("entity %s recorded %d diagnostics, want 5", id, len(rec.diags[id]))
		}
		if rec.diags[id][4].Tick != 4 {
			t.Fatalf("entity %s diagnostics out of order: %+v", id, rec.diags[id])
		}
	}
}

func TestRemoveEntity(t *testing.T) {
	g := New(config.Default(), nil)
	if _, err := g.Spawn("a", armDocument()); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if !g.Remove("a") {
		t.Fatal("remove should succeed")
	}
	if g.Remove("a") {
		t.Fatal("second remove should report absence")
	}
	if len(g.Entities()) != 0 {
		t.Fatal("registry should be empty")
	}
}

// gateRecorder parks the tick inside RecordFrame so a test can observe
// the engine with a step provably in flight.
type gateRecorder struct {
	enter   chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *gateRecorder) RecordFrame(string, model.Snapshot) {
	r.once.Do(func() { close(r.enter) })
	<-r.release
}

func (r *gateRecorder) RecordDiagnostics(string, model.TickDiagnostics) {}

func TestRemoveBlocksUntilTickCompletes(t *testing.T) {
	g := New(config.Default(), nil)
	rec := &gateRecorder{enter: make(chan struct{}), release: make(chan struct{})}
	g.SetRecorder(rec)
	e, err := g.Spawn("a", armDocument())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	stepDone := make(chan error, 1)
	go func() { stepDone <- g.StepAll(context.Background()) }()
	<-rec.enter

	removeDone := make(chan bool, 1)
	go func() { removeDone <- g.Remove("a") }()

	select {
	case <-removeDone:
		t.Fatal("remove returned while a tick was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(rec.release)
	if err := <-stepDone; err != nil {
		t.Fatalf("step: %v", err)
	}
	if !<-removeDone {
		t.Fatal("remove should succeed once the tick completes")
	}
	if e.Tick() != 1 {
		t.Fatalf("entity finished %d ticks, want 1", e.Tick())
	}
	if len(g.Entities()) != 0 {
		t.Fatal("registry should be empty")
	}
}

func TestTickReadableWhileStepping(t *testing.T) {
	g := New(config.Default(), nil)
	e, err := g.Spawn("a", armDocument())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var last uint64
		for {
			select {
			case <-done:
				return
			default:
			}
			now := e.Tick()
			if now < last {
				t.Errorf("tick went backwards: %d after %d", now, last)
				return
			}
			last = now
		}
	}()

	if err := g.Run(context.Background(), 50); err != nil {
		t.Fatalf("run: %v", err)
	}
	close(done)
	wg.Wait()

	if e.Tick() != 50 {
		t.Fatalf("entity tick = %d, want 50", e.Tick())
	}
}

func TestCancelledContextStopsRun(t *testing.T) {
	g := New(config.Default(), nil)
	if _, err := g.Spawn("a", armDocument()); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Run(ctx, 100); err == nil {
		t.Fatal("expected a context error")
	}
}
