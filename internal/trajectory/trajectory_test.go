package trajectory

import (
	"testing"

	"kinesis/internal/model"
)

func frame(tick uint64, pos float64) model.Snapshot {
	return model.Snapshot{
		Tick: tick,
		Time: float64(tick) / 60,
		States: []model.JointState{
			{JointID: "hip", Position: []float64{pos}, Velocity: []float64{0}},
		},
	}
}

func TestCommitEnforcesContiguity(t *testing.T) {
	s := NewStream(10, nil)
	if err := s.Commit(frame(0, 0.1)); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := s.Commit(frame(2, 0.2)); err == nil {
		t.Fatal("expected an out-of-order error for a skipped tick")
	}
	if err := s.Commit(frame(1, 0.2)); err != nil {
		t.Fatalf("contiguous commit: %v", err)
	}
	if got := s.NextTick(); got != 2 {
		t.Fatalf("next tick = %d, want 2", got)
	}
}

func TestRepeatReissuesLastValidFrame(t *testing.T) {
	s := NewStream(10, nil)
	if err := s.Commit(frame(0, 0.42)); err != nil {
		t.Fatalf("commit: %v", err)
	}

	rep := s.Repeat(1.0/60, model.FrameFlags{StaleContext: true})
	if rep.Tick != 1 {
		t.Fatalf("repeated frame tick = %d, want 1", rep.Tick)
	}
	if !rep.Flags.Degraded || !rep.Flags.Repeated || !rep.Flags.StaleContext {
		t.Fatalf("repeated frame flags wrong: %+v", rep.Flags)
	}
	js, ok := rep.State("hip")
	if !ok || js.Position[0] != 0.42 {
		t.Fatalf("repeated frame lost joint state: %+v", rep.States)
	}

	// A later valid frame resumes from the advanced tick.
	if err := s.Commit(frame(2, 0.5)); err != nil {
		t.Fatalf("commit after repeat: %v", err)
	}
	if s.Repeats() != 1 {
		t.Fatalf("repeats = %d, want 1", s.Repeats())
	}
}

func TestRepeatBeforeAnyValidFrame(t *testing.T) {
	s := NewStream(10, nil)
	rep := s.Repeat(0, model.FrameFlags{})
	if rep.Tick != 0 || !rep.Flags.Degraded {
		t.Fatalf("unexpected frame: %+v", rep)
	}
	if len(rep.States) != 0 {
		t.Fatalf("expected no states before the first valid frame, got %d", len(rep.States))
	}
}

func TestRepeatedFrameDoesNotBecomeTheBaseline(t *testing.T) {
	s := NewStream(10, nil)
	if err := s.Commit(frame(0, 0.42)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	s.Repeat(1.0/60, model.FrameFlags{})
	rep := s.Repeat(2.0/60, model.FrameFlags{})
	js, ok := rep.State("hip")
	if !ok || js.Position[0] != 0.42 {
		t.Fatal("chained repeats should still re-issue the last valid state")
	}
}

func TestWindowEvictsOldFrames(t *testing.T) {
	s := NewStream(4, nil)
	for tick := uint64(0); tick < 10; tick++ {
		if err := s.Commit(frame(tick, float64(tick))); err != nil {
			t.Fatalf("commit %d: %v", tick, err)
		}
	}
	win := s.Window(0)
	if len(win) != 4 {
		t.Fatalf("window length = %d, want 4", len(win))
	}
	if win[0].Tick != 6 || win[3].Tick != 9 {
		t.Fatalf("window range [%d, %d], want [6, 9]", win[0].Tick, win[3].Tick)
	}

	latest, ok := s.Latest()
	if !ok || latest.Tick != 9 {
		t.Fatalf("latest = %+v", latest)
	}
}

func TestResetRestartsSession(t *testing.T) {
	s := NewStream(10, nil)
	if err := s.Commit(frame(0, 0.1)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	s.Repeat(1.0/60, model.FrameFlags{})

	s.Reset()
	if s.NextTick() != 0 || s.Repeats() != 0 {
		t.Fatal("reset did not clear the session")
	}
	if _, ok := s.Latest(); ok {
		t.Fatal("reset stream should hold no frames")
	}
	if err := s.Commit(frame(0, 0.2)); err != nil {
		t.Fatalf("commit after reset: %v", err)
	}
}
