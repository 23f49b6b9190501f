package intent

import "testing"

func TestSubmitValidation(t *testing.T) {
	s := NewStream(nil)
	if _, err := s.Submit(Intent{Kind: GoalPose, Weight: 1}); err == nil {
		t.Fatal("expected error for pose intent without joint")
	}
	if _, err := s.Submit(Intent{Kind: GoalPose, JointID: "knee", Target: []float64{0.1}}); err == nil {
		t.Fatal("expected error for non-positive weight")
	}
	if _, err := s.Submit(Intent{Kind: "dance", JointID: "knee", Target: []float64{0.1}, Weight: 1}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := s.Submit(Intent{Kind: GoalPose, JointID: "knee", Target: []float64{0.1}, Weight: 1, Validity: ValidityWindow}); err == nil {
		t.Fatal("expected error for window intent without ttl")
	}
}

func TestActiveOrderingIsPriorityThenSubmission(t *testing.T) {
	s := NewStream(nil)
	low1, _ := s.Submit(Intent{Kind: GoalPose, JointID: "a", Target: []float64{0}, Weight: 1, Priority: 1})
	high, _ := s.Submit(Intent{Kind: GoalPose, JointID: "b", Target: []float64{0}, Weight: 1, Priority: 5})
	low2, _ := s.Submit(Intent{Kind: GoalPose, JointID: "c", Target: []float64{0}, Weight: 1, Priority: 1})

	active := s.Active(0)
	if len(active) != 3 {
		t.Fatalf("unexpected active count: %d", len(active))
	}
	if active[0].Handle != high {
		t.Fatalf("expected high priority first, got %s", active[0].Intent.JointID)
	}
	if active[1].Handle != low1 || active[2].Handle != low2 {
		t.Fatal("equal-priority intents not in submission order")
	}
}

func TestOneShotExpiresNextTick(t *testing.T) {
	s := NewStream(nil)
	if _, err := s.Submit(Intent{Kind: GoalPose, JointID: "a", Target: []float64{0}, Weight: 1, Validity: ValidityOneShot}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := len(s.Active(3)); got != 1 {
		t.Fatalf("one-shot should be active on first tick, got %d", got)
	}
	if got := len(s.Active(4)); got != 0 {
		t.Fatalf("one-shot should be gone on next tick, got %d", got)
	}
	if s.Len() != 0 {
		t.Fatal("expired intent still registered")
	}
}

func TestWindowExpiry(t *testing.T) {
	s := NewStream(nil)
	if _, err := s.Submit(Intent{Kind: GoalPose, JointID: "a", Target: []float64{0}, Weight: 1, Validity: ValidityWindow, TTLTicks: 3}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	for tick := uint64(10); tick < 13; tick++ {
		if got := len(s.Active(tick)); got != 1 {
			t.Fatalf("window intent inactive at tick %d", tick)
		}
	}
	if got := len(s.Active(13)); got != 0 {
		t.Fatalf("window intent should expire at tick 13, got %d", got)
	}
}

func TestCancel(t *testing.T) {
	s := NewStream(nil)
	h, _ := s.Submit(Intent{Kind: GoalPreference, Preference: PreferenceBalance, Weight: 2})
	if !s.Cancel(h) {
		t.Fatal("cancel reported inactive for live intent")
	}
	if s.Cancel(h) {
		t.Fatal("double cancel reported active")
	}
	if got := len(s.Active(0)); got != 0 {
		t.Fatalf("cancelled intent still active: %d", got)
	}
}

func TestConflictingIntentsPassThrough(t *testing.T) {
	s := NewStream(nil)
	s.Submit(Intent{Kind: GoalPose, JointID: "knee", Target: []float64{0.2}, Weight: 1})
	s.Submit(Intent{Kind: GoalPose, JointID: "knee", Target: []float64{-0.2}, Weight: 1})
	if got := len(s.Active(0)); got != 2 {
		t.Fatalf("conflicting intents must both pass through, got %d", got)
	}
}
