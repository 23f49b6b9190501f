package engine

import (
	"math"
	"testing"
)

func TestAccumulatorBanksFractionalTicks(t *testing.T) {
	acc := NewAccumulator(1.0 / 60.0)

	if n := acc.Advance(0.010); n != 0 {
		t.Fatalf("10ms yielded %d ticks before a full step accrued", n)
	}
	if n := acc.Advance(0.010); n != 1 {
		t.Fatalf("20ms total yielded %d ticks, want 1", n)
	}
	// 20ms minus one 16.67ms tick leaves ~3.33ms banked.
	if a := acc.Alpha(); a < 0.19 || a > 0.21 {
		t.Fatalf("alpha = %g, want ~0.2", a)
	}
}

func TestAccumulatorExactMultiples(t *testing.T) {
	dt := 0.01
	acc := NewAccumulator(dt)
	if n := acc.Advance(0.03); n != 3 {
		t.Fatalf("30ms at 10ms ticks yielded %d", n)
	}
	if a := acc.Alpha(); math.Abs(a) > 1e-9 {
		t.Fatalf("backlog not drained, alpha %g", a)
	}
}

func TestAccumulatorCapsCatchUp(t *testing.T) {
	acc := NewAccumulator(1.0 / 60.0)
	if n := acc.Advance(5); n != maxCatchUpTicks {
		t.Fatalf("stall yielded %d ticks, cap is %d", n, maxCatchUpTicks)
	}
	// The stall's excess was discarded, not owed.
	if n := acc.Advance(0); n != 0 {
		t.Fatalf("excess carried over: %d ticks", n)
	}
}

func TestAccumulatorIgnoresNegativeDeltas(t *testing.T) {
	acc := NewAccumulator(0.01)
	if n := acc.Advance(-1); n != 0 {
		t.Fatalf("negative delta yielded %d ticks", n)
	}
	if n := acc.Advance(0.01); n != 1 {
		t.Fatalf("state corrupted by negative delta: %d ticks", n)
	}
}
