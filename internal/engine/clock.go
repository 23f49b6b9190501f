package engine

// maxCatchUpTicks bounds how many ticks a single host frame may demand.
// A long stall burns the excess instead of spiraling the loop.
const maxCatchUpTicks = 8

// Accumulator converts variable host frame deltas into whole fixed
// ticks. The engine never owns the clock; hosts feed elapsed wall time
// and run the number of ticks returned.
type Accumulator struct {
	dt      float64
	backlog float64
}

func NewAccumulator(dt float64) *Accumulator {
	return &Accumulator{dt: dt}
}

// Advance adds elapsed seconds and returns how many fixed ticks are now
// due, at most maxCatchUpTicks. Fractional remainder stays banked for
// the next frame.
func (a *Accumulator) Advance(elapsed float64) int {
	if elapsed < 0 {
		return 0
	}
	a.backlog += elapsed
	ticks := int(a.backlog / a.dt)
	if ticks > maxCatchUpTicks {
		ticks = maxCatchUpTicks
		a.backlog = 0
		return ticks
	}
	a.backlog -= float64(ticks) * a.dt
	return ticks
}

// Alpha is the interpolation fraction into the next tick, for hosts
// that blend between the last two emitted frames.
func (a *Accumulator) Alpha() float64 {
	return a.backlog / a.dt
}
