package envctx

import (
	"sync"

	"go.uber.org/zap"
)

// Tracker double-buffers the environment feed. Asynchronous producers
// call Offer at any time; the tick loop calls Update exactly once per
// tick and never waits for a producer. A tick with no fresh frame
// reuses the previous facts with the staleness flag set.
type Tracker struct {
	mu       sync.Mutex
	pending  *Frame
	last     Facts
	everFed  bool
	logger   *zap.Logger
}

func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{logger: logger}
}

// Offer publishes a frame from the environment feed. Non-blocking; a
// second Offer before the next tick replaces the first.
func (t *Tracker) Offer(f Frame) {
	t.mu.Lock()
	frame := f
	t.pending = &frame
	t.mu.Unlock()
}

// Update swaps in the buffered frame at tick start. With no fresh frame
// the previous facts are reused, aged and flagged stale so derived
// constraints are relaxed rather than trusted.
func (t *Tracker) Update(tick uint64) Facts {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil {
		t.last = Facts{Frame: *t.pending}
		t.pending = nil
		t.everFed = true
		return t.last
	}

	if !t.everFed {
		// Nothing has ever been offered; an empty environment is not
		// stale, there is simply nothing to constrain against.
		return Facts{}
	}

	t.last.Stale = true
	t.last.Age++
	if t.last.Age == 1 {
		t.logger.Debug("environment frame missed deadline, reusing previous facts",
			zap.Uint64("tick", tick))
	}
	return t.last
}

// Last returns the facts most recently handed to the tick loop.
func (t *Tracker) Last() Facts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
