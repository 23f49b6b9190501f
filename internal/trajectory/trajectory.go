// Package trajectory is the ordered per-tick output surface. A stream
// emits exactly one frame per tick with no gaps: a tick that produced
// no valid solve repeats the last valid frame, flagged, rather than
// going silent.
package trajectory

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"kinesis/internal/model"
)

// DefaultCapacity bounds the retained frame window when none is given.
const DefaultCapacity = 600

// Stream buffers the most recent frames of one entity in tick order.
// Safe for one producer and any number of readers.
type Stream struct {
	mu       sync.RWMutex
	frames   []model.Snapshot
	capacity int
	next     uint64
	last     *model.Snapshot
	repeats  int
	logger   *zap.Logger
}

func NewStream(capacity int, logger *zap.Logger) *Stream {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{capacity: capacity, logger: logger}
}

// Commit appends the frame for the next expected tick. Frames arrive
// strictly contiguously; a gap is a caller bug, not a recoverable
// condition to paper over here.
func (s *Stream) Commit(snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Tick != s.next {
		return fmt.Errorf("trajectory: tick %d out of order, expected %d", snap.Tick, s.next)
	}
	frame := snap.Clone()
	s.append(frame)
	if !frame.Flags.Repeated {
		s.last = &frame
	}
	s.next++
	return nil
}

// Repeat emits the frame for the next tick by re-issuing the last valid
// joint state, flagged as degraded. Before any valid frame exists the
// repeated frame carries no states, only flags.
func (s *Stream) Repeat(timeAt float64, flags model.FrameFlags) model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags.Degraded = true
	flags.Repeated = true

	var frame model.Snapshot
	if s.last != nil {
		frame = s.last.Clone()
	}
	frame.Tick = s.next
	frame.Time = timeAt
	frame.Flags = flags

	s.append(frame)
	s.next++
	s.repeats++
	s.logger.Debug("repeated frame emitted", zap.Uint64("tick", frame.Tick))
	return frame
}

func (s *Stream) append(frame model.Snapshot) {
	s.frames = append(s.frames, frame)
	if len(s.frames) > s.capacity {
		s.frames = s.frames[len(s.frames)-s.capacity:]
	}
}

// Latest returns the most recent frame, valid or repeated.
func (s *Stream) Latest() (model.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.frames) == 0 {
		return model.Snapshot{}, false
	}
	return s.frames[len(s.frames)-1].Clone(), true
}

// Window returns up to n most recent frames in tick order.
func (s *Stream) Window(n int) []model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.frames) {
		n = len(s.frames)
	}
	out := make([]model.Snapshot, 0, n)
	for _, f := range s.frames[len(s.frames)-n:] {
		out = append(out, f.Clone())
	}
	return out
}

// NextTick is the tick the stream expects next.
func (s *Stream) NextTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next
}

// Repeats counts degraded frame emissions since the last reset.
func (s *Stream) Repeats() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repeats
}

// Reset clears the stream for a fresh session starting at tick zero.
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
	s.last = nil
	s.next = 0
	s.repeats = 0
}
