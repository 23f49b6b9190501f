package intent

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handle identifies a submitted intent for later cancellation.
type Handle string

// Active is an intent plus its handle, as seen by the assembler for one
// tick. The assembler references these; it never owns them.
type Active struct {
	Handle Handle
	Seq    int
	Intent Intent
}

type entry struct {
	handle    Handle
	seq       int
	intent    Intent
	activated bool
	firstTick uint64
}

// Stream owns all submitted intents. Reads are non-blocking snapshots;
// expiry happens at the start of the tick in which an intent expires.
type Stream struct {
	mu      sync.Mutex
	entries map[Handle]*entry
	seq     int
	logger  *zap.Logger
}

func NewStream(logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		entries: make(map[Handle]*entry),
		logger:  logger,
	}
}

// Submit registers an intent and returns its handle.
func (s *Stream) Submit(in Intent) (Handle, error) {
	if err := in.validate(); err != nil {
		return "", err
	}
	if in.Validity == "" {
		in.Validity = ValidityPersistent
	}
	if in.Validity == ValidityOneShot {
		in.TTLTicks = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	h := Handle(uuid.NewString())
	s.entries[h] = &entry{handle: h, seq: s.seq, intent: in}
	s.logger.Debug("intent submitted",
		zap.String("handle", string(h)),
		zap.String("kind", string(in.Kind)),
		zap.String("joint", in.JointID),
		zap.Int("priority", in.Priority))
	return h, nil
}

// Cancel removes an intent. Reports whether it was still active.
func (s *Stream) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[h]; !ok {
		return false
	}
	delete(s.entries, h)
	s.logger.Debug("intent cancelled", zap.String("handle", string(h)))
	return true
}

// Active prunes expired intents for this tick and returns the remaining
// set ordered by priority descending, then submission order (stable
// tie-break). One-shot intents are active for exactly one tick and are
// removed at the start of the tick in which they expire.
func (s *Stream) Active(tick uint64) []Active {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Active, 0, len(s.entries))
	for h, e := range s.entries {
		if e.activated && e.intent.TTLTicks > 0 && tick >= e.firstTick+uint64(e.intent.TTLTicks) {
			delete(s.entries, h)
			s.logger.Debug("intent expired", zap.String("handle", string(h)), zap.Uint64("tick", tick))
			continue
		}
		if !e.activated {
			e.activated = true
			e.firstTick = tick
		}
		out = append(out, Active{Handle: e.handle, Seq: e.seq, Intent: e.intent})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Intent.Priority != out[j].Intent.Priority {
			return out[i].Intent.Priority > out[j].Intent.Priority
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// Len reports how many intents are currently registered.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
