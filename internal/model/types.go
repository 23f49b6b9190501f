package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// JointState is the per-tick resolved state of a single joint, one entry
// per degree of freedom.
type JointState struct {
	JointID  string    `json:"joint_id"`
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity"`
}

// FrameFlags marks degradations observed while producing a frame. A set
// flag never implies an invalid frame; emitted states respect hard
// constraints regardless.
type FrameFlags struct {
	Degraded     bool `json:"degraded,omitempty"`
	StaleContext bool `json:"stale_context,omitempty"`
	Relaxed      bool `json:"relaxed,omitempty"`
	Repeated     bool `json:"repeated,omitempty"`
}

// Snapshot is one tick of resolved joint-space output.
type Snapshot struct {
	Tick   uint64       `json:"tick"`
	Time   float64      `json:"time"`
	States []JointState `json:"states"`
	Flags  FrameFlags   `json:"flags"`
}

// Clone returns a deep copy so downstream consumers can hold a snapshot
// across ticks without aliasing solver-owned buffers.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.States = make([]JointState, len(s.States))
	for i, js := range s.States {
		out.States[i] = JointState{
			JointID:  js.JointID,
			Position: append([]float64(nil), js.Position...),
			Velocity: append([]float64(nil), js.Velocity...),
		}
	}
	return out
}

// State returns the state for a joint ID, if present.
func (s Snapshot) State(jointID string) (JointState, bool) {
	for _, js := range s.States {
		if js.JointID == jointID {
			return js, true
		}
	}
	return JointState{}, false
}

// TickDiagnostics records solver behavior for one tick of one entity.
type TickDiagnostics struct {
	Tick           uint64  `json:"tick"`
	Iterations     int     `json:"iterations"`
	Relaxations    int     `json:"relaxations"`
	Residual       float64 `json:"residual"`
	SolveMicros    int64   `json:"solve_micros"`
	BudgetExceeded bool    `json:"budget_exceeded"`
	StaleContext   bool    `json:"stale_context"`
	Perturbed      bool    `json:"perturbed"`
}

// RunRecord identifies one recorded simulation run.
type RunRecord struct {
	VersionedRecord
	ID           string `json:"id"`
	Scenario     string `json:"scenario"`
	Morphology   string `json:"morphology"`
	Ticks        int    `json:"ticks"`
	Degraded     int    `json:"degraded"`
	CreatedAtUTC string `json:"created_at_utc"`
}

// SnapshotRecord wraps a snapshot with versioning for persistence.
type SnapshotRecord struct {
	VersionedRecord
	RunID    string   `json:"run_id"`
	Snapshot Snapshot `json:"snapshot"`
}

// MorphologyRecord stores a named structural document payload.
type MorphologyRecord struct {
	VersionedRecord
	Name    string `json:"name"`
	Payload []byte `json:"payload"`
}
