// Package constraint compiles morphology, active intents and
// environment facts into the tick-local constraint system the solver
// consumes. The system exists for one tick and is owned exclusively by
// the solver invocation that receives it.
package constraint

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Source ranks where a constraint came from. Lower values take
// precedence when hard constraints contradict: physical limits beat
// environment contacts beat external impositions beat intents.
type Source int

const (
	SourceLimit Source = iota
	SourceContact
	SourceExternal
	SourceIntent
)

func (s Source) String() string {
	switch s {
	case SourceLimit:
		return "limit"
	case SourceContact:
		return "contact"
	case SourceExternal:
		return "external"
	case SourceIntent:
		return "intent"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Kind is the constraint's operational shape inside the solver.
type Kind string

const (
	// Hard kinds.
	KindRange   Kind = "range"   // DOF inequality: Min <= q <= Max
	KindPin     Kind = "pin"     // DOF equality: q == Target
	KindPlane   Kind = "plane"   // world inequality: Normal·p >= Offset
	KindSupport Kind = "support" // center of mass within a support region
	KindLoop    Kind = "loop"    // loop closure: |p(a) - p(b)| == Distance

	// Soft kinds.
	KindPoseTarget Kind = "pose_target" // pull a DOF toward Target
	KindEffector   Kind = "effector"    // pull a joint's world position toward Point
	KindTorque     Kind = "torque"      // sustain a joint torque
	KindAvoid      Kind = "avoid"       // push away from a proximity
	KindComfort    Kind = "comfort"     // pull toward the rest pose
	KindEffort     Kind = "effort"      // minimize correction magnitude
)

// Constraint is one compiled condition. Hard constraints must never be
// violated in emitted output; soft constraints are weighted objectives.
type Constraint struct {
	Kind   Kind
	Source Source
	Hard   bool
	Weight float64

	JointID string
	OtherID string
	DOF     int

	Target   float64
	Min      float64
	Max      float64
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Radius   float64
	Distance float64

	// Margin widens inequalities; grows when the facts behind the
	// constraint are stale.
	Margin float64

	Tag     string
	Seq     int
	Relaxed bool
}

// Conflict pairs two mutually exclusive hard constraints by index.
type Conflict struct {
	A      int
	B      int
	Reason string
}

// System is the assembled tick-local constraint set.
type System struct {
	Tick        uint64
	Constraints []Constraint
	Conflicts   []Conflict
	Stale       bool
}

// UnsatisfiableHardSetError reports mutually exclusive hard constraints.
// It is handled by the solver via relaxation and never surfaces to the
// tick caller.
type UnsatisfiableHardSetError struct {
	Conflicts []Conflict
}

func (e *UnsatisfiableHardSetError) Error() string {
	if len(e.Conflicts) == 0 {
		return "unsatisfiable hard constraint set"
	}
	return fmt.Sprintf("unsatisfiable hard constraint set: %s", e.Conflicts[0].Reason)
}

// Unsatisfiable returns the conflict report, if assembly detected any.
func (s *System) Unsatisfiable() *UnsatisfiableHardSetError {
	if len(s.Conflicts) == 0 {
		return nil
	}
	return &UnsatisfiableHardSetError{Conflicts: s.Conflicts}
}
