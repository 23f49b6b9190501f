// Package morphology holds the structural description of an animated
// body: joints, bones, mass distribution and kinematic limits. A loaded
// Skeleton is owned exclusively by its entity and never mutated by other
// components; live state changes flow through Joint state only.
package morphology

import "github.com/go-gl/mathgl/mgl64"

// Kind identifies the articulation type of a joint.
type Kind string

const (
	KindRevolute  Kind = "revolute"
	KindPrismatic Kind = "prismatic"
	KindSpherical Kind = "spherical"
)

// DOFs returns the degrees of freedom for the joint kind, 0 if unknown.
func (k Kind) DOFs() int {
	switch k {
	case KindRevolute, KindPrismatic:
		return 1
	case KindSpherical:
		return 3
	default:
		return 0
	}
}

// Limit bounds one degree of freedom.
type Limit struct {
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
	MaxVelocity     float64 `json:"max_velocity"`
	MaxAcceleration float64 `json:"max_acceleration"`
}

// Actuation models simulated muscular capacity for a joint.
type Actuation struct {
	MaxTorque    float64 `json:"max_torque"`
	FatigueRate  float64 `json:"fatigue_rate,omitempty"`
	RecoveryRate float64 `json:"recovery_rate,omitempty"`
}

// Joint is the live articulation state plus its immutable structure.
// Position and Velocity are mutated exactly once per tick by the solver
// and never concurrently by two ticks.
type Joint struct {
	ID     string
	Parent string
	Kind   Kind
	DOFs   int

	Offset mgl64.Vec3
	Axis   mgl64.Vec3

	Mass    float64
	Inertia float64

	Limits    []Limit
	Actuation Actuation
	Rest      []float64

	Position []float64
	Velocity []float64
	Fatigue  float64
}

// Capacity is the torque the joint can currently deliver, discounted by
// accumulated fatigue.
func (j *Joint) Capacity() float64 {
	c := j.Actuation.MaxTorque * (1 - j.Fatigue)
	if c < 0 {
		return 0
	}
	return c
}

// ClampToLimits forces the joint's state inside its per-DOF ranges.
func (j *Joint) ClampToLimits() {
	for d := 0; d < j.DOFs; d++ {
		lim := j.Limits[d]
		if j.Position[d] < lim.Min {
			j.Position[d] = lim.Min
		}
		if j.Position[d] > lim.Max {
			j.Position[d] = lim.Max
		}
		if j.Velocity[d] > lim.MaxVelocity {
			j.Velocity[d] = lim.MaxVelocity
		}
		if j.Velocity[d] < -lim.MaxVelocity {
			j.Velocity[d] = -lim.MaxVelocity
		}
	}
}

// Loop is an explicit closed kinematic loop between two joints, kept as
// a closure record rather than a pointer cycle.
type Loop struct {
	From     string
	To       string
	Distance float64
}
