// Package intent ingests high-level gestural commands and exposes the
// per-tick active intent set. Conflicting intents are passed through
// untouched; blending them is the solver's job.
package intent

import (
	"fmt"
	"math"
)

// GoalKind classifies what an intent asks of the body.
type GoalKind string

const (
	// GoalPose targets joint-space positions for one joint (a pose fragment).
	GoalPose GoalKind = "pose"
	// GoalEffector targets a world-space position for one joint.
	GoalEffector GoalKind = "effector"
	// GoalForce requests a sustained joint torque.
	GoalForce GoalKind = "force"
	// GoalPreference expresses a behavioral bias such as balance or comfort.
	GoalPreference GoalKind = "preference"
)

// Validity controls how long an intent stays active.
type Validity string

const (
	ValidityPersistent Validity = "persistent"
	ValidityOneShot    Validity = "one_shot"
	ValidityWindow     Validity = "window"
)

// Preference names for GoalPreference intents.
const (
	PreferenceBalance = "balance"
	PreferenceComfort = "comfort"
	PreferenceEffort  = "effort"
)

// Intent is one high-level goal: a pose fragment, a world target, a
// force, or a behavioral preference, with a priority and a validity
// window.
type Intent struct {
	Kind       GoalKind
	JointID    string
	Target     []float64
	World      [3]float64
	Weight     float64
	Priority   int
	Validity   Validity
	TTLTicks   int
	Preference string
}

func (in Intent) validate() error {
	switch in.Kind {
	case GoalPose, GoalForce:
		if in.JointID == "" {
			return fmt.Errorf("%s intent requires a joint id", in.Kind)
		}
		if len(in.Target) == 0 {
			return fmt.Errorf("%s intent requires a target", in.Kind)
		}
	case GoalEffector:
		if in.JointID == "" {
			return fmt.Errorf("effector intent requires a joint id")
		}
	case GoalPreference:
		if in.Preference == "" {
			return fmt.Errorf("preference intent requires a preference name")
		}
	default:
		return fmt.Errorf("unsupported goal kind: %s", in.Kind)
	}
	if in.Weight <= 0 || math.IsNaN(in.Weight) {
		return fmt.Errorf("intent weight must be positive")
	}
	for _, v := range in.Target {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("intent target is not finite")
		}
	}
	switch in.Validity {
	case "", ValidityPersistent, ValidityOneShot:
	case ValidityWindow:
		if in.TTLTicks <= 0 {
			return fmt.Errorf("window intent requires positive ttl")
		}
	default:
		return fmt.Errorf("unsupported validity: %s", in.Validity)
	}
	return nil
}
