// Package envctx tracks external spatio-physical facts: contacts,
// supports, proximities and externally imposed constraints. Facts are
// supplied fresh each tick; their only cross-tick identity is an
// optional continuity tag used for smoothing.
package envctx

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Contact is a touch between a body part and the environment.
type Contact struct {
	JointID  string
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Friction float64
	Tag      string
}

// Support is a load-bearing region the body may rest on.
type Support struct {
	JointID  string
	Center   mgl64.Vec3
	Radius   float64
	Capacity float64
	Tag      string
}

// Proximity reports a nearby object without contact.
type Proximity struct {
	JointID  string
	ObjectID string
	Normal   mgl64.Vec3
	Distance float64
	Tag      string
}

// External is an explicitly imposed equality or inequality on a joint
// DOF, e.g. a grab or a scripted hold.
type External struct {
	JointID string
	DOF     int
	Equals  *float64
	Min     *float64
	Max     *float64
	Hard    bool
	Tag     string
}

// Frame is the raw per-tick environment feed.
type Frame struct {
	Contacts    []Contact
	Supports    []Support
	Proximities []Proximity
	Externals   []External
}

// Facts is a frame plus freshness metadata. When Stale is set the
// assembler widens inequality margins instead of treating fact-derived
// constraints as hard truths.
type Facts struct {
	Frame
	Stale bool
	Age   int
}

// ChangeMagnitude scores how much the environment moved between two
// frames. Appearing or vanishing facts dominate; matching continuity
// tags contribute their positional delta. Feeds perturbation detection.
func ChangeMagnitude(prev, cur Frame) float64 {
	mag := 0.0

	prevContacts := make(map[string]Contact, len(prev.Contacts))
	for _, c := range prev.Contacts {
		if c.Tag != "" {
			prevContacts[c.Tag] = c
		}
	}
	matched := 0
	for _, c := range cur.Contacts {
		if c.Tag == "" {
			continue
		}
		if p, ok := prevContacts[c.Tag]; ok {
			matched++
			mag += c.Point.Sub(p.Point).Len()
		}
	}
	mag += contactChurn(len(prev.Contacts), len(cur.Contacts), matched)

	prevSupports := make(map[string]Support, len(prev.Supports))
	for _, s := range prev.Supports {
		if s.Tag != "" {
			prevSupports[s.Tag] = s
		}
	}
	matched = 0
	for _, s := range cur.Supports {
		if s.Tag == "" {
			continue
		}
		if p, ok := prevSupports[s.Tag]; ok {
			matched++
			mag += s.Center.Sub(p.Center).Len()
			mag += math.Abs(s.Radius - p.Radius)
		}
	}
	mag += contactChurn(len(prev.Supports), len(cur.Supports), matched)

	mag += math.Abs(float64(len(cur.Externals) - len(prev.Externals)))
	return mag
}

// contactChurn charges one unit per fact that appeared or disappeared
// beyond the tag-matched pairs.
func contactChurn(prev, cur, matched int) float64 {
	unmatchedPrev := prev - matched
	unmatchedCur := cur - matched
	if unmatchedPrev < 0 {
		unmatchedPrev = 0
	}
	if unmatchedCur < 0 {
		unmatchedCur = 0
	}
	return float64(unmatchedPrev + unmatchedCur)
}
