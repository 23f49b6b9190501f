package morphology

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Load validates a structural specification and builds the Skeleton.
// It rejects cycles without a loop flag, missing mass/inertia data and
// inverted limit ranges; any rejection wraps ErrInvalidMorphology.
func Load(doc Document) (*Skeleton, error) {
	if len(doc.Joints) == 0 {
		return nil, invalidf("", "no joints")
	}

	specs := make(map[string]JointSpec, len(doc.Joints))
	rootID := ""
	for _, spec := range doc.Joints {
		if spec.ID == "" {
			return nil, invalidf("", "joint with empty id")
		}
		if _, dup := specs[spec.ID]; dup {
			return nil, invalidf(spec.ID, "duplicate joint id")
		}
		specs[spec.ID] = spec
		if spec.Parent == "" {
			if rootID != "" {
				return nil, invalidf(spec.ID, "second root (root is %s)", rootID)
			}
			rootID = spec.ID
		}
	}
	if rootID == "" {
		return nil, invalidf("", "no root joint")
	}

	children := make(map[string][]string, len(doc.Joints))
	for _, spec := range doc.Joints {
		if spec.Parent == "" {
			continue
		}
		if _, ok := specs[spec.Parent]; !ok {
			return nil, invalidf(spec.ID, "unknown parent %s", spec.Parent)
		}
		if spec.Parent == spec.ID {
			return nil, invalidf(spec.ID, "joint is its own parent")
		}
		children[spec.Parent] = append(children[spec.Parent], spec.ID)
	}

	// Breadth-first walk from the root. A joint the walk never reaches
	// sits on a parent cycle, which is only legal as a flagged loop
	// closure, never as a parent link.
	order := make([]string, 0, len(doc.Joints))
	queue := []string{rootID}
	seen := map[string]bool{rootID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, child := range children[id] {
			if !seen[child] {
				seen[child] = true
				queue = append(queue, child)
			}
		}
	}
	if len(order) != len(doc.Joints) {
		for _, spec := range doc.Joints {
			if !seen[spec.ID] {
				return nil, invalidf(spec.ID, "unreachable from root: parent cycle without loop closure flag")
			}
		}
	}

	s := &Skeleton{
		name:     doc.Name,
		joints:   make([]*Joint, 0, len(doc.Joints)),
		index:    make(map[string]int, len(doc.Joints)),
		children: children,
	}
	for _, id := range order {
		joint, err := buildJoint(specs[id])
		if err != nil {
			return nil, err
		}
		s.index[joint.ID] = len(s.joints)
		s.joints = append(s.joints, joint)
		s.totalMass += joint.Mass
	}

	for _, loop := range doc.Loops {
		if _, ok := specs[loop.From]; !ok {
			return nil, invalidf(loop.From, "loop closure references unknown joint")
		}
		if _, ok := specs[loop.To]; !ok {
			return nil, invalidf(loop.To, "loop closure references unknown joint")
		}
		if loop.From == loop.To {
			return nil, invalidf(loop.From, "loop closure to itself")
		}
		if loop.Distance < 0 {
			return nil, invalidf(loop.From, "negative loop closure distance")
		}
		s.loops = append(s.loops, Loop(loop))
	}

	return s, nil
}

func buildJoint(spec JointSpec) (*Joint, error) {
	dofs := spec.Kind.DOFs()
	if dofs == 0 {
		return nil, invalidf(spec.ID, "unsupported joint kind: %s", spec.Kind)
	}
	if spec.Mass <= 0 || math.IsNaN(spec.Mass) {
		return nil, invalidf(spec.ID, "missing or non-positive mass")
	}
	if spec.Inertia <= 0 || math.IsNaN(spec.Inertia) {
		return nil, invalidf(spec.ID, "missing or non-positive inertia")
	}
	if spec.Actuation.MaxTorque <= 0 {
		return nil, invalidf(spec.ID, "missing or non-positive actuation capacity")
	}
	if spec.Actuation.FatigueRate < 0 || spec.Actuation.RecoveryRate < 0 {
		return nil, invalidf(spec.ID, "negative fatigue parameters")
	}
	if len(spec.Limits) != dofs {
		return nil, invalidf(spec.ID, "limit count %d does not match %d DOFs", len(spec.Limits), dofs)
	}
	for d, lim := range spec.Limits {
		if lim.Min > lim.Max {
			return nil, invalidf(spec.ID, "inverted limit range on DOF %d: [%g, %g]", d, lim.Min, lim.Max)
		}
		if lim.MaxVelocity <= 0 {
			return nil, invalidf(spec.ID, "non-positive velocity limit on DOF %d", d)
		}
		if lim.MaxAcceleration <= 0 {
			return nil, invalidf(spec.ID, "non-positive acceleration limit on DOF %d", d)
		}
	}

	axis := mgl64.Vec3{spec.Axis[0], spec.Axis[1], spec.Axis[2]}
	if spec.Kind == KindRevolute || spec.Kind == KindPrismatic {
		if axis.Len() < 1e-12 {
			return nil, invalidf(spec.ID, "%s joint requires a motion axis", spec.Kind)
		}
		axis = axis.Normalize()
	}

	rest := spec.Rest
	if rest == nil {
		rest = make([]float64, dofs)
	}
	if len(rest) != dofs {
		return nil, invalidf(spec.ID, "rest pose length %d does not match %d DOFs", len(rest), dofs)
	}
	for d, r := range rest {
		if r < spec.Limits[d].Min || r > spec.Limits[d].Max {
			return nil, invalidf(spec.ID, "rest position %g outside limit range on DOF %d", r, d)
		}
	}

	j := &Joint{
		ID:        spec.ID,
		Parent:    spec.Parent,
		Kind:      spec.Kind,
		DOFs:      dofs,
		Offset:    mgl64.Vec3{spec.Offset[0], spec.Offset[1], spec.Offset[2]},
		Axis:      axis,
		Mass:      spec.Mass,
		Inertia:   spec.Inertia,
		Limits:    append([]Limit(nil), spec.Limits...),
		Actuation: spec.Actuation,
		Rest:      append([]float64(nil), rest...),
		Position:  append([]float64(nil), rest...),
		Velocity:  make([]float64, dofs),
	}
	return j, nil
}
