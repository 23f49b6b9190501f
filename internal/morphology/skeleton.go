package morphology

import (
	"github.com/go-gl/mathgl/mgl64"

	"kinesis/internal/model"
)

// Skeleton is the validated structural model: a rooted joint graph kept
// as an adjacency relation. Closed loops live in loop closure records,
// never as pointer cycles. Immutable during a tick.
type Skeleton struct {
	name      string
	joints    []*Joint
	index     map[string]int
	children  map[string][]string
	loops     []Loop
	totalMass float64
}

func (s *Skeleton) Name() string { return s.name }

// Root returns the unique root joint.
func (s *Skeleton) Root() *Joint { return s.joints[0] }

// Joints returns all joints in breadth-first order from the root.
func (s *Skeleton) Joints() []*Joint { return s.joints }

// Joint looks up a joint by ID.
func (s *Skeleton) Joint(id string) (*Joint, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.joints[i], true
}

// Children returns the IDs of a joint's direct children.
func (s *Skeleton) Children(id string) []string { return s.children[id] }

// ChainToRoot returns the joint IDs from the given joint up to and
// including the root.
func (s *Skeleton) ChainToRoot(id string) []string {
	var chain []string
	for id != "" {
		i, ok := s.index[id]
		if !ok {
			break
		}
		chain = append(chain, id)
		id = s.joints[i].Parent
	}
	return chain
}

func (s *Skeleton) Loops() []Loop      { return s.loops }
func (s *Skeleton) TotalMass() float64 { return s.totalMass }

// SubtreeMass sums the mass of a joint and everything below it.
func (s *Skeleton) SubtreeMass(id string) float64 {
	j, ok := s.Joint(id)
	if !ok {
		return 0
	}
	mass := j.Mass
	for _, child := range s.children[id] {
		mass += s.SubtreeMass(child)
	}
	return mass
}

// Clone deep-copies the skeleton so each entity owns its state
// exclusively; solving tasks never share joints.
func (s *Skeleton) Clone() *Skeleton {
	out := &Skeleton{
		name:      s.name,
		joints:    make([]*Joint, len(s.joints)),
		index:     make(map[string]int, len(s.index)),
		children:  make(map[string][]string, len(s.children)),
		loops:     append([]Loop(nil), s.loops...),
		totalMass: s.totalMass,
	}
	for i, j := range s.joints {
		cp := *j
		cp.Limits = append([]Limit(nil), j.Limits...)
		cp.Rest = append([]float64(nil), j.Rest...)
		cp.Position = append([]float64(nil), j.Position...)
		cp.Velocity = append([]float64(nil), j.Velocity...)
		out.joints[i] = &cp
	}
	for k, v := range s.index {
		out.index[k] = v
	}
	for k, v := range s.children {
		out.children[k] = append([]string(nil), v...)
	}
	return out
}

// States captures the current joint state as snapshot entries.
func (s *Skeleton) States() []model.JointState {
	out := make([]model.JointState, 0, len(s.joints))
	for _, j := range s.joints {
		out = append(out, model.JointState{
			JointID:  j.ID,
			Position: append([]float64(nil), j.Position...),
			Velocity: append([]float64(nil), j.Velocity...),
		})
	}
	return out
}

// WorldPositions runs forward kinematics over the joint graph. The at
// function supplies per-joint DOF positions; pass nil to use current
// joint state.
func (s *Skeleton) WorldPositions(at func(j *Joint) []float64) map[string]mgl64.Vec3 {
	positions, _ := s.WorldTransforms(at)
	return positions
}

// WorldTransforms runs forward kinematics and returns both world
// positions and world orientations per joint.
func (s *Skeleton) WorldTransforms(at func(j *Joint) []float64) (map[string]mgl64.Vec3, map[string]mgl64.Quat) {
	if at == nil {
		at = func(j *Joint) []float64 { return j.Position }
	}
	positions := make(map[string]mgl64.Vec3, len(s.joints))
	orients := make(map[string]mgl64.Quat, len(s.joints))

	for _, j := range s.joints {
		q := at(j)
		parentPos := mgl64.Vec3{}
		parentOrient := mgl64.QuatIdent()
		if j.Parent != "" {
			parentPos = positions[j.Parent]
			parentOrient = orients[j.Parent]
		}

		pos := parentPos.Add(parentOrient.Rotate(j.Offset))
		orient := parentOrient.Mul(localRotation(j, q))
		if j.Kind == KindPrismatic && len(q) > 0 {
			pos = pos.Add(orient.Rotate(j.Axis.Mul(q[0])))
		}

		positions[j.ID] = pos
		orients[j.ID] = orient
	}
	return positions, orients
}

func localRotation(j *Joint, q []float64) mgl64.Quat {
	switch j.Kind {
	case KindRevolute:
		if len(q) == 0 {
			return mgl64.QuatIdent()
		}
		return mgl64.QuatRotate(q[0], j.Axis)
	case KindSpherical:
		if len(q) < 3 {
			return mgl64.QuatIdent()
		}
		return mgl64.AnglesToQuat(q[0], q[1], q[2], mgl64.XYZ)
	default:
		return mgl64.QuatIdent()
	}
}

// CenterOfMass computes the mass-weighted centroid of the given world
// positions.
func (s *Skeleton) CenterOfMass(world map[string]mgl64.Vec3) mgl64.Vec3 {
	if s.totalMass <= 0 {
		return mgl64.Vec3{}
	}
	var acc mgl64.Vec3
	for _, j := range s.joints {
		acc = acc.Add(world[j.ID].Mul(j.Mass))
	}
	return acc.Mul(1 / s.totalMass)
}
