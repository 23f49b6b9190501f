package solver

import (
	"github.com/go-gl/mathgl/mgl64"

	"kinesis/internal/morphology"
)

// workspace is the shared tick-local buffer the sub-passes operate on.
// It is created per Solve call and never escapes it.
type workspace struct {
	skel   *morphology.Skeleton
	joints []*morphology.Joint
	idx    map[string]int

	prevPos [][]float64
	prevVel [][]float64
	pos     [][]float64

	// deferred is the per-DOF correction shortfall the dynamic pass
	// measured in its latest iteration. Committed to the carry once,
	// at finalize, so re-running the pass never double-books debt.
	deferred [][]float64

	// torqueUse accumulates actuation utilization per joint for the
	// fatigue update, 0..1 of capacity.
	torqueUse []float64

	// softWeight sums soft target weights per joint DOF so competing
	// goals blend instead of fighting.
	softWeight map[dofRef]float64

	worldPos    map[string]mgl64.Vec3
	worldOrient map[string]mgl64.Quat
	fkDirty     bool

	// maxDelta tracks the largest DOF movement applied in the current
	// iteration; convergence is declared when it falls under tolerance.
	maxDelta float64
}

type dofRef struct {
	joint string
	dof   int
}

func newWorkspace(skel *morphology.Skeleton) *workspace {
	joints := skel.Joints()
	ws := &workspace{
		skel:       skel,
		joints:     joints,
		idx:        make(map[string]int, len(joints)),
		prevPos:    make([][]float64, len(joints)),
		prevVel:    make([][]float64, len(joints)),
		pos:        make([][]float64, len(joints)),
		deferred:   make([][]float64, len(joints)),
		torqueUse:  make([]float64, len(joints)),
		softWeight: make(map[dofRef]float64),
		fkDirty:    true,
	}
	for i, j := range joints {
		ws.idx[j.ID] = i
		ws.prevPos[i] = append([]float64(nil), j.Position...)
		ws.prevVel[i] = append([]float64(nil), j.Velocity...)
		ws.pos[i] = append([]float64(nil), j.Position...)
		ws.deferred[i] = make([]float64, j.DOFs)
	}
	return ws
}

// move applies a bounded DOF adjustment, clamps into the joint's hard
// range and records the movement for convergence tracking. Inequality
// clamping here is exact: the working buffer never leaves the range.
func (ws *workspace) move(i, d int, delta, correctionLimit float64) {
	if delta > correctionLimit {
		delta = correctionLimit
	}
	if delta < -correctionLimit {
		delta = -correctionLimit
	}
	if delta == 0 {
		return
	}
	j := ws.joints[i]
	lim := j.Limits[d]
	next := ws.pos[i][d] + delta
	if next < lim.Min {
		next = lim.Min
	}
	if next > lim.Max {
		next = lim.Max
	}
	applied := next - ws.pos[i][d]
	if applied == 0 {
		return
	}
	ws.pos[i][d] = next
	ws.fkDirty = true
	if a := abs(applied); a > ws.maxDelta {
		ws.maxDelta = a
	}
}

// set pins a DOF to a value, still clamped into the hard range.
func (ws *workspace) set(i, d int, value float64) {
	j := ws.joints[i]
	lim := j.Limits[d]
	if value < lim.Min {
		value = lim.Min
	}
	if value > lim.Max {
		value = lim.Max
	}
	applied := value - ws.pos[i][d]
	if applied == 0 {
		return
	}
	ws.pos[i][d] = value
	ws.fkDirty = true
	if a := abs(applied); a > ws.maxDelta {
		ws.maxDelta = a
	}
}

// world returns the FK solution for the working positions, recomputing
// lazily after any movement.
func (ws *workspace) world() (map[string]mgl64.Vec3, map[string]mgl64.Quat) {
	if ws.fkDirty {
		ws.worldPos, ws.worldOrient = ws.skel.WorldTransforms(func(j *morphology.Joint) []float64 {
			return ws.pos[ws.idx[j.ID]]
		})
		ws.fkDirty = false
	}
	return ws.worldPos, ws.worldOrient
}

// jacobianColumn is the instantaneous world-space motion of point p per
// unit change of the given DOF. Revolute joints rotate p about their
// world axis; prismatic joints translate along it; spherical DOFs use
// the joint's world frame axes as rotation axes, which is exact for
// small corrections.
func (ws *workspace) jacobianColumn(i, d int, p mgl64.Vec3) mgl64.Vec3 {
	j := ws.joints[i]
	worldPos, worldOrient := ws.world()
	origin := worldPos[j.ID]
	orient := worldOrient[j.ID]

	switch j.Kind {
	case morphology.KindPrismatic:
		return orient.Rotate(j.Axis)
	case morphology.KindRevolute:
		axis := orient.Rotate(j.Axis)
		return axis.Cross(p.Sub(origin))
	case morphology.KindSpherical:
		var e mgl64.Vec3
		e[d] = 1
		axis := orient.Rotate(e)
		return axis.Cross(p.Sub(origin))
	default:
		return mgl64.Vec3{}
	}
}

// chainIndices returns workspace indices from the named joint up to the
// root, nearest first.
func (ws *workspace) chainIndices(jointID string) []int {
	ids := ws.skel.ChainToRoot(jointID)
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, ws.idx[id])
	}
	return out
}

// subtreeMassCom returns the mass and mass-weighted centroid of the
// joint's subtree at the current working pose.
func (ws *workspace) subtreeMassCom(jointID string) (float64, mgl64.Vec3) {
	worldPos, _ := ws.world()
	var mass float64
	var acc mgl64.Vec3
	var walk func(id string)
	walk = func(id string) {
		j, ok := ws.skel.Joint(id)
		if !ok {
			return
		}
		mass += j.Mass
		acc = acc.Add(worldPos[id].Mul(j.Mass))
		for _, child := range ws.skel.Children(id) {
			walk(child)
		}
	}
	walk(jointID)
	if mass <= 0 {
		return 0, mgl64.Vec3{}
	}
	return mass, acc.Mul(1 / mass)
}

// centerOfMass is the whole-body centroid at the working pose.
func (ws *workspace) centerOfMass() mgl64.Vec3 {
	worldPos, _ := ws.world()
	return ws.skel.CenterOfMass(worldPos)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
