package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"kinesis/internal/constraint"
	"kinesis/internal/morphology"
)

// dlsDamping keeps near-singular Jacobian columns from exploding a
// correction step.
const dlsDamping = 0.05

// kinematicPass projects the working pose toward goals and hard
// geometric constraints with priority-ordered local corrections. Soft
// objectives are swept first; the hard sweep runs last so every
// iteration ends inside the hard envelope it can reach.
func (s *Solver) kinematicPass(ws *workspace, sys *constraint.System, w Weights, _ *Carry) {
	s.softSweep(ws, sys, w)
	s.hardSweep(ws, sys, w)
}

func (s *Solver) softSweep(ws *workspace, sys *constraint.System, w Weights) {
	gain := w.Kinematic
	limit := w.CorrectionLimit

	for idx := range sys.Constraints {
		c := &sys.Constraints[idx]
		if c.Hard {
			continue
		}
		switch c.Kind {
		case constraint.KindPoseTarget, constraint.KindPin:
			i, ok := ws.idx[c.JointID]
			if !ok || c.DOF >= ws.joints[i].DOFs {
				continue
			}
			sum := ws.softWeight[dofRef{c.JointID, c.DOF}]
			if sum <= 0 {
				continue
			}
			wn := c.Weight / sum
			ws.move(i, c.DOF, gain*wn*(c.Target-ws.pos[i][c.DOF]), limit)

		case constraint.KindRange:
			// Demoted and stale-widened inequalities still pull the DOF
			// back toward the interval; they just no longer veto.
			i, ok := ws.idx[c.JointID]
			if !ok || c.DOF >= ws.joints[i].DOFs {
				continue
			}
			q := ws.pos[i][c.DOF]
			lo := c.Min - c.Margin
			hi := c.Max + c.Margin
			var v float64
			switch {
			case q < lo:
				v = lo - q
			case q > hi:
				v = hi - q
			default:
				continue
			}
			wn := c.Weight / (c.Weight + 1)
			ws.move(i, c.DOF, gain*wn*v, limit)

		case constraint.KindEffector:
			wn := c.Weight / (c.Weight + 1)
			s.correctPoint(ws, c.JointID, c.Point, gain*wn, limit)

		case constraint.KindPlane:
			// A relaxed contact still pulls, it just no longer vetoes.
			worldPos, _ := ws.world()
			p, ok := worldPos[c.JointID]
			if !ok {
				continue
			}
			v := (c.Target - c.Margin) - c.Normal.Dot(p)
			if v <= s.cfg.Tolerance {
				continue
			}
			wn := c.Weight / (c.Weight + 1)
			s.correctPoint(ws, c.JointID, p.Add(c.Normal.Mul(v)), gain*wn, limit)

		case constraint.KindSupport:
			wn := c.Weight / (c.Weight + 1)
			if c.Radius > 0 {
				s.correctCenterOfMass(ws, c, gain*wn, limit)
				continue
			}
			s.balanceOverSupports(ws, sys, gain*wn, limit)

		case constraint.KindAvoid:
			worldPos, _ := ws.world()
			p, ok := worldPos[c.JointID]
			if !ok {
				continue
			}
			push := math.Min(0.01*c.Weight, limit)
			s.correctPoint(ws, c.JointID, p.Add(c.Normal.Mul(push)), gain*0.5, limit)
		}
	}
}

// hardSweep enforces hard equalities and projects hard geometric
// constraints. DOF ranges need no sweep: move and set clamp exactly.
func (s *Solver) hardSweep(ws *workspace, sys *constraint.System, w Weights) {
	limit := w.CorrectionLimit

	for idx := range sys.Constraints {
		c := &sys.Constraints[idx]
		if !c.Hard {
			continue
		}
		switch c.Kind {
		case constraint.KindPin:
			i, ok := ws.idx[c.JointID]
			if !ok || c.DOF >= ws.joints[i].DOFs {
				continue
			}
			ws.set(i, c.DOF, c.Target)

		case constraint.KindRange:
			if c.Source == constraint.SourceLimit {
				continue // enforced by move/set against joint limits
			}
			i, ok := ws.idx[c.JointID]
			if !ok || c.DOF >= ws.joints[i].DOFs {
				continue
			}
			q := ws.pos[i][c.DOF]
			if q < c.Min-c.Margin {
				ws.set(i, c.DOF, c.Min-c.Margin)
			} else if q > c.Max+c.Margin {
				ws.set(i, c.DOF, c.Max+c.Margin)
			}

		case constraint.KindPlane:
			worldPos, _ := ws.world()
			p, ok := worldPos[c.JointID]
			if !ok {
				continue
			}
			v := (c.Target - c.Margin) - c.Normal.Dot(p)
			if v <= s.cfg.Tolerance {
				continue
			}
			s.correctPoint(ws, c.JointID, p.Add(c.Normal.Mul(v)), 1, limit)

		case constraint.KindSupport:
			if c.Radius <= 0 {
				continue
			}
			s.correctCenterOfMass(ws, c, 1, limit)

		case constraint.KindLoop:
			s.correctLoop(ws, c, limit)
		}
	}
}

// correctPoint runs a damped cyclic correction along the joint chain,
// moving the named joint's world position toward target.
func (s *Solver) correctPoint(ws *workspace, jointID string, target mgl64.Vec3, gain, limit float64) {
	for _, i := range ws.chainIndices(jointID) {
		worldPos, _ := ws.world()
		p := worldPos[jointID]
		e := target.Sub(p)
		if e.Len() < s.cfg.Tolerance {
			return
		}
		j := ws.joints[i]
		for d := 0; d < j.DOFs; d++ {
			g := ws.jacobianColumn(i, d, p)
			gg := g.Dot(g)
			if gg < 1e-9 {
				continue
			}
			ws.move(i, d, gain*g.Dot(e)/(gg+dlsDamping), limit)
		}
	}
}

// correctCenterOfMass shifts the whole-body centroid horizontally back
// inside a support region. Each joint contributes through its subtree
// mass ratio.
func (s *Solver) correctCenterOfMass(ws *workspace, c *constraint.Constraint, gain, limit float64) {
	com := ws.centerOfMass()
	off := com.Sub(c.Point)
	off[1] = 0
	dist := off.Len()
	excess := dist - (c.Radius + c.Margin)
	if excess <= s.cfg.Tolerance || dist < 1e-9 {
		return
	}
	e := off.Mul(-excess / dist)

	total := ws.skel.TotalMass()
	if total <= 0 {
		return
	}
	for i, j := range ws.joints {
		mSub, cSub := ws.subtreeMassCom(j.ID)
		ratio := mSub / total
		for d := 0; d < j.DOFs; d++ {
			g := ws.jacobianColumn(i, d, cSub).Mul(ratio)
			gg := g.Dot(g)
			if gg < 1e-9 {
				continue
			}
			ws.move(i, d, gain*g.Dot(e)/(gg+dlsDamping), limit)
		}
	}
}

// balanceOverSupports steers the centroid toward the centroid of every
// active support region. A generic balance preference has no region of
// its own, so it borrows the environment's.
func (s *Solver) balanceOverSupports(ws *workspace, sys *constraint.System, gain, limit float64) {
	var center mgl64.Vec3
	var radius float64
	n := 0
	for idx := range sys.Constraints {
		c := &sys.Constraints[idx]
		if c.Kind != constraint.KindSupport || !c.Hard || c.Radius <= 0 {
			continue
		}
		center = center.Add(c.Point)
		radius += c.Radius
		n++
	}
	if n == 0 {
		return
	}
	ghost := constraint.Constraint{
		Kind:   constraint.KindSupport,
		Point:  center.Mul(1 / float64(n)),
		Radius: radius / float64(n) / 2,
	}
	s.correctCenterOfMass(ws, &ghost, gain, limit)
}

// correctLoop keeps an explicit loop closure at its rest distance by
// splitting the error between both chains.
func (s *Solver) correctLoop(ws *workspace, c *constraint.Constraint, limit float64) {
	worldPos, _ := ws.world()
	a, aok := worldPos[c.JointID]
	b, bok := worldPos[c.OtherID]
	if !aok || !bok {
		return
	}
	gap := a.Sub(b)
	dist := gap.Len()
	if dist < 1e-9 {
		return
	}
	err := dist - c.Distance
	if math.Abs(err) <= s.cfg.Tolerance {
		return
	}
	dir := gap.Mul(1 / dist)
	s.correctPoint(ws, c.JointID, a.Sub(dir.Mul(err/2)), 1, limit)
	s.correctPoint(ws, c.OtherID, b.Add(dir.Mul(err/2)), 1, limit)
}

// dynamicPass checks the kinematic correction against mass, inertia and
// actuation capacity. Corrections the body cannot afford this tick are
// scaled back and the remainder recorded as the tick's deferral,
// preserving momentum continuity instead of clipping.
func (s *Solver) dynamicPass(ws *workspace, sys *constraint.System, w Weights, _ *Carry) {
	dt := s.cfg.DT
	gravity := mgl64.Vec3{0, -9.81, 0}
	worldPos, worldOrient := ws.world()

	for i, j := range ws.joints {
		capacity := j.Capacity() * w.Dynamic
		mSub, cSub := ws.subtreeMassCom(j.ID)
		maxUse := 0.0

		for d := 0; d < j.DOFs; d++ {
			vNew := (ws.pos[i][d] - ws.prevPos[i][d]) / dt
			accel := (vNew - ws.prevVel[i][d]) / dt

			tauG := gravityLoad(j, d, worldPos[j.ID], worldOrient[j.ID], mSub, cSub, gravity)
			tauReq := j.Inertia*accel - tauG

			if math.Abs(tauReq) > capacity && capacity > 0 {
				allowed := (sign(tauReq)*capacity + tauG) / j.Inertia
				vAllowed := ws.prevVel[i][d] + allowed*dt
				posAllowed := ws.prevPos[i][d] + vAllowed*dt
				wanted := ws.pos[i][d]
				ws.set(i, d, posAllowed)
				// Only the portion actually given up is owed later.
				ws.deferred[i][d] = wanted - ws.pos[i][d]
				maxUse = 1
				continue
			}

			ws.deferred[i][d] = 0
			if j.Actuation.MaxTorque > 0 {
				if use := math.Abs(tauReq) / j.Actuation.MaxTorque; use > maxUse {
					maxUse = use
				}
			}
		}
		ws.torqueUse[i] = clamp(maxUse, 0, 1)
	}

	// Sustained torque intents translate to the acceleration the
	// capacity check just validated the budget for.
	for idx := range sys.Constraints {
		c := &sys.Constraints[idx]
		if c.Kind != constraint.KindTorque {
			continue
		}
		i, ok := ws.idx[c.JointID]
		if !ok || c.DOF >= ws.joints[i].DOFs {
			continue
		}
		j := ws.joints[i]
		tau := clamp(c.Target, -j.Capacity(), j.Capacity())
		accel := tau / j.Inertia
		wn := c.Weight / (c.Weight + 1)
		ws.move(i, c.DOF, wn*accel*dt*dt, w.CorrectionLimit)
	}
}

// energeticPass blends toward the minimum weighted effort/comfort cost
// among states the earlier passes allow. Adjustments stay small; the
// hard sweep has the last word before emission.
func (s *Solver) energeticPass(ws *workspace, sys *constraint.System, w Weights, _ *Carry) {
	if w.Energetic <= 0 {
		return
	}
	gain := 0.3 * w.Energetic
	limit := w.CorrectionLimit

	for idx := range sys.Constraints {
		c := &sys.Constraints[idx]
		switch c.Kind {
		case constraint.KindComfort:
			for i, j := range ws.joints {
				for d := 0; d < j.DOFs; d++ {
					ws.move(i, d, gain*c.Weight*(j.Rest[d]-ws.pos[i][d]), limit)
				}
			}
		case constraint.KindEffort:
			for i, j := range ws.joints {
				for d := 0; d < j.DOFs; d++ {
					ws.move(i, d, -gain*c.Weight*(ws.pos[i][d]-ws.prevPos[i][d]), limit)
				}
			}
		}
	}
}

func gravityLoad(j *morphology.Joint, d int, origin mgl64.Vec3, orient mgl64.Quat, mSub float64, cSub, gravity mgl64.Vec3) float64 {
	switch j.Kind {
	case morphology.KindPrismatic:
		return mSub * gravity.Dot(orient.Rotate(j.Axis))
	case morphology.KindRevolute:
		axis := orient.Rotate(j.Axis)
		r := cSub.Sub(origin)
		return mSub * r.Cross(gravity).Dot(axis)
	case morphology.KindSpherical:
		var e mgl64.Vec3
		e[d] = 1
		axis := orient.Rotate(e)
		r := cSub.Sub(origin)
		return mSub * r.Cross(gravity).Dot(axis)
	default:
		return 0
	}
}

func sign(v float64) float64 {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}

func horizontalDistance(a, b mgl64.Vec3) float64 {
	dx := a.X() - b.X()
	dz := a.Z() - b.Z()
	return math.Hypot(dx, dz)
}
