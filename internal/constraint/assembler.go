package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"kinesis/internal/envctx"
	"kinesis/internal/intent"
	"kinesis/internal/morphology"
)

// Params tunes compilation. All fields have working defaults via
// DefaultParams.
type Params struct {
	// ContactMargin is the base non-penetration slack for contact planes.
	ContactMargin float64
	// StaleMargin widens inequality margins per tick of fact staleness.
	StaleMargin float64
	// ComfortWeight and EffortWeight are the baseline energetic terms.
	ComfortWeight float64
	EffortWeight  float64
	// PinTolerance is how far two hard equalities may disagree before
	// they are mutually exclusive.
	PinTolerance float64
}

func DefaultParams() Params {
	return Params{
		ContactMargin: 1e-4,
		StaleMargin:   0.02,
		ComfortWeight: 0.05,
		EffortWeight:  0.1,
		PinTolerance:  1e-4,
	}
}

// Assembler deterministically compiles one tick's constraint system.
type Assembler struct {
	params Params
}

func NewAssembler(p Params) *Assembler {
	if p.PinTolerance <= 0 {
		p.PinTolerance = DefaultParams().PinTolerance
	}
	return &Assembler{params: p}
}

// Assemble walks morphology, active intents and environment facts in
// stable order. Contradictory hard constraints are recorded as
// conflicts for the solver to relax; they never fail the call.
func (a *Assembler) Assemble(skel *morphology.Skeleton, actives []intent.Active, facts envctx.Facts, tick uint64) *System {
	sys := &System{Tick: tick, Stale: facts.Stale}
	seq := 0
	add := func(c Constraint) {
		c.Seq = seq
		seq++
		sys.Constraints = append(sys.Constraints, c)
	}

	staleSlack := 0.0
	if facts.Stale {
		staleSlack = a.params.StaleMargin * float64(facts.Age)
	}

	// Physical limits: one hard range per DOF, highest precedence.
	for _, j := range skel.Joints() {
		for d := 0; d < j.DOFs; d++ {
			add(Constraint{
				Kind:    KindRange,
				Source:  SourceLimit,
				Hard:    true,
				JointID: j.ID,
				DOF:     d,
				Min:     j.Limits[d].Min,
				Max:     j.Limits[d].Max,
			})
		}
	}

	// Contacts become hard non-penetration planes. Stale facts are
	// relaxed by widening the margin instead of dropping the constraint.
	for _, c := range facts.Contacts {
		if _, ok := skel.Joint(c.JointID); !ok {
			continue
		}
		n := c.Normal
		if n.Len() < 1e-12 {
			continue
		}
		n = n.Normalize()
		add(Constraint{
			Kind:    KindPlane,
			Source:  SourceContact,
			Hard:    true,
			JointID: c.JointID,
			Point:   c.Point,
			Normal:  n,
			Target:  n.Dot(c.Point),
			Margin:  a.params.ContactMargin + staleSlack,
			Tag:     c.Tag,
		})
	}

	// Supports constrain the center of mass to the bearing region. The
	// trustworthy supports merge into one hard region bounding their
	// union, so standing on two feet does not demand the centroid hover
	// over each foot at once. An overloaded support cannot be trusted
	// as a hard fact; it stays an individual strong preference.
	weight := skel.TotalMass() * 9.81
	var trusted []envctx.Support
	for _, s := range facts.Supports {
		if s.Capacity <= 0 || s.Capacity >= weight {
			trusted = append(trusted, s)
			continue
		}
		add(Constraint{
			Kind:    KindSupport,
			Source:  SourceContact,
			Weight:  4,
			JointID: s.JointID,
			Point:   s.Center,
			Radius:  s.Radius,
			Margin:  staleSlack,
			Tag:     s.Tag,
		})
	}
	if len(trusted) > 0 {
		var center mgl64.Vec3
		for _, s := range trusted {
			center = center.Add(s.Center)
		}
		center = center.Mul(1 / float64(len(trusted)))
		radius := 0.0
		for _, s := range trusted {
			if r := horizontalSpan(s.Center, center) + s.Radius; r > radius {
				radius = r
			}
		}
		add(Constraint{
			Kind:    KindSupport,
			Source:  SourceContact,
			Hard:    true,
			Weight:  4,
			JointID: trusted[0].JointID,
			Point:   center,
			Radius:  radius,
			Margin:  staleSlack,
			Tag:     trusted[0].Tag,
		})
	}

	// Proximities are soft avoidance only.
	for _, p := range facts.Proximities {
		if _, ok := skel.Joint(p.JointID); !ok {
			continue
		}
		n := p.Normal
		if n.Len() < 1e-12 {
			continue
		}
		add(Constraint{
			Kind:    KindAvoid,
			Source:  SourceContact,
			Weight:  1 / math.Max(p.Distance, 1e-3),
			JointID: p.JointID,
			Normal:  n.Normalize(),
			Margin:  staleSlack,
			Tag:     p.Tag,
		})
	}

	// Externally imposed joint constraints.
	for _, e := range facts.Externals {
		j, ok := skel.Joint(e.JointID)
		if !ok || e.DOF < 0 || e.DOF >= j.DOFs {
			continue
		}
		hard := e.Hard && !facts.Stale
		if e.Equals != nil {
			add(Constraint{
				Kind:    KindPin,
				Source:  SourceExternal,
				Hard:    hard,
				Weight:  2,
				JointID: e.JointID,
				DOF:     e.DOF,
				Target:  *e.Equals,
				Tag:     e.Tag,
			})
		}
		if e.Min != nil || e.Max != nil {
			lo := math.Inf(-1)
			hi := math.Inf(1)
			if e.Min != nil {
				lo = *e.Min
			}
			if e.Max != nil {
				hi = *e.Max
			}
			add(Constraint{
				Kind:    KindRange,
				Source:  SourceExternal,
				Hard:    hard,
				Weight:  2,
				JointID: e.JointID,
				DOF:     e.DOF,
				Min:     lo,
				Max:     hi,
				Margin:  staleSlack,
				Tag:     e.Tag,
			})
		}
	}

	// Intents compile to soft objectives in priority order. Conflicting
	// goals all land in the system; the solver blends them by weight.
	for _, act := range actives {
		in := act.Intent
		switch in.Kind {
		case intent.GoalPose:
			j, ok := skel.Joint(in.JointID)
			if !ok {
				continue
			}
			for d := 0; d < j.DOFs && d < len(in.Target); d++ {
				add(Constraint{
					Kind:    KindPoseTarget,
					Source:  SourceIntent,
					Weight:  in.Weight,
					JointID: in.JointID,
					DOF:     d,
					Target:  in.Target[d],
				})
			}
		case intent.GoalEffector:
			if _, ok := skel.Joint(in.JointID); !ok {
				continue
			}
			add(Constraint{
				Kind:    KindEffector,
				Source:  SourceIntent,
				Weight:  in.Weight,
				JointID: in.JointID,
				Point:   mgl64.Vec3{in.World[0], in.World[1], in.World[2]},
			})
		case intent.GoalForce:
			j, ok := skel.Joint(in.JointID)
			if !ok {
				continue
			}
			for d := 0; d < j.DOFs && d < len(in.Target); d++ {
				add(Constraint{
					Kind:    KindTorque,
					Source:  SourceIntent,
					Weight:  in.Weight,
					JointID: in.JointID,
					DOF:     d,
					Target:  in.Target[d],
				})
			}
		case intent.GoalPreference:
			switch in.Preference {
			case intent.PreferenceBalance:
				add(Constraint{
					Kind:   KindSupport,
					Source: SourceIntent,
					Weight: in.Weight,
					Radius: -1, // bias toward whatever supports exist
				})
			case intent.PreferenceComfort:
				add(Constraint{Kind: KindComfort, Source: SourceIntent, Weight: in.Weight})
			case intent.PreferenceEffort:
				add(Constraint{Kind: KindEffort, Source: SourceIntent, Weight: in.Weight})
			}
		}
	}

	// Baseline energetic objective.
	if a.params.ComfortWeight > 0 {
		add(Constraint{Kind: KindComfort, Source: SourceIntent, Weight: a.params.ComfortWeight})
	}
	if a.params.EffortWeight > 0 {
		add(Constraint{Kind: KindEffort, Source: SourceIntent, Weight: a.params.EffortWeight})
	}

	// Loop closures from the morphology itself.
	for _, loop := range skel.Loops() {
		add(Constraint{
			Kind:     KindLoop,
			Source:   SourceLimit,
			Hard:     true,
			JointID:  loop.From,
			OtherID:  loop.To,
			Distance: loop.Distance,
		})
	}

	a.detectConflicts(sys)
	return sys
}

func horizontalSpan(a, b mgl64.Vec3) float64 {
	dx := a.X() - b.X()
	dz := a.Z() - b.Z()
	return math.Hypot(dx, dz)
}
