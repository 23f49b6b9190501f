// Package solver is the hybrid constraint core. Each tick it reconciles
// kinematic reachability, dynamic consistency and energetic preference
// into one joint-state update, inside a wall-clock budget. The central
// contract: convergence degrades gracefully. A budget cut or an
// unsatisfiable input still yields a state inside every hard limit.
package solver

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"kinesis/internal/constraint"
	"kinesis/internal/morphology"
)

// Config is the per-engine solver tuning, passed in explicitly rather
// than held as ambient state.
type Config struct {
	// DT is the fixed simulation timestep in seconds.
	DT float64
	// Iterations bounds the blended pass loop; Budget bounds it in
	// wall-clock time. Whichever trips first ends the tick.
	Iterations int
	Budget     time.Duration
	// Tolerance is the per-iteration movement below which the tick is
	// considered converged.
	Tolerance float64
	// RelaxWeight is the soft weight a relaxed hard constraint gets.
	RelaxWeight float64
}

func DefaultConfig() Config {
	return Config{
		DT:          1.0 / 60.0,
		Iterations:  8,
		Budget:      2 * time.Millisecond,
		Tolerance:   1e-6,
		RelaxWeight: 50,
	}
}

// Weights are the blend coefficients the temporal plasticity controller
// retunes between ticks.
type Weights struct {
	// Kinematic is the correction gain of the kinematic pass.
	Kinematic float64
	// Dynamic is the fraction of actuation capacity the dynamic pass
	// lets a tick spend; perturbations push it toward 1.
	Dynamic float64
	// Energetic scales the effort/comfort objective.
	Energetic float64
	// CorrectionLimit bounds any single DOF adjustment per iteration.
	CorrectionLimit float64
}

func DefaultWeights() Weights {
	return Weights{
		Kinematic:       0.6,
		Dynamic:         0.7,
		Energetic:       1.0,
		CorrectionLimit: 0.15,
	}
}

// Carry holds the portion of a correction the dynamic pass deferred to
// later ticks because actuation capacity could not deliver it at once.
// Owned by the entity, threaded through consecutive Solve calls.
type Carry struct {
	Deferred map[string][]float64
}

func NewCarry() *Carry {
	return &Carry{Deferred: make(map[string][]float64)}
}

func (c *Carry) add(jointID string, d int, amount float64, dofs int) {
	if c.Deferred[jointID] == nil {
		c.Deferred[jointID] = make([]float64, dofs)
	}
	c.Deferred[jointID][d] += amount
}

// Delta is the per-joint state change of one tick.
type Delta struct {
	Position map[string][]float64
	Velocity map[string][]float64
}

// Magnitude is the largest absolute DOF position change in the delta.
func (d Delta) Magnitude() float64 {
	max := 0.0
	for _, dofs := range d.Position {
		for _, v := range dofs {
			if a := math.Abs(v); a > max {
				max = a
			}
		}
	}
	return max
}

// Report captures how the solve went for observability and plasticity
// feedback.
type Report struct {
	Iterations     int
	Converged      bool
	Relaxations    int
	RelaxedReason  string
	BudgetExceeded bool
	Duration       time.Duration
	// Residual is the remaining weighted soft objective error; a tick
	// cut short by budget carries it into later ticks.
	Residual float64
	// HardViolation is the remaining hard geometric violation. DOF
	// ranges are enforced exactly; plane and support terms converge
	// toward zero as iterations allow.
	HardViolation float64
}

// Solver runs the fixed kinematic → dynamic → energetic pass sequence.
type Solver struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Solver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DT <= 0 {
		cfg.DT = DefaultConfig().DT
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultConfig().Iterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultConfig().Tolerance
	}
	if cfg.RelaxWeight <= 0 {
		cfg.RelaxWeight = DefaultConfig().RelaxWeight
	}
	return &Solver{cfg: cfg, logger: logger}
}

type pass struct {
	tag string
	run func(ws *workspace, sys *constraint.System, w Weights, carry *Carry)
}

// Solve resolves the constraint system into a joint-state delta and
// applies it to the skeleton, the single mutation point for joint
// state in a tick. The emitted state is inside every hard DOF limit
// even when the context is cancelled or the budget is already spent.
func (s *Solver) Solve(ctx context.Context, skel *morphology.Skeleton, sys *constraint.System, w Weights, carry *Carry) (Delta, Report) {
	start := time.Now()
	report := Report{}
	if carry == nil {
		carry = NewCarry()
	}
	w = normalizeWeights(w)

	// Relaxation on failure: demote the lowest-precedence conflicting
	// hard constraint to a heavily weighted soft one for this tick
	// only. Exactly one relaxation per tick.
	if unsat := sys.Unsatisfiable(); unsat != nil {
		loser := sys.LowerPrecedence(sys.Conflicts[0])
		c := &sys.Constraints[loser]
		c.Hard = false
		c.Relaxed = true
		c.Weight = s.cfg.RelaxWeight
		report.Relaxations = 1
		report.RelaxedReason = sys.Conflicts[0].Reason
		s.logger.Warn("relaxed hard constraint",
			zap.Uint64("tick", sys.Tick),
			zap.String("kind", string(c.Kind)),
			zap.String("source", c.Source.String()),
			zap.String("reason", sys.Conflicts[0].Reason))
	}

	ws := newWorkspace(skel)
	ws.applyCarry(carry, w.CorrectionLimit)
	ws.tallySoftWeights(sys)

	passes := []pass{
		{tag: "kinematic", run: s.kinematicPass},
		{tag: "dynamic", run: s.dynamicPass},
		{tag: "energetic", run: s.energeticPass},
	}

	budget := s.cfg.Budget
	for it := 0; it < s.cfg.Iterations; it++ {
		if budget > 0 && time.Since(start) >= budget {
			report.BudgetExceeded = true
			break
		}
		if ctx.Err() != nil {
			report.BudgetExceeded = true
			break
		}

		ws.maxDelta = 0
		for _, p := range passes {
			p.run(ws, sys, w, carry)
		}
		report.Iterations++

		if ws.maxDelta < s.cfg.Tolerance {
			report.Converged = true
			break
		}
	}

	// The energetic pass must not have the last word on hard geometry.
	s.hardSweep(ws, sys, w)

	delta := s.finalize(ws, sys, w, carry, &report)
	report.Duration = time.Since(start)
	if report.BudgetExceeded {
		s.logger.Debug("solve budget exhausted",
			zap.Uint64("tick", sys.Tick),
			zap.Int("iterations", report.Iterations),
			zap.Float64("residual", report.Residual))
	}
	return delta, report
}

// applyCarry feeds previously deferred corrections back into the
// working buffer, still bounded by limits and the per-tick correction
// cap so a large backlog drains over several ticks.
func (ws *workspace) applyCarry(carry *Carry, correctionLimit float64) {
	for jointID, dofs := range carry.Deferred {
		i, ok := ws.idx[jointID]
		if !ok {
			delete(carry.Deferred, jointID)
			continue
		}
		for d := range dofs {
			amount := dofs[d]
			if amount == 0 {
				continue
			}
			step := clamp(amount, -correctionLimit, correctionLimit)
			before := ws.pos[i][d]
			ws.move(i, d, step, correctionLimit)
			applied := ws.pos[i][d] - before
			dofs[d] -= applied
			// Whatever the limits swallowed is unreachable, not owed.
			if applied == 0 {
				dofs[d] = 0
			}
		}
	}
}

func (ws *workspace) tallySoftWeights(sys *constraint.System) {
	for _, c := range sys.Constraints {
		if c.Hard {
			continue
		}
		switch c.Kind {
		case constraint.KindPoseTarget, constraint.KindPin:
			ws.softWeight[dofRef{c.JointID, c.DOF}] += c.Weight
		}
	}
}

// finalize enforces the hard envelope one last time regardless of how
// the loop ended, derives velocities consistent with acceleration and
// velocity limits, and commits the state to the skeleton.
func (s *Solver) finalize(ws *workspace, sys *constraint.System, w Weights, carry *Carry, report *Report) Delta {
	dt := s.cfg.DT
	delta := Delta{
		Position: make(map[string][]float64, len(ws.joints)),
		Velocity: make(map[string][]float64, len(ws.joints)),
	}

	for i, j := range ws.joints {
		dp := make([]float64, j.DOFs)
		dv := make([]float64, j.DOFs)
		for d := 0; d < j.DOFs; d++ {
			lim := j.Limits[d]

			pos := clamp(ws.pos[i][d], lim.Min, lim.Max)
			vel := (pos - ws.prevPos[i][d]) / dt
			vel = clamp(vel, ws.prevVel[i][d]-lim.MaxAcceleration*dt, ws.prevVel[i][d]+lim.MaxAcceleration*dt)
			vel = clamp(vel, -lim.MaxVelocity, lim.MaxVelocity)
			pos = clamp(ws.prevPos[i][d]+vel*dt, lim.Min, lim.Max)
			vel = (pos - ws.prevPos[i][d]) / dt

			dp[d] = pos - ws.prevPos[i][d]
			dv[d] = vel - ws.prevVel[i][d]
			ws.pos[i][d] = pos
			j.Position[d] = pos
			j.Velocity[d] = vel
		}
		delta.Position[j.ID] = dp
		delta.Velocity[j.ID] = dv

		for d := 0; d < j.DOFs; d++ {
			if ws.deferred[i][d] != 0 {
				carry.add(j.ID, d, ws.deferred[i][d], j.DOFs)
			}
		}

		// Fatigue follows actuation use and recovers at rest.
		use := ws.torqueUse[i]
		j.Fatigue += (j.Actuation.FatigueRate*use - j.Actuation.RecoveryRate) * dt
		j.Fatigue = clamp(j.Fatigue, 0, 0.95)
	}

	ws.fkDirty = true
	report.HardViolation = s.hardViolation(ws, sys)
	report.Residual = s.softResidual(ws, sys, w)
	return delta
}

func (s *Solver) hardViolation(ws *workspace, sys *constraint.System) float64 {
	total := 0.0
	for _, c := range sys.Constraints {
		if !c.Hard {
			continue
		}
		switch c.Kind {
		case constraint.KindPlane:
			worldPos, _ := ws.world()
			p, ok := worldPos[c.JointID]
			if !ok {
				continue
			}
			if v := (c.Target - c.Margin) - c.Normal.Dot(p); v > 0 {
				total += v
			}
		case constraint.KindSupport:
			if c.Radius <= 0 {
				continue
			}
			com := ws.centerOfMass()
			if v := horizontalDistance(com, c.Point) - (c.Radius + c.Margin); v > 0 {
				total += v
			}
		case constraint.KindLoop:
			worldPos, _ := ws.world()
			a, aok := worldPos[c.JointID]
			b, bok := worldPos[c.OtherID]
			if !aok || !bok {
				continue
			}
			total += math.Abs(a.Sub(b).Len() - c.Distance)
		}
	}
	return total
}

func (s *Solver) softResidual(ws *workspace, sys *constraint.System, w Weights) float64 {
	total := 0.0
	for _, c := range sys.Constraints {
		if c.Hard {
			continue
		}
		switch c.Kind {
		case constraint.KindPoseTarget, constraint.KindPin:
			i, ok := ws.idx[c.JointID]
			if !ok || c.DOF >= ws.joints[i].DOFs {
				continue
			}
			total += c.Weight * math.Abs(c.Target-ws.pos[i][c.DOF])
		case constraint.KindEffector:
			worldPos, _ := ws.world()
			p, ok := worldPos[c.JointID]
			if !ok {
				continue
			}
			total += c.Weight * c.Point.Sub(p).Len()
		}
	}
	return total
}

func normalizeWeights(w Weights) Weights {
	def := DefaultWeights()
	if w.Kinematic <= 0 {
		w.Kinematic = def.Kinematic
	}
	if w.Kinematic > 1 {
		w.Kinematic = 1
	}
	if w.Dynamic <= 0 {
		w.Dynamic = def.Dynamic
	}
	if w.Dynamic > 1 {
		w.Dynamic = 1
	}
	if w.Energetic < 0 {
		w.Energetic = 0
	}
	if w.CorrectionLimit <= 0 {
		w.CorrectionLimit = def.CorrectionLimit
	}
	return w
}
