package constraint

import (
	"fmt"
	"math"
)

// detectConflicts scans hard constraints for mutually exclusive pairs:
// two equalities pinning the same DOF to different values, an equality
// outside a hard range, and opposing contact planes with no feasible
// gap. Pairs are recorded in assembly order so the scan stays
// deterministic; resolution by precedence is the solver's relaxation
// step.
func (a *Assembler) detectConflicts(sys *System) {
	tol := a.params.PinTolerance

	for i := 0; i < len(sys.Constraints); i++ {
		ca := sys.Constraints[i]
		if !ca.Hard {
			continue
		}
		for j := i + 1; j < len(sys.Constraints); j++ {
			cb := sys.Constraints[j]
			if !cb.Hard {
				continue
			}

			switch {
			case ca.Kind == KindPin && cb.Kind == KindPin &&
				ca.JointID == cb.JointID && ca.DOF == cb.DOF:
				if math.Abs(ca.Target-cb.Target) > tol {
					sys.Conflicts = append(sys.Conflicts, Conflict{
						A: i, B: j,
						Reason: fmt.Sprintf("joint %s DOF %d pinned to both %g and %g", ca.JointID, ca.DOF, ca.Target, cb.Target),
					})
				}

			case ca.Kind == KindRange && cb.Kind == KindPin &&
				ca.JointID == cb.JointID && ca.DOF == cb.DOF:
				if cb.Target < ca.Min-ca.Margin-tol || cb.Target > ca.Max+ca.Margin+tol {
					sys.Conflicts = append(sys.Conflicts, Conflict{
						A: i, B: j,
						Reason: fmt.Sprintf("joint %s DOF %d pinned to %g outside hard range [%g, %g]", ca.JointID, ca.DOF, cb.Target, ca.Min, ca.Max),
					})
				}

			case ca.Kind == KindPlane && cb.Kind == KindPlane && ca.JointID == cb.JointID:
				if ca.Normal.Dot(cb.Normal) > -0.999 {
					continue
				}
				// With nb == -na, na·p >= ta and nb·p >= tb require
				// ta <= -tb to leave any feasible position.
				if ca.Target+cb.Target > ca.Margin+cb.Margin+tol {
					sys.Conflicts = append(sys.Conflicts, Conflict{
						A: i, B: j,
						Reason: fmt.Sprintf("joint %s pinned between opposing contact planes with no feasible gap", ca.JointID),
					})
				}
			}
		}
	}
}

// LowerPrecedence picks the constraint index in a conflict that should
// lose: the one from the lower-precedence source, with later assembly
// order as the stable tie-break.
func (s *System) LowerPrecedence(c Conflict) int {
	ca, cb := s.Constraints[c.A], s.Constraints[c.B]
	if ca.Source != cb.Source {
		if ca.Source > cb.Source {
			return c.A
		}
		return c.B
	}
	if ca.Seq > cb.Seq {
		return c.A
	}
	return c.B
}
