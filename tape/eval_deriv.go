package tape

import (
	"fmt"

	"github.com/soypat/gsdf-render/ivtape/ivl"
)

// DerivScratch is per-worker forward-mode-AD evaluation state, used by the
// normal pass to compute surface gradients.
type DerivScratch struct {
	Regs []ivl.D
	flat []Clause
}

func NewDerivScratch(numSlots, maxClauses int) *DerivScratch {
	return &DerivScratch{Regs: make([]ivl.D, numSlots), flat: make([]Clause, 0, maxClauses)}
}

// EvalDeriv evaluates value plus (dX,dY,dZ) partials at one point.
func EvalDeriv(root *Tape, parent Handle, pool *Pool, x, y, z float32, s *DerivScratch) (ivl.D, error) {
	clauses := flattenProgram(root, parent, pool, s.flat)
	regs := s.Regs
	if root.AxisSlot[0] != RegSentinel {
		regs[root.AxisSlot[0]] = ivl.VarX(x)
	}
	if root.AxisSlot[1] != RegSentinel {
		regs[root.AxisSlot[1]] = ivl.VarY(y)
	}
	if root.AxisSlot[2] != RegSentinel {
		regs[root.AxisSlot[2]] = ivl.VarZ(z)
	}
	for _, c := range clauses {
		if err := evalDerivClause(c, root.Consts, regs); err != nil {
			return ivl.D{}, err
		}
	}
	return regs[root.Root], nil
}

func doperand(mode OperandMode, idx uint16, isLHS bool, regs []ivl.D, consts []float32) ivl.D {
	var isImm bool
	if isLHS {
		isImm = mode.lhsIsImm()
	} else {
		isImm = mode.rhsIsImm()
	}
	if isImm {
		return ivl.Const(consts[idx])
	}
	return regs[idx]
}

func evalDerivClause(c Clause, consts []float32, regs []ivl.D) error {
	lhs := func() ivl.D { return doperand(c.Mode, c.LHS, true, regs, consts) }
	rhs := func() ivl.D { return doperand(c.Mode, c.RHS, false, regs, consts) }
	switch c.Op {
	case OpSquare:
		regs[c.Out] = ivl.DSquare(lhs())
	case OpSqrt:
		regs[c.Out] = ivl.DSqrt(lhs())
	case OpNeg:
		regs[c.Out] = ivl.DNeg(lhs())
	case OpSin:
		regs[c.Out] = ivl.DSin(lhs())
	case OpCos:
		regs[c.Out] = ivl.DCos(lhs())
	case OpAsin:
		regs[c.Out] = ivl.DAsin(lhs())
	case OpAcos:
		regs[c.Out] = ivl.DAcos(lhs())
	case OpAtan:
		regs[c.Out] = ivl.DAtan(lhs())
	case OpExp:
		regs[c.Out] = ivl.DExp(lhs())
	case OpAbs:
		regs[c.Out] = ivl.DAbs(lhs())
	case OpLog:
		regs[c.Out] = ivl.DLog(lhs())
	case OpAdd:
		regs[c.Out] = ivl.DAdd(lhs(), rhs())
	case OpMul:
		regs[c.Out] = ivl.DMul(lhs(), rhs())
	case OpSub:
		regs[c.Out] = ivl.DSub(lhs(), rhs())
	case OpDiv:
		regs[c.Out] = ivl.DDiv(lhs(), rhs())
	case OpMin:
		res, _ := ivl.DMin(lhs(), rhs())
		regs[c.Out] = res
	case OpMax:
		res, _ := ivl.DMax(lhs(), rhs())
		regs[c.Out] = res
	case OpCopyImm, OpCopyLHS, OpCopyRHS:
		regs[c.Out] = lhs()
	default:
		return fmt.Errorf("%w: opcode %v", ErrInvariantViolation, c.Op)
	}
	return nil
}
