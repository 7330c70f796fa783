package tape

import (
	"fmt"

	"github.com/soypat/gsdf-render/ivtape/ivl"
)

// Pack2Scratch is per-worker 2-wide packed evaluation state, used by the
// voxel depth pass to amortize memory traffic when scanning two adjacent
// voxels along X.
type Pack2Scratch struct {
	Regs []ivl.Pack2
	flat []Clause
}

func NewPack2Scratch(numSlots, maxClauses int) *Pack2Scratch {
	return &Pack2Scratch{Regs: make([]ivl.Pack2, numSlots), flat: make([]Clause, 0, maxClauses)}
}

// EvalFloat2 evaluates two adjacent voxels (x0,y,z) and (x1,y,z) jointly.
// Per-lane semantics match EvalFloat exactly.
func EvalFloat2(root *Tape, parent Handle, pool *Pool, x0, x1, y, z float32, s *Pack2Scratch) (ivl.Pack2, error) {
	clauses := flattenProgram(root, parent, pool, s.flat)
	regs := s.Regs
	if root.AxisSlot[0] != RegSentinel {
		regs[root.AxisSlot[0]] = ivl.Pack2Of(x0, x1)
	}
	if root.AxisSlot[1] != RegSentinel {
		regs[root.AxisSlot[1]] = ivl.Pack2Of(y, y)
	}
	if root.AxisSlot[2] != RegSentinel {
		regs[root.AxisSlot[2]] = ivl.Pack2Of(z, z)
	}
	for _, c := range clauses {
		if err := evalPack2Clause(c, root.Consts, regs); err != nil {
			return ivl.Pack2{}, err
		}
	}
	return regs[root.Root], nil
}

func p2operand(mode OperandMode, idx uint16, isLHS bool, regs []ivl.Pack2, consts []float32) ivl.Pack2 {
	var isImm bool
	if isLHS {
		isImm = mode.lhsIsImm()
	} else {
		isImm = mode.rhsIsImm()
	}
	if isImm {
		return ivl.Pack2Of(consts[idx], consts[idx])
	}
	return regs[idx]
}

func evalPack2Clause(c Clause, consts []float32, regs []ivl.Pack2) error {
	lhs := func() ivl.Pack2 { return p2operand(c.Mode, c.LHS, true, regs, consts) }
	rhs := func() ivl.Pack2 { return p2operand(c.Mode, c.RHS, false, regs, consts) }
	switch c.Op {
	case OpSquare:
		regs[c.Out] = lhs().Square()
	case OpSqrt:
		regs[c.Out] = lhs().Sqrt()
	case OpNeg:
		regs[c.Out] = lhs().Neg()
	case OpSin:
		regs[c.Out] = lhs().Sin()
	case OpCos:
		regs[c.Out] = lhs().Cos()
	case OpAsin:
		regs[c.Out] = lhs().Asin()
	case OpAcos:
		regs[c.Out] = lhs().Acos()
	case OpAtan:
		regs[c.Out] = lhs().Atan()
	case OpExp:
		regs[c.Out] = lhs().Exp()
	case OpAbs:
		regs[c.Out] = lhs().Abs()
	case OpLog:
		regs[c.Out] = lhs().Log()
	case OpAdd:
		regs[c.Out] = lhs().Add(rhs())
	case OpMul:
		regs[c.Out] = lhs().Mul(rhs())
	case OpSub:
		regs[c.Out] = lhs().Sub(rhs())
	case OpDiv:
		regs[c.Out] = lhs().Div(rhs())
	case OpMin:
		res, _ := lhs().Min(rhs())
		regs[c.Out] = res
	case OpMax:
		res, _ := lhs().Max(rhs())
		regs[c.Out] = res
	case OpCopyImm, OpCopyLHS, OpCopyRHS:
		regs[c.Out] = lhs()
	default:
		return fmt.Errorf("%w: opcode %v", ErrInvariantViolation, c.Op)
	}
	return nil
}
