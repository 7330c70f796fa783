package tape

import (
	"fmt"

	"github.com/chewxy/math32"
)

// FloatScratch is per-worker scalar-evaluation state, the pixel pass's
// analogue of EvalScratch.
type FloatScratch struct {
	Regs []float32
	flat []Clause
}

func NewFloatScratch(numSlots, maxClauses int) *FloatScratch {
	return &FloatScratch{Regs: make([]float32, numSlots), flat: make([]Clause, 0, maxClauses)}
}

// EvalFloat evaluates the tape (or subtape chain rooted at parent) in
// scalar float32 at one point, following chunk links transparently, and
// returns the root clause's value.
func EvalFloat(root *Tape, parent Handle, pool *Pool, x, y, z float32, s *FloatScratch) (float32, error) {
	clauses := flattenProgram(root, parent, pool, s.flat)
	regs := s.Regs
	if root.AxisSlot[0] != RegSentinel {
		regs[root.AxisSlot[0]] = x
	}
	if root.AxisSlot[1] != RegSentinel {
		regs[root.AxisSlot[1]] = y
	}
	if root.AxisSlot[2] != RegSentinel {
		regs[root.AxisSlot[2]] = z
	}
	for _, c := range clauses {
		if err := evalFloatClause(c, root.Consts, regs); err != nil {
			return 0, err
		}
	}
	return regs[root.Root], nil
}

func foperand(mode OperandMode, idx uint16, isLHS bool, regs []float32, consts []float32) float32 {
	var isImm bool
	if isLHS {
		isImm = mode.lhsIsImm()
	} else {
		isImm = mode.rhsIsImm()
	}
	if isImm {
		return consts[idx]
	}
	return regs[idx]
}

func evalFloatClause(c Clause, consts []float32, regs []float32) error {
	lhs := func() float32 { return foperand(c.Mode, c.LHS, true, regs, consts) }
	rhs := func() float32 { return foperand(c.Mode, c.RHS, false, regs, consts) }
	switch c.Op {
	case OpSquare:
		v := lhs()
		regs[c.Out] = v * v
	case OpSqrt:
		regs[c.Out] = math32.Sqrt(math32.Max(lhs(), 0))
	case OpNeg:
		regs[c.Out] = -lhs()
	case OpSin:
		regs[c.Out] = math32.Sin(lhs())
	case OpCos:
		regs[c.Out] = math32.Cos(lhs())
	case OpAsin:
		regs[c.Out] = math32.Asin(clamp(lhs(), -1, 1))
	case OpAcos:
		regs[c.Out] = math32.Acos(clamp(lhs(), -1, 1))
	case OpAtan:
		regs[c.Out] = math32.Atan(lhs())
	case OpExp:
		regs[c.Out] = math32.Exp(lhs())
	case OpAbs:
		regs[c.Out] = math32.Abs(lhs())
	case OpLog:
		regs[c.Out] = math32.Log(math32.Max(lhs(), math32.SmallestNonzeroFloat32))
	case OpAdd:
		regs[c.Out] = lhs() + rhs()
	case OpMul:
		regs[c.Out] = lhs() * rhs()
	case OpSub:
		regs[c.Out] = lhs() - rhs()
	case OpDiv:
		regs[c.Out] = lhs() / rhs()
	case OpMin:
		regs[c.Out] = math32.Min(lhs(), rhs())
	case OpMax:
		regs[c.Out] = math32.Max(lhs(), rhs())
	case OpCopyImm, OpCopyLHS, OpCopyRHS:
		regs[c.Out] = lhs()
	default:
		return fmt.Errorf("%w: opcode %v", ErrInvariantViolation, c.Op)
	}
	return nil
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}
