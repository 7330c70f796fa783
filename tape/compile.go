package tape

import (
	"errors"
	"fmt"

	"github.com/soypat/gsdf-render/ivtape/dag"
)

// ErrTooManySlots is returned when the register allocator would need more
// than MaxSlots slots for a single tape.
var ErrTooManySlots = errors.New("tape: too many register slots")

// ErrUnsupportedOpcode is returned when a DAG node names an operation
// outside the supported set.
var ErrUnsupportedOpcode = errors.New("tape: unsupported opcode")

// MaxSlots bounds the register file: one less than the uint16 space, since
// slot 0 is the reserved sentinel.
const MaxSlots = 65535

// Tape is the immutable compiled program produced by Compile. It is safe
// for concurrent read-only use by any number of evaluation workers.
type Tape struct {
	Clauses  []Clause
	Consts   []float32
	NumSlots uint16
	// AxisSlot[0..2] map X,Y,Z to a bound register, or RegSentinel if that
	// axis is never referenced by the compiled expression.
	AxisSlot [3]uint16
	// Root is the output register of the tape's final clause.
	Root uint16
}

// CompileOptions controls failure behavior: Strict panics immediately on
// the first compile error, useful in tests pinning a known-good shape;
// otherwise Compile returns the first error encountered.
type CompileOptions struct {
	Strict bool
}

// Compile lowers a topologically-ordered expression DAG into a Tape,
// performing slot allocation, axis binding, and constant-table dedup.
func Compile(root *dag.Node, opts CompileOptions) (*Tape, error) {
	order := dag.Flatten(root)
	if len(order) == 0 {
		return nil, fail(opts, errors.New("tape: empty expression"))
	}
	lastUse := dag.LastUse(order)

	t := &Tape{}
	constIdx := map[float32]uint16{}
	internConst := func(v float32) uint16 {
		if i, ok := constIdx[v]; ok {
			return i
		}
		i := uint16(len(t.Consts))
		t.Consts = append(t.Consts, v)
		constIdx[v] = i
		return i
	}

	slotOf := make(map[*dag.Node]uint16, len(order))
	freeSlots := []uint16{}
	nextSlot := uint16(1) // 0 is the reserved sentinel.
	alloc := func() (uint16, error) {
		if n := len(freeSlots); n > 0 {
			s := freeSlots[n-1]
			freeSlots = freeSlots[:n-1]
			return s, nil
		}
		if nextSlot == 0 || int(nextSlot) >= MaxSlots {
			return 0, ErrTooManySlots
		}
		s := nextSlot
		nextSlot++
		return s, nil
	}

	for _, axisNode := range order {
		switch axisNode.Kind {
		case dag.KindVarX, dag.KindVarY, dag.KindVarZ:
			axis := int(axisNode.Kind - dag.KindVarX)
			if t.AxisSlot[axis] == RegSentinel {
				s, err := alloc()
				if err != nil {
					return nil, fail(opts, err)
				}
				t.AxisSlot[axis] = s
			}
			// Every node of one axis shares that axis's single register.
			slotOf[axisNode] = t.AxisSlot[axis]
		}
	}

	release := func(n *dag.Node, atIndex int) {
		if n == nil {
			return
		}
		if lastUse[n] == atIndex {
			// Axis registers stay bound for the whole tape, since several
			// nodes of one axis share them.
			if s, ok := slotOf[n]; ok && s != t.AxisSlot[0] && s != t.AxisSlot[1] && s != t.AxisSlot[2] {
				freeSlots = append(freeSlots, s)
			}
		}
	}

	for i, n := range order {
		if n.Kind == dag.KindConst || n.Kind == dag.KindVarX || n.Kind == dag.KindVarY || n.Kind == dag.KindVarZ {
			continue // constants contribute no clause; axes already slotted above.
		}
		unary := n.Kind >= dag.KindSquare && n.Kind <= dag.KindLog
		binary := n.Kind >= dag.KindAdd && n.Kind <= dag.KindDiv
		if !unary && !binary {
			return nil, fail(opts, fmt.Errorf("%w: dag kind %d", ErrUnsupportedOpcode, n.Kind))
		}

		out, err := alloc()
		if err != nil {
			return nil, fail(opts, err)
		}
		slotOf[n] = out

		c := Clause{Op: n.Kind.Opcode(), Out: out}
		if unary {
			c.LHS, c.Mode = operandOf(n.LHS, slotOf, internConst)
		} else {
			lhsMode, rhsMode := false, false
			c.LHS, lhsMode = operandOf(n.LHS, slotOf, internConst)
			c.RHS, rhsMode = operandOf(n.RHS, slotOf, internConst)
			c.Mode = combineBinaryMode(lhsMode, rhsMode)
			// Commutative operators with one constant operand canonicalize
			// the constant onto LHS.
			if isCommutative(n.Kind) && !lhsMode && rhsMode {
				c.LHS, c.RHS = c.RHS, c.LHS
				c.Mode = ModeImmReg
			}
		}
		t.Clauses = append(t.Clauses, c)

		release(n.LHS, i)
		if n.RHS != n.LHS {
			release(n.RHS, i)
		}
	}

	rootSlot, ok := slotOf[root]
	if !ok {
		// Root is a bare constant with no clause of its own (axis leaves
		// are always slotted above); synthesize a COPY_IMM so Root always
		// names a clause output, simplifying every downstream evaluator.
		out, err := alloc()
		if err != nil {
			return nil, fail(opts, err)
		}
		t.Clauses = append(t.Clauses, Clause{
			Op:   OpCopyImm,
			Mode: ModeImmReg,
			LHS:  internConst(root.Imm),
			Out:  out,
		})
		rootSlot = out
	}
	t.Root = rootSlot
	t.NumSlots = nextSlot
	return t, nil
}

func operandOf(n *dag.Node, slotOf map[*dag.Node]uint16, internConst func(float32) uint16) (idx uint16, isImm bool) {
	if n.Kind == dag.KindConst {
		return internConst(n.Imm), true
	}
	return slotOf[n], false
}

func combineBinaryMode(lhsImm, rhsImm bool) OperandMode {
	switch {
	case lhsImm && rhsImm:
		return ModeImmImm
	case lhsImm:
		return ModeImmReg
	case rhsImm:
		return ModeRegImm
	default:
		return ModeRegReg
	}
}

func isCommutative(k dag.Kind) bool {
	return k == dag.KindAdd || k == dag.KindMul || k == dag.KindMin || k == dag.KindMax
}

func fail(opts CompileOptions, err error) error {
	if opts.Strict {
		panic(err)
	}
	return err
}
