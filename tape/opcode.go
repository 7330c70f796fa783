// Package tape implements the register-machine clause format, the
// expression-DAG-to-tape compiler, the shared subtape chunk allocator, and
// the interval/float/packed/derivative tape evaluators of the tile-pruning
// render engine.
package tape

import (
	"fmt"

	"github.com/soypat/gsdf-render/ivtape/ivl"
)

// Opcode identifies the operation a Clause performs. Opcode 0 is reserved
// as the end-of-tape marker; it never appears as a live clause's Op.
type Opcode uint8

const (
	OpEnd Opcode = iota

	// Unary.
	OpSquare
	OpSqrt
	OpNeg
	OpSin
	OpCos
	OpAsin
	OpAcos
	OpAtan
	OpExp
	OpAbs
	OpLog

	// Binary commutative.
	OpAdd
	OpMul
	OpMin
	OpMax

	// Binary non-commutative.
	OpSub
	OpDiv

	// Meta.
	OpCopyImm
	OpCopyLHS
	OpCopyRHS
	OpJump
)

func (op Opcode) String() string {
	switch op {
	case OpEnd:
		return "END"
	case OpSquare:
		return "SQUARE"
	case OpSqrt:
		return "SQRT"
	case OpNeg:
		return "NEG"
	case OpSin:
		return "SIN"
	case OpCos:
		return "COS"
	case OpAsin:
		return "ASIN"
	case OpAcos:
		return "ACOS"
	case OpAtan:
		return "ATAN"
	case OpExp:
		return "EXP"
	case OpAbs:
		return "ABS"
	case OpLog:
		return "LOG"
	case OpAdd:
		return "ADD"
	case OpMul:
		return "MUL"
	case OpMin:
		return "MIN"
	case OpMax:
		return "MAX"
	case OpSub:
		return "SUB"
	case OpDiv:
		return "DIV"
	case OpCopyImm:
		return "COPY_IMM"
	case OpCopyLHS:
		return "COPY_LHS"
	case OpCopyRHS:
		return "COPY_RHS"
	case OpJump:
		return "JUMP"
	default:
		return fmt.Sprintf("Opcode(%d)", uint8(op))
	}
}

// IsUnary reports whether op reads a single LHS operand.
func (op Opcode) IsUnary() bool {
	return op >= OpSquare && op <= OpLog
}

// IsBinary reports whether op reads both LHS and RHS operands.
func (op Opcode) IsBinary() bool {
	return op >= OpAdd && op <= OpDiv
}

// IsMinMax reports whether op is one that records a choice bit during
// interval specialization.
func (op Opcode) IsMinMax() bool {
	return op == OpMin || op == OpMax
}

// OperandMode packs, per operand, whether it names a register slot or an
// index into the tape's constant table.
type OperandMode uint8

const (
	// ModeRegReg: LHS and RHS (when present) are both register indices.
	ModeRegReg OperandMode = iota
	// ModeImmReg: LHS is a constant-table index, RHS is a register index.
	ModeImmReg
	// ModeRegImm: LHS is a register index, RHS is a constant-table index.
	ModeRegImm
	// ModeImmImm: both operands are constant-table indices (fully folded).
	ModeImmImm
)

func (m OperandMode) lhsIsImm() bool { return m == ModeImmReg || m == ModeImmImm }
func (m OperandMode) rhsIsImm() bool { return m == ModeRegImm || m == ModeImmImm }

// RegSentinel marks an unused register slot, e.g. an axis not referenced
// by a DAG (VAR_Y in a tape with no Y term).
const RegSentinel uint16 = 0

// Clause is one fixed-width register-machine instruction.
type Clause struct {
	Op   Opcode
	Mode OperandMode
	LHS  uint16 // register index, or constant-table index when Mode marks it immediate.
	RHS  uint16 // unused (0) for unary ops.
	Out  uint16 // destination register, in [1, NumSlots).
}

// Choice is the 2-bit code recorded per MIN/MAX clause during interval
// specialization. Aliased from package ivl, which defines it to avoid an
// import cycle (ivl's arithmetic kernels must not depend on the clause
// format, but tape's specializer needs both).
type Choice = ivl.Choice

const (
	ChoiceAmbiguous = ivl.ChoiceAmbiguous
	ChoiceLHS       = ivl.ChoiceLHS
	ChoiceRHS       = ivl.ChoiceRHS
)
