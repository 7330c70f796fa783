package tape

import (
	"errors"
	"fmt"

	"github.com/soypat/gsdf-render/ivtape/ivl"
)

// ErrInvariantViolation marks an internal assertion failure: an opcode
// outside the supported runtime set, a choice-buffer overflow, or a
// choice-bit underflow during specialization replay. Callers treat this as
// fatal; it indicates a bug, not bad input.
var ErrInvariantViolation = errors.New("tape: invariant violation")

// MaxChoicesPerTile bounds the per-tile choice buffer: no tile program may
// contain more than this many MIN/MAX clauses.
const MaxChoicesPerTile = 2048

// TileClass is the result of classifying a tile against a tape.
type TileClass uint8

const (
	ClassUnevaluated TileClass = iota
	ClassAmbiguous
	ClassFilled
	ClassEmpty
	ClassMasked
)

func (c TileClass) String() string {
	switch c {
	case ClassAmbiguous:
		return "Ambiguous"
	case ClassFilled:
		return "Filled"
	case ClassEmpty:
		return "Empty"
	case ClassMasked:
		return "Masked"
	default:
		return "Unevaluated"
	}
}

// EvalScratch is per-worker scratch state reused across tiles. Each worker
// goroutine owns one and never shares it, so no synchronization is needed
// across the Regs/Choices/flat slices themselves; only the Pool's claim
// counter is shared, via atomics.
//
// Choices is dense: one entry per MIN/MAX clause encountered, in forward
// evaluation order. NChoices is how many entries the latest Classify call
// recorded.
type EvalScratch struct {
	Regs     []ivl.I
	Choices  []Choice
	NChoices int
	flat     []Clause
}

// NewEvalScratch sizes scratch for a tape with the given register count.
// maxChoices bounds the dense choice buffer; MaxChoicesPerTile is the
// conventional value.
func NewEvalScratch(numSlots int, maxChoices int) *EvalScratch {
	return &EvalScratch{
		Regs:    make([]ivl.I, numSlots),
		Choices: make([]Choice, maxChoices),
		flat:    make([]Clause, 0, 4*ChunkSize),
	}
}

// RecordedChoices returns the dense choice sequence the latest Classify
// call recorded, one entry per MIN/MAX clause in forward order.
func (s *EvalScratch) RecordedChoices() []Choice {
	return s.Choices[:s.NChoices]
}

// FlattenSubtape walks the chunk chain starting at the leaf handle forward
// (leaf to root, via Next) and appends each chunk's live clauses in their
// stored (already forward) order, reusing dst's backing array.
func FlattenSubtape(pool *Pool, leaf Handle, dst []Clause) []Clause {
	dst = dst[:0]
	h := leaf
	for h != 0 {
		c := pool.Chunk(h)
		dst = append(dst, c.Live()...)
		h = c.Next
	}
	return dst
}

// flattenProgram is the shared "pick the right clause source" helper every
// evaluator (interval, float-scalar, float-pack-of-two, derivative) uses:
// the root tape directly when no specialization exists, or a flattened
// subtape chain once a tile has one.
func flattenProgram(root *Tape, parent Handle, pool *Pool, buf []Clause) []Clause {
	if parent == 0 {
		return root.Clauses
	}
	return FlattenSubtape(pool, parent, buf)
}

func operand(mode OperandMode, idx uint16, isLHS bool, regs []ivl.I, consts []float32) ivl.I {
	var isImm bool
	if isLHS {
		isImm = mode.lhsIsImm()
	} else {
		isImm = mode.rhsIsImm()
	}
	if isImm {
		return ivl.Pt(consts[idx])
	}
	return regs[idx]
}

// Classify evaluates the tile's program (the root tape, or the subtape
// chain rooted at parent) over the given axis intervals with interval
// arithmetic, classifying the tile and recording one dense choice code per
// MIN/MAX clause encountered. The returned clause slice is the exact
// program evaluated; pass it unchanged to Specialize along with
// scratch.RecordedChoices().
func Classify(root *Tape, parent Handle, pool *Pool, x, y, z ivl.I, scratch *EvalScratch) (TileClass, []Clause, error) {
	clauses := flattenProgram(root, parent, pool, scratch.flat)
	if parent != 0 {
		scratch.flat = clauses // retain the grown backing array for reuse.
	}
	regs := scratch.Regs
	for i := range regs {
		regs[i] = ivl.I{}
	}
	if s := root.AxisSlot[0]; s != RegSentinel {
		regs[s] = x
	}
	if s := root.AxisSlot[1]; s != RegSentinel {
		regs[s] = y
	}
	if s := root.AxisSlot[2]; s != RegSentinel {
		regs[s] = z
	}

	scratch.NChoices = 0
	for _, c := range clauses {
		if err := evalIntervalClause(c, root.Consts, regs, scratch); err != nil {
			return ClassUnevaluated, nil, err
		}
	}

	result := regs[root.Root]
	switch {
	case result.Hi < 0:
		return ClassFilled, clauses, nil
	case result.Lo > 0:
		return ClassEmpty, clauses, nil
	default:
		return ClassAmbiguous, clauses, nil
	}
}

func evalIntervalClause(c Clause, consts []float32, regs []ivl.I, scratch *EvalScratch) error {
	switch c.Op {
	case OpSquare:
		regs[c.Out] = ivl.Square(operand(c.Mode, c.LHS, true, regs, consts))
	case OpSqrt:
		regs[c.Out] = ivl.Sqrt(operand(c.Mode, c.LHS, true, regs, consts))
	case OpNeg:
		regs[c.Out] = ivl.Neg(operand(c.Mode, c.LHS, true, regs, consts))
	case OpSin:
		regs[c.Out] = ivl.Sin(operand(c.Mode, c.LHS, true, regs, consts))
	case OpCos:
		regs[c.Out] = ivl.Cos(operand(c.Mode, c.LHS, true, regs, consts))
	case OpAsin:
		regs[c.Out] = ivl.Asin(operand(c.Mode, c.LHS, true, regs, consts))
	case OpAcos:
		regs[c.Out] = ivl.Acos(operand(c.Mode, c.LHS, true, regs, consts))
	case OpAtan:
		regs[c.Out] = ivl.Atan(operand(c.Mode, c.LHS, true, regs, consts))
	case OpExp:
		regs[c.Out] = ivl.Exp(operand(c.Mode, c.LHS, true, regs, consts))
	case OpAbs:
		regs[c.Out] = ivl.Abs(operand(c.Mode, c.LHS, true, regs, consts))
	case OpLog:
		regs[c.Out] = ivl.Log(operand(c.Mode, c.LHS, true, regs, consts))
	case OpAdd:
		regs[c.Out] = ivl.Add(operand(c.Mode, c.LHS, true, regs, consts), operand(c.Mode, c.RHS, false, regs, consts))
	case OpMul:
		regs[c.Out] = ivl.Mul(operand(c.Mode, c.LHS, true, regs, consts), operand(c.Mode, c.RHS, false, regs, consts))
	case OpSub:
		regs[c.Out] = ivl.Sub(operand(c.Mode, c.LHS, true, regs, consts), operand(c.Mode, c.RHS, false, regs, consts))
	case OpDiv:
		regs[c.Out] = ivl.Div(operand(c.Mode, c.LHS, true, regs, consts), operand(c.Mode, c.RHS, false, regs, consts))
	case OpMin:
		res, choice := ivl.Min(operand(c.Mode, c.LHS, true, regs, consts), operand(c.Mode, c.RHS, false, regs, consts))
		regs[c.Out] = res
		if err := recordChoice(scratch, choice); err != nil {
			return err
		}
	case OpMax:
		res, choice := ivl.Max(operand(c.Mode, c.LHS, true, regs, consts), operand(c.Mode, c.RHS, false, regs, consts))
		regs[c.Out] = res
		if err := recordChoice(scratch, choice); err != nil {
			return err
		}
	case OpCopyImm, OpCopyLHS, OpCopyRHS:
		regs[c.Out] = operand(c.Mode, c.LHS, true, regs, consts)
	default:
		return fmt.Errorf("%w: opcode %v", ErrInvariantViolation, c.Op)
	}
	return nil
}

func recordChoice(scratch *EvalScratch, choice Choice) error {
	if scratch.NChoices >= len(scratch.Choices) {
		return fmt.Errorf("%w: tile program exceeds %d MIN/MAX clauses", ErrInvariantViolation, len(scratch.Choices))
	}
	scratch.Choices[scratch.NChoices] = choice
	scratch.NChoices++
	return nil
}

// Specialize walks clauses (as classified by a prior Classify call)
// backward from the root, carrying an active-slot bit vector, and emits
// surviving clauses into freshly claimed chunks written from the high end
// downward. choices is the dense forward-order sequence Classify recorded;
// the backward walk consumes it from the end, one entry per MIN/MAX
// clause whether or not that clause is still active, so the two cursors
// stay aligned. It returns the leaf-most chunk handle of the produced
// chain and whether the result is terminal (no MIN/MAX clauses survived).
func Specialize(root *Tape, clauses []Clause, choices []Choice, pool *Pool) (leaf Handle, terminal bool, err error) {
	active := make([]bool, root.NumSlots)
	active[root.Root] = true
	terminal = true
	cursor := len(choices)

	w, err := newChunkWriter(pool)
	if err != nil {
		return 0, false, err
	}

	for i := len(clauses) - 1; i >= 0; i-- {
		c := clauses[i]
		var choice Choice
		if c.Op.IsMinMax() {
			cursor--
			if cursor < 0 {
				return 0, false, fmt.Errorf("%w: choice-bit underflow at clause %d", ErrInvariantViolation, i)
			}
			choice = choices[cursor]
		}
		if !active[c.Out] {
			continue
		}
		active[c.Out] = false

		if c.Op.IsMinMax() {
			switch choice {
			case ChoiceLHS, ChoiceRHS:
				isLHS := choice == ChoiceLHS
				var idx uint16
				var isImm bool
				if isLHS {
					idx, isImm = c.LHS, c.Mode.lhsIsImm()
				} else {
					idx, isImm = c.RHS, c.Mode.rhsIsImm()
				}
				if isImm {
					if err := w.emit(Clause{Op: OpCopyImm, Mode: ModeImmReg, LHS: idx, Out: c.Out}); err != nil {
						return 0, false, err
					}
					continue
				}
				if idx == c.Out {
					// Output slot equals the selected operand slot: the
					// clause is a no-op and is elided entirely.
					active[idx] = true
					continue
				}
				op := OpCopyLHS
				if !isLHS {
					op = OpCopyRHS
				}
				if err := w.emit(Clause{Op: op, Mode: ModeRegReg, LHS: idx, Out: c.Out}); err != nil {
					return 0, false, err
				}
				active[idx] = true
			default: // ChoiceAmbiguous: keep the clause, activate both operands.
				terminal = false
				if err := w.emit(c); err != nil {
					return 0, false, err
				}
				if !c.Mode.lhsIsImm() {
					active[c.LHS] = true
				}
				if !c.Mode.rhsIsImm() {
					active[c.RHS] = true
				}
			}
			continue
		}

		if err := w.emit(c); err != nil {
			return 0, false, err
		}
		if c.Op.IsUnary() || c.Op == OpCopyImm || c.Op == OpCopyLHS || c.Op == OpCopyRHS {
			if !c.Mode.lhsIsImm() {
				active[c.LHS] = true
			}
		} else if c.Op.IsBinary() {
			if !c.Mode.lhsIsImm() {
				active[c.LHS] = true
			}
			if !c.Mode.rhsIsImm() {
				active[c.RHS] = true
			}
		}
	}

	if cursor != 0 {
		return 0, false, fmt.Errorf("%w: %d unconsumed choice bits after specialization", ErrInvariantViolation, cursor)
	}
	return w.finish(), terminal, nil
}

// chunkWriter claims chunks from pool on demand and fills them backward
// from the high end, linking each newly claimed (leaf-ward) chunk to the
// previous (root-ward) one.
type chunkWriter struct {
	pool   *Pool
	cur    Handle
	cursor int
}

func newChunkWriter(pool *Pool) (*chunkWriter, error) {
	h, err := pool.Claim()
	if err != nil {
		return nil, err
	}
	return &chunkWriter{pool: pool, cur: h, cursor: ChunkSize}, nil
}

func (w *chunkWriter) emit(c Clause) error {
	if w.cursor == 0 {
		newH, err := w.pool.Claim()
		if err != nil {
			return err
		}
		old := w.pool.Chunk(w.cur)
		old.Start = 0
		old.Prev = newH
		w.pool.Chunk(newH).Next = w.cur
		w.cur = newH
		w.cursor = ChunkSize
	}
	w.cursor--
	w.pool.Chunk(w.cur).Data[w.cursor] = c
	return nil
}

func (w *chunkWriter) finish() Handle {
	w.pool.Chunk(w.cur).Start = uint16(w.cursor)
	return w.cur
}
