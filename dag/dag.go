// Package dag is the expression-tree front end: it builds the
// topologically-ordered DAG of opcode nodes the tape compiler consumes.
// Any caller supplying an equivalent topologically-ordered node graph can
// substitute their own builder; this one is kept in-repo so the whole
// pipeline is self-contained and testable.
package dag

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/gsdf-render/ivtape/tape"
)

// Kind identifies what a Node computes. It covers every computing
// tape.Opcode (not END, the COPY forms or JUMP, which only the compiler and
// specializer emit) and additionally distinguishes the three axis variables
// and float constants, neither of which is an emitted clause: axes are bound
// to registers at compile time and constants live in the constant table.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindConst
	KindVarX
	KindVarY
	KindVarZ
	KindSquare
	KindSqrt
	KindNeg
	KindSin
	KindCos
	KindAsin
	KindAcos
	KindAtan
	KindExp
	KindAbs
	KindLog
	KindAdd
	KindMul
	KindMin
	KindMax
	KindSub
	KindDiv
)

// Opcode maps a Kind to its tape opcode. Panics for KindConst/KindVarX/Y/Z,
// which never become clauses of their own.
func (k Kind) Opcode() tape.Opcode {
	switch k {
	case KindSquare:
		return tape.OpSquare
	case KindSqrt:
		return tape.OpSqrt
	case KindNeg:
		return tape.OpNeg
	case KindSin:
		return tape.OpSin
	case KindCos:
		return tape.OpCos
	case KindAsin:
		return tape.OpAsin
	case KindAcos:
		return tape.OpAcos
	case KindAtan:
		return tape.OpAtan
	case KindExp:
		return tape.OpExp
	case KindAbs:
		return tape.OpAbs
	case KindLog:
		return tape.OpLog
	case KindAdd:
		return tape.OpAdd
	case KindMul:
		return tape.OpMul
	case KindMin:
		return tape.OpMin
	case KindMax:
		return tape.OpMax
	case KindSub:
		return tape.OpSub
	case KindDiv:
		return tape.OpDiv
	default:
		panic(fmt.Sprintf("dag: Kind %d has no tape opcode", k))
	}
}

func (k Kind) isUnary() bool  { return k >= KindSquare && k <= KindLog }
func (k Kind) isBinary() bool { return k >= KindAdd && k <= KindDiv }
func (k Kind) isLeaf() bool   { return k == KindConst || k == KindVarX || k == KindVarY || k == KindVarZ }

// Node is one DAG vertex. Nodes form a shared (non-tree) DAG: the same
// *Node may be referenced as an operand from multiple parents, and shared
// subexpressions compile to a single clause.
type Node struct {
	Kind     Kind
	Imm      float32 // valid when Kind == KindConst.
	LHS, RHS *Node    // RHS nil for unary/leaf kinds.
}

// Builder constructs expression nodes. By default a bad argument panics at
// the construction site; setting NoDimensionPanic accumulates errors for a
// single Err() check after the whole expression is built, which keeps
// deeply composed shape code free of per-call error plumbing.
type Builder struct {
	NoDimensionPanic bool
	accumErrs        []error
}

func (b *Builder) Err() error {
	if len(b.accumErrs) == 0 {
		return nil
	}
	return errors.Join(b.accumErrs...)
}

func (b *Builder) errorf(format string, args ...any) {
	if !b.NoDimensionPanic {
		panic(fmt.Sprintf(format, args...))
	}
	b.accumErrs = append(b.accumErrs, fmt.Errorf(format, args...))
}

func (b *Builder) X() *Node { return &Node{Kind: KindVarX} }
func (b *Builder) Y() *Node { return &Node{Kind: KindVarY} }
func (b *Builder) Z() *Node { return &Node{Kind: KindVarZ} }

func (b *Builder) Const(v float32) *Node {
	if math32.IsNaN(v) {
		b.errorf("NaN constant")
	}
	return &Node{Kind: KindConst, Imm: v}
}

func (b *Builder) unary(k Kind, a *Node) *Node {
	if a == nil {
		b.errorf("nil operand to unary node %v", k)
		return &Node{Kind: KindConst}
	}
	return &Node{Kind: k, LHS: a}
}

func (b *Builder) binary(k Kind, a, c *Node) *Node {
	if a == nil || c == nil {
		b.errorf("nil operand to binary node %v", k)
		return &Node{Kind: KindConst}
	}
	return &Node{Kind: k, LHS: a, RHS: c}
}

func (b *Builder) Square(a *Node) *Node { return b.unary(KindSquare, a) }
func (b *Builder) Sqrt(a *Node) *Node   { return b.unary(KindSqrt, a) }
func (b *Builder) Neg(a *Node) *Node    { return b.unary(KindNeg, a) }
func (b *Builder) Sin(a *Node) *Node    { return b.unary(KindSin, a) }
func (b *Builder) Cos(a *Node) *Node    { return b.unary(KindCos, a) }
func (b *Builder) Asin(a *Node) *Node   { return b.unary(KindAsin, a) }
func (b *Builder) Acos(a *Node) *Node   { return b.unary(KindAcos, a) }
func (b *Builder) Atan(a *Node) *Node   { return b.unary(KindAtan, a) }
func (b *Builder) Exp(a *Node) *Node    { return b.unary(KindExp, a) }
func (b *Builder) Abs(a *Node) *Node    { return b.unary(KindAbs, a) }
func (b *Builder) Log(a *Node) *Node    { return b.unary(KindLog, a) }

func (b *Builder) Add(a, c *Node) *Node { return b.binary(KindAdd, a, c) }
func (b *Builder) Mul(a, c *Node) *Node { return b.binary(KindMul, a, c) }
func (b *Builder) Min(a, c *Node) *Node { return b.binary(KindMin, a, c) }
func (b *Builder) Max(a, c *Node) *Node { return b.binary(KindMax, a, c) }
func (b *Builder) Sub(a, c *Node) *Node { return b.binary(KindSub, a, c) }
func (b *Builder) Div(a, c *Node) *Node { return b.binary(KindDiv, a, c) }

// MinN folds a variadic union into a left-associative chain of binary Min
// nodes; the tape format has no N-ary opcode.
func (b *Builder) MinN(nodes ...*Node) *Node {
	if len(nodes) == 0 {
		b.errorf("MinN requires at least 1 argument")
		return b.Const(0)
	}
	acc := nodes[0]
	for _, n := range nodes[1:] {
		acc = b.Min(acc, n)
	}
	return acc
}

func (b *Builder) MaxN(nodes ...*Node) *Node {
	if len(nodes) == 0 {
		b.errorf("MaxN requires at least 1 argument")
		return b.Const(0)
	}
	acc := nodes[0]
	for _, n := range nodes[1:] {
		acc = b.Max(acc, n)
	}
	return acc
}

// Sphere returns the distance field sqrt(x^2+y^2+z^2) - r centered at the
// origin.
func (b *Builder) Sphere(r float32) *Node {
	if r <= 0 {
		b.errorf("non-positive sphere radius %g", r)
	}
	x, y, z := b.X(), b.Y(), b.Z()
	sq := b.Add(b.Add(b.Square(x), b.Square(y)), b.Square(z))
	return b.Sub(b.Sqrt(sq), b.Const(r))
}

// Circle2D is Sphere's 2D analogue: sqrt(x^2+y^2) - r. Z is never
// referenced, so the compiled 2D tape never binds a Z slot and the render
// is independent of Z.
func (b *Builder) Circle2D(r float32) *Node {
	if r <= 0 {
		b.errorf("non-positive circle radius %g", r)
	}
	x, y := b.X(), b.Y()
	sq := b.Add(b.Square(x), b.Square(y))
	return b.Sub(b.Sqrt(sq), b.Const(r))
}

// Translate shifts a shape by (dx,dy,dz): it hands exprFn offset axis
// nodes (X-dx, Y-dy, Z-dz) to build the shape from, rather than rewriting
// an already-built expression's leaves.
func (b *Builder) Translate(exprFn func(x, y, z *Node) *Node, dx, dy, dz float32) *Node {
	x := b.Sub(b.X(), b.Const(dx))
	y := b.Sub(b.Y(), b.Const(dy))
	z := b.Sub(b.Z(), b.Const(dz))
	return exprFn(x, y, z)
}
