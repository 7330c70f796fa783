package ivl

import (
	"github.com/chewxy/math32"
)

// Pack2 evaluates two adjacent voxels jointly to amortize memory traffic in
// the per-voxel depth pass. Semantics per lane match the plain scalar
// float evaluator exactly.
type Pack2 struct {
	A, B float32
}

func Pack2Of(a, b float32) Pack2 { return Pack2{A: a, B: b} }

func (p Pack2) Add(q Pack2) Pack2 { return Pack2{p.A + q.A, p.B + q.B} }
func (p Pack2) Sub(q Pack2) Pack2 { return Pack2{p.A - q.A, p.B - q.B} }
func (p Pack2) Mul(q Pack2) Pack2 { return Pack2{p.A * q.A, p.B * q.B} }
func (p Pack2) Neg() Pack2        { return Pack2{-p.A, -p.B} }
func (p Pack2) Square() Pack2     { return Pack2{p.A * p.A, p.B * p.B} }

func (p Pack2) Div(q Pack2) Pack2 { return Pack2{p.A / q.A, p.B / q.B} }

func (p Pack2) Abs() Pack2 {
	return Pack2{math32.Abs(p.A), math32.Abs(p.B)}
}

func (p Pack2) Sqrt() Pack2 {
	return Pack2{math32.Sqrt(math32.Max(p.A, 0)), math32.Sqrt(math32.Max(p.B, 0))}
}

func (p Pack2) Exp() Pack2 { return Pack2{math32.Exp(p.A), math32.Exp(p.B)} }

func (p Pack2) Log() Pack2 {
	return Pack2{
		math32.Log(math32.Max(p.A, math32.SmallestNonzeroFloat32)),
		math32.Log(math32.Max(p.B, math32.SmallestNonzeroFloat32)),
	}
}

func (p Pack2) Sin() Pack2  { return Pack2{math32.Sin(p.A), math32.Sin(p.B)} }
func (p Pack2) Cos() Pack2  { return Pack2{math32.Cos(p.A), math32.Cos(p.B)} }
func (p Pack2) Asin() Pack2 { return Pack2{math32.Asin(clamp(p.A, -1, 1)), math32.Asin(clamp(p.B, -1, 1))} }
func (p Pack2) Acos() Pack2 { return Pack2{math32.Acos(clamp(p.A, -1, 1)), math32.Acos(clamp(p.B, -1, 1))} }
func (p Pack2) Atan() Pack2 { return Pack2{math32.Atan(p.A), math32.Atan(p.B)} }

// Min and Max return per-lane results along with a choice code per lane.
// A tile's recorded choice is only valid when both lanes agree; Pack2 is
// only used in the per-voxel depth pass, which does not record choice
// bits, so the lane choices are informational only.
func (p Pack2) Min(q Pack2) (Pack2, [2]Choice) {
	var c [2]Choice
	res := Pack2{}
	res.A, c[0] = lane(p.A, q.A, true)
	res.B, c[1] = lane(p.B, q.B, true)
	return res, c
}

func (p Pack2) Max(q Pack2) (Pack2, [2]Choice) {
	var c [2]Choice
	res := Pack2{}
	res.A, c[0] = lane(p.A, q.A, false)
	res.B, c[1] = lane(p.B, q.B, false)
	return res, c
}

func lane(a, b float32, isMin bool) (float32, Choice) {
	if isMin {
		if a <= b {
			return a, ChoiceLHS
		}
		return b, ChoiceRHS
	}
	if a >= b {
		return a, ChoiceLHS
	}
	return b, ChoiceRHS
}
