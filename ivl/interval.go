// Package ivl implements the interval and forward-mode derivative
// arithmetic kernels the tile-pruning engine specializes tapes with.
// Every operator here must be sound (never narrower than the true range)
// and monotonic under interval inclusion.
package ivl

import (
	"github.com/chewxy/math32"
)

// I is a closed interval [Lo, Hi] with Lo <= Hi. A degenerate interval
// (Lo == Hi) represents an exact point.
type I struct {
	Lo, Hi float32
}

// Pt returns the degenerate interval containing only v.
func Pt(v float32) I { return I{Lo: v, Hi: v} }

func (a I) Contains(v float32) bool { return v >= a.Lo && v <= a.Hi }

func (a I) Union(b I) I {
	return I{Lo: math32.Min(a.Lo, b.Lo), Hi: math32.Max(a.Hi, b.Hi)}
}

func Add(a, b I) I { return I{Lo: a.Lo + b.Lo, Hi: a.Hi + b.Hi} }

func Sub(a, b I) I { return I{Lo: a.Lo - b.Hi, Hi: a.Hi - b.Lo} }

func Neg(a I) I { return I{Lo: -a.Hi, Hi: -a.Lo} }

func Mul(a, b I) I {
	p1, p2, p3, p4 := a.Lo*b.Lo, a.Lo*b.Hi, a.Hi*b.Lo, a.Hi*b.Hi
	lo := math32.Min(math32.Min(p1, p2), math32.Min(p3, p4))
	hi := math32.Max(math32.Max(p1, p2), math32.Max(p3, p4))
	return I{Lo: lo, Hi: hi}
}

func Square(a I) I {
	if a.Lo >= 0 {
		return I{Lo: a.Lo * a.Lo, Hi: a.Hi * a.Hi}
	}
	if a.Hi <= 0 {
		return I{Lo: a.Hi * a.Hi, Hi: a.Lo * a.Lo}
	}
	// Straddles zero: minimum is 0, maximum is the larger magnitude squared.
	m := math32.Max(-a.Lo, a.Hi)
	return I{Lo: 0, Hi: m * m}
}

// Div honors the rule that a denominator interval straddling zero widens
// the result to the full real line, since the quotient is unbounded there.
func Div(a, b I) I {
	if b.Lo <= 0 && b.Hi >= 0 {
		return I{Lo: math32.Inf(-1), Hi: math32.Inf(1)}
	}
	return Mul(a, I{Lo: 1 / b.Hi, Hi: 1 / b.Lo})
}

// Min returns the interval min together with the choice code: ChoiceLHS if
// a is unambiguously smaller, ChoiceRHS if b is, ChoiceAmbiguous otherwise.
func Min(a, b I) (I, Choice) {
	res := I{Lo: math32.Min(a.Lo, b.Lo), Hi: math32.Min(a.Hi, b.Hi)}
	switch {
	case a.Hi < b.Lo:
		return res, ChoiceLHS
	case b.Hi < a.Lo:
		return res, ChoiceRHS
	default:
		return res, ChoiceAmbiguous
	}
}

// Max is the dual of Min.
func Max(a, b I) (I, Choice) {
	res := I{Lo: math32.Max(a.Lo, b.Lo), Hi: math32.Max(a.Hi, b.Hi)}
	switch {
	case a.Lo > b.Hi:
		return res, ChoiceLHS
	case b.Lo > a.Hi:
		return res, ChoiceRHS
	default:
		return res, ChoiceAmbiguous
	}
}

func Abs(a I) I {
	if a.Lo >= 0 {
		return a
	}
	if a.Hi <= 0 {
		return I{Lo: -a.Hi, Hi: -a.Lo}
	}
	return I{Lo: 0, Hi: math32.Max(-a.Lo, a.Hi)}
}

// Sqrt clamps the domain to non-negative inputs, matching the evaluators'
// convention of treating sqrt of a negative as the boundary value 0 rather
// than NaN, which would otherwise poison the bounds of shapes whose
// bounding interval momentarily dips below zero under the sqrt.
func Sqrt(a I) I {
	lo := math32.Max(a.Lo, 0)
	hi := math32.Max(a.Hi, 0)
	return I{Lo: math32.Sqrt(lo), Hi: math32.Sqrt(hi)}
}

// monotone wraps a scalar function known to be monotonically increasing
// over ℝ (or over the relevant domain) into its interval form.
func monotoneIncr(f func(float32) float32, a I) I {
	return I{Lo: f(a.Lo), Hi: f(a.Hi)}
}

func Exp(a I) I { return monotoneIncr(math32.Exp, a) }

// Log is only sound for positive inputs. Both bounds are clamped to the
// smallest positive float32 first, so any part of the input at or below
// zero maps to the log of that value; nothing upstream rejects such inputs.
func Log(a I) I {
	lo := math32.Max(a.Lo, math32.SmallestNonzeroFloat32)
	hi := math32.Max(a.Hi, math32.SmallestNonzeroFloat32)
	return I{Lo: math32.Log(lo), Hi: math32.Log(hi)}
}

func Atan(a I) I { return monotoneIncr(math32.Atan, a) }

// Sin and Cos return the full [-1, 1] range when the input interval spans a
// whole period or more. Otherwise they take the values at both endpoints
// and raise the upper bound to 1 (or lower the lower bound to -1) only when
// a maximum (or minimum) lies inside the interval; sound (never narrower
// than the true range).
func Sin(a I) I {
	if a.Hi-a.Lo >= 2*math32.Pi {
		return I{Lo: -1, Hi: 1}
	}
	lo, hi := math32.Sin(a.Lo), math32.Sin(a.Hi)
	if lo > hi {
		lo, hi = hi, lo
	}
	if crossesExtremum(a, math32.Pi/2) || crossesExtremum(a, -3*math32.Pi/2) {
		hi = 1
	}
	if crossesExtremum(a, -math32.Pi/2) || crossesExtremum(a, 3*math32.Pi/2) {
		lo = -1
	}
	return I{Lo: lo, Hi: hi}
}

func Cos(a I) I {
	return Sin(I{Lo: a.Lo + math32.Pi/2, Hi: a.Hi + math32.Pi/2})
}

// crossesExtremum reports whether some integer multiple of 2*pi shifted by
// x0 lands inside [a.Lo, a.Hi].
func crossesExtremum(a I, x0 float32) bool {
	const twoPi = 2 * math32.Pi
	k := math32.Floor((a.Lo - x0) / twoPi)
	x := x0 + k*twoPi
	for x <= a.Hi+1e-6 {
		if x >= a.Lo-1e-6 {
			return true
		}
		x += twoPi
	}
	return false
}

// Asin and Acos clamp to their [-1, 1] domain, the same convention Sqrt
// uses for its own domain boundary.
func Asin(a I) I {
	lo := clamp(a.Lo, -1, 1)
	hi := clamp(a.Hi, -1, 1)
	return I{Lo: math32.Asin(lo), Hi: math32.Asin(hi)}
}

func Acos(a I) I {
	lo := clamp(a.Lo, -1, 1)
	hi := clamp(a.Hi, -1, 1)
	// acos is monotonically decreasing.
	return I{Lo: math32.Acos(hi), Hi: math32.Acos(lo)}
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}
