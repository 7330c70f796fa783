package ivl

import (
	"github.com/chewxy/math32"
)

// D is a forward-mode dual number: a value plus its three partials with
// respect to X, Y and Z. The normal pass uses it to compute surface
// gradients on the finest specialized subtape.
type D struct {
	V          float32
	DX, DY, DZ float32
}

// Const returns a D with zero partials, the derivative of a literal.
func Const(v float32) D { return D{V: v} }

// VarX, VarY, VarZ seed the derivative of the axis variables themselves.
func VarX(v float32) D { return D{V: v, DX: 1} }
func VarY(v float32) D { return D{V: v, DY: 1} }
func VarZ(v float32) D { return D{V: v, DZ: 1} }

func DAdd(a, b D) D {
	return D{V: a.V + b.V, DX: a.DX + b.DX, DY: a.DY + b.DY, DZ: a.DZ + b.DZ}
}

func DSub(a, b D) D {
	return D{V: a.V - b.V, DX: a.DX - b.DX, DY: a.DY - b.DY, DZ: a.DZ - b.DZ}
}

func DNeg(a D) D {
	return D{V: -a.V, DX: -a.DX, DY: -a.DY, DZ: -a.DZ}
}

// DMul applies the product rule: (ab)' = a'b + ab'.
func DMul(a, b D) D {
	return D{
		V:  a.V * b.V,
		DX: a.DX*b.V + a.V*b.DX,
		DY: a.DY*b.V + a.V*b.DY,
		DZ: a.DZ*b.V + a.V*b.DZ,
	}
}

// DDiv applies the quotient rule: (a/b)' = (a'b - ab')/b^2.
func DDiv(a, b D) D {
	inv := 1 / (b.V * b.V)
	return D{
		V:  a.V / b.V,
		DX: (a.DX*b.V - a.V*b.DX) * inv,
		DY: (a.DY*b.V - a.V*b.DY) * inv,
		DZ: (a.DZ*b.V - a.V*b.DZ) * inv,
	}
}

// DSquare is u^2; derivative 2*u*u'. Computed directly as u*u rather than
// through a general power rule, matching how the scalar float evaluator
// computes SQUARE, so the two agree bit-for-bit.
func DSquare(a D) D {
	return D{
		V:  a.V * a.V,
		DX: 2 * a.V * a.DX,
		DY: 2 * a.V * a.DY,
		DZ: 2 * a.V * a.DZ,
	}
}

// DSqrt is sqrt(u); derivative u'/(2*sqrt(u)). At u<=0
// the slope is undefined; we propagate zero partials rather than NaN so a
// tile boundary sitting exactly on a sqrt domain edge still yields a usable
// (if degenerate) normal instead of poisoning the whole gradient.
func DSqrt(a D) D {
	v := math32.Sqrt(math32.Max(a.V, 0))
	if v <= 1e-12 {
		return D{V: v}
	}
	k := 1 / (2 * v)
	return D{V: v, DX: a.DX * k, DY: a.DY * k, DZ: a.DZ * k}
}

func DAbs(a D) D {
	if a.V >= 0 {
		return a
	}
	return DNeg(a)
}

func DExp(a D) D {
	v := math32.Exp(a.V)
	return D{V: v, DX: a.DX * v, DY: a.DY * v, DZ: a.DZ * v}
}

func DLog(a D) D {
	u := math32.Max(a.V, math32.SmallestNonzeroFloat32)
	v := math32.Log(u)
	k := 1 / u
	return D{V: v, DX: a.DX * k, DY: a.DY * k, DZ: a.DZ * k}
}

func DSin(a D) D {
	v := math32.Sin(a.V)
	k := math32.Cos(a.V)
	return D{V: v, DX: a.DX * k, DY: a.DY * k, DZ: a.DZ * k}
}

func DCos(a D) D {
	v := math32.Cos(a.V)
	k := -math32.Sin(a.V)
	return D{V: v, DX: a.DX * k, DY: a.DY * k, DZ: a.DZ * k}
}

func DAsin(a D) D {
	v := math32.Asin(clamp(a.V, -1, 1))
	k := 1 / math32.Sqrt(math32.Max(1-a.V*a.V, 1e-12))
	return D{V: v, DX: a.DX * k, DY: a.DY * k, DZ: a.DZ * k}
}

func DAcos(a D) D {
	v := math32.Acos(clamp(a.V, -1, 1))
	k := -1 / math32.Sqrt(math32.Max(1-a.V*a.V, 1e-12))
	return D{V: v, DX: a.DX * k, DY: a.DY * k, DZ: a.DZ * k}
}

func DAtan(a D) D {
	v := math32.Atan(a.V)
	k := 1 / (1 + a.V*a.V)
	return D{V: v, DX: a.DX * k, DY: a.DY * k, DZ: a.DZ * k}
}

// DMin and DMax propagate the partials of whichever branch produced the
// result value, choosing LHS on ties, the same tie-break the interval
// evaluator's choice codes use.
func DMin(a, b D) (D, Choice) {
	if a.V <= b.V {
		return a, ChoiceLHS
	}
	return b, ChoiceRHS
}

func DMax(a, b D) (D, Choice) {
	if a.V >= b.V {
		return a, ChoiceLHS
	}
	return b, ChoiceRHS
}
