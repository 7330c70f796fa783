package ivl

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
)

// sampleIn draws a point inside the interval, used by the soundness tests
// to assert every exact scalar result falls inside the interval op's
// result.
func sampleIn(rng *rand.Rand, a I) float32 {
	if a.Hi <= a.Lo {
		return a.Lo
	}
	return a.Lo + float32(rng.Float64())*(a.Hi-a.Lo)
}

func TestAddSoundness(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		a := I{Lo: -10 + rng.Float32()*5, Hi: rng.Float32() * 10}
		b := I{Lo: -10 + rng.Float32()*5, Hi: rng.Float32() * 10}
		res := Add(a, b)
		for j := 0; j < 10; j++ {
			x, y := sampleIn(rng, a), sampleIn(rng, b)
			if v := x + y; !res.Contains(v) {
				t.Fatalf("Add(%v,%v)=%v does not contain %g+%g=%g", a, b, res, x, y, v)
			}
		}
	}
}

func TestMulSoundness(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		a := I{Lo: -5 + rng.Float32()*3, Hi: rng.Float32() * 5}
		b := I{Lo: -5 + rng.Float32()*3, Hi: rng.Float32() * 5}
		res := Mul(a, b)
		for j := 0; j < 10; j++ {
			x, y := sampleIn(rng, a), sampleIn(rng, b)
			if v := x * y; !res.Contains(v) {
				t.Fatalf("Mul(%v,%v)=%v does not contain %g*%g=%g", a, b, res, x, y, v)
			}
		}
	}
}

func TestSquareSoundnessStraddlingZero(t *testing.T) {
	a := I{Lo: -3, Hi: 2}
	res := Square(a)
	if res.Lo != 0 {
		t.Fatalf("Square straddling zero should have Lo=0, got %v", res)
	}
	if res.Hi != 9 {
		t.Fatalf("Square(%v) Hi should be 9 (from -3^2), got %v", a, res)
	}
}

func TestDivStraddleWidensToFullRange(t *testing.T) {
	res := Div(I{Lo: 1, Hi: 2}, I{Lo: -1, Hi: 1})
	if !math32.IsInf(res.Lo, -1) || !math32.IsInf(res.Hi, 1) {
		t.Fatalf("Div over a zero-straddling denominator must widen to the full line, got %v", res)
	}
}

func TestMinMaxChoiceCodes(t *testing.T) {
	_, c := Min(I{Lo: 0, Hi: 1}, I{Lo: 2, Hi: 3})
	if c != ChoiceLHS {
		t.Fatalf("Min: expected ChoiceLHS when a unambiguously smaller, got %v", c)
	}
	_, c = Min(I{Lo: 2, Hi: 3}, I{Lo: 0, Hi: 1})
	if c != ChoiceRHS {
		t.Fatalf("Min: expected ChoiceRHS, got %v", c)
	}
	_, c = Min(I{Lo: 0, Hi: 5}, I{Lo: 1, Hi: 4})
	if c != ChoiceAmbiguous {
		t.Fatalf("Min: overlapping ranges must be ChoiceAmbiguous, got %v", c)
	}

	_, c = Max(I{Lo: 2, Hi: 3}, I{Lo: 0, Hi: 1})
	if c != ChoiceLHS {
		t.Fatalf("Max: expected ChoiceLHS, got %v", c)
	}
}

func TestSinSoundnessWideInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		lo := rng.Float32()*20 - 10
		width := rng.Float32() * 15
		a := I{Lo: lo, Hi: lo + width}
		res := Sin(a)
		for j := 0; j < 10; j++ {
			x := sampleIn(rng, a)
			if v := math32.Sin(x); !res.Contains(v) {
				t.Fatalf("Sin(%v)=%v does not contain sin(%g)=%g", a, res, x, v)
			}
		}
	}
}

func TestSqrtClampsNegativeDomain(t *testing.T) {
	res := Sqrt(I{Lo: -4, Hi: 9})
	if res.Lo != 0 || res.Hi != 3 {
		t.Fatalf("Sqrt should clamp negative lower bound to 0, got %v", res)
	}
}

func TestMonotonicUnderInclusion(t *testing.T) {
	// A tighter input interval must never produce a wider output interval
	// for a monotone-wrapped op.
	wide := Exp(I{Lo: -2, Hi: 2})
	tight := Exp(I{Lo: -1, Hi: 1})
	if tight.Lo < wide.Lo || tight.Hi > wide.Hi {
		t.Fatalf("Exp not monotonic under inclusion: tight=%v wide=%v", tight, wide)
	}
}
