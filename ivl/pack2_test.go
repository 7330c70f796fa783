package ivl

import "testing"

func TestPack2MatchesScalarPerLane(t *testing.T) {
	p := Pack2Of(2, -3)
	q := Pack2Of(5, 4)

	add := p.Add(q)
	if add.A != 7 || add.B != 1 {
		t.Fatalf("Pack2.Add = %v, want {7,1}", add)
	}

	mul := p.Mul(q)
	if mul.A != 10 || mul.B != -12 {
		t.Fatalf("Pack2.Mul = %v, want {10,-12}", mul)
	}

	sq := p.Square()
	if sq.A != 4 || sq.B != 9 {
		t.Fatalf("Pack2.Square = %v, want {4,9}", sq)
	}
}

func TestPack2MinMaxChoicePerLane(t *testing.T) {
	p := Pack2Of(1, 9)
	q := Pack2Of(2, 8)

	min, cmin := p.Min(q)
	if min.A != 1 || min.B != 8 {
		t.Fatalf("Pack2.Min = %v, want {1,8}", min)
	}
	if cmin[0] != ChoiceLHS || cmin[1] != ChoiceRHS {
		t.Fatalf("Pack2.Min choices = %v, want {LHS,RHS}", cmin)
	}

	max, cmax := p.Max(q)
	if max.A != 2 || max.B != 9 {
		t.Fatalf("Pack2.Max = %v, want {2,9}", max)
	}
	if cmax[0] != ChoiceRHS || cmax[1] != ChoiceLHS {
		t.Fatalf("Pack2.Max choices = %v, want {RHS,LHS}", cmax)
	}
}
