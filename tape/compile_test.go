package tape

import (
	"testing"

	"github.com/soypat/gsdf-render/ivtape/dag"
)

func sphereNode(b *dag.Builder, r float32) *dag.Node { return b.Sphere(r) }

func TestCompileSphereEvaluatesCorrectly(t *testing.T) {
	var b dag.Builder
	root := sphereNode(&b, 1)
	tp, err := Compile(root, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	s := NewFloatScratch(int(tp.NumSlots), len(tp.Clauses))
	// A point at distance 2 from the origin should read back as dist 1 (2-1).
	v, err := EvalFloat(tp, 0, nil, 2, 0, 0, s)
	if err != nil {
		t.Fatalf("EvalFloat: %v", err)
	}
	if d := v - 1; d > 1e-4 || d < -1e-4 {
		t.Fatalf("sphere(r=1) at (2,0,0) = %g, want ~1", v)
	}
	// A point at the origin should read back -1 (0-1).
	v, err = EvalFloat(tp, 0, nil, 0, 0, 0, s)
	if err != nil {
		t.Fatalf("EvalFloat: %v", err)
	}
	if d := v - (-1); d > 1e-4 || d < -1e-4 {
		t.Fatalf("sphere(r=1) at origin = %g, want -1", v)
	}
}

func TestCompileConstantFoldsToSingleClause(t *testing.T) {
	var b dag.Builder
	root := b.Add(b.Const(2), b.Const(3))
	tp, err := Compile(root, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(tp.Clauses) != 1 {
		t.Fatalf("expected a single fully-folded clause, got %d", len(tp.Clauses))
	}
	if tp.Clauses[0].Mode != ModeImmImm {
		t.Fatalf("two-constant Add should compile to ModeImmImm, got %v", tp.Clauses[0].Mode)
	}
}

func TestCompileDedupesConstants(t *testing.T) {
	var b dag.Builder
	root := b.Add(b.Mul(b.X(), b.Const(2)), b.Mul(b.Y(), b.Const(2)))
	tp, err := Compile(root, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(tp.Consts) != 1 {
		t.Fatalf("the same constant value 2 used twice should intern to one entry, got %d", len(tp.Consts))
	}
}

func TestCompileReusesFreedSlots(t *testing.T) {
	var b dag.Builder
	// A chain of independent terms whose earlier operands die quickly should
	// reuse their slots rather than growing NumSlots per term.
	x := b.X()
	acc := b.Square(x)
	for i := 0; i < 20; i++ {
		acc = b.Add(acc, b.Square(x))
	}
	tp, err := Compile(acc, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if tp.NumSlots > 6 {
		t.Fatalf("expected slot reuse to keep the register file small, got %d slots", tp.NumSlots)
	}
}

func TestCompileUnboundAxisIsSentinel(t *testing.T) {
	var b dag.Builder
	root := b.Square(b.X()) // never references Y or Z
	tp, err := Compile(root, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if tp.AxisSlot[1] != RegSentinel {
		t.Fatalf("Y axis should be unbound (sentinel), got slot %d", tp.AxisSlot[1])
	}
	if tp.AxisSlot[2] != RegSentinel {
		t.Fatalf("Z axis should be unbound (sentinel), got slot %d", tp.AxisSlot[2])
	}
	if tp.AxisSlot[0] == RegSentinel {
		t.Fatalf("X axis should be bound")
	}
}

func TestCompileStrictPanicsOnError(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Compile with Strict to panic on an empty expression")
		}
	}()
	_, _ = Compile(nil, CompileOptions{Strict: true})
}
