package tape

import (
	"testing"

	"github.com/soypat/gsdf-render/ivtape/dag"
	"github.com/soypat/gsdf-render/ivtape/ivl"
)

func twoSpheresUnion(b *dag.Builder) *dag.Node {
	left := b.Translate(func(x, y, z *dag.Node) *dag.Node {
		return b.Sub(b.Sqrt(b.Add(b.Add(b.Square(x), b.Square(y)), b.Square(z))), b.Const(0.4))
	}, -1, 0, 0)
	right := b.Translate(func(x, y, z *dag.Node) *dag.Node {
		return b.Sub(b.Sqrt(b.Add(b.Add(b.Square(x), b.Square(y)), b.Square(z))), b.Const(0.4))
	}, 1, 0, 0)
	return b.Min(left, right)
}

func TestClassifyFilledEmptyAmbiguous(t *testing.T) {
	var b dag.Builder
	root := b.Sphere(1)
	tp, err := Compile(root, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	pool := NewPool(64)
	scratch := NewEvalScratch(int(tp.NumSlots), MaxChoicesPerTile)

	// Entirely inside the sphere (radius 1): [-0.1,0.1]^3 is within distance
	// sqrt(0.03) < 1 everywhere, so dist < 0 everywhere -> Filled.
	class, _, err := Classify(tp, 0, pool, ivl.I{Lo: -0.1, Hi: 0.1}, ivl.I{Lo: -0.1, Hi: 0.1}, ivl.I{Lo: -0.1, Hi: 0.1}, scratch)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if class != ClassFilled {
		t.Fatalf("region well inside sphere should classify Filled, got %v", class)
	}

	// Entirely outside: far away box.
	class, _, err = Classify(tp, 0, pool, ivl.I{Lo: 10, Hi: 11}, ivl.I{Lo: 10, Hi: 11}, ivl.I{Lo: 10, Hi: 11}, scratch)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if class != ClassEmpty {
		t.Fatalf("region far from sphere should classify Empty, got %v", class)
	}

	// Straddling the surface: box containing the unit sphere boundary.
	class, _, err = Classify(tp, 0, pool, ivl.I{Lo: 0.5, Hi: 1.5}, ivl.I{Lo: -0.5, Hi: 0.5}, ivl.I{Lo: -0.5, Hi: 0.5}, scratch)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if class != ClassAmbiguous {
		t.Fatalf("region straddling the sphere surface should classify Ambiguous, got %v", class)
	}
}

func TestSpecializeTerminalWhenNoMinMaxSurvives(t *testing.T) {
	var b dag.Builder
	root := b.Sphere(1) // no MIN/MAX at all
	tp, err := Compile(root, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	pool := NewPool(64)
	scratch := NewEvalScratch(int(tp.NumSlots), MaxChoicesPerTile)

	class, clauses, err := Classify(tp, 0, pool, ivl.I{Lo: 0.5, Hi: 1.5}, ivl.I{Lo: -0.5, Hi: 0.5}, ivl.I{Lo: -0.5, Hi: 0.5}, scratch)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if class != ClassAmbiguous {
		t.Fatalf("expected Ambiguous, got %v", class)
	}
	leaf, terminal, err := Specialize(tp, clauses, scratch.RecordedChoices(), pool)
	if err != nil {
		t.Fatalf("Specialize: %v", err)
	}
	if !terminal {
		t.Fatalf("a tape with no MIN/MAX should always specialize to terminal")
	}
	if leaf == 0 {
		t.Fatalf("Specialize should return a non-zero leaf handle")
	}
}

func TestSpecializePrunesDeadBranchOfMin(t *testing.T) {
	var b dag.Builder
	root := twoSpheresUnion(&b)
	tp, err := Compile(root, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	pool := NewPool(64)
	scratch := NewEvalScratch(int(tp.NumSlots), MaxChoicesPerTile)

	// A box only near the left sphere (centered at -1): the right sphere
	// branch is unambiguously larger everywhere in this box, so MIN should
	// resolve to ChoiceLHS and specialization should drop the right branch.
	class, clauses, err := Classify(tp, 0, pool, ivl.I{Lo: -1.5, Hi: -0.5}, ivl.I{Lo: -0.1, Hi: 0.1}, ivl.I{Lo: -0.1, Hi: 0.1}, scratch)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if class != ClassAmbiguous {
		t.Fatalf("expected Ambiguous near the left sphere's surface, got %v", class)
	}
	leaf, terminal, err := Specialize(tp, clauses, scratch.RecordedChoices(), pool)
	if err != nil {
		t.Fatalf("Specialize: %v", err)
	}
	if !terminal {
		t.Fatalf("once MIN resolves to one branch, the specialized subtape should be terminal")
	}
	flat := FlattenSubtape(pool, leaf, nil)
	if len(flat) >= len(tp.Clauses) {
		t.Fatalf("specialized subtape (%d clauses) should be strictly smaller than the full tape (%d)", len(flat), len(tp.Clauses))
	}
}

func TestSpecializeResultMatchesFloatEval(t *testing.T) {
	var b dag.Builder
	root := twoSpheresUnion(&b)
	tp, err := Compile(root, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	pool := NewPool(64)
	escratch := NewEvalScratch(int(tp.NumSlots), MaxChoicesPerTile)
	fscratch := NewFloatScratch(int(tp.NumSlots), MaxChoicesPerTile)

	box := [3]ivl.I{{Lo: -1.2, Hi: -0.8}, {Lo: -0.1, Hi: 0.1}, {Lo: -0.1, Hi: 0.1}}
	_, clauses, err := Classify(tp, 0, pool, box[0], box[1], box[2], escratch)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	leaf, _, err := Specialize(tp, clauses, escratch.RecordedChoices(), pool)
	if err != nil {
		t.Fatalf("Specialize: %v", err)
	}

	px, py, pz := float32(-1.0), float32(0.0), float32(0.0)
	want, err := EvalFloat(tp, 0, pool, px, py, pz, fscratch)
	if err != nil {
		t.Fatalf("EvalFloat root: %v", err)
	}
	got, err := EvalFloat(tp, leaf, pool, px, py, pz, fscratch)
	if err != nil {
		t.Fatalf("EvalFloat specialized: %v", err)
	}
	if d := got - want; d > 1e-4 || d < -1e-4 {
		t.Fatalf("specialized subtape result %g should match root tape result %g at a point inside the tile", got, want)
	}
}

func TestPoolExhaustionIsRecoverable(t *testing.T) {
	var b dag.Builder
	root := b.Sphere(1)
	tp, err := Compile(root, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	pool := NewPool(0) // capacity 0: every Claim fails immediately.
	scratch := NewEvalScratch(int(tp.NumSlots), MaxChoicesPerTile)
	_, clauses, err := Classify(tp, 0, pool, ivl.I{Lo: 0.5, Hi: 1.5}, ivl.I{Lo: -0.5, Hi: 0.5}, ivl.I{Lo: -0.5, Hi: 0.5}, scratch)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	_, _, err = Specialize(tp, clauses, scratch.RecordedChoices(), pool)
	if err == nil {
		t.Fatalf("expected ErrPoolExhausted from a zero-capacity pool")
	}
}

func TestChoiceReplayStaysAlignedAcrossNestedMin(t *testing.T) {
	var b dag.Builder
	// Three spheres, two MIN clauses. Near the leftmost sphere both MINs
	// resolve unambiguously, so both choices must be consumed in reverse
	// order without underflow and the result must be terminal.
	s := func(cx float32) *dag.Node {
		return b.Translate(func(x, y, z *dag.Node) *dag.Node {
			return b.Sub(b.Sqrt(b.Add(b.Add(b.Square(x), b.Square(y)), b.Square(z))), b.Const(0.3))
		}, cx, 0, 0)
	}
	root := b.Min(b.Min(s(-2), s(0)), s(2))
	tp, err := Compile(root, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	pool := NewPool(64)
	scratch := NewEvalScratch(int(tp.NumSlots), MaxChoicesPerTile)

	class, clauses, err := Classify(tp, 0, pool, ivl.I{Lo: -2.4, Hi: -1.6}, ivl.I{Lo: -0.1, Hi: 0.1}, ivl.I{Lo: -0.1, Hi: 0.1}, scratch)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if class != ClassAmbiguous {
		t.Fatalf("expected Ambiguous near the left sphere, got %v", class)
	}
	if scratch.NChoices != 2 {
		t.Fatalf("two MIN clauses should record two choices, got %d", scratch.NChoices)
	}
	leaf, terminal, err := Specialize(tp, clauses, scratch.RecordedChoices(), pool)
	if err != nil {
		t.Fatalf("Specialize: %v", err)
	}
	if !terminal {
		t.Fatalf("both MINs resolve to the left sphere, expected a terminal subtape")
	}

	// The pruned chain must still agree with the full tape inside the tile.
	fs := NewFloatScratch(int(tp.NumSlots), len(tp.Clauses))
	want, err := EvalFloat(tp, 0, pool, -1.9, 0.05, 0, fs)
	if err != nil {
		t.Fatalf("EvalFloat root: %v", err)
	}
	got, err := EvalFloat(tp, leaf, pool, -1.9, 0.05, 0, fs)
	if err != nil {
		t.Fatalf("EvalFloat specialized: %v", err)
	}
	if got != want {
		t.Fatalf("specialized result %g != root result %g", got, want)
	}
}

func TestSpecializeChainSpansMultipleChunks(t *testing.T) {
	var b dag.Builder
	// Long ADD chain: more clauses than one chunk holds, no MIN/MAX, so the
	// specialized program keeps every clause and must spill across chunks.
	x := b.X()
	acc := b.Square(x)
	for i := 0; i < 2*ChunkSize; i++ {
		acc = b.Add(acc, b.Square(x))
	}
	tp, err := Compile(acc, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	pool := NewPool(64)
	scratch := NewEvalScratch(int(tp.NumSlots), MaxChoicesPerTile)
	class, clauses, err := Classify(tp, 0, pool, ivl.I{Lo: -1, Hi: 1}, ivl.I{Lo: -1, Hi: 1}, ivl.I{Lo: -1, Hi: 1}, scratch)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if class != ClassAmbiguous {
		t.Fatalf("sum of squares straddles zero on this box, expected Ambiguous, got %v", class)
	}
	leaf, _, err := Specialize(tp, clauses, scratch.RecordedChoices(), pool)
	if err != nil {
		t.Fatalf("Specialize: %v", err)
	}

	// Walk the chain both ways: Next from the leaf must reach a chunk with
	// Next == 0, Prev from that root must return to the leaf, and no chunk
	// may repeat.
	seen := map[Handle]bool{}
	h := leaf
	var rootChunk Handle
	for h != 0 {
		if seen[h] {
			t.Fatalf("chunk %d appears twice in one chain", h)
		}
		seen[h] = true
		rootChunk = h
		h = pool.Chunk(h).Next
	}
	if len(seen) < 2 {
		t.Fatalf("a %d-clause program must span more than one %d-clause chunk", len(tp.Clauses), ChunkSize)
	}
	h = rootChunk
	var back Handle
	for h != 0 {
		back = h
		h = pool.Chunk(h).Prev
	}
	if back != leaf {
		t.Fatalf("walking Prev from the root chunk should end at the leaf %d, got %d", leaf, back)
	}

	flat := FlattenSubtape(pool, leaf, nil)
	if len(flat) != len(clauses) {
		t.Fatalf("no clause should be dropped from a MIN/MAX-free program: got %d, want %d", len(flat), len(clauses))
	}
}
