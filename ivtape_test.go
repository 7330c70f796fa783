package ivtape

import (
	"testing"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/gsdf-render/ivtape/dag"
)

func TestBuildAndRunEndToEnd(t *testing.T) {
	var b dag.Builder
	root := b.Sphere(0.6)

	r, err := Build(root, 64, 3)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer r.Close()

	if err := r.Run(View{Scale: 1.5, Center: ms3.Vec{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.HeightAt(32, 32) == 0 {
		t.Fatalf("sphere center pixel should have nonzero depth")
	}
}

func TestBuildConfigValidatesDimension(t *testing.T) {
	var b dag.Builder
	root := b.Circle2D(0.5)
	cfg := DefaultConfig(5, 64) // invalid dimension
	if _, err := BuildConfig(root, cfg); err == nil {
		t.Fatalf("expected an error for an invalid dimension")
	}
}

func TestTwoCircleUnion(t *testing.T) {
	var b dag.Builder
	left := b.Translate(func(x, y, z *dag.Node) *dag.Node {
		return b.Sub(b.Sqrt(b.Add(b.Square(x), b.Square(y))), b.Const(0.3))
	}, -0.25, 0, 0)
	right := b.Translate(func(x, y, z *dag.Node) *dag.Node {
		return b.Sub(b.Sqrt(b.Add(b.Square(x), b.Square(y))), b.Const(0.3))
	}, 0.25, 0, 0)
	root := b.Min(left, right)

	r, err := Build(root, 64, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer r.Close()
	if err := r.Run(View{Scale: 1, Center: ms3.Vec{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.HeightAt(32, 32) == 0 {
		t.Fatalf("the union's overlap region at the image center should be filled")
	}
}
