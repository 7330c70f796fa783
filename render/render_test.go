package render

import (
	"testing"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/gsdf-render/ivtape/dag"
	"github.com/soypat/gsdf-render/ivtape/grid"
)

func sphereDAG(r float32) *dag.Node {
	var b dag.Builder
	return b.Sphere(r)
}

func circleDAG(r float32) *dag.Node {
	var b dag.Builder
	return b.Circle2D(r)
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	root := sphereDAG(1)
	cfg := DefaultConfig(3, 100) // not a power of two
	if _, err := Build(root, cfg); err == nil {
		t.Fatalf("expected Build to reject a non-power-of-two image size")
	}
}

func Test3DSphereDepthImage(t *testing.T) {
	root := sphereDAG(0.6)
	cfg := DefaultConfig(3, 64)
	r, err := Build(root, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer r.Close()
	if err := r.Run(grid.View{Scale: 1.5, Center: ms3.Vec{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	center := r.HeightAt(32, 32)
	corner := r.HeightAt(0, 0)
	if center == 0 {
		t.Fatalf("the image center should be inside the sphere and have nonzero depth")
	}
	if corner != 0 {
		t.Fatalf("the image corner should be outside the sphere and have zero depth, got %d", corner)
	}
}

func Test2DCircleFillMask(t *testing.T) {
	root := circleDAG(0.5)
	cfg := DefaultConfig(2, 64)
	r, err := Build(root, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer r.Close()
	if err := r.Run(grid.View{Scale: 1, Center: ms3.Vec{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.HeightAt(32, 32) == 0 {
		t.Fatalf("circle center should be filled")
	}
	if r.HeightAt(0, 0) != 0 {
		t.Fatalf("image corner should be outside a radius-0.5 circle")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	root := sphereDAG(0.6)
	cfg := DefaultConfig(3, 32)
	r, err := Build(root, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer r.Close()
	view := grid.View{Scale: 1.5, Center: ms3.Vec{}}

	if err := r.Run(view); err != nil {
		t.Fatalf("Run #1: %v", err)
	}
	first := snapshotDepth(r, 32)

	if err := r.Run(view); err != nil {
		t.Fatalf("Run #2: %v", err)
	}
	second := snapshotDepth(r, 32)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("re-rendering the same view should be bit-identical, pixel %d: %d vs %d", i, first[i], second[i])
		}
	}
}

func snapshotDepth(r *Renderer, size int) []uint32 {
	out := make([]uint32, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			out[y*size+x] = r.HeightAt(x, y)
		}
	}
	return out
}

func TestCopyToAppendModePreservesUncoveredPixels(t *testing.T) {
	root := circleDAG(0.3)
	cfg := DefaultConfig(2, 32)
	r, err := Build(root, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer r.Close()
	if err := r.Run(grid.View{Scale: 1, Center: ms3.Vec{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dst := make([]uint32, 32*32)
	dst[0] = 0xDEADBEEF // sentinel for a pixel the circle never covers
	r.CopyTo(dst, 32, true, SurfaceDepth)
	if dst[0] != 0xDEADBEEF {
		t.Fatalf("append mode should leave an uncovered destination pixel untouched, got %x", dst[0])
	}
}

func TestNestedSphereLatticeRendersWithoutError(t *testing.T) {
	var b dag.Builder
	spheres := make([]*dag.Node, 0, 8)
	for _, p := range [][3]float32{
		{-0.3, -0.3, -0.3}, {0.3, -0.3, -0.3}, {-0.3, 0.3, -0.3}, {0.3, 0.3, -0.3},
		{-0.3, -0.3, 0.3}, {0.3, -0.3, 0.3}, {-0.3, 0.3, 0.3}, {0.3, 0.3, 0.3},
	} {
		s := b.Translate(func(x, y, z *dag.Node) *dag.Node {
			return b.Sub(b.Sqrt(b.Add(b.Add(b.Square(x), b.Square(y)), b.Square(z))), b.Const(0.2))
		}, p[0], p[1], p[2])
		spheres = append(spheres, s)
	}
	root := b.MinN(spheres...)

	cfg := DefaultConfig(3, 32)
	r, err := Build(root, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer r.Close()
	if err := r.Run(grid.View{Scale: 1.2, Center: ms3.Vec{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := r.Stats()
	if st.PoolInUse == 0 {
		t.Fatalf("an 8-sphere nested-min scene should exercise the subtape pool (deep MIN chains to specialize)")
	}
}

func TestPoolExhaustionFallsBackWithoutError(t *testing.T) {
	root := sphereDAG(0.6)
	cfg := DefaultConfig(3, 32)
	cfg.PoolCapacity = 1 // force exhaustion almost immediately
	r, err := Build(root, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer r.Close()
	if err := r.Run(grid.View{Scale: 1.5, Center: ms3.Vec{}}); err != nil {
		t.Fatalf("Run should degrade gracefully under pool exhaustion, not error: %v", err)
	}
}

func TestConstantShapeClassifiesEmptyEverywhere(t *testing.T) {
	// f = (x*0)+1 = 1 > 0 everywhere: every tile classifies Empty at the
	// coarsest stage and nothing is ever specialized or filled.
	var b dag.Builder
	root := b.Add(b.Mul(b.X(), b.Const(0)), b.Const(1))
	cfg := DefaultConfig(2, 64)
	r, err := Build(root, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer r.Close()
	if err := r.Run(grid.View{Scale: 1, Center: ms3.Vec{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if r.HeightAt(x, y) != 0 {
				t.Fatalf("constant-positive shape should leave pixel (%d,%d) empty", x, y)
			}
		}
	}
	if st := r.Stats(); st.PoolInUse != 0 {
		t.Fatalf("no tile should have been specialized, pool in use = %d", st.PoolInUse)
	}
}

func TestSphereNormalsPointOutward(t *testing.T) {
	root := sphereDAG(0.6)
	cfg := DefaultConfig(3, 64)
	r, err := Build(root, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer r.Close()
	if err := r.Run(grid.View{Scale: 1.5, Center: ms3.Vec{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if r.HeightAt(32, 32) == 0 {
		t.Fatalf("sphere center should be covered")
	}
	n := r.NormalAt(32, 32)
	if n>>24 != 0xFF {
		t.Fatalf("surface pixel should have a written normal (alpha 0xFF), got %08x", n)
	}
	// At the sphere's top-center the gradient is +Z: the dz byte (lowest)
	// should be near 255, dx and dy near the 127/128 midpoint.
	dz := uint8(n)
	dx := uint8(n >> 16)
	dy := uint8(n >> 8)
	if dz < 200 {
		t.Fatalf("top-center normal should point strongly +Z, dz byte = %d", dz)
	}
	if dx < 100 || dx > 155 || dy < 100 || dy > 155 {
		t.Fatalf("top-center normal should have near-zero X/Y, got dx=%d dy=%d", dx, dy)
	}

	// A pixel the sphere never covers must keep a zero normal.
	if r.NormalAt(0, 0) != 0 {
		t.Fatalf("uncovered pixel should have no normal written")
	}
}

func TestHeightAtReportsTopVoxelIndex(t *testing.T) {
	// f = -1 everywhere: every column is solid to the topmost voxel, so the
	// readback value at any pixel is the topmost voxel's Z index.
	var b dag.Builder
	root := b.Const(-1)
	cfg := DefaultConfig(3, 32)
	r, err := Build(root, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer r.Close()
	if err := r.Run(grid.View{Scale: 1, Center: ms3.Vec{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := r.HeightAt(16, 16); got != 31 {
		t.Fatalf("a fully solid volume should read back the top voxel index %d, got %d", 31, got)
	}

	dst := make([]uint32, 32*32)
	r.CopyTo(dst, 32, false, SurfaceDepth)
	if dst[16*32+16] != 31 {
		t.Fatalf("CopyTo depth values should match HeightAt's voxel-index convention, got %d", dst[16*32+16])
	}
}
