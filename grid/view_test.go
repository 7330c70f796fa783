package grid

import (
	"testing"

	"github.com/soypat/geometry/ms3"
)

func TestTileBoundsNestedTilesAreContained(t *testing.T) {
	v := View{Scale: 2, Center: ms3.Vec{}}
	const imageSize = 64

	parentX, parentY, parentZ := v.TileBounds(imageSize, 0, 0, 0, 16, 3)
	childX, childY, childZ := v.TileBounds(imageSize, 0, 0, 0, 4, 3)

	if childX.Lo < parentX.Lo || childX.Hi > parentX.Hi {
		t.Fatalf("child tile X bounds %v must nest inside parent %v", childX, parentX)
	}
	if childY.Lo < parentY.Lo || childY.Hi > parentY.Hi {
		t.Fatalf("child tile Y bounds %v must nest inside parent %v", childY, parentY)
	}
	if childZ.Lo < parentZ.Lo || childZ.Hi > parentZ.Hi {
		t.Fatalf("child tile Z bounds %v must nest inside parent %v", childZ, parentZ)
	}
}

func TestTileBounds2DDegenerateZ(t *testing.T) {
	v := View{Scale: 1, Center: ms3.Vec{Z: 5}}
	_, _, z := v.TileBounds(64, 0, 0, 0, 16, 2)
	if z.Lo != 5 || z.Hi != 5 {
		t.Fatalf("2D tile Z bound should degenerate to the view center Z, got %v", z)
	}
}

func TestTileBoundsCoversFullImage(t *testing.T) {
	v := View{Scale: 1, Center: ms3.Vec{}}
	const size = 64
	x, y, _ := v.TileBounds(size, 0, 0, 0, size, 2)
	if x.Lo != -1 || x.Hi != 1 {
		t.Fatalf("a tile spanning the whole image should map to [-1,1] in X, got %v", x)
	}
	if y.Lo != -1 || y.Hi != 1 {
		t.Fatalf("a tile spanning the whole image should map to [-1,1] in Y, got %v", y)
	}
}

func TestVoxelCenterInsideItsTile(t *testing.T) {
	v := View{Scale: 1, Center: ms3.Vec{}}
	const imageSize = 64
	x, y, _ := v.TileBounds(imageSize, 8, 8, 0, 1, 2)
	c := v.VoxelCenter(imageSize, 8, 8, 0, 2)
	if !x.Contains(c.X) {
		t.Fatalf("voxel center X %g should lie inside its own pixel bound %v", c.X, x)
	}
	if !y.Contains(c.Y) {
		t.Fatalf("voxel center Y %g should lie inside its own pixel bound %v", c.Y, y)
	}
}
