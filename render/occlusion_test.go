package render

import (
	"testing"

	"github.com/soypat/gsdf-render/ivtape/grid"
)

func TestOccludedOnlyAppliesIn3D(t *testing.T) {
	img := grid.NewImage(64)
	cfg := Config{Dim: 2}
	tile := Tile{PX: 0, PY: 0, Size: 8}
	if occluded(img, tile, cfg) {
		t.Fatalf("occlusion culling should never trigger for 2D renders")
	}
}

func TestOccludedRequiresFullFootprintCoverage(t *testing.T) {
	img := grid.NewImage(64)
	cfg := Config{Dim: 3}
	tile := Tile{PX: 0, PY: 0, PZ: 0, Size: 8}
	// Depth image starts at zero everywhere: nothing has been proven yet.
	if occluded(img, tile, cfg) {
		t.Fatalf("a tile should not be occluded before any depth has been recorded")
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.MaxDepth(x, y, 8)
		}
	}
	if !occluded(img, tile, cfg) {
		t.Fatalf("a tile fully covered by an equal-or-greater recorded depth should be occluded")
	}
}

func TestOccludedFalseIfOnePixelUncovered(t *testing.T) {
	img := grid.NewImage(64)
	cfg := Config{Dim: 3}
	tile := Tile{PX: 0, PY: 0, PZ: 0, Size: 8}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x == 0 && y == 0 {
				continue // leave one pixel uncovered
			}
			img.MaxDepth(x, y, 8)
		}
	}
	if occluded(img, tile, cfg) {
		t.Fatalf("a tile with even one uncovered pixel should not be reported occluded")
	}
}
