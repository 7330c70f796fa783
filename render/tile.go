package render

import "github.com/soypat/gsdf-render/ivtape/tape"

// Tile is a spatial cell at one stage of the hierarchical subdivision.
// Pixel-space origin (PX,PY,PZ) plus Size fully determine its footprint;
// PZ/depth-related fields are unused for 2D renders.
type Tile struct {
	PX, PY, PZ int
	Size       int
	Subtape    tape.Handle // 0 = evaluate the root tape directly.
	Terminal   bool
	Class      tape.TileClass
}

// children returns t's (Size/childSize)^dim children, inheriting t's
// subtape handle and terminal flag as their starting parent state.
func (t Tile) children(childSize, dim int) []Tile {
	n := t.Size / childSize
	var out []Tile
	if dim == 2 {
		out = make([]Tile, 0, n*n)
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				out = append(out, Tile{
					PX: t.PX + i*childSize, PY: t.PY + j*childSize, PZ: 0,
					Size: childSize, Subtape: t.Subtape, Terminal: t.Terminal,
				})
			}
		}
		return out
	}
	out = make([]Tile, 0, n*n*n)
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				out = append(out, Tile{
					PX: t.PX + i*childSize, PY: t.PY + j*childSize, PZ: t.PZ + k*childSize,
					Size: childSize, Subtape: t.Subtape, Terminal: t.Terminal,
				})
			}
		}
	}
	return out
}
