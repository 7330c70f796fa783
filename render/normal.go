package render

import (
	"github.com/chewxy/math32"

	"github.com/soypat/gsdf-render/ivtape/grid"
	"github.com/soypat/gsdf-render/ivtape/ivl"
	"github.com/soypat/gsdf-render/ivtape/tape"
)

// shadeTile runs after the depth pass has fully settled and computes a
// packed surface normal for every filled pixel within tile's footprint,
// forward-mode differentiating at the voxel one step above the recovered
// surface. It evaluates against tile.Subtape rather than the root tape:
// tile already carries the finest specialization the hierarchy produced
// for this footprint (a Filled tile reuses its parent's, an Ambiguous tile
// its own), so nothing is re-specialized here.
func shadeTile(t *tape.Tape, tile Tile, cfg Config, view grid.View, pool *tape.Pool, img *grid.Image, scratch *tape.DerivScratch) error {
	for dy := 0; dy < tile.Size; dy++ {
		py := tile.PY + dy
		for dx := 0; dx < tile.Size; dx++ {
			px := tile.PX + dx
			depth := img.At(px, py)
			if depth == 0 {
				continue
			}
			// Only the tile whose Z range contains the surface voxel shades
			// this pixel: its subtape is the one specialized for that
			// region, and the guard keeps stacked tiles at the same (x,y)
			// from writing the pixel twice.
			sz := int(depth) - 1
			if sz < tile.PZ || sz >= tile.PZ+tile.Size {
				continue
			}
			pz := int(depth) // one voxel above the recorded surface voxel.
			p := view.VoxelCenter(cfg.ImageSize, px, py, pz, cfg.Dim)
			d, err := tape.EvalDeriv(t, tile.Subtape, pool, p.X, p.Y, p.Z, scratch)
			if err != nil {
				return err
			}
			img.SetNormal(px, py, grid.PackNormal(normalizeGradient(d)))
		}
	}
	return nil
}

// normalizeGradient turns a forward-mode derivative's partials into a unit
// gradient, falling back to +Z (the "facing the viewer" default used when a
// gradient degenerates, e.g. exactly at a sqrt domain edge) rather than
// propagating a NaN from dividing by a near-zero magnitude.
func normalizeGradient(d ivl.D) (dx, dy, dz float32) {
	mag := math32.Sqrt(d.DX*d.DX + d.DY*d.DY + d.DZ*d.DZ)
	if mag <= 1e-12 {
		return 0, 0, 1
	}
	return d.DX / mag, d.DY / mag, d.DZ / mag
}
