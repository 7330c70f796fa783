package render

import (
	"github.com/soypat/gsdf-render/ivtape/grid"
	"github.com/soypat/gsdf-render/ivtape/tape"
)

// pixelScratch bundles the per-worker evaluation buffers the pixel pass
// needs: a scalar register file for 2D masks (and the projective fallback)
// and a pack-of-two file for the 3D voxel sweep.
type pixelScratch struct {
	f  *tape.FloatScratch
	p2 *tape.Pack2Scratch
}

// fillTile writes tile's pixel (2D) or voxel-column depth (3D) contribution
// into img. A tile already classified Filled is known solid over its whole
// footprint and is written directly, the main payoff of the tile-pruning
// hierarchy, since no per-voxel evaluation is spent confirming what
// interval arithmetic already proved. Anything else reaching this stage is
// Ambiguous at the finest subdivision and is resolved voxel by voxel
// against its (possibly specialized) subtape.
func fillTile(t *tape.Tape, tile Tile, cfg Config, view grid.View, pool *tape.Pool, img *grid.Image, s *pixelScratch) error {
	if tile.Class == tape.ClassFilled {
		fillSolidFootprint(tile, cfg, img)
		return nil
	}
	if cfg.Dim == 2 {
		return fillTile2D(t, tile, cfg, view, pool, img, s.f)
	}
	if view.Matrix != nil || tile.Size%2 != 0 {
		// A projective transform bends the two lanes of a pack apart in Y
		// and Z, and an odd tile width has no pairing for its last column;
		// both cases take the scalar sweep.
		return fillTile3DScalar(t, tile, cfg, view, pool, img, s.f)
	}
	return fillTile3DPacked(t, tile, cfg, view, pool, img, s.p2)
}

func fillTile2D(t *tape.Tape, tile Tile, cfg Config, view grid.View, pool *tape.Pool, img *grid.Image, s *tape.FloatScratch) error {
	for dy := 0; dy < tile.Size; dy++ {
		py := tile.PY + dy
		for dx := 0; dx < tile.Size; dx++ {
			px := tile.PX + dx
			p := view.VoxelCenter(cfg.ImageSize, px, py, 0, cfg.Dim)
			v, err := tape.EvalFloat(t, tile.Subtape, pool, p.X, p.Y, p.Z, s)
			if err != nil {
				return err
			}
			if v < 0 {
				img.SetFilled(px, py)
			}
		}
	}
	return nil
}

// fillTile3DPacked sweeps the tile's voxels two X-adjacent lanes at a time,
// top Z slab first so a column's own hits occlude its lower voxels. A voxel
// whose column already carries an equal-or-higher depth is skipped before
// any evaluation happens. The stored depth is the voxel's Z index plus one
// so a zero cell always means "no coverage"; Renderer.HeightAt strips the
// offset at readback.
func fillTile3DPacked(t *tape.Tape, tile Tile, cfg Config, view grid.View, pool *tape.Pool, img *grid.Image, s *tape.Pack2Scratch) error {
	for dy := 0; dy < tile.Size; dy++ {
		py := tile.PY + dy
		for dz := tile.Size - 1; dz >= 0; dz-- {
			pz := tile.PZ + dz
			depth := uint32(pz + 1)
			for dx := 0; dx < tile.Size; dx += 2 {
				px := tile.PX + dx
				needA := img.At(px, py) < depth
				needB := img.At(px+1, py) < depth
				if !needA && !needB {
					continue
				}
				p0 := view.VoxelCenter(cfg.ImageSize, px, py, pz, cfg.Dim)
				p1 := view.VoxelCenter(cfg.ImageSize, px+1, py, pz, cfg.Dim)
				v, err := tape.EvalFloat2(t, tile.Subtape, pool, p0.X, p1.X, p0.Y, p0.Z, s)
				if err != nil {
					return err
				}
				if needA && v.A < 0 {
					img.MaxDepth(px, py, depth)
				}
				if needB && v.B < 0 {
					img.MaxDepth(px+1, py, depth)
				}
			}
		}
	}
	return nil
}

func fillTile3DScalar(t *tape.Tape, tile Tile, cfg Config, view grid.View, pool *tape.Pool, img *grid.Image, s *tape.FloatScratch) error {
	for dy := 0; dy < tile.Size; dy++ {
		py := tile.PY + dy
		for dx := 0; dx < tile.Size; dx++ {
			px := tile.PX + dx
			for dz := tile.Size - 1; dz >= 0; dz-- {
				pz := tile.PZ + dz
				depth := uint32(pz + 1)
				if img.At(px, py) >= depth {
					break
				}
				p := view.VoxelCenter(cfg.ImageSize, px, py, pz, cfg.Dim)
				v, err := tape.EvalFloat(t, tile.Subtape, pool, p.X, p.Y, p.Z, s)
				if err != nil {
					return err
				}
				if v < 0 {
					img.MaxDepth(px, py, depth)
				}
			}
		}
	}
	return nil
}

// fillSolidFootprint marks every pixel (2D) or voxel column (3D) a Filled
// tile covers without evaluating the tape: the tile's interval bound already
// proved the whole block lies inside the surface.
func fillSolidFootprint(tile Tile, cfg Config, img *grid.Image) {
	top := uint32(tile.PZ + tile.Size)
	for dy := 0; dy < tile.Size; dy++ {
		py := tile.PY + dy
		for dx := 0; dx < tile.Size; dx++ {
			px := tile.PX + dx
			if cfg.Dim == 2 {
				img.SetFilled(px, py)
				continue
			}
			img.MaxDepth(px, py, top)
		}
	}
}
