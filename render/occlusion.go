package render

import "github.com/soypat/gsdf-render/ivtape/grid"

// occluded reports whether tile is fully beneath the image's current depth
// over its whole pixel footprint (3D only): if every pixel the tile covers
// already has a recorded depth at or above the tile's own maximum
// reachable Z, nothing this tile could contribute would ever win the
// atomic-max race, so it is skipped before interval evaluation even runs.
// The check reads the full-resolution depth image directly rather than a
// downsampled mask, so it can never be more optimistic than the real
// depth data.
func occluded(img *grid.Image, tile Tile, cfg Config) bool {
	if cfg.Dim != 3 || img == nil {
		return false
	}
	top := uint32(tile.PZ + tile.Size)
	for dy := 0; dy < tile.Size; dy++ {
		py := tile.PY + dy
		for dx := 0; dx < tile.Size; dx++ {
			px := tile.PX + dx
			if img.At(px, py) < top {
				return false
			}
		}
	}
	return true
}
