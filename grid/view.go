// Package grid implements the tile-grid coordinate math and the per-pixel
// depth/normal image: mapping integer tile/pixel coordinates to
// world-space intervals under a View, and the atomic-max depth image used
// for 3D output and occlusion culling.
package grid

import (
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/gsdf-render/ivtape/ivl"
)

// Mat4 is a row-major 4x4 projective transform, used only when a View
// carries a full projection instead of plain scale/center.
type Mat4 [4][4]float32

// View is scale, center, and an optional full projective transform.
type View struct {
	Scale  float32
	Center ms3.Vec
	Matrix *Mat4 // nil selects the plain scale/center mapping.
}

// ndcToWorld maps one normalized device coordinate corner (each component
// in [-1, 1]) to world space, applying the projective divide by w
// element-wise when a Matrix is present.
func (v View) ndcToWorld(ndc ms3.Vec) ms3.Vec {
	if v.Matrix == nil {
		return ms3.Vec{
			X: ndc.X*v.Scale + v.Center.X,
			Y: ndc.Y*v.Scale + v.Center.Y,
			Z: ndc.Z*v.Scale + v.Center.Z,
		}
	}
	m := v.Matrix
	x := m[0][0]*ndc.X + m[0][1]*ndc.Y + m[0][2]*ndc.Z + m[0][3]
	y := m[1][0]*ndc.X + m[1][1]*ndc.Y + m[1][2]*ndc.Z + m[1][3]
	z := m[2][0]*ndc.X + m[2][1]*ndc.Y + m[2][2]*ndc.Z + m[2][3]
	w := m[3][0]*ndc.X + m[3][1]*ndc.Y + m[3][2]*ndc.Z + m[3][3]
	if w != 0 {
		x, y, z = x/w, y/w, z/w
	}
	return ms3.Vec{X: x, Y: y, Z: z}
}

// pixelNDC maps a pixel-space offset into [-1, 1] normalized device space.
func pixelNDC(px, imageSize int) float32 {
	return float32(px)/float32(imageSize)*2 - 1
}

// TileBounds returns the world-space bounding interval of a tile spanning
// pixel footprint [px0,px0+size) x [py0,py0+size) at the given dimension
// (2 or 3; for dim==2 the Z interval degenerates to the view's center Z,
// so 2D renders are independent of Z).
// When no projection Matrix is set this is the exact axis-aligned bound;
// with a Matrix it is the (sound, not necessarily tight) hull of the
// tile's transformed corners.
func (v View) TileBounds(imageSize, px0, py0, pz0, size, dim int) (x, y, z ivl.I) {
	if v.Matrix == nil {
		x = axisInterval(px0, size, imageSize, v.Scale, v.Center.X)
		y = axisInterval(py0, size, imageSize, v.Scale, v.Center.Y)
		if dim == 2 {
			z = ivl.Pt(v.Center.Z)
		} else {
			z = axisInterval(pz0, size, imageSize, v.Scale, v.Center.Z)
		}
		return x, y, z
	}

	loX, hiX := pixelNDC(px0, imageSize), pixelNDC(px0+size, imageSize)
	loY, hiY := pixelNDC(py0, imageSize), pixelNDC(py0+size, imageSize)
	loZ, hiZ := pixelNDC(pz0, imageSize), pixelNDC(pz0+size, imageSize)
	if dim == 2 {
		loZ, hiZ = 0, 0
	}

	first := true
	for _, cx := range [2]float32{loX, hiX} {
		for _, cy := range [2]float32{loY, hiY} {
			for _, cz := range [2]float32{loZ, hiZ} {
				w := v.ndcToWorld(ms3.Vec{X: cx, Y: cy, Z: cz})
				if first {
					x, y, z = ivl.Pt(w.X), ivl.Pt(w.Y), ivl.Pt(w.Z)
					first = false
				} else {
					x = x.Union(ivl.Pt(w.X))
					y = y.Union(ivl.Pt(w.Y))
					z = z.Union(ivl.Pt(w.Z))
				}
				if dim == 2 {
					break // only one Z corner needed when z degenerates.
				}
			}
		}
	}
	if dim == 2 {
		z = ivl.Pt(v.Center.Z)
	}
	return x, y, z
}

func axisInterval(p0, size, imageSize int, scale, center float32) ivl.I {
	lo := pixelNDC(p0, imageSize)*scale + center
	hi := pixelNDC(p0+size, imageSize)*scale + center
	if lo > hi {
		lo, hi = hi, lo
	}
	return ivl.I{Lo: lo, Hi: hi}
}

// VoxelCenter returns the world-space point at the center of pixel/voxel
// (px,py,pz).
func (v View) VoxelCenter(imageSize, px, py, pz, dim int) ms3.Vec {
	cx := pixelNDC(px, imageSize) + 1/float32(imageSize)
	cy := pixelNDC(py, imageSize) + 1/float32(imageSize)
	cz := pixelNDC(pz, imageSize) + 1/float32(imageSize)
	if dim == 2 {
		cz = 0
	}
	return v.ndcToWorld(ms3.Vec{X: cx, Y: cy, Z: cz})
}
