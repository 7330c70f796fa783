package grid

import "sync/atomic"

// Image is a square array of depth (or, for 2D, fill-mask) values with
// atomic-max write semantics, and a parallel packed-normal buffer used for
// 3D shaded output.
//
// For 2D renders only Depth is used: nonzero means filled. For 3D, Depth
// holds a per-pixel height that only grows; package render stores the
// highest inside voxel's Z index plus one, so zero means no coverage.
type Image struct {
	Size   int
	Depth  []atomic.Uint32
	Normal []uint32 // plain slice: written once per pixel, after the depth pass has settled.
}

// NewImage allocates a size x size image, zeroed.
func NewImage(size int) *Image {
	return &Image{
		Size:   size,
		Depth:  make([]atomic.Uint32, size*size),
		Normal: make([]uint32, size*size),
	}
}

func (im *Image) index(x, y int) int { return y*im.Size + x }

// Reset clears the image between renders.
func (im *Image) Reset() {
	for i := range im.Depth {
		im.Depth[i].Store(0)
	}
	for i := range im.Normal {
		im.Normal[i] = 0
	}
}

// At reads the current depth/fill value at (x,y).
func (im *Image) At(x, y int) uint32 {
	return im.Depth[im.index(x, y)].Load()
}

// NormalAt reads the packed (dz,dy,dx,0xFF) normal at (x,y).
func (im *Image) NormalAt(x, y int) uint32 {
	return im.Normal[im.index(x, y)]
}

// MaxDepth atomically updates Depth[x,y] to max(current, v). Every depth
// contribution funnels through here, so the final value per pixel is the
// maximum over all contributors regardless of write interleaving.
func (im *Image) MaxDepth(x, y int, v uint32) {
	cell := &im.Depth[im.index(x, y)]
	for {
		cur := cell.Load()
		if v <= cur {
			return
		}
		if cell.CompareAndSwap(cur, v) {
			return
		}
	}
}

// SetFilled marks (x,y) filled in a 2D mask: any nonzero value works, so
// this just writes the maximum representable value via MaxDepth, keeping
// the same atomic-max code path 2D and 3D share.
func (im *Image) SetFilled(x, y int) {
	im.MaxDepth(x, y, ^uint32(0))
}

// SetNormal writes a packed normal; the normal pass runs only after the
// depth pass has settled the whole image, so this is not contended and
// needs no atomic.
func (im *Image) SetNormal(x, y int, packed uint32) {
	im.Normal[im.index(x, y)] = packed
}

// PackNormal encodes a unit-ish gradient (dx,dy,dz) into a (dz,dy,dx,0xFF)
// byte layout, mapping each signed component in [-1,1] to a byte in
// [0,255].
func PackNormal(dx, dy, dz float32) uint32 {
	b := func(f float32) uint32 {
		if f < -1 {
			f = -1
		} else if f > 1 {
			f = 1
		}
		return uint32((f*0.5 + 0.5) * 255)
	}
	return b(dz) | b(dy)<<8 | b(dx)<<16 | 0xFF<<24
}
