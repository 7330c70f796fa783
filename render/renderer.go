package render

import (
	"sync"
	"sync/atomic"

	"github.com/soypat/gsdf-render/ivtape/dag"
	"github.com/soypat/gsdf-render/ivtape/grid"
	"github.com/soypat/gsdf-render/ivtape/internal/workpool"
	"github.com/soypat/gsdf-render/ivtape/tape"
)

// SurfaceMode selects which of the renderer's two output images a bulk-copy
// reads from.
type SurfaceMode uint8

const (
	SurfaceDepth SurfaceMode = iota
	SurfaceNormal
)

// Stats exposes the renderer's benign-fallback counters: subtape pool
// exhaustion is counted, never thrown, so callers that want to know how
// degraded a render was can inspect this after Run.
type Stats struct {
	PoolExhausted uint64
	PoolInUse     uint32
	PoolCapacity  int
}

// Renderer is the hierarchical interval-pruning tape engine's external
// handle. Build compiles an expression tree into it once; every subsequent
// Run resets and reuses its subtape pool and images, so a Renderer is meant
// to be kept across frames of the same shape rather than rebuilt per view.
//
// A Renderer is not safe for concurrent Run calls: Run's internal stages
// are themselves parallel, but two renders sharing one pool/image pair
// would corrupt each other's bookkeeping.
type Renderer struct {
	cfg  Config
	t    *tape.Tape
	pool *tape.Pool
	img  *grid.Image
	wp   *workpool.Pool

	poolExhausted atomic.Uint64
	warnOnce      sync.Once

	gpu       *gpuBackend
	gpuOnce   sync.Once
	gpuLogged sync.Once
}

// Build lowers root to a Tape under cfg and allocates the renderer's
// subtape pool, image, and worker pool.
func Build(root *dag.Node, cfg Config) (*Renderer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	t, err := tape.Compile(root, tape.CompileOptions{Strict: cfg.Strict})
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = DefaultConfig(cfg.Dim, cfg.ImageSize).Logger
	}
	poolCap := cfg.PoolCapacity
	if poolCap <= 0 {
		poolCap = 65536
	}
	return &Renderer{
		cfg:  cfg,
		t:    t,
		pool: tape.NewPool(poolCap),
		img:  grid.NewImage(cfg.ImageSize),
		wp:   workpool.New(cfg.Streams),
	}, nil
}

// Run renders view into the renderer's depth (and, for 3D, normal) images,
// replacing any prior contents. Calling Run twice with the same view
// produces bit-identical images: all render-scoped state (pool, images,
// the pool-exhaustion warning latch) is reset before the hierarchy walk
// begins, and every accumulation is a commutative max.
func (r *Renderer) Run(view grid.View) error {
	r.pool.Reset()
	r.img.Reset()
	r.poolExhausted.Store(0)
	r.warnOnce = sync.Once{}

	if r.cfg.UseGPU {
		r.gpuOnce.Do(func() {
			gpu, err := newGPUBackend()
			if err != nil {
				r.gpuLogged.Do(func() {
					if r.cfg.Logger != nil {
						r.cfg.Logger.Printf("gpu classifier unavailable, running CPU-only: %v", err)
					}
				})
				return
			}
			r.gpu = gpu
		})
	}

	var mu sync.Mutex
	var finalTiles []Tile
	onTerminal := func(tile Tile) {
		mu.Lock()
		finalTiles = append(finalTiles, tile)
		mu.Unlock()
	}
	onPoolExhausted := func() {
		r.poolExhausted.Add(1)
		r.warnOnce.Do(func() {
			if r.cfg.Logger != nil {
				r.cfg.Logger.Printf("subtape pool exhausted (capacity %d); falling back to coarser tapes for the rest of this render", r.pool.Cap())
			}
		})
	}

	if err := runHierarchy(r.t, r.cfg, view, r.pool, r.img, r.wp, r.gpu, onTerminal, onPoolExhausted); err != nil {
		return err
	}

	maxClauses := len(r.t.Clauses)
	pixelScratches := newScratchPool(r.wp.Streams(), func() *pixelScratch {
		return &pixelScratch{
			f:  tape.NewFloatScratch(int(r.t.NumSlots), maxClauses),
			p2: tape.NewPack2Scratch(int(r.t.NumSlots), maxClauses),
		}
	})
	err := r.wp.DispatchErr(len(finalTiles), func(i int) error {
		s := pixelScratches.Acquire()
		defer pixelScratches.Release(s)
		return fillTile(r.t, finalTiles[i], r.cfg, view, r.pool, r.img, s)
	})
	if err != nil {
		return err
	}

	if r.cfg.Dim != 3 {
		return nil
	}

	derivScratches := newScratchPool(r.wp.Streams(), func() *tape.DerivScratch {
		return tape.NewDerivScratch(int(r.t.NumSlots), maxClauses)
	})
	return r.wp.DispatchErr(len(finalTiles), func(i int) error {
		s := derivScratches.Acquire()
		defer derivScratches.Release(s)
		return shadeTile(r.t, finalTiles[i], r.cfg, view, r.pool, r.img, s)
	})
}

// HeightAt reads the current fill (2D, nonzero means filled) or depth (3D)
// value at (x,y). For 3D the value is the highest voxel Z index known to
// lie inside the shape: a column whose surface reaches the topmost voxel
// reads back as ImageSize-1. Internally the image stores that index plus
// one so zero can mean "no coverage"; the sentinel is stripped here, at
// the readback boundary, and never escapes. A surface sitting exactly at
// voxel Z=0 therefore reads back as 0, indistinguishable from an empty
// column.
func (r *Renderer) HeightAt(x, y int) uint32 {
	v := r.img.At(x, y)
	if r.cfg.Dim == 3 && v > 0 {
		v--
	}
	return v
}

// NormalAt reads the packed (dz,dy,dx,0xFF) surface normal at (x,y); only
// meaningful for 3D renders.
func (r *Renderer) NormalAt(x, y int) uint32 { return r.img.NormalAt(x, y) }

// CopyTo bulk-copies the renderer's image into dst, a targetSize x
// targetSize row-major buffer, nearest-neighbor resampling when targetSize
// differs from the renderer's own image size. Depth values follow the same
// voxel-Z-index convention HeightAt documents. In append mode, a
// destination pixel the renderer has no coverage for is left untouched
// rather than zeroed; coverage is decided on the internal sentinel, before
// the index conversion.
func (r *Renderer) CopyTo(dst []uint32, targetSize int, appendMode bool, mode SurfaceMode) {
	srcSize := r.img.Size
	for ty := 0; ty < targetSize; ty++ {
		sy := ty * srcSize / targetSize
		for tx := 0; tx < targetSize; tx++ {
			sx := tx * srcSize / targetSize
			var v uint32
			if mode == SurfaceNormal {
				v = r.img.NormalAt(sx, sy)
			} else {
				v = r.img.At(sx, sy)
			}
			if v == 0 && appendMode {
				continue
			}
			if mode == SurfaceDepth && r.cfg.Dim == 3 && v > 0 {
				v--
			}
			dst[ty*targetSize+tx] = v
		}
	}
}

// Stats reports the renderer's subtape-pool usage and fallback count since
// the last Run.
func (r *Renderer) Stats() Stats {
	return Stats{
		PoolExhausted: r.poolExhausted.Load(),
		PoolInUse:     r.pool.InUse(),
		PoolCapacity:  r.pool.Cap(),
	}
}

// Tape exposes the compiled tape for diagnostics and testing.
func (r *Renderer) Tape() *tape.Tape { return r.t }

// Close releases the renderer's GPU device, if one was opened. Safe to call
// on a renderer that never enabled UseGPU or never ran.
func (r *Renderer) Close() {
	if r.gpu != nil {
		r.gpu.Close()
		r.gpu = nil
	}
}
