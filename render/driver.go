package render

import (
	"errors"

	"github.com/soypat/gsdf-render/ivtape/grid"
	"github.com/soypat/gsdf-render/ivtape/internal/workpool"
	"github.com/soypat/gsdf-render/ivtape/tape"
)

// gpuBatchMinTiles is the smallest queue size worth a device round trip;
// below this, the dispatch/readback overhead would dwarf the CPU work it
// replaces.
const gpuBatchMinTiles = 32

// gpuBatchClassify dispatches one GPU kernel invocation that classifies
// every tile in queue against t's root tape, returning nil if gpu is
// unavailable, the tape exceeds the kernel's register file, the queue is
// too small to be worth it, or the dispatch itself failed (any of these is
// treated as "use the CPU path for this stage", never as a render error).
func gpuBatchClassify(t *tape.Tape, queue []Tile, cfg Config, view grid.View, gpu *gpuBackend) []tape.TileClass {
	if gpu == nil || len(queue) < gpuBatchMinTiles {
		return nil
	}
	bounds := make([]gpuTileBounds, len(queue))
	for i, tile := range queue {
		x, y, z := view.TileBounds(cfg.ImageSize, tile.PX, tile.PY, tile.PZ, tile.Size, cfg.Dim)
		bounds[i] = gpuTileBounds{XLo: x.Lo, XHi: x.Hi, YLo: y.Lo, YHi: y.Hi, ZLo: z.Lo, ZHi: z.Hi}
	}
	classes, err := gpu.ClassifyBatch(t, bounds)
	if err != nil {
		return nil
	}
	return classes
}

// enumerateStage0 lists every tile of the coarsest stage covering the whole
// image (or volume, for 3D).
func enumerateStage0(cfg Config) []Tile {
	size := cfg.Stages[0]
	n := cfg.ImageSize / size
	if cfg.Dim == 2 {
		tiles := make([]Tile, 0, n*n)
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				tiles = append(tiles, Tile{PX: i * size, PY: j * size, Size: size})
			}
		}
		return tiles
	}
	tiles := make([]Tile, 0, n*n*n)
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				tiles = append(tiles, Tile{PX: i * size, PY: j * size, PZ: k * size, Size: size})
			}
		}
	}
	return tiles
}

// runHierarchy walks cfg.Stages coarsest to finest. Each stage classifies
// and specializes every tile in its queue in parallel, then compacts
// survivors: Filled tiles are final wherever they are proven (and, for 3D,
// push their top Z into the depth image so later stages can be occlusion
// culled against it), Ambiguous tiles subdivide into the next stage's
// children, and Empty tiles drop out the moment interval arithmetic proves
// they contribute nothing, the tile-pruning engine's central savings.
// onTerminal is invoked once per tile that survives to pixel evaluation.
func runHierarchy(t *tape.Tape, cfg Config, view grid.View, pool *tape.Pool, img *grid.Image, wp *workpool.Pool, gpu *gpuBackend, onTerminal func(Tile), onPoolExhausted func()) error {
	queue := enumerateStage0(cfg)
	scratches := newScratchPool(wp.Streams(), func() *tape.EvalScratch {
		return tape.NewEvalScratch(int(t.NumSlots), tape.MaxChoicesPerTile)
	})

	for stageIdx := range cfg.Stages {
		isLastStage := stageIdx == len(cfg.Stages)-1

		results := make([]Tile, len(queue))
		survive := make([]bool, len(queue))

		// A batch GPU dispatch cheaply rules Filled/Empty tiles out of the
		// per-tile CPU loop below; it always evaluates against the root
		// tape rather than a tile's specialized subtape (still sound, see
		// DESIGN.md), so Ambiguous tiles still fall through to classifyTile
		// for a real classification against their own subtape.
		gpuClasses := gpuBatchClassify(t, queue, cfg, view, gpu)

		err := wp.DispatchErr(len(queue), func(i int) error {
			if occluded(img, queue[i], cfg) {
				results[i] = queue[i]
				results[i].Class = tape.ClassMasked
				survive[i] = false
				return nil
			}
			if gpuClasses != nil && gpuClasses[i] != tape.ClassAmbiguous {
				tile := queue[i]
				tile.Class = gpuClasses[i]
				if gpuClasses[i] == tape.ClassEmpty {
					results[i] = tile
					survive[i] = false
					return nil
				}
				tile.Terminal = true
				results[i] = tile
				survive[i] = true
				return nil
			}
			scratch := scratches.Acquire()
			defer scratches.Release(scratch)

			tile, ok, err := classifyTile(t, queue[i], cfg, view, pool, scratch, onPoolExhausted)
			if err != nil {
				return err
			}
			results[i] = tile
			survive[i] = ok
			return nil
		})
		if err != nil {
			return err
		}

		var next []Tile
		for i, tile := range results {
			if !survive[i] {
				continue
			}
			if tile.Class == tape.ClassFilled && cfg.Dim == 3 {
				// Proven solid: push the tile's top Z now so occlusion
				// culling at finer stages can see it, not just after the
				// pixel pass.
				fillSolidFootprint(tile, cfg, img)
			}
			if isLastStage || tile.Class != tape.ClassAmbiguous {
				onTerminal(tile)
				continue
			}
			next = append(next, tile.children(cfg.Stages[stageIdx+1], cfg.Dim)...)
		}
		queue = next
	}
	return nil
}

// classifyTile classifies one tile against its parent subtape (or the root
// tape at the coarsest stage), then specializes it unless it is already
// Terminal, in which case the existing subtape is reused unchanged (once no
// MIN/MAX choice remains ambiguous, narrowing the bounding interval further
// cannot change which clauses survive). The bool result reports whether the
// tile should continue through the pipeline (false only for ClassEmpty,
// which contributes nothing).
func classifyTile(t *tape.Tape, tile Tile, cfg Config, view grid.View, pool *tape.Pool, scratch *tape.EvalScratch, onPoolExhausted func()) (Tile, bool, error) {
	x, y, z := view.TileBounds(cfg.ImageSize, tile.PX, tile.PY, tile.PZ, tile.Size, cfg.Dim)

	class, clauses, err := tape.Classify(t, tile.Subtape, pool, x, y, z, scratch)
	if err != nil {
		return Tile{}, false, err
	}
	tile.Class = class
	if class == tape.ClassEmpty {
		return tile, false, nil
	}
	if tile.Terminal {
		return tile, true, nil
	}
	if class != tape.ClassAmbiguous {
		tile.Terminal = true
		return tile, true, nil
	}

	leaf, terminal, err := tape.Specialize(t, clauses, scratch.RecordedChoices(), pool)
	if err != nil {
		if errors.Is(err, tape.ErrPoolExhausted) {
			// Recoverable: fall back to evaluating against the tile's
			// existing (coarser) subtape for the rest of the render.
			if onPoolExhausted != nil {
				onPoolExhausted()
			}
			return tile, true, nil
		}
		return Tile{}, false, err
	}
	tile.Subtape = leaf
	tile.Terminal = terminal
	return tile, true, nil
}
