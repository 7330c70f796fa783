// Package ivtape implements the hierarchical interval-pruning tape engine:
// a recursive spatial-subdivision renderer for implicit-function (f-rep)
// shapes. An expression DAG is compiled to a linear register-machine tape
// (package tape), specialized per tile via interval arithmetic (package
// ivl) as progressively finer tiles inherit and further prune their
// parent's tape, and resolved per-pixel into a depth image and, for 3D
// shapes, a surface-normal image (package render).
//
// The expression-tree front end (package dag) is deliberately thin: any
// caller supplying an equivalent topologically-ordered node graph can
// substitute their own builder for package dag.
package ivtape

import (
	"github.com/soypat/gsdf-render/ivtape/dag"
	"github.com/soypat/gsdf-render/ivtape/grid"
	"github.com/soypat/gsdf-render/ivtape/render"
)

// Renderer is the engine's external handle: compiled once per shape via
// Build, reused across any number of Run calls.
type Renderer = render.Renderer

// View carries scale, center, and an optional 4x4 projective transform
// used to map image coordinates to world space.
type View = grid.View

// Config is the renderer's construction-time configuration surface: tile
// stage sizes, subtape pool capacity, worker-stream count.
type Config = render.Config

// SurfaceMode selects which output image a bulk readback reads from.
type SurfaceMode = render.SurfaceMode

const (
	SurfaceDepth  = render.SurfaceDepth
	SurfaceNormal = render.SurfaceNormal
)

// Stats reports a renderer's subtape-pool usage and benign-fallback count.
type Stats = render.Stats

// DefaultConfig returns the conventional stage sizes, pool capacity, and
// stream count for the given dimension (2 or 3).
func DefaultConfig(dim, imageSizePx int) Config {
	return render.DefaultConfig(dim, imageSizePx)
}

// Build compiles root, an expression-tree root node from package dag, or
// an equivalent caller-supplied DAG, into a Renderer at the given image
// size and dimension, using DefaultConfig.
func Build(root *dag.Node, imageSizePx, dimension int) (*Renderer, error) {
	return render.Build(root, DefaultConfig(dimension, imageSizePx))
}

// BuildConfig is Build with an explicit, caller-tuned Config.
func BuildConfig(root *dag.Node, cfg Config) (*Renderer, error) {
	return render.Build(root, cfg)
}
