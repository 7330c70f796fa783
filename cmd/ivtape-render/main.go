// Command ivtape-render drives the hierarchical interval-pruning tape
// engine against one of a few demo shapes and writes the result to a PNG.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"time"

	"golang.org/x/image/draw"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/gsdf-render/ivtape"
	"github.com/soypat/gsdf-render/ivtape/dag"
)

var (
	shapeName  = flag.String("shape", "union", "demo shape: circle, union, sphere, lattice")
	imageSize  = flag.Int("size", 256, "internal render resolution in pixels (power of two)")
	outSize    = flag.Int("outsize", 0, "output PNG resolution; 0 uses -size unscaled")
	dim        = flag.Int("dim", 0, "dimension override: 2 or 3; 0 picks the shape's natural dimension")
	outPath    = flag.String("out", "render.png", "output PNG path")
	surface    = flag.String("surface", "depth", "surface to write: depth or normal (3D only)")
	useGPU     = flag.Bool("gpu", false, "enable the optional batch GPU tile classifier")
	printStats = flag.Bool("stats", true, "print subtape pool stats after rendering")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ivtape-render:", err)
		os.Exit(1)
	}
}

func run() error {
	root, shapeDim, err := buildShape(*shapeName)
	if err != nil {
		return err
	}
	d := *dim
	if d == 0 {
		d = shapeDim
	}

	cfg := ivtape.DefaultConfig(d, *imageSize)
	cfg.UseGPU = *useGPU
	cfg.Logger = log.New(os.Stderr, "ivtape-render: ", log.LstdFlags)

	r, err := ivtape.BuildConfig(root, cfg)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	defer r.Close()

	start := time.Now()
	view := defaultView(d)
	if err := r.Run(view); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	elapsed := time.Since(start)

	mode := ivtape.SurfaceDepth
	if *surface == "normal" {
		mode = ivtape.SurfaceNormal
	}
	img := toImage(r, *imageSize, mode, d)

	final := *outSize
	if final <= 0 {
		final = *imageSize
	}
	if final != *imageSize {
		scaled := image.NewNRGBA(image.Rect(0, 0, final, final))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Over, nil)
		img = scaled
	}

	f, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}

	fmt.Printf("rendered %q (%dD, %dx%d) in %s -> %s\n", *shapeName, d, *imageSize, *imageSize, elapsed, *outPath)
	if *printStats {
		st := r.Stats()
		fmt.Printf("subtape pool: %d/%d chunks in use, %d exhaustion fallback(s)\n", st.PoolInUse, st.PoolCapacity, st.PoolExhausted)
	}
	return nil
}

// buildShape returns a named demo shape along with its natural dimension.
func buildShape(name string) (*dag.Node, int, error) {
	var b dag.Builder
	b.NoDimensionPanic = true
	var root *dag.Node
	var d int
	switch name {
	case "circle":
		root, d = b.Circle2D(0.5), 2
	case "union":
		left := b.Translate(func(x, y, z *dag.Node) *dag.Node {
			sq := b.Add(b.Square(x), b.Square(y))
			return b.Sub(b.Sqrt(sq), b.Const(0.4))
		}, -0.3, 0, 0)
		right := b.Translate(func(x, y, z *dag.Node) *dag.Node {
			sq := b.Add(b.Square(x), b.Square(y))
			return b.Sub(b.Sqrt(sq), b.Const(0.4))
		}, 0.3, 0, 0)
		root, d = b.Min(left, right), 2
	case "sphere":
		root, d = b.Sphere(0.6), 3
	case "lattice":
		root, d = nestedSphereLattice(&b), 3
	default:
		return nil, 0, fmt.Errorf("unknown -shape %q (want circle, union, sphere, lattice)", name)
	}
	if err := b.Err(); err != nil {
		return nil, 0, fmt.Errorf("building %q: %w", name, err)
	}
	return root, d, nil
}

// nestedSphereLattice builds a 16-sphere nested-min scene that exercises
// deep MIN chains and choice-driven specialization: a 2x2x4 grid of small
// spheres packed inside a unit cube, unioned together.
func nestedSphereLattice(b *dag.Builder) *dag.Node {
	const r = 0.18
	var spheres []*dag.Node
	positions := [][3]float32{
		{-0.5, -0.5, -0.75}, {0.5, -0.5, -0.75}, {-0.5, 0.5, -0.75}, {0.5, 0.5, -0.75},
		{-0.5, -0.5, -0.25}, {0.5, -0.5, -0.25}, {-0.5, 0.5, -0.25}, {0.5, 0.5, -0.25},
		{-0.5, -0.5, 0.25}, {0.5, -0.5, 0.25}, {-0.5, 0.5, 0.25}, {0.5, 0.5, 0.25},
		{-0.5, -0.5, 0.75}, {0.5, -0.5, 0.75}, {-0.5, 0.5, 0.75}, {0.5, 0.5, 0.75},
	}
	for _, p := range positions {
		sphere := b.Translate(func(x, y, z *dag.Node) *dag.Node {
			sq := b.Add(b.Add(b.Square(x), b.Square(y)), b.Square(z))
			return b.Sub(b.Sqrt(sq), b.Const(r))
		}, p[0], p[1], p[2])
		spheres = append(spheres, sphere)
	}
	return b.MinN(spheres...)
}

func defaultView(dim int) ivtape.View {
	return ivtape.View{Scale: 1.5, Center: ms3.Vec{}}
}

func toImage(r *ivtape.Renderer, size int, mode ivtape.SurfaceMode, dim int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := r.HeightAt(x, y)
			var c color.NRGBA
			switch {
			case mode == ivtape.SurfaceNormal && v != 0:
				n := r.NormalAt(x, y)
				c = color.NRGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xFF}
			case v != 0:
				shade := depthShade(v, dim, size)
				c = color.NRGBA{R: shade, G: shade, B: shade, A: 0xFF}
			default:
				c = color.NRGBA{A: 0xFF}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func depthShade(depth uint32, dim, size int) uint8 {
	if dim != 3 {
		return 0xFF
	}
	frac := float64(depth) / float64(size)
	if frac > 1 {
		frac = 1
	}
	return uint8(64 + frac*191)
}
