package render

import (
	"log"
	"os"
)

// Config carries the renderer's construction-time knobs: tile sizes per
// stage, subtape pool capacity, and worker-stream count. Callers populate
// it directly or bind flags onto it; there is no config-file layer.
type Config struct {
	ImageSize int
	Dim       int // 2 or 3
	// Stages lists tile pixel sizes from coarsest to finest. Defaults are
	// {64,16,4} for 3D and {64,8} for 2D.
	Stages []int
	// PoolCapacity bounds the subtape chunk pool; default 65536.
	PoolCapacity int
	// Streams is the worker-pool's concurrent stream count; default 4.
	Streams int
	// Strict panics on the first compile error instead of returning it.
	Strict bool
	// Logger receives warnings for benign fallbacks such as subtape pool
	// exhaustion; defaults to a stderr logger if nil.
	Logger *log.Logger
	// UseGPU opts into the optional batch GPU classifier for stages with
	// enough tiles to justify a device round trip.
	// A device that fails to open falls back to the CPU-only path; builds
	// tagged nogpu have no device, so they always take that fallback.
	UseGPU bool
}

// DefaultConfig returns the conventional defaults for the given dimension.
func DefaultConfig(dim int, imageSize int) Config {
	stages := []int{64, 8}
	if dim == 3 {
		stages = []int{64, 16, 4}
	}
	// Small render targets clamp the coarse stages to the image itself.
	trimmed := stages[:0]
	prev := 0
	for _, s := range stages {
		if imageSize > 0 && s > imageSize {
			s = imageSize
		}
		if s != prev {
			trimmed = append(trimmed, s)
		}
		prev = s
	}
	stages = trimmed
	return Config{
		ImageSize:    imageSize,
		Dim:          dim,
		Stages:       stages,
		PoolCapacity: 65536,
		Streams:      4,
		Logger:       log.New(os.Stderr, "ivtape: ", log.LstdFlags),
	}
}

func (c Config) validate() error {
	if c.Dim != 2 && c.Dim != 3 {
		return errInvalidConfig("dimension must be 2 or 3, got %d", c.Dim)
	}
	if c.ImageSize <= 0 || c.ImageSize&(c.ImageSize-1) != 0 {
		return errInvalidConfig("image size must be a positive power of two, got %d", c.ImageSize)
	}
	if len(c.Stages) == 0 {
		return errInvalidConfig("at least one stage size is required")
	}
	prev := c.ImageSize
	for _, s := range c.Stages {
		if s <= 0 || prev%s != 0 {
			return errInvalidConfig("stage sizes must evenly divide the image size and the previous stage, got %v for image size %d", c.Stages, c.ImageSize)
		}
		prev = s
	}
	return nil
}
