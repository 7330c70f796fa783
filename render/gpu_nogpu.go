//go:build nogpu

package render

import (
	"fmt"

	"github.com/soypat/gsdf-render/ivtape/tape"
)

// gpuTileBounds mirrors the field layout gpu_hal.go uses to describe one
// tile's axis-aligned world-space bounds to the GPU kernel; kept here too
// so callers building this slice compile identically under either tag.
type gpuTileBounds struct {
	XLo, XHi, YLo, YHi, ZLo, ZHi float32
	pad0, pad1                   float32
}

// gpuBackend is the nogpu build's placeholder: every render under this
// build tag runs entirely on the CPU worker pool.
type gpuBackend struct{}

func newGPUBackend() (*gpuBackend, error) {
	return nil, fmt.Errorf("%w: built with -tags nogpu", ErrDevice)
}

func (b *gpuBackend) Close() {}

func (b *gpuBackend) ClassifyBatch(t *tape.Tape, bounds []gpuTileBounds) ([]tape.TileClass, error) {
	return nil, fmt.Errorf("%w: built with -tags nogpu", ErrDevice)
}
