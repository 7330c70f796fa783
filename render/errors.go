package render

import (
	"errors"
	"fmt"
)

// ErrDevice marks a compute-backend failure. Only the optional GPU backend
// raises it, and Run never returns it: a device that fails to open or a
// batch that fails to classify sends that work to the CPU path instead, so
// a device failure does not abort the render.
var ErrDevice = errors.New("render: device error")

// ErrInvalidConfig marks a Config that fails construction-time validation.
var ErrInvalidConfig = errors.New("render: invalid configuration")

func errInvalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
