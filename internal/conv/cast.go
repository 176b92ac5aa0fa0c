package conv

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/meshkit/model"
)

// ErrOverflow is returned when a value does not fit the target type.
var ErrOverflow = errors.New("conv: integer overflow")

// IDToUint32 converts an element id to a roaring bitmap key.
func IDToUint32(id model.ElementID) (uint32, error) {
	if id < 0 || id > math.MaxUint32 {
		return 0, fmt.Errorf("%w: element id %d is not a uint32", ErrOverflow, id)
	}
	return uint32(id), nil
}

// IDToUint64 converts a non-null element id to a bit index.
func IDToUint64(id model.ElementID) (uint64, error) {
	if id < 0 {
		return 0, fmt.Errorf("%w: element id %d is negative", ErrOverflow, id)
	}
	return uint64(id), nil
}

// Uint64ToInt converts a decoded count to int.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("%w: %d does not fit int", ErrOverflow, v)
	}
	return int(v), nil
}
