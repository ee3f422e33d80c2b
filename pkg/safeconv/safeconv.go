// Package safeconv converts between integer widths used on the wire.
package safeconv

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange is returned when a value does not fit the target type.
var ErrOutOfRange = errors.New("safeconv: value out of range")

// ToUint32 converts v to uint32, failing for negative or oversized values.
func ToUint32(v int) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d does not fit uint32", ErrOutOfRange, v)
	}

	return uint32(v), nil
}

// MustUint32 converts v to uint32 and panics if it does not fit.
// Use only where the bound was already checked.
func MustUint32(v int) uint32 {
	u, err := ToUint32(v)
	if err != nil {
		panic(err)
	}

	return u
}
