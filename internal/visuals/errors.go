package visuals

import (
	"errors"
	"fmt"
)

var (
	ErrEffectNotFound  = errors.New("visuals: effect not found")
	ErrInvalidParams   = errors.New("visuals: invalid params")
	ErrNotEnoughFloats = errors.New("visuals: not enough floats")
	ErrFloatOutOfRange = errors.New("visuals: float out of range [0,1)")
	ErrNoTimestamp     = errors.New("visuals: ambient effect needs a timestamp")
	ErrOutcomeMismatch = errors.New("visuals: params contradict the outcome")
	ErrInvalidOutcome  = errors.New("visuals: invalid outcome")
)

func paramError(effect, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidParams, effect, fmt.Sprintf(format, args...))
}

// checkFloats verifies there are at least n floats, all in [0,1).
func checkFloats(effect string, floats []float64, n int) error {
	if len(floats) < n {
		return fmt.Errorf("%w: %s requires %d floats, got %d", ErrNotEnoughFloats, effect, n, len(floats))
	}
	for i, f := range floats[:n] {
		if f < 0 || f >= 1 {
			return fmt.Errorf("%w: %s float at index %d is %f", ErrFloatOutOfRange, effect, i, f)
		}
	}
	return nil
}
