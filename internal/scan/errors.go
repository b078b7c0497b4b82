package scan

import "errors"

var (
	ErrEffectNotFound = errors.New("effect not found")
	ErrNotScannable   = errors.New("effect cannot be scanned")
	ErrInvalidRange   = errors.New("invalid result index range")
	ErrInvalidOp      = errors.New("invalid target op")
)
