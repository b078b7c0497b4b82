package seeds

import "errors"

var (
	ErrInvalidNamespace   = errors.New("seeds: invalid namespace tag")
	ErrDuplicateNamespace = errors.New("seeds: namespace already registered")
	ErrModeMismatch       = errors.New("seeds: seed mode does not match")
	ErrWallClockField     = errors.New("seeds: wall-clock value in seed field")
	ErrUnsupportedField   = errors.New("seeds: unsupported seed field type")
	ErrAmbiguousField     = errors.New("seeds: field contains the separator")
	ErrUnknownMode        = errors.New("seeds: unknown mode")
	ErrUnknownNamespace   = errors.New("seeds: unknown namespace")
)
