package render

import "errors"

var (
	// ErrNondeterministic means two renders from the same inputs disagreed.
	ErrNondeterministic = errors.New("render: frame is not reproducible")
	// ErrNoStore is returned by operations that need persistence when none is configured.
	ErrNoStore = errors.New("render: no store configured")
)
