package scripting

import (
	"errors"

	"github.com/MJE43/visual-replay-go/internal/seeds"
)

var (
	ErrTimeout          = errors.New("scripting: script timed out")
	ErrCanceled         = errors.New("scripting: script canceled")
	ErrTooManyDraws     = errors.New("scripting: draw limit exceeded")
	ErrNondeterministic = errors.New("scripting: script output is not reproducible")
	ErrUnknownNamespace = seeds.ErrUnknownNamespace
	ErrScript           = errors.New("scripting: script error")
	ErrNoStore          = errors.New("scripting: persistence is not configured")
)
