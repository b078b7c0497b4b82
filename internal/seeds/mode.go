package seeds

import (
	"fmt"
	"strings"
)

// Mode says how long a seed is expected to stay reproducible.
type Mode int

const (
	// ModeOutcome seeds are built only from finalized on-chain data and must
	// render identically forever.
	ModeOutcome Mode = iota + 1
	// ModeAmbient seeds carry a coarse time bucket and are reproducible only
	// inside that window. Decorative effects only.
	ModeAmbient
	// ModeFixed seeds depend on neither outcome nor time (layout of a star
	// field layer, presale coin positions).
	ModeFixed
)

func (m Mode) String() string {
	switch m {
	case ModeOutcome:
		return "outcome"
	case ModeAmbient:
		return "ambient"
	case ModeFixed:
		return "fixed"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "outcome":
		return ModeOutcome, nil
	case "ambient":
		return ModeAmbient, nil
	case "fixed":
		return ModeFixed, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
