// Package seeds builds seed strings for the cosmetic generator.
//
// A seed is a namespace tag followed by ":"-joined fields. Outcome seeds embed
// only finalized on-chain data, ambient seeds add a coarse time bucket right
// after the tag, and fixed seeds carry neither. The mode travels with the
// Seed value so consumers can refuse a seed built the wrong way.
package seeds

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/MJE43/visual-replay-go/internal/engine"
)

// Seed is a seed string together with the convention it was built under.
type Seed struct {
	text string
	ns   Namespace
}

// Outcome builds an outcome-linked seed.
func Outcome(ns Namespace, fields ...any) (Seed, error) {
	return build(ns, ModeOutcome, nil, fields)
}

// Fixed builds a seed that is stable forever and tied to no outcome.
func Fixed(ns Namespace, fields ...any) (Seed, error) {
	return build(ns, ModeFixed, nil, fields)
}

// Ambient builds a seed reproducible only inside bucket b.
func Ambient(ns Namespace, b Bucket, fields ...any) (Seed, error) {
	return build(ns, ModeAmbient, []string{b.String()}, fields)
}

// Build looks up tag and builds a seed under its mode. Ambient namespaces
// take their bucket from at and width; the other modes ignore both.
func Build(tag string, at time.Time, width time.Duration, fields ...any) (Seed, error) {
	ns, ok := Lookup(tag)
	if !ok {
		return Seed{}, fmt.Errorf("%w: %q", ErrUnknownNamespace, tag)
	}
	switch ns.Mode {
	case ModeAmbient:
		return Ambient(ns, BucketAt(at, width), fields...)
	case ModeFixed:
		return Fixed(ns, fields...)
	default:
		return Outcome(ns, fields...)
	}
}

func build(ns Namespace, mode Mode, extra []string, fields []any) (Seed, error) {
	if err := validateTag(ns.Tag); err != nil {
		return Seed{}, err
	}
	// The registry is the authority on a tag's mode, not the value passed in.
	registered, ok := Lookup(ns.Tag)
	if !ok {
		return Seed{}, fmt.Errorf("%w: %q", ErrUnknownNamespace, ns.Tag)
	}
	if registered != ns {
		return Seed{}, fmt.Errorf("%w: namespace %q is registered as %s, got %s",
			ErrModeMismatch, ns.Tag, registered.Mode, ns.Mode)
	}
	if ns.Mode != mode {
		return Seed{}, fmt.Errorf("%w: namespace %q is %s, built as %s", ErrModeMismatch, ns.Tag, ns.Mode, mode)
	}

	text, err := joinFields(append([]string{ns.Tag}, extra...), fields)
	if err != nil {
		return Seed{}, fmt.Errorf("seed %q: %w", ns.Tag, err)
	}
	return Seed{text: text, ns: ns}, nil
}

// Derive appends more fields, keeping the namespace and mode.
func (s Seed) Derive(fields ...any) (Seed, error) {
	text, err := joinFields([]string{s.text}, fields)
	if err != nil {
		return Seed{}, fmt.Errorf("seed %q: %w", s.ns.Tag, err)
	}
	return Seed{text: text, ns: s.ns}, nil
}

// Tick is Derive for an animation tick index, which cannot fail.
func (s Seed) Tick(i int) Seed {
	return Seed{text: s.text + Separator + strconv.Itoa(i), ns: s.ns}
}

func (s Seed) String() string       { return s.text }
func (s Seed) Mode() Mode           { return s.ns.Mode }
func (s Seed) Namespace() Namespace { return s.ns }
func (s Seed) IsZero() bool         { return s.text == "" && s.ns.Tag == "" }

// Require fails unless the seed was built under mode m.
func (s Seed) Require(m Mode) error {
	if s.ns.Mode != m {
		return fmt.Errorf("%w: seed %q is %s, want %s", ErrModeMismatch, s.ns.Tag, s.ns.Mode, m)
	}
	return nil
}

// Rng returns a fresh generator for the seed.
func (s Seed) Rng() engine.Rng {
	return engine.MakeDeterministicRng(s.text)
}

// Generator returns a fresh generator that also counts draws.
func (s Seed) Generator() *engine.Generator {
	return engine.NewGenerator(s.text)
}

// Floats draws n values from a fresh generator.
func (s Seed) Floats(n int) []float64 {
	return engine.Floats(s.text, n)
}

// Hash is a short SHA-256 digest of the seed text, safe for logs and storage.
func (s Seed) Hash() string {
	return HashText(s.text)
}

// HashText hashes arbitrary seed text the same way Seed.Hash does.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}
