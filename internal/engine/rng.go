package engine

import (
	"errors"
	"math/bits"
	"unicode/utf16"
)

// Mixing constants shared with the web client. Changing any of them changes
// every rendered animation.
const (
	seedInit   uint32 = 1779033703
	seedMul    uint32 = 3432918353
	mixMulA    uint32 = 2246822507
	mixMulB    uint32 = 3266489909
	floatScale        = 4294967296.0 // 2^32
)

// ErrEmptyItems is returned by Pick when asked to choose from nothing.
var ErrEmptyItems = errors.New("engine: cannot pick from an empty slice")

// Generator is a seeded 32-bit mixing PRNG (xmur3 seeding, murmur3-style
// finaliser per draw). It is deterministic in (seed, draw count) and is NOT
// suitable for anything but cosmetic randomness.
//
// A Generator is owned by a single caller; it is not safe for concurrent use.
type Generator struct {
	h     uint32
	draws int
}

// NewGenerator seeds a generator from s. The seed is consumed as UTF-16 code
// units so that the sequence matches a JavaScript String of the same text.
// Invalid UTF-8 bytes are treated as U+FFFD.
func NewGenerator(s string) *Generator {
	return &Generator{h: seedHash(s)}
}

func seedHash(s string) uint32 {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}

	h := seedInit ^ uint32(n)
	for _, r := range s {
		if utf16.RuneLen(r) == 2 {
			hi, lo := utf16.EncodeRune(r)
			h = absorb(h, uint32(hi))
			h = absorb(h, uint32(lo))
			continue
		}
		h = absorb(h, uint32(r))
	}
	return h
}

func absorb(h, unit uint32) uint32 {
	h = (h ^ unit) * seedMul
	return bits.RotateLeft32(h, 13)
}

// Next advances the state and returns the raw 32-bit output.
func (g *Generator) Next() uint32 {
	h := g.h
	h = (h ^ h>>16) * mixMulA
	h = (h ^ h>>13) * mixMulB
	h ^= h >> 16
	g.h = h
	g.draws++
	return h
}

// NextFloat returns the next value in [0, 1).
func (g *Generator) NextFloat() float64 {
	return float64(g.Next()) / floatScale
}

// Draws reports how many values have been taken from the generator.
func (g *Generator) Draws() int {
	return g.draws
}

// MakeDeterministicRng returns a generator function for seed. Two calls with
// byte-identical seeds produce identical sequences.
func MakeDeterministicRng(seed string) Rng {
	return NewGenerator(seed).NextFloat
}

// Pick returns items[floor(rng()*len(items))], consuming exactly one draw.
// An empty slice yields ErrEmptyItems and consumes nothing.
func Pick[T any](items []T, rng Rng) (T, error) {
	var zero T
	i, err := PickIndex(len(items), rng)
	if err != nil {
		return zero, err
	}
	return items[i], nil
}

// PickIndex returns floor(rng()*n) for n > 0.
func PickIndex(n int, rng Rng) (int, error) {
	if n <= 0 {
		return 0, ErrEmptyItems
	}
	return scale(rng(), n), nil
}

// scale maps u to floor(u*n). A conforming generator stays inside [0, n);
// caller-supplied ones that return negatives, NaN or values >= 1 are clamped
// before the float-to-int conversion, which is undefined out of range.
func scale(u float64, n int) int {
	f := u * float64(n)
	switch {
	case !(f >= 0):
		return 0
	case f >= float64(n):
		return n - 1
	}
	return int(f)
}

// Floats draws count values from a fresh generator for seed.
func Floats(seed string, count int) []float64 {
	return FloatsInto(nil, seed, count)
}

// FloatsInto fills dst with count values, reallocating only when dst is too
// short.
func FloatsInto(dst []float64, seed string, count int) []float64 {
	if count < 0 {
		count = 0
	}
	if cap(dst) < count {
		dst = make([]float64, count)
	}
	dst = dst[:count]

	g := NewGenerator(seed)
	for i := range dst {
		dst[i] = g.NextFloat()
	}
	return dst
}

// Shuffle performs an in-place Fisher-Yates shuffle driven by rng, consuming
// len(items)-1 draws.
func Shuffle[T any](items []T, rng Rng) {
	for i := len(items) - 1; i > 0; i-- {
		j := scale(rng(), i+1)
		items[i], items[j] = items[j], items[i]
	}
}
