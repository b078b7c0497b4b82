// Package visuals turns a settled outcome into deterministic cosmetic frames.
//
// Every effect derives a seed under its namespace, draws from the cosmetic
// generator and produces a Frame. Effects never decide who won: the outcome
// comes in finalized and the frame only dresses it up.
package visuals

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/seeds"
)

// EffectSpec describes an effect for listing and routing.
type EffectSpec struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	MetricLabel string          `json:"metric_label"`
	Namespace   seeds.Namespace `json:"namespace"`
}

// Mode is the seed mode the effect requires.
func (s EffectSpec) Mode() seeds.Mode { return s.Namespace.Mode }

// Input is everything an effect may read. Now is only consulted by ambient
// effects; outcome and fixed effects must not depend on it.
type Input struct {
	Outcome Outcome        `json:"outcome"`
	Params  map[string]any `json:"params,omitempty"`
	Now     time.Time      `json:"-"`
}

// Frame is the rendered result of an effect.
type Frame struct {
	Effect      string         `json:"effect"`
	Metric      float64        `json:"metric"`
	MetricLabel string         `json:"metric_label"`
	Mode        seeds.Mode     `json:"mode"`
	SeedHash    string         `json:"seed_hash,omitempty"`
	Draws       int            `json:"draws"`
	Details     map[string]any `json:"details,omitempty"`
}

// Effect is a cosmetic consumer of the deterministic generator.
type Effect interface {
	Spec() EffectSpec
	// DrawCount is how many floats RenderWithFloats consumes.
	DrawCount(params map[string]any) int
	Seed(in Input) (seeds.Seed, error)
	Render(in Input) (Frame, error)
	// RenderWithFloats renders from pre-drawn floats, e.g. during scanning.
	RenderWithFloats(floats []float64, in Input) (Frame, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Effect)
)

// Register adds an effect. A second effect with the same ID replaces the first.
func Register(e Effect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[e.Spec().ID] = e
}

// GetEffect looks up an effect by ID.
func GetEffect(id string) (Effect, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[id]
	return e, ok
}

// ListEffects returns the specs of all registered effects sorted by ID.
func ListEffects() []EffectSpec {
	registryMu.RLock()
	specs := make([]EffectSpec, 0, len(registry))
	for _, e := range registry {
		specs = append(specs, e.Spec())
	}
	registryMu.RUnlock()

	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}

func init() {
	Register(&CrashEffect{})
	Register(&CrashClimbEffect{})
	Register(&LadderEffect{})
	Register(&SlotReelEffect{})
	Register(&RouletteBallEffect{})
	Register(&DiceAnimEffect{})
	Register(&CoinShowerEffect{})
	Register(&LobbySpawnEffect{})
	Register(&StarfieldEffect{})
	Register(&Magic8Effect{})
	Register(&HiLoRankEffect{})
	Register(&PokerDealEffect{})
	Register(&PlinkoPathEffect{})
	Register(&BlackjackDealEffect{})
	Register(&CoinFlipEffect{})
}

// Drawer is implemented by effects whose floats come from more than one
// seed derived from the base seed.
type Drawer interface {
	DrawFloats(dst []float64, base seeds.Seed, in Input) ([]float64, error)
}

// DrawFloats returns the floats Render would feed to RenderWithFloats, reusing
// dst when it is large enough, together with the base seed.
func DrawFloats(e Effect, in Input, dst []float64) ([]float64, seeds.Seed, error) {
	seed, err := e.Seed(in)
	if err != nil {
		return nil, seeds.Seed{}, err
	}
	spec := e.Spec()
	if err := seed.Require(spec.Mode()); err != nil {
		return nil, seeds.Seed{}, fmt.Errorf("%s: %w", spec.ID, err)
	}

	if d, ok := e.(Drawer); ok {
		floats, err := d.DrawFloats(dst, seed, in)
		return floats, seed, err
	}
	return engine.FloatsInto(dst, seed.String(), e.DrawCount(in.Params)), seed, nil
}

// renderSeeded is the Render path shared by every effect.
func renderSeeded(e Effect, in Input) (Frame, error) {
	floats, seed, err := DrawFloats(e, in, nil)
	if err != nil {
		return Frame{}, err
	}
	frame, err := e.RenderWithFloats(floats, in)
	if err != nil {
		return Frame{}, err
	}
	frame.SeedHash = seed.Hash()
	return frame, nil
}

func resize(dst []float64, n int) []float64 {
	if cap(dst) < n {
		return make([]float64, n)
	}
	return dst[:n]
}

// newFrame fills the spec-derived fields of a frame.
func newFrame(spec EffectSpec, metric float64, draws int, details map[string]any) Frame {
	return Frame{
		Effect:      spec.ID,
		Metric:      metric,
		MetricLabel: spec.MetricLabel,
		Mode:        spec.Mode(),
		Draws:       draws,
		Details:     details,
	}
}

// ambientBucket returns the bucket for an ambient effect, refusing a zero
// timestamp so a missing clock never silently maps to the epoch bucket.
func ambientBucket(in Input, width time.Duration) (seeds.Bucket, error) {
	if in.Now.IsZero() {
		return seeds.Bucket{}, ErrNoTimestamp
	}
	return seeds.BucketAt(in.Now, width), nil
}
