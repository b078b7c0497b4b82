package visuals

import (
	"fmt"
	"slices"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/seeds"
)

const (
	slotSpinMs     = 2500
	slotTickMs     = 100
	slotMaxReels   = 16
	slotMaxDelayMs = 10_000
)

var slotDefaultSymbols = []string{"🍒", "🍋", "🔔", "⭐", "💎", "7"}

type slotParams struct {
	reel    int
	delayMs int
	symbols []string
	final   string
}

// ticks is how many symbol changes fit in the spin.
func (p slotParams) ticks() int {
	return (slotSpinMs + p.delayMs) / slotTickMs
}

// SlotReelEffect cycles a reel through symbols until it lands on the
// settled symbol.
type SlotReelEffect struct{}

func (e *SlotReelEffect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "slot-reel",
		Name:        "Slot Reel",
		MetricLabel: "final_symbol_index",
		Namespace:   seeds.SlotReel,
	}
}

// DrawCount is one draw per tick, each from its own tick seed.
func (e *SlotReelEffect) DrawCount(params map[string]any) int {
	p, err := slotParamsFrom(params)
	if err != nil {
		return slotSpinMs / slotTickMs
	}
	return p.ticks()
}

// Seed returns the reel's base seed; tick i draws from base.Tick(i).
func (e *SlotReelEffect) Seed(in Input) (seeds.Seed, error) {
	p, err := slotParamsFrom(in.Params)
	if err != nil {
		return seeds.Seed{}, err
	}
	return seeds.Outcome(seeds.SlotReel, in.Outcome.ResultIndex, p.reel, p.symbols)
}

func (e *SlotReelEffect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

// DrawFloats takes the first draw of each tick seed.
func (e *SlotReelEffect) DrawFloats(dst []float64, base seeds.Seed, in Input) ([]float64, error) {
	floats := resize(dst, e.DrawCount(in.Params))
	for i := range floats {
		floats[i] = base.Tick(i).Generator().NextFloat()
	}
	return floats, nil
}

// RenderWithFloats expects one float per tick in tick order.
func (e *SlotReelEffect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	p, err := slotParamsFrom(in.Params)
	if err != nil {
		return Frame{}, err
	}
	n := p.ticks()
	if err := checkFloats("slot-reel", floats, n); err != nil {
		return Frame{}, err
	}

	frames := make([]string, n)
	for i, f := range floats[:n] {
		sym, err := engine.Pick(p.symbols, single(f))
		if err != nil {
			return Frame{}, err
		}
		frames[i] = sym
	}

	final := frames[n-1]
	forced := false
	if p.final != "" {
		final = p.final
		forced = true
	}

	return newFrame(e.Spec(), float64(slices.Index(p.symbols, final)), n, map[string]any{
		"reel":         p.reel,
		"tick_ms":      slotTickMs,
		"frames":       frames,
		"final_symbol": final,
		"forced":       forced,
	}), nil
}

func slotParamsFrom(params map[string]any) (slotParams, error) {
	var p slotParams
	var err error

	if p.reel, err = intParam(params, "slot-reel", "reel", 0, 0, slotMaxReels-1); err != nil {
		return p, err
	}
	if p.delayMs, err = intParam(params, "slot-reel", "delay_ms", 0, 0, slotMaxDelayMs); err != nil {
		return p, err
	}
	if p.symbols, err = stringsParam(params, "slot-reel", "symbols", slotDefaultSymbols); err != nil {
		return p, err
	}
	if p.final, err = stringParam(params, "slot-reel", "final_symbol", ""); err != nil {
		return p, err
	}
	if p.final != "" && !slices.Contains(p.symbols, p.final) {
		return p, fmt.Errorf("%w: final symbol %q is not on the reel", ErrOutcomeMismatch, p.final)
	}
	return p, nil
}

// single adapts one pre-drawn float to an Rng for a single Pick.
func single(f float64) engine.Rng {
	return func() float64 { return f }
}

// sequence replays pre-drawn floats in order. Callers check the length first.
func sequence(floats []float64) engine.Rng {
	i := 0
	return func() float64 {
		f := floats[i]
		i++
		return f
	}
}
