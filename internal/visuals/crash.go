package visuals

import (
	"math"

	"github.com/MJE43/visual-replay-go/internal/seeds"
)

const (
	crashDefaultTarget = 2.0
	crashMinTarget     = 1.01
	crashMaxTarget     = 1_000_000.0
	crashMaxPoint      = 100.0
)

// crashBand covers [lo, hi) for draws in [from, to).
type crashBand struct {
	from, to float64
	lo, hi   float64
}

var crashBands = []crashBand{
	{from: 0.00, to: 0.50, lo: 1, hi: 2},
	{from: 0.50, to: 0.80, lo: 2, hi: 5},
	{from: 0.80, to: 0.95, lo: 5, hi: 20},
	{from: 0.95, to: 1.00, lo: 20, hi: crashMaxPoint},
}

// CrashPoint maps a draw onto the display distribution, floored to cents.
// It also returns the band index.
func CrashPoint(u float64) (float64, int) {
	for i, b := range crashBands {
		if u < b.to {
			pos := (u - b.from) / (b.to - b.from)
			return floorCents(b.lo + pos*(b.hi-b.lo)), i
		}
	}
	return crashMaxPoint, len(crashBands) - 1
}

// LosingMultiplier spreads u over [1, target) so a losing round never
// visually reaches the cash-out target.
func LosingMultiplier(u, target float64) float64 {
	m := floorCents(1 + u*(target-1))
	if m >= target {
		m = floorCents(target - 0.01)
	}
	return math.Max(1, m)
}

func floorCents(v float64) float64 {
	return math.Floor(v*100) / 100
}

// CrashEffect draws the multiplier a crash curve stops at.
type CrashEffect struct{}

func (e *CrashEffect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "crash",
		Name:        "Crash Point",
		MetricLabel: "crash_point",
		Namespace:   seeds.Crash,
	}
}

func (e *CrashEffect) DrawCount(map[string]any) int { return 1 }

func (e *CrashEffect) Seed(in Input) (seeds.Seed, error) {
	target, err := crashTarget(in.Params)
	if err != nil {
		return seeds.Seed{}, err
	}
	return seeds.Outcome(seeds.Crash, in.Outcome.ResultIndex, in.Outcome.Payout, target)
}

func (e *CrashEffect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

// RenderWithFloats keeps the displayed point on the outcome's side of the
// target: winners stop at or above it, losers below it.
func (e *CrashEffect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	if err := checkFloats("crash", floats, 1); err != nil {
		return Frame{}, err
	}
	target, err := crashTarget(in.Params)
	if err != nil {
		return Frame{}, err
	}

	u := floats[0]
	raw, band := CrashPoint(u)
	point := raw
	switch win := in.Outcome.IsWin(); {
	case win && raw < target:
		point = math.Max(target, floorCents(target+(raw-1)))
	case !win && raw >= target:
		point = LosingMultiplier(u, target)
	}

	return newFrame(e.Spec(), point, 1, map[string]any{
		"raw_float":         u,
		"raw_point":         raw,
		"band":              band,
		"target_multiplier": target,
		"crash_point":       point,
		"cashed_out":        in.Outcome.IsWin(),
		"adjusted":          point != raw,
	}), nil
}

func crashTarget(params map[string]any) (float64, error) {
	return floatParam(params, "crash", "target", crashDefaultTarget, crashMinTarget, crashMaxTarget)
}
