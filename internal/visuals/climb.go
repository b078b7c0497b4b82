package visuals

import (
	"math"

	"github.com/MJE43/visual-replay-go/internal/seeds"
)

const (
	climbSlots       = 1000
	climbLosingFrom  = 500
	climbLosingSpan  = 0.19
	climbGrowthPerMs = 0.00006
)

// climbPaying holds the multiplier of the paying slots: slot i pays the
// multiplier of the first row whose limit exceeds i.
var climbPaying = []struct {
	limit      int
	multiplier float64
}{
	{10, 50}, {25, 20}, {50, 10}, {100, 5}, {180, 3}, {280, 2}, {400, 1.5}, {500, 1.2},
}

// ClimbSlotMultiplier returns the multiplier of slot i of the 1000-slot
// table. Slots from 500 up are losing and sit in [1.00, 1.19].
func ClimbSlotMultiplier(i int) float64 {
	if i >= climbLosingFrom {
		normalized := float64(i-climbLosingFrom) / float64(climbSlots-climbLosingFrom)
		return math.Round((1+normalized*climbLosingSpan)*10000) / 10000
	}
	for _, row := range climbPaying {
		if i < row.limit {
			return row.multiplier
		}
	}
	return 1
}

// CrashClimbEffect animates a multiplier curve to where the round ends.
type CrashClimbEffect struct{}

func (e *CrashClimbEffect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "crash-climb",
		Name:        "Crash Climb",
		MetricLabel: "final_multiplier",
		Namespace:   seeds.Climb,
	}
}

func (e *CrashClimbEffect) DrawCount(map[string]any) int { return 1 }

func (e *CrashClimbEffect) Seed(in Input) (seeds.Seed, error) {
	return seeds.Outcome(seeds.Climb, in.Outcome.ResultIndex, in.Outcome.Payout)
}

func (e *CrashClimbEffect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

// RenderWithFloats climbs winners to payout/wager. Losers stop at a losing
// slot of the table, always below the target.
func (e *CrashClimbEffect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	if err := checkFloats("crash-climb", floats, 1); err != nil {
		return Frame{}, err
	}
	target, err := crashTarget(in.Params)
	if err != nil {
		return Frame{}, err
	}

	u := floats[0]
	details := map[string]any{
		"raw_float":         u,
		"target_multiplier": target,
		"is_winner":         in.Outcome.IsWin(),
	}

	var final float64
	if in.Outcome.IsWin() {
		final = in.Outcome.Multiplier().InexactFloat64()
		if final < 1 {
			final = 1
		}
	} else {
		slot := climbLosingFrom + int(u*float64(climbSlots-climbLosingFrom))
		final = ClimbSlotMultiplier(slot)
		if final >= target {
			final = LosingMultiplier(u, target)
		}
		details["slot"] = slot
	}

	details["final_multiplier"] = final
	details["duration_ms"] = math.Round(math.Log(final) / climbGrowthPerMs)
	return newFrame(e.Spec(), final, 1, details), nil
}
