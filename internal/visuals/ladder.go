package visuals

import (
	"math"

	"github.com/MJE43/visual-replay-go/internal/seeds"
)

const (
	ladderDwellMs    = 800
	ladderJitterMs   = 200
	ladderMatchDelta = 0.1
)

type ladderStep struct {
	Multiplier float64 `json:"multiplier"`
	WinChance  float64 `json:"win_chance"`
}

var ladderSteps = []ladderStep{
	{1.1, 0.90},
	{1.2, 0.85},
	{1.5, 0.80},
	{2.0, 0.70},
	{3.0, 0.60},
	{5.0, 0.45},
	{10.0, 0.25},
	{25.0, 0.10},
	{100.0, 0.02},
}

// LadderEffect climbs a fixed ladder of multipliers one rung at a time.
type LadderEffect struct{}

func (e *LadderEffect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "ladder",
		Name:        "Crash Ladder",
		MetricLabel: "reached_multiplier",
		Namespace:   seeds.Ladder,
	}
}

// DrawCount is one draw per rung.
func (e *LadderEffect) DrawCount(map[string]any) int { return len(ladderSteps) }

func (e *LadderEffect) Seed(in Input) (seeds.Seed, error) {
	return seeds.Outcome(seeds.Ladder, in.Outcome.ResultIndex, in.Outcome.Payout)
}

func (e *LadderEffect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

// RenderWithFloats passes every rung up to the paid one for winners. Losers
// fall at the first rung whose draw misses its chance, or at the top rung.
func (e *LadderEffect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	n := len(ladderSteps)
	if err := checkFloats("ladder", floats, n); err != nil {
		return Frame{}, err
	}

	win := in.Outcome.IsWin()
	last := n - 1
	if win {
		last = ladderTargetStep(in.Outcome.Multiplier().InexactFloat64())
	}

	dwell := make([]int, 0, last+1)
	passed := make([]int, 0, last+1)
	stop := last
	for i := 0; i <= last; i++ {
		u := floats[i]
		dwell = append(dwell, ladderDwellMs+int(math.Round((u-0.5)*ladderJitterMs)))
		if !win && (u >= ladderSteps[i].WinChance || i == last) {
			stop = i
			break
		}
		passed = append(passed, i)
	}

	state := "crashed"
	if win {
		state = "won"
	}
	reached := ladderSteps[stop].Multiplier
	return newFrame(e.Spec(), reached, len(dwell), map[string]any{
		"state":        state,
		"stop_step":    stop,
		"passed_steps": passed,
		"dwell_ms":     dwell,
		"steps":        ladderSteps,
	}), nil
}

// ladderTargetStep finds the rung matching a winning multiplier, falling
// back to the top rung.
func ladderTargetStep(multiplier float64) int {
	for i, s := range ladderSteps {
		if math.Abs(s.Multiplier-multiplier) < ladderMatchDelta {
			return i
		}
	}
	return len(ladderSteps) - 1
}
