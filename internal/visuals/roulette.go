package visuals

import (
	"fmt"
	"math"
	"slices"

	"github.com/MJE43/visual-replay-go/internal/seeds"
)

const (
	rouletteOffsetSpread = 0.3
	rouletteBaseForce    = 0.015
	rouletteForceSpread  = 0.005
	rouletteSpinSpread   = 0.2
)

// rouletteWheel is the European single-zero pocket order.
var rouletteWheel = []int{
	0, 32, 15, 19, 4, 21, 2, 25, 17, 34, 6, 27, 13, 36, 11, 30, 8, 23, 10,
	5, 24, 16, 33, 1, 20, 14, 31, 9, 22, 18, 29, 7, 28, 12, 35, 3, 26,
}

var rouletteRed = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true,
	12: true, 14: true, 16: true, 18: true, 19: true,
	21: true, 23: true, 25: true, 27: true, 30: true,
	32: true, 34: true, 36: true,
}

func pocketColor(pocket int) string {
	switch {
	case pocket == 0:
		return "green"
	case rouletteRed[pocket]:
		return "red"
	default:
		return "black"
	}
}

// RouletteBallEffect launches the ball toward the settled pocket.
type RouletteBallEffect struct{}

func (e *RouletteBallEffect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "roulette-ball",
		Name:        "Roulette Ball",
		MetricLabel: "final_angle",
		Namespace:   seeds.Roulette,
	}
}

// DrawCount: angle offset, force magnitude, wheel spin.
func (e *RouletteBallEffect) DrawCount(map[string]any) int { return 3 }

// Seed uses the settled pocket and the result index. No clock value is
// involved, so replays launch the ball identically.
func (e *RouletteBallEffect) Seed(in Input) (seeds.Seed, error) {
	pocket, err := roulettePocket(in)
	if err != nil {
		return seeds.Seed{}, err
	}
	return seeds.Outcome(seeds.Roulette, in.Outcome.ResultIndex, pocket)
}

func (e *RouletteBallEffect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

func (e *RouletteBallEffect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	if err := checkFloats("roulette-ball", floats, 3); err != nil {
		return Frame{}, err
	}
	pocket, err := roulettePocket(in)
	if err != nil {
		return Frame{}, err
	}
	animate := true
	if v, ok := in.Params["with_animation"].(bool); ok {
		animate = v
	}

	idx := slices.Index(rouletteWheel, pocket)
	target := float64(idx)*2*math.Pi/float64(len(rouletteWheel)) + math.Pi/2
	angle := target + (floats[0]-0.5)*rouletteOffsetSpread
	force := rouletteBaseForce + floats[1]*rouletteForceSpread

	spin := 0.0
	if animate {
		spin = (floats[2] - 0.5) * rouletteSpinSpread
	}

	return newFrame(e.Spec(), angle, 3, map[string]any{
		"pocket":           pocket,
		"color":            pocketColor(pocket),
		"wheel_index":      idx,
		"target_angle":     target,
		"final_angle":      angle,
		"force_magnitude":  force,
		"force":            map[string]float64{"x": math.Cos(angle) * force, "y": math.Sin(angle) * force},
		"angular_velocity": spin,
	}), nil
}

// roulettePocket reads the settled pocket from params, falling back to the
// result index, which indexes the pocket table directly.
func roulettePocket(in Input) (int, error) {
	def := int(in.Outcome.ResultIndex)
	if in.Outcome.ResultIndex > 36 {
		def = -1
	}
	pocket, err := intParam(in.Params, "roulette-ball", "pocket", def, 0, 36)
	if err != nil {
		return 0, err
	}
	if pocket < 0 {
		return 0, fmt.Errorf("%w: roulette-ball: result index %d is not a pocket", ErrOutcomeMismatch, in.Outcome.ResultIndex)
	}
	return pocket, nil
}
