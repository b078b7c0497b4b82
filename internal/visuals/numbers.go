package visuals

import (
	"fmt"
	"math"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/seeds"
)

const (
	magic8DefaultOutcomes  = 100
	magic8DefaultRollUnder = 50
	magic8MaxOutcomes      = 10_000

	hiloRanks     = 13
	hiloMaxOffset = 1 << 20

	plinkoMinRows     = 8
	plinkoMaxRows     = 16
	plinkoDefaultRows = 16
)

// Magic8Effect picks the lucky number shown by the ball. Winning numbers sit
// below the roll-under line, losing numbers at or above it.
type Magic8Effect struct{}

func (e *Magic8Effect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "magic8",
		Name:        "Magic 8 Ball",
		MetricLabel: "lucky_number",
		Namespace:   seeds.Magic8,
	}
}

func (e *Magic8Effect) DrawCount(map[string]any) int { return 1 }

func (e *Magic8Effect) Seed(in Input) (seeds.Seed, error) {
	_, rollUnder, err := magic8Params(in.Params)
	if err != nil {
		return seeds.Seed{}, err
	}
	o := in.Outcome
	return seeds.Outcome(seeds.Magic8, o.ResultIndex, o.Payout, o.Multiplier(), rollUnder)
}

func (e *Magic8Effect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

func (e *Magic8Effect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	if err := checkFloats("magic8", floats, 1); err != nil {
		return Frame{}, err
	}
	outcomes, rollUnder, err := magic8Params(in.Params)
	if err != nil {
		return Frame{}, err
	}

	u := floats[0]
	var lucky int
	if in.Outcome.IsWin() {
		lucky = int(math.Floor(u * float64(rollUnder)))
	} else {
		lucky = rollUnder + int(math.Floor(u*float64(outcomes-rollUnder)))
	}
	return newFrame(e.Spec(), float64(lucky), 1, map[string]any{
		"raw_float":  u,
		"roll_under": rollUnder,
		"outcomes":   outcomes,
		"win":        in.Outcome.IsWin(),
	}), nil
}

func magic8Params(params map[string]any) (outcomes, rollUnder int, err error) {
	if outcomes, err = intParam(params, "magic8", "outcomes", magic8DefaultOutcomes, 2, magic8MaxOutcomes); err != nil {
		return 0, 0, err
	}
	if rollUnder, err = intParam(params, "magic8", "roll_under", magic8DefaultRollUnder, 1, outcomes-1); err != nil {
		return 0, 0, err
	}
	return outcomes, rollUnder, nil
}

// HiLoRankEffect derives the rank of the next face-up card.
type HiLoRankEffect struct{}

func (e *HiLoRankEffect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "hilo-rank",
		Name:        "HiLo Card Rank",
		MetricLabel: "rank",
		Namespace:   seeds.HiLo,
	}
}

func (e *HiLoRankEffect) DrawCount(map[string]any) int { return 1 }

// Seed takes "offset", the position of the card within the round.
func (e *HiLoRankEffect) Seed(in Input) (seeds.Seed, error) {
	offset, err := intParam(in.Params, "hilo-rank", "offset", 0, 0, hiloMaxOffset)
	if err != nil {
		return seeds.Seed{}, err
	}
	return seeds.Outcome(seeds.HiLo, in.Outcome.ResultIndex, offset)
}

func (e *HiLoRankEffect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

// RenderWithFloats yields a rank in 1..12.
func (e *HiLoRankEffect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	if err := checkFloats("hilo-rank", floats, 1); err != nil {
		return Frame{}, err
	}
	rank := 1 + int(math.Floor(floats[0]*(hiloRanks-1)))
	return newFrame(e.Spec(), float64(rank), 1, map[string]any{
		"raw_float": floats[0],
		"rank":      rank,
	}), nil
}

// PlinkoPathEffect draws a left/right peg path that ends in the settled
// bucket. The path holds exactly bucket rights; only their order is drawn.
type PlinkoPathEffect struct{}

func (e *PlinkoPathEffect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "plinko-path",
		Name:        "Plinko Path",
		MetricLabel: "bucket",
		Namespace:   seeds.Plinko,
	}
}

// DrawCount is the shuffle of the row directions.
func (e *PlinkoPathEffect) DrawCount(params map[string]any) int {
	rows, err := intParam(params, "plinko-path", "rows", plinkoDefaultRows, plinkoMinRows, plinkoMaxRows)
	if err != nil {
		return plinkoDefaultRows - 1
	}
	return rows - 1
}

func (e *PlinkoPathEffect) Seed(in Input) (seeds.Seed, error) {
	rows, bucket, err := plinkoParams(in)
	if err != nil {
		return seeds.Seed{}, err
	}
	return seeds.Outcome(seeds.Plinko, in.Outcome.ResultIndex, rows, bucket)
}

func (e *PlinkoPathEffect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

func (e *PlinkoPathEffect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	rows, bucket, err := plinkoParams(in)
	if err != nil {
		return Frame{}, err
	}
	if err := checkFloats("plinko-path", floats, rows-1); err != nil {
		return Frame{}, err
	}

	directions := make([]string, rows)
	for i := range directions {
		if i < bucket {
			directions[i] = "right"
		} else {
			directions[i] = "left"
		}
	}
	engine.Shuffle(directions, sequence(floats[:rows-1]))

	return newFrame(e.Spec(), float64(bucket), rows-1, map[string]any{
		"rows":       rows,
		"bucket":     bucket,
		"directions": directions,
	}), nil
}

// plinkoParams reads rows and the settled bucket. The bucket defaults to the
// result index, which indexes the payout table directly.
func plinkoParams(in Input) (rows, bucket int, err error) {
	if rows, err = intParam(in.Params, "plinko-path", "rows", plinkoDefaultRows, plinkoMinRows, plinkoMaxRows); err != nil {
		return 0, 0, err
	}
	def := int(min(in.Outcome.ResultIndex, int64(rows)))
	if bucket, err = intParam(in.Params, "plinko-path", "bucket", def, 0, rows); err != nil {
		return 0, 0, err
	}
	if !hasParam(in.Params, "bucket") && in.Outcome.ResultIndex > int64(rows) {
		return 0, 0, fmt.Errorf("%w: plinko-path: result index %d is not a bucket for %d rows", ErrOutcomeMismatch, in.Outcome.ResultIndex, rows)
	}
	return rows, bucket, nil
}
