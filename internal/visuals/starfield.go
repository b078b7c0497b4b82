package visuals

import (
	"fmt"
	"math"
	"strings"

	"github.com/MJE43/visual-replay-go/internal/seeds"
)

const (
	starDefaultLayer = "small"
	starDefaultCount = 100
	starMaxCount     = 2000
	starDefaultSize  = 2000
	starColor        = "#FFF"
)

// StarfieldEffect lays out a decorative star layer. The seed depends only on
// the layer name, so the field is identical across reloads.
type StarfieldEffect struct{}

func (e *StarfieldEffect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "starfield",
		Name:        "Starfield",
		MetricLabel: "stars",
		Namespace:   seeds.Starfield,
	}
}

// DrawCount is two draws per star.
func (e *StarfieldEffect) DrawCount(params map[string]any) int {
	n, err := intParam(params, "starfield", "count", starDefaultCount, 1, starMaxCount)
	if err != nil {
		return 2 * starDefaultCount
	}
	return 2 * n
}

func (e *StarfieldEffect) Seed(in Input) (seeds.Seed, error) {
	layer, err := stringParam(in.Params, "starfield", "layer", starDefaultLayer)
	if err != nil {
		return seeds.Seed{}, err
	}
	return seeds.Fixed(seeds.Starfield, layer)
}

func (e *StarfieldEffect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

func (e *StarfieldEffect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	n, err := intParam(in.Params, "starfield", "count", starDefaultCount, 1, starMaxCount)
	if err != nil {
		return Frame{}, err
	}
	size, err := intParam(in.Params, "starfield", "size", starDefaultSize, 1, 100_000)
	if err != nil {
		return Frame{}, err
	}
	if err := checkFloats("starfield", floats, 2*n); err != nil {
		return Frame{}, err
	}

	stars := make([]point, n)
	shadows := make([]string, n)
	for i := range stars {
		x := math.Floor(floats[2*i] * float64(size))
		y := math.Floor(floats[2*i+1] * float64(size))
		stars[i] = point{X: x, Y: y}
		shadows[i] = fmt.Sprintf("%dpx %dpx %s", int(x), int(y), starColor)
	}

	return newFrame(e.Spec(), float64(n), 2*n, map[string]any{
		"stars":      stars,
		"box_shadow": strings.Join(shadows, ", "),
	}), nil
}
