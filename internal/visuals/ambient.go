package visuals

import (
	"math"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/seeds"
)

// Ambient effects are decorative only. Their seeds carry a time bucket, so
// every client inside the same bucket renders the same scene and nothing
// about them is expected to replay later.

const (
	diceMaxIndex     = 1 << 20
	diceImpulseX     = 0.04
	diceImpulseYBase = 0.02
	diceImpulseYSpan = 0.02
	diceTorqueSpread = 0.5

	coinDefaultCount = 15
	coinMaxCount     = 200
	coinDefaultWidth = 400
	coinRadius       = 25
	coinStartY       = -50
	coinRowGap       = 30

	lobbyDefaultWidth = 800
	lobbySpawnSpread  = 200
	lobbyMaxSpawned   = 1 << 20
)

var lobbyDefaultColors = []string{"#ff9aa2", "#ffb7b2", "#ffdac1", "#e2f0cb", "#b5ead7", "#c7ceea"}

// DiceAnimEffect computes the cosmetic toss of a physics die.
type DiceAnimEffect struct{}

func (e *DiceAnimEffect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "dice-anim",
		Name:        "Dice Toss",
		MetricLabel: "impulse",
		Namespace:   seeds.DiceAnim,
	}
}

// DrawCount: impulse x, impulse y, torque, spin.
func (e *DiceAnimEffect) DrawCount(map[string]any) int { return 4 }

func (e *DiceAnimEffect) Seed(in Input) (seeds.Seed, error) {
	b, err := ambientBucket(in, seeds.SecondBucket)
	if err != nil {
		return seeds.Seed{}, err
	}
	index, err := intParam(in.Params, "dice-anim", "index", 0, 0, diceMaxIndex)
	if err != nil {
		return seeds.Seed{}, err
	}
	return seeds.Ambient(seeds.DiceAnim, b, index)
}

func (e *DiceAnimEffect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

func (e *DiceAnimEffect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	if err := checkFloats("dice-anim", floats, 4); err != nil {
		return Frame{}, err
	}
	x := (floats[0] - 0.5) * diceImpulseX
	y := -(diceImpulseYBase + floats[1]*diceImpulseYSpan)
	torque := (floats[2] - 0.5) * diceTorqueSpread
	spin := floats[3] * 2 * math.Pi

	return newFrame(e.Spec(), math.Hypot(x, y), 4, map[string]any{
		"impulse":     map[string]float64{"x": x, "y": y},
		"torque":      torque,
		"start_angle": spin,
	}), nil
}

// CoinShowerEffect drops celebratory coins across the win banner.
type CoinShowerEffect struct{}

func (e *CoinShowerEffect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "coin-shower",
		Name:        "Coin Shower",
		MetricLabel: "coins",
		Namespace:   seeds.Coins,
	}
}

func (e *CoinShowerEffect) DrawCount(params map[string]any) int {
	n, err := intParam(params, "coin-shower", "count", coinDefaultCount, 1, coinMaxCount)
	if err != nil {
		return coinDefaultCount
	}
	return n
}

func (e *CoinShowerEffect) Seed(in Input) (seeds.Seed, error) {
	b, err := ambientBucket(in, seeds.SecondBucket)
	if err != nil {
		return seeds.Seed{}, err
	}
	return seeds.Ambient(seeds.Coins, b, in.Outcome.Payout)
}

func (e *CoinShowerEffect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

func (e *CoinShowerEffect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	n, err := intParam(in.Params, "coin-shower", "count", coinDefaultCount, 1, coinMaxCount)
	if err != nil {
		return Frame{}, err
	}
	width, err := intParam(in.Params, "coin-shower", "width", coinDefaultWidth, 2*coinRadius+1, 10_000)
	if err != nil {
		return Frame{}, err
	}
	if err := checkFloats("coin-shower", floats, n); err != nil {
		return Frame{}, err
	}

	coins := make([]point, n)
	span := float64(width - 2*coinRadius)
	for i, f := range floats[:n] {
		coins[i] = point{X: f*span + coinRadius, Y: float64(coinStartY - i*coinRowGap)}
	}
	return newFrame(e.Spec(), float64(n), n, map[string]any{
		"coins": coins,
		"width": width,
	}), nil
}

// LobbySpawnEffect places the next decorative ball in the lobby background.
type LobbySpawnEffect struct{}

func (e *LobbySpawnEffect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "lobby-spawn",
		Name:        "Lobby Ball Spawn",
		MetricLabel: "spawn_x",
		Namespace:   seeds.LobbySpawn,
	}
}

// DrawCount: x offset and colour.
func (e *LobbySpawnEffect) DrawCount(map[string]any) int { return 2 }

// Seed groups spawns into 750ms buckets; "spawned" is the number of balls
// already on screen.
func (e *LobbySpawnEffect) Seed(in Input) (seeds.Seed, error) {
	b, err := ambientBucket(in, seeds.SpawnBucket)
	if err != nil {
		return seeds.Seed{}, err
	}
	spawned, err := intParam(in.Params, "lobby-spawn", "spawned", 0, 0, lobbyMaxSpawned)
	if err != nil {
		return seeds.Seed{}, err
	}
	return seeds.Ambient(seeds.LobbySpawn, b, spawned)
}

func (e *LobbySpawnEffect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

func (e *LobbySpawnEffect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	if err := checkFloats("lobby-spawn", floats, 2); err != nil {
		return Frame{}, err
	}
	width, err := intParam(in.Params, "lobby-spawn", "width", lobbyDefaultWidth, lobbySpawnSpread, 10_000)
	if err != nil {
		return Frame{}, err
	}
	colors, err := stringsParam(in.Params, "lobby-spawn", "colors", lobbyDefaultColors)
	if err != nil {
		return Frame{}, err
	}

	x := float64(width)/2 + (floats[0]*lobbySpawnSpread - lobbySpawnSpread/2)
	color, err := engine.Pick(colors, single(floats[1]))
	if err != nil {
		return Frame{}, err
	}
	return newFrame(e.Spec(), x, 2, map[string]any{
		"x":     x,
		"color": color,
	}), nil
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
