package visuals

import "github.com/MJE43/visual-replay-go/internal/seeds"

const (
	coinFlipMaxCoins = 20
	coinHeads        = "heads"
	coinTails        = "tails"
)

// CoinFlipEffect flips a row of coins for an "at least k of one side" bet.
// Each coin takes one draw; when the natural flips contradict the outcome,
// the fewest coins needed are turned over, starting from the last coin.
type CoinFlipEffect struct{}

func (e *CoinFlipEffect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "coin-flip",
		Name:        "Coin Flip",
		MetricLabel: "side_count",
		Namespace:   seeds.CoinFlip,
	}
}

func (e *CoinFlipEffect) DrawCount(params map[string]any) int {
	p, err := coinFlipParamsFrom(params)
	if err != nil {
		return 1
	}
	return p.coins
}

func (e *CoinFlipEffect) Seed(in Input) (seeds.Seed, error) {
	p, err := coinFlipParamsFrom(in.Params)
	if err != nil {
		return seeds.Seed{}, err
	}
	o := in.Outcome
	return seeds.Outcome(seeds.CoinFlip, o.ResultIndex, o.Payout, o.Multiplier(), p.coins, p.atLeast, p.side)
}

func (e *CoinFlipEffect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

func (e *CoinFlipEffect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	p, err := coinFlipParamsFrom(in.Params)
	if err != nil {
		return Frame{}, err
	}
	if err := checkFloats("coin-flip", floats, p.coins); err != nil {
		return Frame{}, err
	}

	sides := make([]string, p.coins)
	count := 0
	for i, u := range floats[:p.coins] {
		sides[i] = coinTails
		if u < 0.5 {
			sides[i] = coinHeads
		}
		if sides[i] == p.side {
			count++
		}
	}

	won := in.Outcome.IsWin()
	turned := 0
	for i := p.coins - 1; i >= 0; i-- {
		switch {
		case won && count < p.atLeast && sides[i] != p.side:
			sides[i] = p.side
			count++
		case !won && count >= p.atLeast && sides[i] == p.side:
			sides[i] = p.other()
			count--
		default:
			continue
		}
		turned++
	}

	return newFrame(e.Spec(), float64(count), p.coins, map[string]any{
		"coins":    sides,
		"side":     p.side,
		"at_least": p.atLeast,
		"win":      won,
		"turned":   turned,
	}), nil
}

type coinFlipParams struct {
	coins   int
	atLeast int
	side    string
}

func (p coinFlipParams) other() string {
	if p.side == coinHeads {
		return coinTails
	}
	return coinHeads
}

func coinFlipParamsFrom(params map[string]any) (coinFlipParams, error) {
	coins, err := intParam(params, "coin-flip", "coins", 1, 1, coinFlipMaxCoins)
	if err != nil {
		return coinFlipParams{}, err
	}
	atLeast, err := intParam(params, "coin-flip", "at_least", 1, 1, coins)
	if err != nil {
		return coinFlipParams{}, err
	}
	side := coinHeads
	if hasParam(params, "side") {
		s, _ := params["side"].(string)
		if s != coinHeads && s != coinTails {
			return coinFlipParams{}, paramError("coin-flip", "side must be heads or tails, got %v", params["side"])
		}
		side = s
	}
	return coinFlipParams{coins: coins, atLeast: atLeast, side: side}, nil
}
