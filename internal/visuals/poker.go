package visuals

import (
	"fmt"
	"math"
	"slices"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/seeds"
)

const (
	pokerHandSize       = 5
	pokerMinPlayers     = 2
	pokerMaxPlayers     = 10
	pokerDefaultPlayers = 2
	shuffleDraws        = deckSize - 1
)

// PokerDealEffect deals the hands of a settled showdown. The initial deal
// shuffles one deck; each player who discards draws replacements from a
// separate deck seeded per player.
type PokerDealEffect struct{}

func (e *PokerDealEffect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "poker-deal",
		Name:        "Poker Deal",
		MetricLabel: "players",
		Namespace:   seeds.Poker,
	}
}

// DrawCount is one shuffle for the deal plus one per discarding player.
func (e *PokerDealEffect) DrawCount(params map[string]any) int {
	p, err := pokerParamsFrom(params)
	if err != nil {
		return shuffleDraws
	}
	return shuffleDraws * (1 + len(p.drawing()))
}

func (e *PokerDealEffect) Seed(in Input) (seeds.Seed, error) {
	return seeds.Outcome(seeds.Poker, in.Outcome.ResultIndex)
}

func (e *PokerDealEffect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

// DrawFloats draws the deal shuffle from the base seed, then one shuffle per
// discarding player from that player's draw seed.
func (e *PokerDealEffect) DrawFloats(dst []float64, base seeds.Seed, in Input) ([]float64, error) {
	p, err := pokerParamsFrom(in.Params)
	if err != nil {
		return nil, err
	}
	drawing := p.drawing()
	floats := resize(dst, shuffleDraws*(1+len(drawing)))

	engine.FloatsInto(floats[:shuffleDraws], base.String(), shuffleDraws)
	for n, player := range drawing {
		off := shuffleDraws * (n + 1)
		engine.FloatsInto(floats[off:off+shuffleDraws], pokerDrawSeed(base, player).String(), shuffleDraws)
	}
	return floats, nil
}

// RenderWithFloats expects the deal shuffle first, then one shuffle per
// discarding player in seat order.
func (e *PokerDealEffect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	p, err := pokerParamsFrom(in.Params)
	if err != nil {
		return Frame{}, err
	}
	drawing := p.drawing()
	need := shuffleDraws * (1 + len(drawing))
	if err := checkFloats("poker-deal", floats, need); err != nil {
		return Frame{}, err
	}

	deck := newDeck()
	engine.Shuffle(deck, sequence(floats[:shuffleDraws]))

	dealt := make(map[Card]bool, p.players*pokerHandSize)
	initial := make([][]Card, p.players)
	for i := range initial {
		initial[i] = slices.Clone(deck[i*pokerHandSize : (i+1)*pokerHandSize])
		for _, c := range initial[i] {
			dealt[c] = true
		}
	}

	final := make([][]Card, p.players)
	for i := range final {
		final[i] = slices.Clone(initial[i])
	}
	for n, player := range drawing {
		off := shuffleDraws * (n + 1)
		replacements := newDeck()
		engine.Shuffle(replacements, sequence(floats[off:off+shuffleDraws]))

		next := 0
		for _, idx := range p.discards[player] {
			for next < deckSize && dealt[replacements[next]] {
				next++
			}
			if next == deckSize {
				return Frame{}, paramError("poker-deal", "deck exhausted drawing for seat %d", player)
			}
			final[player][idx] = replacements[next]
			next++
		}
	}

	hands := make([]map[string]any, p.players)
	for i := range hands {
		hands[i] = map[string]any{
			"initial":  cardStrings(initial[i]),
			"final":    cardStrings(final[i]),
			"discards": p.discards[i],
			"category": classifyHand(final[i]),
		}
	}
	return newFrame(e.Spec(), float64(p.players), need, map[string]any{
		"hands": hands,
	}), nil
}

func pokerDrawSeed(base seeds.Seed, player int) seeds.Seed {
	s, _ := base.Derive("draw", player)
	return s
}

type pokerParams struct {
	players  int
	discards [][]int
}

// drawing lists the seats that discard at least one card.
func (p pokerParams) drawing() []int {
	var out []int
	for i, d := range p.discards {
		if len(d) > 0 {
			out = append(out, i)
		}
	}
	return out
}

func pokerParamsFrom(params map[string]any) (pokerParams, error) {
	players, err := intParam(params, "poker-deal", "players", pokerDefaultPlayers, pokerMinPlayers, pokerMaxPlayers)
	if err != nil {
		return pokerParams{}, err
	}
	p := pokerParams{players: players, discards: make([][]int, players)}
	if !hasParam(params, "discards") {
		return p, nil
	}

	seats, ok := params["discards"].([]any)
	if !ok {
		return p, paramError("poker-deal", "discards must be a list per player, got %T", params["discards"])
	}
	if len(seats) > players {
		return p, paramError("poker-deal", "discards for %d players, only %d seated", len(seats), players)
	}
	for i, seat := range seats {
		idx, err := discardIndices(seat)
		if err != nil {
			return p, paramError("poker-deal", "discards[%d]: %v", i, err)
		}
		p.discards[i] = idx
	}
	return p, nil
}

func discardIndices(raw any) ([]int, error) {
	var items []any
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		items = v
	case []int:
		for _, n := range v {
			items = append(items, n)
		}
	default:
		return nil, fmt.Errorf("unsupported type %T", raw)
	}

	seen := make(map[int]bool, len(items))
	out := make([]int, 0, len(items))
	for _, item := range items {
		var n int
		switch v := item.(type) {
		case int:
			n = v
		case float64:
			if math.Mod(v, 1) != 0 {
				return nil, fmt.Errorf("index %f is not an integer", v)
			}
			n = int(v)
		default:
			return nil, fmt.Errorf("unsupported index type %T", item)
		}
		if n < 0 || n >= pokerHandSize || seen[n] {
			return nil, fmt.Errorf("invalid discard index %d", n)
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}
