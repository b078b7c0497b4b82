package visuals

import (
	"fmt"

	"github.com/MJE43/visual-replay-go/internal/seeds"
)

const (
	blackjackAttempts     = 100
	blackjackCards        = 4
	blackjackDrawsPerDeal = 2 * blackjackCards
	blackjackDraws        = blackjackAttempts * blackjackDrawsPerDeal
)

// Settled blackjack results, indexed the way the bet table lists them.
const (
	BlackjackLose      = "lose"
	BlackjackWin       = "win"
	BlackjackBlackjack = "blackjack"
	BlackjackPush      = "push"
)

var blackjackHands = []string{BlackjackLose, BlackjackWin, BlackjackBlackjack, BlackjackPush}

// blackjackFallback holds player and dealer ranks used when no dealt attempt
// fits the result. Suits still come from the draws.
var blackjackFallback = map[string][blackjackCards]int{
	BlackjackLose:      {8, 5, 11, 7},  // 10 7 vs K 9
	BlackjackWin:       {11, 7, 8, 5},  // K 9 vs 10 7
	BlackjackBlackjack: {12, 11, 8, 7}, // A K vs 10 9
	BlackjackPush:      {8, 6, 10, 6},  // 10 8 vs Q 8
}

// BlackjackDealEffect deals the opening two-card hands of a settled round.
// It re-deals from the seed until player and dealer hands fit the result.
type BlackjackDealEffect struct{}

func (e *BlackjackDealEffect) Spec() EffectSpec {
	return EffectSpec{
		ID:          "blackjack-deal",
		Name:        "Blackjack Deal",
		MetricLabel: "player_value",
		Namespace:   seeds.Blackjack,
	}
}

// DrawCount covers every attempt: rank and suit for four cards each.
func (e *BlackjackDealEffect) DrawCount(map[string]any) int { return blackjackDraws }

func (e *BlackjackDealEffect) Seed(in Input) (seeds.Seed, error) {
	hand, err := blackjackHand(in)
	if err != nil {
		return seeds.Seed{}, err
	}
	return seeds.Outcome(seeds.Blackjack, in.Outcome.ResultIndex, in.Outcome.Payout, hand)
}

func (e *BlackjackDealEffect) Render(in Input) (Frame, error) {
	return renderSeeded(e, in)
}

func (e *BlackjackDealEffect) RenderWithFloats(floats []float64, in Input) (Frame, error) {
	if err := checkFloats("blackjack-deal", floats, blackjackDraws); err != nil {
		return Frame{}, err
	}
	hand, err := blackjackHand(in)
	if err != nil {
		return Frame{}, err
	}

	attempt := -1
	var cards [blackjackCards]Card
	for a := 0; a < blackjackAttempts; a++ {
		cards = dealBlackjack(floats[a*blackjackDrawsPerDeal : (a+1)*blackjackDrawsPerDeal])
		if blackjackFits(hand, cards[:2], cards[2:]) {
			attempt = a
			break
		}
	}
	if attempt < 0 {
		cards = dealBlackjack(floats[:blackjackDrawsPerDeal])
		for i, rank := range blackjackFallback[hand] {
			cards[i].Rank = rank
		}
	}

	player, dealer := cards[:2], cards[2:]
	pv := blackjackValue(player)
	return newFrame(e.Spec(), float64(pv), blackjackDraws, map[string]any{
		"hand":             hand,
		"player":           cardStrings(player),
		"dealer":           cardStrings(dealer),
		"player_value":     pv,
		"dealer_value":     blackjackValue(dealer),
		"player_blackjack": isBlackjack(player),
		"dealer_blackjack": isBlackjack(dealer),
		"attempt":          attempt,
	}), nil
}

// dealBlackjack turns eight draws into player then dealer cards. Cards are
// drawn independently, not from one deck.
func dealBlackjack(floats []float64) [blackjackCards]Card {
	var cards [blackjackCards]Card
	for i := range cards {
		cards[i] = Card{
			Rank: int(floats[2*i] * float64(len(cardRanks))),
			Suit: int(floats[2*i+1] * float64(len(cardSuits))),
		}
	}
	return cards
}

// blackjackValue scores a hand, counting aces as 11 until that would bust.
func blackjackValue(cards []Card) int {
	value, aces := 0, 0
	for _, c := range cards {
		switch {
		case c.Rank == 12:
			aces++
			value += 11
		case c.Rank >= 8:
			value += 10
		default:
			value += c.Rank + 2
		}
	}
	for value > 21 && aces > 0 {
		value -= 10
		aces--
	}
	return value
}

func isBlackjack(cards []Card) bool {
	return len(cards) == 2 && blackjackValue(cards) == 21
}

func blackjackFits(hand string, player, dealer []Card) bool {
	pv, dv := blackjackValue(player), blackjackValue(dealer)
	switch hand {
	case BlackjackLose:
		return dv > pv
	case BlackjackWin:
		return pv > dv && !isBlackjack(player)
	case BlackjackBlackjack:
		return isBlackjack(player) && !isBlackjack(dealer)
	default:
		return pv == dv
	}
}

// blackjackHand reads the settled hand from params, falling back to the
// result index as a slot of the bet table. Lose must pay nothing and every
// other hand must pay something.
func blackjackHand(in Input) (string, error) {
	var hand string
	if v, ok := in.Params["hand"]; ok {
		s, _ := v.(string)
		for _, h := range blackjackHands {
			if s == h {
				hand = h
			}
		}
		if hand == "" {
			return "", paramError("blackjack-deal", "hand must be one of %v, got %v", blackjackHands, v)
		}
	} else {
		ri := in.Outcome.ResultIndex
		if ri < 0 || ri >= int64(len(blackjackHands)) {
			return "", fmt.Errorf("%w: blackjack-deal: result index %d is not a hand", ErrOutcomeMismatch, ri)
		}
		hand = blackjackHands[ri]
	}

	if (hand == BlackjackLose) == in.Outcome.IsWin() {
		return "", fmt.Errorf("%w: blackjack-deal: %s with payout %s", ErrOutcomeMismatch, hand, in.Outcome.Payout)
	}
	return hand, nil
}
