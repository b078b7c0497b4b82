package visuals

import (
	"slices"
)

var (
	cardRanks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}
	cardSuits = []string{"♠", "♥", "♦", "♣"}
)

const deckSize = 52

// Card is a playing card. Rank 0 is a two and rank 12 an ace.
type Card struct {
	Rank int `json:"rank"`
	Suit int `json:"suit"`
}

// String renders the card like "10♥".
func (c Card) String() string {
	return cardRanks[c.Rank] + cardSuits[c.Suit]
}

// newDeck returns the 52 cards in rank-major order.
func newDeck() []Card {
	deck := make([]Card, 0, deckSize)
	for suit := range cardSuits {
		for rank := range cardRanks {
			deck = append(deck, Card{Rank: rank, Suit: suit})
		}
	}
	return deck
}

func cardStrings(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

// classifyHand names the best category of a five card hand.
func classifyHand(cards []Card) string {
	if len(cards) != 5 {
		return "invalid"
	}

	ranks := make([]int, 5)
	flush := true
	for i, c := range cards {
		ranks[i] = c.Rank
		if c.Suit != cards[0].Suit {
			flush = false
		}
	}
	slices.Sort(ranks)

	freq := make(map[int]int, 5)
	for _, r := range ranks {
		freq[r]++
	}
	counts := make([]int, 0, len(freq))
	for _, n := range freq {
		counts = append(counts, n)
	}
	slices.Sort(counts)
	slices.Reverse(counts)

	distinct := len(freq) == 5
	straight := distinct && ranks[4]-ranks[0] == 4
	wheel := distinct && slices.Equal(ranks, []int{0, 1, 2, 3, 12})

	switch {
	case flush && straight && ranks[0] == 8:
		return "royal_flush"
	case flush && (straight || wheel):
		return "straight_flush"
	case counts[0] == 4:
		return "four_of_a_kind"
	case counts[0] == 3 && counts[1] == 2:
		return "full_house"
	case flush:
		return "flush"
	case straight || wheel:
		return "straight"
	case counts[0] == 3:
		return "three_of_a_kind"
	case counts[0] == 2 && counts[1] == 2:
		return "two_pair"
	case counts[0] == 2:
		return "pair"
	default:
		return "high_card"
	}
}
