package games

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stickntrade/casino/internal/rng"
)

func TestBlackjackScore(t *testing.T) {
	tests := []struct {
		name  string
		cards []Card
		want  int
	}{
		{"KingAce", []Card{{Rank: King}, {Rank: Ace}}, 21},
		{"TwoAcesNine", []Card{{Rank: Ace}, {Rank: Ace}, {Rank: 9}}, 21},
		{"HardTwenty", []Card{{Rank: King}, {Rank: Queen}}, 20},
		{"SoftSeventeen", []Card{{Rank: Ace}, {Rank: 6}}, 17},
		{"ReducedAce", []Card{{Rank: Ace}, {Rank: 9}, {Rank: 5}}, 15},
		{"Bust", []Card{{Rank: King}, {Rank: 9}, {Rank: 5}}, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BlackjackScore(tt.cards))
		})
	}
}

func TestIsNatural(t *testing.T) {
	assert.True(t, IsNatural([]Card{{Rank: Ace}, {Rank: Queen}}))
	assert.False(t, IsNatural([]Card{{Rank: King}, {Rank: Queen}}))
	// A drawn-to 21 is not a natural.
	assert.False(t, IsNatural([]Card{{Rank: 7}, {Rank: 7}, {Rank: 7}}))
}

func TestDealerPlayScripted(t *testing.T) {
	// Dealer starts at 2+2 = 4 and draws 2,3,4,5 to reach 18.
	src := &script{t: t, vals: cardDraws(2, 3, 4, 5)}
	hand := DealerPlay([]Card{{Rank: 2}, {Rank: 2}}, src)

	assert.Len(t, hand, 6)
	assert.Equal(t, 18, BlackjackScore(hand))
}

// TestDealerPlayTerminates drives the dealer from a low hand with real
// randomness many times; the loop must always stop at 17+ or a bust.
func TestDealerPlayTerminates(t *testing.T) {
	src := rng.New()

	for i := 0; i < 500; i++ {
		hand := DealerPlay([]Card{{Rank: 2, Suit: Spades}, {Rank: 3, Suit: Hearts}}, src)
		score := BlackjackScore(hand)
		assert.GreaterOrEqual(t, score, DealerStand)
	}
}
