package games

import "github.com/stickntrade/casino/internal/rng"

// Blackjack hand evaluation for the solo card game. The session state
// machine lives in internal/solo; the dealing and scoring rules live
// here with the other game rules.

// BlackjackTarget is the bust threshold.
const BlackjackTarget = 21

// DealerStand is the score at or above which the dealer stops drawing.
const DealerStand = 17

// BlackjackScore scores a hand counting aces as eleven, then reduces
// aces to one, one at a time, while the hand is over 21.
func BlackjackScore(cards []Card) int {
	score := 0
	aces := 0
	for _, c := range cards {
		score += BlackjackValue(c)
		if c.Rank == Ace {
			aces++
		}
	}
	for score > BlackjackTarget && aces > 0 {
		score -= 10
		aces--
	}
	return score
}

// IsNatural reports whether a hand is a two-card 21.
func IsNatural(cards []Card) bool {
	return len(cards) == 2 && BlackjackScore(cards) == BlackjackTarget
}

// IsBust reports whether a hand is over 21.
func IsBust(cards []Card) bool {
	return BlackjackScore(cards) > BlackjackTarget
}

// DealerPlay draws cards for the dealer until the hand scores 17 or
// more. Every draw strictly increases the score until reduction stops
// helping, so the loop terminates for any card sequence.
func DealerPlay(cards []Card, src rng.Source) []Card {
	for BlackjackScore(cards) < DealerStand {
		cards = append(cards, DrawCard(src))
	}
	return cards
}
