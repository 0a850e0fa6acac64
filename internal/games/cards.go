// Package games implements the outcome generators and payout rules for
// every game variant: the shared-table games driven by the round engine
// and the solo games driven by per-player actions.
package games

import (
	"fmt"

	"github.com/stickntrade/casino/internal/rng"
)

// Rank is a card rank, 1 (ace) through 13 (king).
type Rank int

const (
	Ace   Rank = 1
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
)

// Suit is one of the four card suits.
type Suit string

const (
	Spades   Suit = "spades"
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
)

var suits = []Suit{Spades, Hearts, Diamonds, Clubs}

var rankLabels = map[Rank]string{
	Ace: "A", 2: "2", 3: "3", 4: "4", 5: "5", 6: "6", 7: "7",
	8: "8", 9: "9", 10: "10", Jack: "J", Queen: "Q", King: "K",
}

// Card is a single playing card.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

// Label returns a short display form such as "A spades" -> "As".
func (c Card) Label() string {
	return fmt.Sprintf("%s%c", rankLabels[c.Rank], c.Suit[0])
}

// DrawCard draws one uniform card. Draws are independent (infinite
// shoe), matching the shared tables' per-round dealing.
func DrawCard(src rng.Source) Card {
	return Card{
		Rank: Rank(src.Intn(13) + 1),
		Suit: suits[src.Intn(4)],
	}
}

// DrawCards draws n independent uniform cards.
func DrawCards(src rng.Source, n int) []Card {
	cards := make([]Card, n)
	for i := range cards {
		cards[i] = DrawCard(src)
	}
	return cards
}

// BaccaratValue returns the baccarat point value of a card: ace counts
// one, face cards and tens count zero.
func BaccaratValue(c Card) int {
	if c.Rank >= 10 {
		return 0
	}
	return int(c.Rank)
}

// BlackjackValue returns the blackjack value of a card before ace
// reduction: face cards count ten, aces count eleven.
func BlackjackValue(c Card) int {
	switch {
	case c.Rank == Ace:
		return 11
	case c.Rank >= 10:
		return 10
	default:
		return int(c.Rank)
	}
}
