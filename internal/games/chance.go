package games

import "github.com/stickntrade/casino/internal/rng"

// Single-shot solo games: one draw, flat 2x on a matched choice.

// Coin flip results.
const (
	CoinHeads = "heads"
	CoinTails = "tails"
)

// FlipCoin returns heads or tails.
func FlipCoin(src rng.Source) string {
	if src.Intn(2) == 0 {
		return CoinHeads
	}
	return CoinTails
}

// ValidCoinChoice reports whether a coin-flip choice is accepted.
func ValidCoinChoice(choice string) bool {
	return choice == CoinHeads || choice == CoinTails
}

// Hi-lo die choices: 1-3 is low, 4-6 is high.
const (
	DieLow  = "low"
	DieHigh = "high"
)

// RollDie returns a uniform 1-6 roll.
func RollDie(src rng.Source) int {
	return src.Intn(6) + 1
}

// DieSide returns the hi-lo label for a roll.
func DieSide(roll int) string {
	if roll <= 3 {
		return DieLow
	}
	return DieHigh
}

// ValidDieChoice reports whether a hi-lo choice is accepted.
func ValidDieChoice(choice string) bool {
	return choice == DieLow || choice == DieHigh
}
