package games

import (
	"github.com/stickntrade/casino/internal/domain"
	"github.com/stickntrade/casino/internal/rng"
)

// Baccarat: two hands of two cards, values mod 10, fixed third-card
// drawing rules, higher final value wins.
const (
	ChoicePlayer = "player"
	ChoiceBanker = "banker"
)

// Baccarat is the two-hand comparison table. The banker side pays 1.95x
// to cover the house commission.
type Baccarat struct {
	playerRatio domain.Ratio
	bankerRatio domain.Ratio
	tieRatio    domain.Ratio
}

// NewBaccarat creates the table with standard payouts.
func NewBaccarat() *Baccarat {
	return &Baccarat{playerRatio: 200, bankerRatio: 195, tieRatio: 900}
}

func (g *Baccarat) ID() string   { return "baccarat" }
func (g *Baccarat) Name() string { return "Baccarat" }

func (g *Baccarat) ValidChoice(choice string) bool {
	return choice == ChoicePlayer || choice == ChoiceBanker || choice == ChoiceTie
}

// BaccaratOutcome is the result of one Baccarat round.
type BaccaratOutcome struct {
	PlayerCards []Card `json:"player_cards"`
	BankerCards []Card `json:"banker_cards"`
	PlayerScore int    `json:"player_score"`
	BankerScore int    `json:"banker_score"`
	Result      string `json:"winner"`
}

func (o BaccaratOutcome) Winner() string { return o.Result }

// HandScore sums baccarat card values mod 10.
func HandScore(cards []Card) int {
	sum := 0
	for _, c := range cards {
		sum += BaccaratValue(c)
	}
	return sum % 10
}

// PlayerDraws reports whether the player hand takes a third card: it
// draws on a two-card total of five or less.
func PlayerDraws(playerScore int) bool {
	return playerScore <= 5
}

// BankerDraws reports whether the banker hand takes a third card.
// When the player stood, the banker draws on five or less. When the
// player drew, the decision depends on the banker total and the value
// of the player's third card.
func BankerDraws(bankerScore int, playerDrew bool, playerThird int) bool {
	if !playerDrew {
		return bankerScore <= 5
	}

	switch bankerScore {
	case 0, 1, 2:
		return true
	case 3:
		return playerThird != 8
	case 4:
		return playerThird >= 2 && playerThird <= 7
	case 5:
		return playerThird >= 4 && playerThird <= 7
	case 6:
		return playerThird == 6 || playerThird == 7
	default:
		return false
	}
}

func (g *Baccarat) Deal(src rng.Source) Outcome {
	player := DrawCards(src, 2)
	banker := DrawCards(src, 2)

	playerDrew := false
	playerThird := 0
	if PlayerDraws(HandScore(player)) {
		third := DrawCard(src)
		player = append(player, third)
		playerDrew = true
		playerThird = BaccaratValue(third)
	}

	if BankerDraws(HandScore(banker), playerDrew, playerThird) {
		banker = append(banker, DrawCard(src))
	}

	playerScore := HandScore(player)
	bankerScore := HandScore(banker)

	result := ChoiceTie
	switch {
	case playerScore > bankerScore:
		result = ChoicePlayer
	case bankerScore > playerScore:
		result = ChoiceBanker
	}

	return BaccaratOutcome{
		PlayerCards: player,
		BankerCards: banker,
		PlayerScore: playerScore,
		BankerScore: bankerScore,
		Result:      result,
	}
}

// Payout pays 2x on player, 1.95x on banker, and 9x on tie. On a tie
// outcome, player and banker wagers are refunded at 1x rather than
// forfeited; this asymmetry with Dragon Tiger is deliberate.
func (g *Baccarat) Payout(choice string, o Outcome) domain.Ratio {
	out, ok := o.(BaccaratOutcome)
	if !ok {
		return domain.RatioLose
	}

	if out.Result == ChoiceTie {
		if choice == ChoiceTie {
			return g.tieRatio
		}
		return domain.RatioRefund
	}

	if choice != out.Result {
		return domain.RatioLose
	}
	if choice == ChoiceBanker {
		return g.bankerRatio
	}
	return g.playerRatio
}
