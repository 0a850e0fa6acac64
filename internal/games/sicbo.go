package games

import (
	"github.com/stickntrade/casino/internal/domain"
	"github.com/stickntrade/casino/internal/rng"
)

// Sic Bo: three dice, bet on the sum being Small or Big. A triple is
// its own category and beats both.
const (
	ChoiceSmall  = "small"
	ChoiceBig    = "big"
	ResultTriple = "triple"
)

// SicBo is the dice-sum table.
type SicBo struct{}

// NewSicBo creates the dice-sum table.
func NewSicBo() *SicBo { return &SicBo{} }

func (g *SicBo) ID() string   { return "sic-bo" }
func (g *SicBo) Name() string { return "Sic Bo" }

func (g *SicBo) ValidChoice(choice string) bool {
	// Triple-number side bets are not offered; small/big only.
	return choice == ChoiceSmall || choice == ChoiceBig
}

// SicBoOutcome is the result of one Sic Bo round.
type SicBoOutcome struct {
	Dice   [3]int `json:"dice"`
	Sum    int    `json:"sum"`
	Result string `json:"winner"`
}

func (o SicBoOutcome) Winner() string { return o.Result }

func (g *SicBo) Deal(src rng.Source) Outcome {
	var dice [3]int
	sum := 0
	for i := range dice {
		dice[i] = src.Intn(6) + 1
		sum += dice[i]
	}

	result := ChoiceBig
	switch {
	case dice[0] == dice[1] && dice[1] == dice[2]:
		result = ResultTriple
	case sum <= 10:
		result = ChoiceSmall
	}

	return SicBoOutcome{Dice: dice, Sum: sum, Result: result}
}

// Payout pays 2x on a matched Small/Big. A triple outcome pays no
// Small/Big bettor.
func (g *SicBo) Payout(choice string, o Outcome) domain.Ratio {
	out, ok := o.(SicBoOutcome)
	if !ok || out.Result == ResultTriple {
		return domain.RatioLose
	}
	if choice == out.Result {
		return domain.RatioWin
	}
	return domain.RatioLose
}
