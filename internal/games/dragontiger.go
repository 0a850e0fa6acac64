package games

import (
	"github.com/stickntrade/casino/internal/domain"
	"github.com/stickntrade/casino/internal/rng"
)

// Dragon Tiger: one card per side, higher rank wins, ace low.
const (
	ChoiceDragon = "dragon"
	ChoiceTiger  = "tiger"
	ChoiceTie    = "tie"
)

// DragonTiger is the two-card race table.
type DragonTiger struct {
	tieRatio domain.Ratio
}

// NewDragonTiger creates the table with the standard 9x tie payout.
func NewDragonTiger() *DragonTiger {
	return &DragonTiger{tieRatio: 900}
}

func (g *DragonTiger) ID() string   { return "dragon-tiger" }
func (g *DragonTiger) Name() string { return "Dragon Tiger" }

func (g *DragonTiger) ValidChoice(choice string) bool {
	return choice == ChoiceDragon || choice == ChoiceTiger || choice == ChoiceTie
}

// DragonTigerOutcome is the result of one Dragon Tiger round.
type DragonTigerOutcome struct {
	Dragon Card   `json:"dragon"`
	Tiger  Card   `json:"tiger"`
	Result string `json:"winner"`
}

func (o DragonTigerOutcome) Winner() string { return o.Result }

func (g *DragonTiger) Deal(src rng.Source) Outcome {
	dragon := DrawCard(src)
	tiger := DrawCard(src)

	result := ChoiceTie
	switch {
	case dragon.Rank > tiger.Rank:
		result = ChoiceDragon
	case tiger.Rank > dragon.Rank:
		result = ChoiceTiger
	}

	return DragonTigerOutcome{Dragon: dragon, Tiger: tiger, Result: result}
}

// Payout pays the tie ratio on a matched tie, 2x on a matched side, and
// nothing otherwise. A tie outcome forfeits dragon/tiger wagers.
func (g *DragonTiger) Payout(choice string, o Outcome) domain.Ratio {
	out, ok := o.(DragonTigerOutcome)
	if !ok {
		return domain.RatioLose
	}

	if out.Result == ChoiceTie {
		if choice == ChoiceTie {
			return g.tieRatio
		}
		return domain.RatioLose
	}
	if choice == out.Result {
		return domain.RatioWin
	}
	return domain.RatioLose
}
