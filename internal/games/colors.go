package games

import (
	"strings"

	"github.com/stickntrade/casino/internal/domain"
	"github.com/stickntrade/casino/internal/rng"
)

// Colors: three independent draws from a six-symbol set; each drawn
// symbol matching the bettor's choice returns the stake once on top of
// the stake itself.
var colorSymbols = []string{"red", "blue", "green", "yellow", "white", "pink"}

// Colors is the symbol-match table.
type Colors struct{}

// NewColors creates the symbol-match table.
func NewColors() *Colors { return &Colors{} }

func (g *Colors) ID() string   { return "colors" }
func (g *Colors) Name() string { return "Colors" }

func (g *Colors) ValidChoice(choice string) bool {
	for _, s := range colorSymbols {
		if choice == s {
			return true
		}
	}
	return false
}

// ColorsOutcome is the result of one Colors round.
type ColorsOutcome struct {
	Symbols [3]string `json:"symbols"`
}

// Winner is the drawn symbols joined for display and round records;
// there is no single winning symbol.
func (o ColorsOutcome) Winner() string {
	return strings.Join(o.Symbols[:], ",")
}

func (g *Colors) Deal(src rng.Source) Outcome {
	var symbols [3]string
	for i := range symbols {
		symbols[i] = colorSymbols[src.Intn(len(colorSymbols))]
	}
	return ColorsOutcome{Symbols: symbols}
}

// Payout pays stake x (1 + matches) when at least one symbol matches:
// one match doubles the stake, two matches triple it, three quadruple.
// No match loses the stake.
func (g *Colors) Payout(choice string, o Outcome) domain.Ratio {
	out, ok := o.(ColorsOutcome)
	if !ok {
		return domain.RatioLose
	}

	matches := 0
	for _, s := range out.Symbols {
		if s == choice {
			matches++
		}
	}
	if matches == 0 {
		return domain.RatioLose
	}
	return domain.Ratio((1 + matches) * 100)
}
