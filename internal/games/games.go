package games

import (
	"github.com/stickntrade/casino/internal/domain"
	"github.com/stickntrade/casino/internal/rng"
)

// Outcome is the immutable generated result of one round. The concrete
// type carries the variant-specific payload broadcast to subscribers.
type Outcome interface {
	// Winner is the canonical result label persisted on the round
	// record, e.g. "dragon", "big", "tie".
	Winner() string
}

// Game is one shared-table game variant: a pure outcome generator plus
// a pure payout rule.
type Game interface {
	ID() string
	Name() string
	// ValidChoice reports whether a wager choice is accepted.
	ValidChoice(choice string) bool
	// Deal generates the round outcome from the randomness source. It
	// is invoked exactly once per round.
	Deal(src rng.Source) Outcome
	// Payout maps (choice, outcome) to a payout ratio. A zero ratio is
	// a lost wager; 100 refunds the stake.
	Payout(choice string, o Outcome) domain.Ratio
}

// Tables returns the shared-table game set in display order.
func Tables() []Game {
	return []Game{
		NewDragonTiger(),
		NewSicBo(),
		NewColors(),
		NewBaccarat(),
	}
}
