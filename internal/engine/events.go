package engine

import (
	"context"

	"github.com/stickntrade/casino/internal/domain"
	"github.com/stickntrade/casino/internal/games"
)

// Broadcaster delivers round events to connected clients. The engine
// calls these in a strict order for every round: Countdown while open,
// then BetsLocked, then RoundResult, then one BalanceUpdate per paid
// account, then RoundReset.
type Broadcaster interface {
	Countdown(tableID, roundID string, seconds int)
	BetsLocked(tableID, roundID string)
	RoundResult(tableID, roundID string, outcome games.Outcome)
	BalanceUpdate(accountID, tableID, roundID string, payout, balance domain.Credits)
	RoundReset(tableID, roundID string, seconds int)
}

// Ledger is the credit store the engine settles against.
type Ledger interface {
	DebitWager(ctx context.Context, w domain.Wager) (domain.Credits, error)
	RefundWager(ctx context.Context, w domain.Wager) (domain.Credits, error)
	CreditPayout(ctx context.Context, accountID string, amount domain.Credits, tableID, roundID string) (domain.Credits, error)
	CreateRound(ctx context.Context, roundID, tableID string) error
	SettleRound(ctx context.Context, roundID, tableID, winner string, wagers int, totalPayout domain.Credits) error
}

// Gate blocks wagering for banned accounts or when gaming is disabled.
type Gate interface {
	CheckWagering(ctx context.Context, accountID string) error
}

// Limits validates stakes against table bounds.
type Limits interface {
	Check(tableID string, stake domain.Credits) error
}

// History records winners for the public recent-outcomes feed.
type History interface {
	Record(ctx context.Context, tableID, winner string) error
}
