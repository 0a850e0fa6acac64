// Package domain contains the core domain models for the casino engine:
// accounts, credits, wagers, rounds, outcomes, and the append-only ledger.
package domain

import "time"

// Credits is an amount of the internal virtual currency. Balances are
// whole credits and are never negative.
type Credits int64

// Ratio is a payout multiplier expressed in hundredths, so 200 means 2x
// and 195 means 1.95x. All payout math is integer; Apply floors.
type Ratio int64

const (
	RatioLose   Ratio = 0
	RatioRefund Ratio = 100
	RatioWin    Ratio = 200
)

// Apply computes the payout for a stake at this ratio, flooring toward
// zero. Flooring is part of the payout contract.
func (r Ratio) Apply(stake Credits) Credits {
	return Credits(int64(stake) * int64(r) / 100)
}

// Role determines what an account is allowed to do.
type Role string

const (
	RolePlayer Role = "player"
	RoleAdmin  Role = "admin"
)

// Account is a registered credit-holding identity. Accounts are never
// deleted; misbehaving accounts are banned instead. The balance is
// mutated only through the ledger.
type Account struct {
	ID           string     `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         Role       `json:"role" db:"role"`
	Balance      Credits    `json:"balance" db:"balance"`
	Banned       bool       `json:"banned" db:"banned"`
	LastRewardAt *time.Time `json:"last_reward_at,omitempty" db:"last_reward_at"`
	RewardStreak int        `json:"reward_streak" db:"reward_streak"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// SessionStatus represents login session state.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusExpired   SessionStatus = "expired"
	SessionStatusLoggedOut SessionStatus = "logged_out"
)

// Session is a player login session backing a JWT.
type Session struct {
	ID             string        `json:"id" db:"id"`
	AccountID      string        `json:"account_id" db:"account_id"`
	Token          string        `json:"-" db:"token"`
	IPAddress      string        `json:"ip_address" db:"ip_address"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	LastActivityAt time.Time     `json:"last_activity_at" db:"last_activity_at"`
	ExpiresAt      time.Time     `json:"expires_at" db:"expires_at"`
	Status         SessionStatus `json:"status" db:"status"`
}

// EntryReason tags every ledger entry with why the balance moved.
type EntryReason string

const (
	ReasonWager       EntryReason = "wager"        // stake debited at acceptance
	ReasonPayout      EntryReason = "payout"       // settlement credit
	ReasonRefund      EntryReason = "refund"       // compensating credit for a rejected wager
	ReasonDailyReward EntryReason = "daily_reward" // daily streak reward
	ReasonPromo       EntryReason = "promo"        // promo code redemption
	ReasonAdjustment  EntryReason = "adjustment"   // cashier/admin adjustment
)

// LedgerEntry is one append-only record of a balance delta. An account's
// balance always equals the sum of its entries.
type LedgerEntry struct {
	ID        string      `json:"id" db:"id"`
	AccountID string      `json:"account_id" db:"account_id"`
	Amount    int64       `json:"amount" db:"amount"` // signed, in credits
	Reason    EntryReason `json:"reason" db:"reason"`
	Detail    string      `json:"detail" db:"detail"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// Phase is the state of a table's current round.
type Phase string

const (
	PhaseOpen     Phase = "OPEN"     // accepting wagers, countdown running
	PhaseClosed   Phase = "CLOSED"   // wagers frozen, outcome being computed
	PhaseSettling Phase = "SETTLING" // result broadcast, credits being applied
)

// Wager is a stake placed on a choice for one round of a table. It is
// immutable once accepted and is consumed exactly once at settlement.
type Wager struct {
	ID        string    `json:"id" db:"id"`
	AccountID string    `json:"account_id" db:"account_id"`
	TableID   string    `json:"table_id" db:"table_id"`
	RoundID   string    `json:"round_id" db:"round_id"`
	Choice    string    `json:"choice" db:"choice"`
	Stake     Credits   `json:"stake" db:"stake"`
	PlacedAt  time.Time `json:"placed_at" db:"placed_at"`
}

// RoundStatus is the persisted lifecycle of a round record.
type RoundStatus string

const (
	RoundStatusOpen    RoundStatus = "open"
	RoundStatusSettled RoundStatus = "settled"
)

// Round is the audit record of one betting cycle of a table.
type Round struct {
	ID        string      `json:"id" db:"id"`
	TableID   string      `json:"table_id" db:"table_id"`
	Status    RoundStatus `json:"status" db:"status"`
	Winner    string      `json:"winner" db:"winner"`
	StartedAt time.Time   `json:"started_at" db:"started_at"`
	EndedAt   *time.Time  `json:"ended_at,omitempty" db:"ended_at"`
}

// PromoCode is a single-use credit grant redeemable by one account.
type PromoCode struct {
	Code       string     `json:"code" db:"code"`
	Amount     Credits    `json:"amount" db:"amount"`
	RedeemedBy *string    `json:"redeemed_by,omitempty" db:"redeemed_by"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty" db:"redeemed_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// EventSeverity represents audit event severity.
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityError    EventSeverity = "error"
	SeverityCritical EventSeverity = "critical"
)

// AuditEvent records a significant system event such as a settled round,
// a large win, or an invariant violation.
type AuditEvent struct {
	ID          string        `json:"id" db:"id"`
	Type        string        `json:"type" db:"type"`
	Severity    EventSeverity `json:"severity" db:"severity"`
	Timestamp   time.Time     `json:"timestamp" db:"timestamp"`
	AccountID   *string       `json:"account_id,omitempty" db:"account_id"`
	TableID     *string       `json:"table_id,omitempty" db:"table_id"`
	RoundID     *string       `json:"round_id,omitempty" db:"round_id"`
	Description string        `json:"description" db:"description"`
	Data        []byte        `json:"data,omitempty" db:"data"`
	Component   string        `json:"component" db:"component"`
}
