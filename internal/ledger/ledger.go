// Package ledger is the authoritative credit store. Every balance
// mutation takes a row lock on the account, writes the new balance and
// an append-only ledger entry in the same transaction, and keeps the
// invariant balance == sum(entries) for every account.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stickntrade/casino/internal/audit"
	"github.com/stickntrade/casino/internal/domain"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAlreadyClaimed    = errors.New("daily reward already claimed")
	ErrPromoNotFound     = errors.New("promo code not found")
	ErrPromoRedeemed     = errors.New("promo code already redeemed")
)

// RewardPolicy controls the daily reward amounts. The reward grows by
// Step for each consecutive day claimed, up to Cap.
type RewardPolicy struct {
	Base Credits
	Step Credits
	Cap  Credits
}

type Credits = domain.Credits

// Service provides balance and ledger functionality.
type Service struct {
	db     *sql.DB
	audit  *audit.Service
	reward RewardPolicy
}

// New creates a new ledger service.
func New(db *sql.DB, auditSvc *audit.Service, reward RewardPolicy) *Service {
	return &Service{db: db, audit: auditSvc, reward: reward}
}

// GetAccount retrieves an account by id.
func (s *Service) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	var a domain.Account
	var lastReward sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, balance, banned, last_reward_at, reward_streak, created_at, updated_at
		FROM accounts WHERE id = $1
	`, accountID).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.Balance,
		&a.Banned, &lastReward, &a.RewardStreak, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if lastReward.Valid {
		a.LastRewardAt = &lastReward.Time
	}
	return &a, nil
}

// GetBalance retrieves the current balance for an account.
func (s *Service) GetBalance(ctx context.Context, accountID string) (Credits, error) {
	var balance Credits
	err := s.db.QueryRowContext(ctx, `
		SELECT balance FROM accounts WHERE id = $1
	`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// lockBalance reads an account balance under FOR UPDATE, serializing
// concurrent mutations of the same account.
func lockBalance(ctx context.Context, tx *sql.Tx, accountID string) (Credits, error) {
	var balance Credits
	err := tx.QueryRowContext(ctx, `
		SELECT balance FROM accounts WHERE id = $1 FOR UPDATE
	`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to lock account: %w", err)
	}
	return balance, nil
}

// writeDelta updates the locked balance and appends the matching ledger
// entry inside the caller's transaction.
func writeDelta(ctx context.Context, tx *sql.Tx, accountID string, delta int64, newBalance Credits, reason domain.EntryReason, detail string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts SET balance = $1, updated_at = $2 WHERE id = $3
	`, newBalance, now, accountID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, account_id, amount, reason, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New().String(), accountID, delta, reason, detail, now)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// Credit adds credits to an account.
func (s *Service) Credit(ctx context.Context, accountID string, amount Credits, reason domain.EntryReason, detail string) (Credits, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return s.apply(ctx, accountID, int64(amount), reason, detail)
}

// Debit removes credits from an account, failing with
// ErrInsufficientFunds rather than ever going negative.
func (s *Service) Debit(ctx context.Context, accountID string, amount Credits, reason domain.EntryReason, detail string) (Credits, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return s.apply(ctx, accountID, -int64(amount), reason, detail)
}

func (s *Service) apply(ctx context.Context, accountID string, delta int64, reason domain.EntryReason, detail string) (Credits, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	balance, err := lockBalance(ctx, tx, accountID)
	if err != nil {
		return 0, err
	}

	newBalance := balance + Credits(delta)
	if newBalance < 0 {
		return 0, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	if err := writeDelta(ctx, tx, accountID, delta, newBalance, reason, detail, now); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// DebitWager atomically debits the stake and records the accepted wager.
// The wager row and the debit commit or fail together, so an accepted
// wager always has its stake held.
func (s *Service) DebitWager(ctx context.Context, w domain.Wager) (Credits, error) {
	if w.Stake <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	balance, err := lockBalance(ctx, tx, w.AccountID)
	if err != nil {
		return 0, err
	}
	if balance < w.Stake {
		return 0, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	newBalance := balance - w.Stake
	detail := fmt.Sprintf("%s %s round %s", w.TableID, w.Choice, w.RoundID)
	if err := writeDelta(ctx, tx, w.AccountID, -int64(w.Stake), newBalance, domain.ReasonWager, detail, now); err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wagers (id, account_id, table_id, round_id, choice, stake, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, w.ID, w.AccountID, w.TableID, w.RoundID, w.Choice, w.Stake, now)
	if err != nil {
		return 0, fmt.Errorf("failed to record wager: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// RefundWager returns a previously debited stake. Used when a wager is
// rejected after its debit, e.g. the round closed mid-flight.
func (s *Service) RefundWager(ctx context.Context, w domain.Wager) (Credits, error) {
	detail := fmt.Sprintf("%s %s round %s", w.TableID, w.Choice, w.RoundID)
	return s.Credit(ctx, w.AccountID, w.Stake, domain.ReasonRefund, detail)
}

// CreditPayout credits settlement winnings for one account in one round.
// A zero payout is a no-op returning the current balance, so losing
// accounts produce no ledger entry at settlement.
func (s *Service) CreditPayout(ctx context.Context, accountID string, amount Credits, tableID, roundID string) (Credits, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	if amount == 0 {
		return s.GetBalance(ctx, accountID)
	}

	detail := fmt.Sprintf("%s round %s", tableID, roundID)
	newBalance, err := s.Credit(ctx, accountID, amount, domain.ReasonPayout, detail)
	if err != nil {
		return 0, err
	}

	if amount >= largeWinThreshold {
		s.audit.Log(ctx, audit.EventLargeWin, domain.SeverityWarning,
			fmt.Sprintf("Payout of %d credits", amount),
			map[string]interface{}{"amount": amount},
			audit.WithAccount(accountID), audit.WithRound(tableID, roundID),
			audit.WithComponent("ledger"))
	}
	return newBalance, nil
}

// largeWinThreshold flags payouts for operator review in the audit log.
const largeWinThreshold = 10000

// ClaimDailyReward grants the daily reward if the account has not
// claimed one today. Consecutive-day claims grow the streak and the
// reward; a missed day resets both.
func (s *Service) ClaimDailyReward(ctx context.Context, accountID string) (Credits, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	var balance Credits
	var lastReward sql.NullTime
	var streak int
	err = tx.QueryRowContext(ctx, `
		SELECT balance, last_reward_at, reward_streak FROM accounts WHERE id = $1 FOR UPDATE
	`, accountID).Scan(&balance, &lastReward, &streak)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrAccountNotFound
		}
		return 0, 0, fmt.Errorf("failed to lock account: %w", err)
	}

	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)
	if lastReward.Valid {
		lastDay := lastReward.Time.UTC().Truncate(24 * time.Hour)
		switch {
		case lastDay.Equal(today):
			return 0, 0, ErrAlreadyClaimed
		case lastDay.Equal(today.AddDate(0, 0, -1)):
			streak++
		default:
			streak = 1
		}
	} else {
		streak = 1
	}

	amount := s.reward.Base + s.reward.Step*Credits(streak-1)
	if amount > s.reward.Cap {
		amount = s.reward.Cap
	}

	newBalance := balance + amount
	detail := fmt.Sprintf("day %d", streak)
	if err := writeDelta(ctx, tx, accountID, int64(amount), newBalance, domain.ReasonDailyReward, detail, now); err != nil {
		return 0, 0, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE accounts SET last_reward_at = $1, reward_streak = $2 WHERE id = $3
	`, now, streak, accountID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to update streak: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}

	s.audit.Log(ctx, audit.EventRewardClaimed, domain.SeverityInfo,
		fmt.Sprintf("Daily reward of %d credits, streak %d", amount, streak),
		map[string]interface{}{"amount": amount, "streak": streak},
		audit.WithAccount(accountID), audit.WithComponent("ledger"))

	return newBalance, streak, nil
}

// CreatePromo registers a single-use promo code.
func (s *Service) CreatePromo(ctx context.Context, code string, amount Credits) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promo_codes (code, amount, created_at) VALUES ($1, $2, $3)
	`, code, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create promo code: %w", err)
	}
	return nil
}

// RedeemPromo redeems a single-use promo code for an account. The code
// row is locked so two concurrent redemptions cannot both succeed.
func (s *Service) RedeemPromo(ctx context.Context, accountID, code string) (Credits, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var amount Credits
	var redeemedBy sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT amount, redeemed_by FROM promo_codes WHERE code = $1 FOR UPDATE
	`, code).Scan(&amount, &redeemedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrPromoNotFound
		}
		return 0, fmt.Errorf("failed to lock promo code: %w", err)
	}
	if redeemedBy.Valid {
		return 0, ErrPromoRedeemed
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE promo_codes SET redeemed_by = $1, redeemed_at = $2 WHERE code = $3
	`, accountID, now, code)
	if err != nil {
		return 0, fmt.Errorf("failed to mark promo redeemed: %w", err)
	}

	balance, err := lockBalance(ctx, tx, accountID)
	if err != nil {
		return 0, err
	}
	newBalance := balance + amount
	if err := writeDelta(ctx, tx, accountID, int64(amount), newBalance, domain.ReasonPromo, code, now); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.audit.Log(ctx, audit.EventPromoRedeemed, domain.SeverityInfo,
		fmt.Sprintf("Promo %s redeemed for %d credits", code, amount),
		map[string]interface{}{"code": code, "amount": amount},
		audit.WithAccount(accountID), audit.WithComponent("ledger"))

	return newBalance, nil
}

// AdjustBalance applies a signed admin adjustment. The balance never
// goes below zero.
func (s *Service) AdjustBalance(ctx context.Context, accountID string, delta int64, adminID string) (Credits, error) {
	if delta == 0 {
		return 0, ErrInvalidAmount
	}

	newBalance, err := s.apply(ctx, accountID, delta, domain.ReasonAdjustment, "by "+adminID)
	if err != nil {
		return 0, err
	}

	s.audit.Log(ctx, audit.EventBalanceAdjustment, domain.SeverityWarning,
		fmt.Sprintf("Balance adjusted by %d credits", delta),
		map[string]interface{}{"delta": delta, "admin_id": adminID},
		audit.WithAccount(accountID), audit.WithComponent("ledger"))

	return newBalance, nil
}

// Entries retrieves ledger history for an account, newest first.
func (s *Service) Entries(ctx context.Context, accountID string, limit int) ([]*domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, amount, reason, detail, created_at
		FROM ledger_entries WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.Reason, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// CreateRound persists a newly opened round.
func (s *Service) CreateRound(ctx context.Context, roundID, tableID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rounds (id, table_id, status, started_at) VALUES ($1, $2, $3, $4)
	`, roundID, tableID, domain.RoundStatusOpen, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create round: %w", err)
	}
	return nil
}

// SettleRound marks a round settled with its winner and logs the
// settlement to the audit trail.
func (s *Service) SettleRound(ctx context.Context, roundID, tableID, winner string, wagers int, totalPayout Credits) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE rounds SET status = $1, winner = $2, ended_at = $3 WHERE id = $4
	`, domain.RoundStatusSettled, winner, time.Now().UTC(), roundID)
	if err != nil {
		return fmt.Errorf("failed to settle round: %w", err)
	}

	s.audit.Log(ctx, audit.EventRoundSettled, domain.SeverityInfo,
		fmt.Sprintf("Round settled, winner %s, %d wagers, %d credits paid", winner, wagers, totalPayout),
		map[string]interface{}{"winner": winner, "wagers": wagers, "total_payout": totalPayout},
		audit.WithRound(tableID, roundID), audit.WithComponent("ledger"))

	log.WithFields(log.Fields{
		"table":  tableID,
		"round":  roundID,
		"winner": winner,
		"wagers": wagers,
		"payout": totalPayout,
	}).Info("round settled")

	return nil
}
