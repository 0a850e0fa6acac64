package engine

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stickntrade/casino/internal/audit"
	"github.com/stickntrade/casino/internal/domain"
	"github.com/stickntrade/casino/internal/games"
	"github.com/stickntrade/casino/internal/rng"
)

// Table runs the round lifecycle for one shared game. All phase and
// wager-set changes happen under the mutex; the slow parts (dealing,
// settling, broadcasting) run outside it against a frozen snapshot.
type Table struct {
	game  games.Game
	cfg   Config
	clock quartz.Clock
	src   rng.Source
	deps  Deps

	mu        sync.Mutex
	phase     domain.Phase
	roundID   string
	remaining int
	pending   []domain.Wager
	settled   bool
}

func newTable(game games.Game, cfg Config, clock quartz.Clock, src rng.Source, deps Deps) *Table {
	return &Table{
		game:  game,
		cfg:   cfg,
		clock: clock,
		src:   src,
		deps:  deps,
		phase: domain.PhaseSettling, // first openRound flips to OPEN
	}
}

// Snapshot is the table state sent to a client joining mid-round.
type Snapshot struct {
	TableID   string       `json:"table_id"`
	GameName  string       `json:"game_name"`
	RoundID   string       `json:"round_id"`
	Phase     domain.Phase `json:"phase"`
	Remaining int          `json:"remaining_seconds"`
}

// Snapshot returns the current table state.
func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		TableID:   t.game.ID(),
		GameName:  t.game.Name(),
		RoundID:   t.roundID,
		Phase:     t.phase,
		Remaining: t.remaining,
	}
}

// PlaceWager accepts a stake on the current round. The stake is debited
// before the wager is committed to the round; if the round closes while
// the debit is in flight the stake is refunded and the wager rejected.
func (t *Table) PlaceWager(ctx context.Context, accountID, choice string, stake domain.Credits) (*domain.Wager, domain.Credits, error) {
	if stake <= 0 {
		return nil, 0, ErrInvalidStake
	}
	if !t.game.ValidChoice(choice) {
		return nil, 0, ErrInvalidChoice
	}
	if err := t.deps.Limits.Check(t.game.ID(), stake); err != nil {
		return nil, 0, err
	}
	if err := t.deps.Gate.CheckWagering(ctx, accountID); err != nil {
		return nil, 0, err
	}

	t.mu.Lock()
	if t.phase != domain.PhaseOpen {
		t.mu.Unlock()
		return nil, 0, ErrTableClosed
	}
	roundID := t.roundID
	t.mu.Unlock()

	w := domain.Wager{
		ID:        uuid.New().String(),
		AccountID: accountID,
		TableID:   t.game.ID(),
		RoundID:   roundID,
		Choice:    choice,
		Stake:     stake,
		PlacedAt:  time.Now().UTC(),
	}

	balance, err := t.deps.Ledger.DebitWager(ctx, w)
	if err != nil {
		return nil, 0, err
	}

	// The debit did I/O; the round may have closed underneath us. A
	// wager is only committed if the same round is still open.
	t.mu.Lock()
	if t.phase == domain.PhaseOpen && t.roundID == roundID {
		t.pending = append(t.pending, w)
		t.mu.Unlock()
		return &w, balance, nil
	}
	t.mu.Unlock()

	refunded, rerr := t.deps.Ledger.RefundWager(ctx, w)
	if rerr != nil {
		log.WithError(rerr).WithFields(log.Fields{
			"wager": w.ID, "account": accountID,
		}).Error("failed to refund late wager")
		t.deps.Audit.Log(ctx, audit.EventInvariantViolation, domain.SeverityCritical,
			"Late wager debit could not be refunded",
			map[string]interface{}{"wager_id": w.ID, "stake": stake},
			audit.WithAccount(accountID), audit.WithRound(w.TableID, roundID))
		return nil, 0, ErrTableClosed
	}
	return nil, refunded, ErrTableClosed
}

// tick runs once per second while the engine is up.
func (t *Table) tick(ctx context.Context) {
	t.mu.Lock()
	if t.phase != domain.PhaseOpen {
		t.mu.Unlock()
		return
	}
	t.remaining--
	if t.remaining > 0 {
		roundID, secs := t.roundID, t.remaining
		t.mu.Unlock()
		t.deps.Broadcaster.Countdown(t.game.ID(), roundID, secs)
		return
	}

	// Clock expired: freeze the wager set and close the round. From
	// here no new wager can enter this round.
	t.phase = domain.PhaseClosed
	frozen := t.pending
	t.pending = nil
	roundID := t.roundID
	t.mu.Unlock()

	t.closeRound(ctx, roundID, frozen)
}

// closeRound announces the lock, computes the outcome, and schedules
// settlement. Locked is always broadcast before the outcome exists, so
// no client can see a result while wagers look open.
func (t *Table) closeRound(ctx context.Context, roundID string, frozen []domain.Wager) {
	t.deps.Broadcaster.BetsLocked(t.game.ID(), roundID)

	outcome := t.game.Deal(t.src)
	t.deps.Broadcaster.RoundResult(t.game.ID(), roundID, outcome)

	if err := t.deps.History.Record(ctx, t.game.ID(), outcome.Winner()); err != nil {
		log.WithError(err).WithField("table", t.game.ID()).Warn("failed to record outcome history")
	}

	t.clock.AfterFunc(t.cfg.SettleDelay, func() {
		t.settle(context.Background(), roundID, frozen, outcome)
	})
}

// settle pays winners and notifies balances, exactly once per round.
func (t *Table) settle(ctx context.Context, roundID string, frozen []domain.Wager, outcome games.Outcome) {
	t.mu.Lock()
	if t.roundID != roundID || t.settled {
		already := t.settled
		t.mu.Unlock()
		t.deps.Audit.Log(ctx, audit.EventInvariantViolation, domain.SeverityCritical,
			"Duplicate or stale settlement attempt",
			map[string]interface{}{"already_settled": already},
			audit.WithRound(t.game.ID(), roundID))
		return
	}
	t.settled = true
	t.phase = domain.PhaseSettling
	t.mu.Unlock()

	// Aggregate payouts per account so each gets one credit and one
	// balance notification, however many wagers it placed.
	payouts := make(map[string]domain.Credits)
	order := make([]string, 0, len(frozen))
	for _, w := range frozen {
		if _, seen := payouts[w.AccountID]; !seen {
			order = append(order, w.AccountID)
		}
		payouts[w.AccountID] += t.game.Payout(w.Choice, outcome).Apply(w.Stake)
	}

	var total domain.Credits
	for _, accountID := range order {
		amount := payouts[accountID]
		balance, err := t.deps.Ledger.CreditPayout(ctx, accountID, amount, t.game.ID(), roundID)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"account": accountID, "round": roundID, "amount": amount,
			}).Error("failed to credit payout")
			t.deps.Audit.Log(ctx, audit.EventInvariantViolation, domain.SeverityCritical,
				"Settlement payout could not be credited",
				map[string]interface{}{"amount": amount},
				audit.WithAccount(accountID), audit.WithRound(t.game.ID(), roundID))
			continue
		}
		total += amount
		t.deps.Broadcaster.BalanceUpdate(accountID, t.game.ID(), roundID, amount, balance)
	}

	if err := t.deps.Ledger.SettleRound(ctx, roundID, t.game.ID(), outcome.Winner(), len(frozen), total); err != nil {
		log.WithError(err).WithField("round", roundID).Error("failed to persist settlement")
	}

	t.clock.AfterFunc(t.cfg.ResetDelay, func() {
		t.openRound(context.Background())
	})
}

// openRound starts a fresh round and reopens the table for wagers.
func (t *Table) openRound(ctx context.Context) {
	roundID := uuid.New().String()

	if err := t.deps.Ledger.CreateRound(ctx, roundID, t.game.ID()); err != nil {
		log.WithError(err).WithField("table", t.game.ID()).Error("failed to persist round")
	}

	t.mu.Lock()
	t.roundID = roundID
	t.phase = domain.PhaseOpen
	t.remaining = t.cfg.BettingSeconds
	t.pending = nil
	t.settled = false
	secs := t.remaining
	t.mu.Unlock()

	t.deps.Broadcaster.RoundReset(t.game.ID(), roundID, secs)
}
