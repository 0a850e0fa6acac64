package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stickntrade/casino/internal/audit"
	"github.com/stickntrade/casino/internal/domain"
	"github.com/stickntrade/casino/internal/games"
	"github.com/stickntrade/casino/internal/rng"
)

type busEvent struct {
	Kind      string
	TableID   string
	RoundID   string
	AccountID string
	Payout    domain.Credits
	Balance   domain.Credits
	Seconds   int
}

// fakeBus records every broadcast in arrival order.
type fakeBus struct {
	mu     sync.Mutex
	events []busEvent
}

func (b *fakeBus) add(e busEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *fakeBus) Countdown(tableID, roundID string, seconds int) {
	b.add(busEvent{Kind: "countdown", TableID: tableID, RoundID: roundID, Seconds: seconds})
}

func (b *fakeBus) BetsLocked(tableID, roundID string) {
	b.add(busEvent{Kind: "locked", TableID: tableID, RoundID: roundID})
}

func (b *fakeBus) RoundResult(tableID, roundID string, outcome games.Outcome) {
	b.add(busEvent{Kind: "result", TableID: tableID, RoundID: roundID})
}

func (b *fakeBus) BalanceUpdate(accountID, tableID, roundID string, payout, balance domain.Credits) {
	b.add(busEvent{Kind: "balance", TableID: tableID, RoundID: roundID, AccountID: accountID, Payout: payout, Balance: balance})
}

func (b *fakeBus) RoundReset(tableID, roundID string, seconds int) {
	b.add(busEvent{Kind: "reset", TableID: tableID, RoundID: roundID, Seconds: seconds})
}

// kinds returns the ordered event kinds for one table, dropping
// countdown ticks.
func (b *fakeBus) kinds(tableID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		if e.TableID == tableID && e.Kind != "countdown" {
			out = append(out, e.Kind)
		}
	}
	return out
}

func (b *fakeBus) byKind(tableID, kind string) []busEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []busEvent
	for _, e := range b.events {
		if e.TableID == tableID && e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type payoutCall struct {
	AccountID string
	Amount    domain.Credits
	RoundID   string
}

type settleCall struct {
	RoundID string
	Winner  string
	Wagers  int
	Total   domain.Credits
}

// fakeLedger is an in-memory credit store.
type fakeLedger struct {
	mu        sync.Mutex
	balances  map[string]domain.Credits
	debits    []domain.Wager
	refunds   []domain.Wager
	payouts   []payoutCall
	settles   []settleCall
	rounds    []string
	debitHook func()
	creditErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[string]domain.Credits)}
}

func (l *fakeLedger) fund(accountID string, amount domain.Credits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[accountID] += amount
}

func (l *fakeLedger) balance(accountID string) domain.Credits {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[accountID]
}

func (l *fakeLedger) DebitWager(ctx context.Context, w domain.Wager) (domain.Credits, error) {
	if l.debitHook != nil {
		l.debitHook()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[w.AccountID] < w.Stake {
		return 0, assert.AnError
	}
	l.balances[w.AccountID] -= w.Stake
	l.debits = append(l.debits, w)
	return l.balances[w.AccountID], nil
}

func (l *fakeLedger) RefundWager(ctx context.Context, w domain.Wager) (domain.Credits, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[w.AccountID] += w.Stake
	l.refunds = append(l.refunds, w)
	return l.balances[w.AccountID], nil
}

func (l *fakeLedger) CreditPayout(ctx context.Context, accountID string, amount domain.Credits, tableID, roundID string) (domain.Credits, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.creditErr != nil {
		return 0, l.creditErr
	}
	l.balances[accountID] += amount
	l.payouts = append(l.payouts, payoutCall{AccountID: accountID, Amount: amount, RoundID: roundID})
	return l.balances[accountID], nil
}

func (l *fakeLedger) CreateRound(ctx context.Context, roundID, tableID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rounds = append(l.rounds, roundID)
	return nil
}

func (l *fakeLedger) SettleRound(ctx context.Context, roundID, tableID, winner string, wagers int, totalPayout domain.Credits) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settles = append(l.settles, settleCall{RoundID: roundID, Winner: winner, Wagers: wagers, Total: totalPayout})
	return nil
}

type allowGate struct{ err error }

func (g allowGate) CheckWagering(ctx context.Context, accountID string) error { return g.err }

type allowLimits struct{ err error }

func (l allowLimits) Check(tableID string, stake domain.Credits) error { return l.err }

type memHistory struct {
	mu      sync.Mutex
	winners []string
}

func (h *memHistory) Record(ctx context.Context, tableID, winner string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.winners = append(h.winners, winner)
	return nil
}

type nopAudit struct {
	mu         sync.Mutex
	violations int
}

func (a *nopAudit) Log(ctx context.Context, eventType string, severity domain.EventSeverity, description string, data interface{}, opts ...audit.EventOption) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if eventType == audit.EventInvariantViolation {
		a.violations++
	}
	return nil
}

// stub is a scripted randomness source.
type stub struct {
	vals []int
	i    int
}

func (s *stub) Intn(n int) int {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v % n
}

type fixture struct {
	table *Table
	clock *quartz.Mock
	bus   *fakeBus
	led   *fakeLedger
	aud   *nopAudit
	hist  *memHistory
}

func newFixture(t *testing.T, game games.Game, src rng.Source) *fixture {
	clock := quartz.NewMock(t)
	f := &fixture{
		clock: clock,
		bus:   &fakeBus{},
		led:   newFakeLedger(),
		aud:   &nopAudit{},
		hist:  &memHistory{},
	}
	cfg := Config{BettingSeconds: 3, SettleDelay: 2 * time.Second, ResetDelay: 5 * time.Second}
	f.table = newTable(game, cfg, clock, src, Deps{
		Broadcaster: f.bus,
		Ledger:      f.led,
		Gate:        allowGate{},
		Limits:      allowLimits{},
		History:     f.hist,
		Audit:       f.aud,
	})
	return f
}

// run ticks the betting window down to the close, then fires the
// settle and reset timers.
func (f *fixture) run(ctx context.Context, t *testing.T) {
	t.Helper()
	for i := 0; i < 3; i++ {
		f.table.tick(ctx)
	}
	f.clock.Advance(2 * time.Second).MustWait(ctx)
	f.clock.Advance(5 * time.Second).MustWait(ctx)
}

// Dragon always beats tiger with this script: dragon King, tiger 2.
func dragonWins() *stub { return &stub{vals: []int{12, 0, 1, 0}} }

func TestRoundEventOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, games.NewDragonTiger(), dragonWins())
	f.table.openRound(ctx)

	_, _, err := f.table.PlaceWager(ctx, "alice", games.ChoiceDragon, 100)
	require.Error(t, err, "no funds yet")

	f.led.fund("alice", 100)
	_, balance, err := f.table.PlaceWager(ctx, "alice", games.ChoiceDragon, 100)
	require.NoError(t, err)
	assert.Equal(t, domain.Credits(0), balance)

	f.run(ctx, t)

	// Locked strictly precedes the result, the result precedes the
	// payout notification, and the reset comes last.
	kinds := f.bus.kinds(f.table.game.ID())
	assert.Equal(t, []string{"reset", "locked", "result", "balance", "reset"}, kinds)

	// Dragon won at 2x.
	assert.Equal(t, domain.Credits(200), f.led.balance("alice"))
	balances := f.bus.byKind(f.table.game.ID(), "balance")
	require.Len(t, balances, 1)
	assert.Equal(t, "alice", balances[0].AccountID)
	assert.Equal(t, domain.Credits(200), balances[0].Payout)
	assert.Equal(t, domain.Credits(200), balances[0].Balance)

	require.Len(t, f.led.settles, 1)
	assert.Equal(t, games.ChoiceDragon, f.led.settles[0].Winner)
	assert.Equal(t, []string{games.ChoiceDragon}, f.hist.winners)
	assert.Zero(t, f.aud.violations)
}

// TestZeroWagerRound verifies an empty round still runs the full event
// sequence so idle clients stay in sync.
func TestZeroWagerRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, games.NewDragonTiger(), dragonWins())
	f.table.openRound(ctx)
	f.run(ctx, t)

	kinds := f.bus.kinds(f.table.game.ID())
	assert.Equal(t, []string{"reset", "locked", "result", "reset"}, kinds)

	require.Len(t, f.led.settles, 1)
	assert.Equal(t, 0, f.led.settles[0].Wagers)
	assert.Equal(t, domain.Credits(0), f.led.settles[0].Total)
}

func TestCountdownBroadcast(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, games.NewDragonTiger(), dragonWins())
	f.table.openRound(ctx)

	f.table.tick(ctx)
	f.table.tick(ctx)

	ticks := f.bus.byKind(f.table.game.ID(), "countdown")
	require.Len(t, ticks, 2)
	assert.Equal(t, 2, ticks[0].Seconds)
	assert.Equal(t, 1, ticks[1].Seconds)
	assert.Equal(t, domain.PhaseOpen, f.table.Snapshot().Phase)
}

func TestPayoutsAggregatePerAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, games.NewDragonTiger(), dragonWins())
	f.table.openRound(ctx)
	f.led.fund("alice", 300)

	_, _, err := f.table.PlaceWager(ctx, "alice", games.ChoiceDragon, 100)
	require.NoError(t, err)
	_, _, err = f.table.PlaceWager(ctx, "alice", games.ChoiceDragon, 150)
	require.NoError(t, err)
	_, _, err = f.table.PlaceWager(ctx, "alice", games.ChoiceTiger, 50)
	require.NoError(t, err)

	f.run(ctx, t)

	// One credit and one notification covering all three wagers:
	// (100+150)*2 won, the tiger stake lost.
	require.Len(t, f.led.payouts, 1)
	assert.Equal(t, domain.Credits(500), f.led.payouts[0].Amount)
	assert.Len(t, f.bus.byKind(f.table.game.ID(), "balance"), 1)
	assert.Equal(t, domain.Credits(500), f.led.balance("alice"))
}

func TestWagerRejectedWhenClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, games.NewDragonTiger(), dragonWins())
	f.table.openRound(ctx)
	f.led.fund("alice", 100)

	for i := 0; i < 3; i++ {
		f.table.tick(ctx)
	}
	require.Equal(t, domain.PhaseClosed, f.table.Snapshot().Phase)

	_, _, err := f.table.PlaceWager(ctx, "alice", games.ChoiceDragon, 100)
	assert.ErrorIs(t, err, ErrTableClosed)
	assert.Empty(t, f.led.debits, "no debit for a rejected wager")
	assert.Equal(t, domain.Credits(100), f.led.balance("alice"))
}

// TestLateWagerRefunded closes the round while a debit is in flight.
// The stake must come back and the wager must not join the round.
func TestLateWagerRefunded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, games.NewDragonTiger(), dragonWins())
	f.table.openRound(ctx)
	f.led.fund("alice", 100)

	f.led.debitHook = func() {
		f.led.debitHook = nil
		for i := 0; i < 3; i++ {
			f.table.tick(ctx)
		}
	}

	_, balance, err := f.table.PlaceWager(ctx, "alice", games.ChoiceDragon, 100)
	assert.ErrorIs(t, err, ErrTableClosed)
	assert.Equal(t, domain.Credits(100), balance, "stake refunded")
	require.Len(t, f.led.refunds, 1)

	// The closed round settled without the late wager.
	f.clock.Advance(2 * time.Second).MustWait(ctx)
	require.Len(t, f.led.settles, 1)
	assert.Equal(t, 0, f.led.settles[0].Wagers)
}

// TestWagersSettleAgainstOwnRound runs two rounds and checks wagers
// from round one are never carried into round two.
func TestWagersSettleAgainstOwnRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, games.NewDragonTiger(), dragonWins())
	f.table.openRound(ctx)
	f.led.fund("alice", 1000)

	first := f.table.Snapshot().RoundID
	_, _, err := f.table.PlaceWager(ctx, "alice", games.ChoiceDragon, 100)
	require.NoError(t, err)

	f.run(ctx, t)

	second := f.table.Snapshot().RoundID
	require.NotEqual(t, first, second)
	_, _, err = f.table.PlaceWager(ctx, "alice", games.ChoiceTiger, 200)
	require.NoError(t, err)

	f.run(ctx, t)

	require.Len(t, f.led.payouts, 2)
	assert.Equal(t, first, f.led.payouts[0].RoundID)
	assert.Equal(t, domain.Credits(200), f.led.payouts[0].Amount)
	assert.Equal(t, second, f.led.payouts[1].RoundID)
	assert.Equal(t, domain.Credits(0), f.led.payouts[1].Amount)

	require.Len(t, f.led.debits, 2)
	assert.Equal(t, first, f.led.debits[0].RoundID)
	assert.Equal(t, second, f.led.debits[1].RoundID)
}

func TestDuplicateSettlementRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, games.NewDragonTiger(), dragonWins())
	f.table.openRound(ctx)

	roundID := f.table.Snapshot().RoundID
	for i := 0; i < 3; i++ {
		f.table.tick(ctx)
	}
	f.clock.Advance(2 * time.Second).MustWait(ctx)

	require.Len(t, f.led.settles, 1)

	// A second settlement of the same round must be refused and flagged.
	outcome := games.NewDragonTiger().Deal(dragonWins())
	f.table.settle(ctx, roundID, nil, outcome)

	assert.Len(t, f.led.settles, 1)
	assert.Equal(t, 1, f.aud.violations)
}

// TestFailedPayoutCreditAudited makes the settlement credit fail. The
// uncredited win must leave an audit trail so it can be reconciled.
func TestFailedPayoutCreditAudited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, games.NewDragonTiger(), dragonWins())
	f.table.openRound(ctx)
	f.led.fund("alice", 100)

	_, _, err := f.table.PlaceWager(ctx, "alice", games.ChoiceDragon, 100)
	require.NoError(t, err)

	f.led.creditErr = assert.AnError
	f.run(ctx, t)

	assert.Equal(t, 1, f.aud.violations)
	assert.Empty(t, f.bus.byKind(f.table.game.ID(), "balance"),
		"no balance broadcast for an uncredited payout")
	require.Len(t, f.led.settles, 1)
	assert.Equal(t, domain.Credits(0), f.led.settles[0].Total)
}

func TestWagerValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, games.NewDragonTiger(), dragonWins())
	f.table.openRound(ctx)
	f.led.fund("alice", 100)

	_, _, err := f.table.PlaceWager(ctx, "alice", games.ChoiceDragon, 0)
	assert.ErrorIs(t, err, ErrInvalidStake)

	_, _, err = f.table.PlaceWager(ctx, "alice", "elephant", 50)
	assert.ErrorIs(t, err, ErrInvalidChoice)

	f.table.deps.Gate = allowGate{err: assert.AnError}
	_, _, err = f.table.PlaceWager(ctx, "alice", games.ChoiceDragon, 50)
	assert.Error(t, err)
	f.table.deps.Gate = allowGate{}

	f.table.deps.Limits = allowLimits{err: assert.AnError}
	_, _, err = f.table.PlaceWager(ctx, "alice", games.ChoiceDragon, 50)
	assert.Error(t, err)

	assert.Empty(t, f.led.debits, "validation failures never touch the ledger")
}

func TestEngineRouting(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	led := newFakeLedger()
	e := New(Config{BettingSeconds: 3, SettleDelay: time.Second, ResetDelay: time.Second}, clock, rng.New(), Deps{
		Broadcaster: &fakeBus{},
		Ledger:      led,
		Gate:        allowGate{},
		Limits:      allowLimits{},
		History:     &memHistory{},
		Audit:       &nopAudit{},
	})

	snaps := e.Snapshots()
	require.Len(t, snaps, 4)

	_, _, err := e.PlaceWager(ctx, "no-such-table", "alice", "dragon", 10)
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = e.Snapshot("no-such-table")
	assert.ErrorIs(t, err, ErrUnknownTable)
}
