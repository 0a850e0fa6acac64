// Package engine drives timer-based rounds for the shared tables: an
// open betting window, an atomic close, a single deal, and settlement
// through the ledger, with every state change fanned out in order.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/coder/quartz"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stickntrade/casino/internal/audit"
	"github.com/stickntrade/casino/internal/domain"
	"github.com/stickntrade/casino/internal/games"
	"github.com/stickntrade/casino/internal/rng"
)

var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrInvalidChoice = errors.New("invalid choice for this table")
	ErrInvalidStake  = errors.New("stake must be positive")
	ErrTableClosed   = errors.New("table is not accepting wagers")
)

// Config holds round timing. The betting window counts down in whole
// seconds; settlement and reset run on delays after the close.
type Config struct {
	BettingSeconds int
	SettleDelay    time.Duration
	ResetDelay     time.Duration
}

// Auditor records engine events to the audit trail.
type Auditor interface {
	Log(ctx context.Context, eventType string, severity domain.EventSeverity, description string, data interface{}, opts ...audit.EventOption) error
}

// Deps are the collaborators a table needs.
type Deps struct {
	Broadcaster Broadcaster
	Ledger      Ledger
	Gate        Gate
	Limits      Limits
	History     History
	Audit       Auditor
}

// Engine owns one Table per shared game.
type Engine struct {
	cfg    Config
	clock  quartz.Clock
	tables map[string]*Table
	order  []string
}

// New builds an engine running the standard shared tables.
func New(cfg Config, clock quartz.Clock, src rng.Source, deps Deps) *Engine {
	e := &Engine{
		cfg:    cfg,
		clock:  clock,
		tables: make(map[string]*Table),
	}
	for _, g := range games.Tables() {
		e.tables[g.ID()] = newTable(g, cfg, clock, src, deps)
		e.order = append(e.order, g.ID())
	}
	return e
}

// Run opens the first round on every table and drives the countdowns
// until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for _, id := range e.order {
		e.tables[id].openRound(ctx)
	}
	log.WithField("tables", len(e.tables)).Info("round engine started")

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range e.order {
		t := e.tables[id]
		g.Go(func() error {
			ticker := e.clock.TickerFunc(ctx, time.Second, func() error {
				t.tick(ctx)
				return nil
			})
			return ticker.Wait()
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// PlaceWager routes a wager to its table.
func (e *Engine) PlaceWager(ctx context.Context, tableID, accountID, choice string, stake domain.Credits) (*domain.Wager, domain.Credits, error) {
	t, ok := e.tables[tableID]
	if !ok {
		return nil, 0, ErrUnknownTable
	}
	return t.PlaceWager(ctx, accountID, choice, stake)
}

// Snapshot returns the state of one table.
func (e *Engine) Snapshot(tableID string) (Snapshot, error) {
	t, ok := e.tables[tableID]
	if !ok {
		return Snapshot{}, ErrUnknownTable
	}
	return t.Snapshot(), nil
}

// Snapshots returns the state of every table in a stable order.
func (e *Engine) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(e.tables))
	for _, id := range e.order {
		out = append(out, e.tables[id].Snapshot())
	}
	return out
}
