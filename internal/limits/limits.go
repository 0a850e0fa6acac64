// Package limits enforces stake bounds per table.
package limits

import (
	"errors"

	"github.com/stickntrade/casino/internal/domain"
)

var (
	ErrStakeTooSmall = errors.New("stake below table minimum")
	ErrStakeTooLarge = errors.New("stake above table maximum")
)

// Bounds is a stake range for one table.
type Bounds struct {
	Min domain.Credits
	Max domain.Credits
}

// Service checks stakes against per-table bounds, falling back to a
// default range for tables with no override.
type Service struct {
	def    Bounds
	tables map[string]Bounds
}

// New creates a limits service with the given default bounds.
func New(def Bounds) *Service {
	return &Service{def: def, tables: make(map[string]Bounds)}
}

// SetTable overrides the bounds for one table. Called at wiring time,
// before any wagering starts.
func (s *Service) SetTable(tableID string, b Bounds) {
	s.tables[tableID] = b
}

// Check validates a stake against the table's bounds.
func (s *Service) Check(tableID string, stake domain.Credits) error {
	b, ok := s.tables[tableID]
	if !ok {
		b = s.def
	}
	if stake < b.Min {
		return ErrStakeTooSmall
	}
	if b.Max > 0 && stake > b.Max {
		return ErrStakeTooLarge
	}
	return nil
}
