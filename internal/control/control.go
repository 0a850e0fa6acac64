// Package control holds the operator switches that gate wagering: the
// global gaming toggle and per-account bans.
package control

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stickntrade/casino/internal/audit"
	"github.com/stickntrade/casino/internal/domain"
)

var (
	ErrGamingDisabled = errors.New("gaming is disabled")
	ErrBanned         = errors.New("account is banned")
)

const gamingEnabledKey = "gaming_enabled"

// Service gates wagering on operator state. The gaming toggle is
// cached in memory and persisted to system_state so it survives a
// restart.
type Service struct {
	db    *sql.DB
	audit *audit.Service

	mu      sync.RWMutex
	enabled bool
}

// New creates the control service, restoring the persisted gaming
// toggle. A missing row means gaming is enabled.
func New(db *sql.DB, auditSvc *audit.Service) (*Service, error) {
	s := &Service{db: db, audit: auditSvc, enabled: true}

	var value string
	err := db.QueryRow(`SELECT value FROM system_state WHERE key = $1`, gamingEnabledKey).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First boot.
	case err != nil:
		return nil, fmt.Errorf("failed to load gaming state: %w", err)
	default:
		s.enabled = value == "true"
	}

	return s, nil
}

// GamingEnabled reports whether wagering is currently allowed.
func (s *Service) GamingEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetGamingEnabled flips the global wagering switch and persists it.
func (s *Service) SetGamingEnabled(ctx context.Context, enabled bool, adminID string) error {
	value := "false"
	if enabled {
		value = "true"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_state (key, value, updated_at, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3, updated_by = $4
	`, gamingEnabledKey, value, time.Now().UTC(), adminID)
	if err != nil {
		return fmt.Errorf("failed to persist gaming state: %w", err)
	}

	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()

	eventType := audit.EventGamingDisabled
	if enabled {
		eventType = audit.EventGamingEnabled
	}
	s.audit.Log(ctx, eventType, domain.SeverityWarning,
		fmt.Sprintf("Gaming set to %s", value),
		map[string]interface{}{"admin_id": adminID},
		audit.WithComponent("control"))

	log.WithField("enabled", enabled).Warn("gaming toggle changed")
	return nil
}

// BanAccount marks an account banned. Banned accounts keep their
// balance but cannot wager or log in.
func (s *Service) BanAccount(ctx context.Context, accountID, adminID string) error {
	return s.setBanned(ctx, accountID, adminID, true)
}

// UnbanAccount lifts a ban.
func (s *Service) UnbanAccount(ctx context.Context, accountID, adminID string) error {
	return s.setBanned(ctx, accountID, adminID, false)
}

func (s *Service) setBanned(ctx context.Context, accountID, adminID string, banned bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET banned = $1, updated_at = $2 WHERE id = $3
	`, banned, time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("failed to update ban flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("account not found")
	}

	eventType := audit.EventAccountBanned
	if !banned {
		eventType = audit.EventAccountUnbanned
	}
	s.audit.Log(ctx, eventType, domain.SeverityWarning, "Ban flag changed",
		map[string]interface{}{"admin_id": adminID, "banned": banned},
		audit.WithAccount(accountID), audit.WithComponent("control"))

	return nil
}

// CheckWagering returns nil when the account may wager, otherwise the
// blocking reason: ErrGamingDisabled takes precedence over ErrBanned.
func (s *Service) CheckWagering(ctx context.Context, accountID string) error {
	if !s.GamingEnabled() {
		return ErrGamingDisabled
	}

	var banned bool
	err := s.db.QueryRowContext(ctx, `SELECT banned FROM accounts WHERE id = $1`, accountID).Scan(&banned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.New("account not found")
		}
		return fmt.Errorf("failed to check ban flag: %w", err)
	}
	if banned {
		return ErrBanned
	}
	return nil
}
