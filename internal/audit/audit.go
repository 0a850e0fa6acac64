// Package audit records significant engine events: settled rounds,
// large wins, invariant violations, and operator actions.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stickntrade/casino/internal/domain"
)

// Event types.
const (
	EventAccountRegistered  = "account_registered"
	EventAccountLogin       = "account_login"
	EventAccountLogout      = "account_logout"
	EventLoginFailed        = "login_failed"
	EventAccountBanned      = "account_banned"
	EventAccountUnbanned    = "account_unbanned"
	EventRoundSettled       = "round_settled"
	EventLargeWin           = "large_win"
	EventRewardClaimed      = "reward_claimed"
	EventPromoRedeemed      = "promo_redeemed"
	EventBalanceAdjustment  = "balance_adjustment"
	EventRoleChanged        = "role_changed"
	EventGamingDisabled     = "gaming_disabled"
	EventGamingEnabled      = "gaming_enabled"
	EventInvariantViolation = "invariant_violation"
)

// Service provides audit logging functionality.
type Service struct {
	db *sql.DB
}

// New creates a new audit service.
func New(db *sql.DB) *Service {
	return &Service{db: db}
}

// LogEvent records a significant event. A failure to persist is logged
// but does not fail the caller; the audit log is advisory, unlike the
// ledger.
func (s *Service) LogEvent(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Component == "" {
		event.Component = "engine"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, severity, timestamp, account_id, table_id, round_id, description, data, component)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, event.ID, event.Type, event.Severity, event.Timestamp, event.AccountID,
		event.TableID, event.RoundID, event.Description, nullableJSON(event.Data), event.Component)
	if err != nil {
		log.WithError(err).WithField("type", event.Type).Error("failed to persist audit event")
	}
	return err
}

func nullableJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}

// Log is a convenience method for logging events.
func (s *Service) Log(ctx context.Context, eventType string, severity domain.EventSeverity, description string, data interface{}, opts ...EventOption) error {
	event := &domain.AuditEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Severity:    severity,
		Timestamp:   time.Now().UTC(),
		Description: description,
		Component:   "engine",
	}

	if data != nil {
		if jsonData, err := json.Marshal(data); err == nil {
			event.Data = jsonData
		}
	}

	for _, opt := range opts {
		opt(event)
	}

	return s.LogEvent(ctx, event)
}

// EventOption is a functional option for configuring audit events.
type EventOption func(*domain.AuditEvent)

// WithAccount sets the account for the event.
func WithAccount(accountID string) EventOption {
	return func(e *domain.AuditEvent) {
		e.AccountID = &accountID
	}
}

// WithRound sets the table and round for the event.
func WithRound(tableID, roundID string) EventOption {
	return func(e *domain.AuditEvent) {
		e.TableID = &tableID
		e.RoundID = &roundID
	}
}

// WithComponent sets the component for the event.
func WithComponent(component string) EventOption {
	return func(e *domain.AuditEvent) {
		e.Component = component
	}
}

// GetEvents retrieves audit events with optional filtering.
func (s *Service) GetEvents(ctx context.Context, filter *EventFilter) ([]*domain.AuditEvent, error) {
	query := `SELECT id, type, severity, timestamp, account_id, table_id, round_id, description, data, component
			  FROM audit_events WHERE 1=1`
	args := []interface{}{}
	paramIdx := 1

	if filter != nil {
		if filter.AccountID != "" {
			query += fmt.Sprintf(" AND account_id = $%d", paramIdx)
			args = append(args, filter.AccountID)
			paramIdx++
		}
		if filter.Type != "" {
			query += fmt.Sprintf(" AND type = $%d", paramIdx)
			args = append(args, filter.Type)
			paramIdx++
		}
	}

	query += " ORDER BY timestamp DESC LIMIT 100"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		var accountID, tableID, roundID sql.NullString
		var data sql.NullString

		err := rows.Scan(&event.ID, &event.Type, &event.Severity, &event.Timestamp,
			&accountID, &tableID, &roundID, &event.Description, &data, &event.Component)
		if err != nil {
			return nil, err
		}

		if accountID.Valid {
			event.AccountID = &accountID.String
		}
		if tableID.Valid {
			event.TableID = &tableID.String
		}
		if roundID.Valid {
			event.RoundID = &roundID.String
		}
		if data.Valid {
			event.Data = []byte(data.String)
		}

		events = append(events, &event)
	}

	return events, rows.Err()
}

// EventFilter defines criteria for filtering audit events.
type EventFilter struct {
	AccountID string
	Type      string
}
