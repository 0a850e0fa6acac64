// Package auth provides account registration, login, and session
// management backed by bcrypt password hashes and JWT session tokens.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stickntrade/casino/internal/audit"
	"github.com/stickntrade/casino/internal/config"
	"github.com/stickntrade/casino/internal/domain"
	"github.com/stickntrade/casino/internal/ledger"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountBanned      = errors.New("account is banned")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUserExists         = errors.New("username already exists")
)

// Service provides authentication functionality.
type Service struct {
	db     *sql.DB
	config *config.AuthConfig
	audit  *audit.Service
	ledger *ledger.Service

	startingCredits domain.Credits
}

// New creates a new auth service. New accounts are granted
// startingCredits through the ledger at registration.
func New(db *sql.DB, cfg *config.AuthConfig, auditSvc *audit.Service, ledgerSvc *ledger.Service, startingCredits domain.Credits) *Service {
	return &Service{
		db:              db,
		config:          cfg,
		audit:           auditSvc,
		ledger:          ledgerSvc,
		startingCredits: startingCredits,
	}
}

// RegisterRequest contains registration data.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates a new account and grants the welcome credits.
func (s *Service) Register(ctx context.Context, req *RegisterRequest, ip string) (*domain.Account, error) {
	if req.Username == "" || req.Password == "" {
		return nil, errors.New("username and password are required")
	}
	if len(req.Password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM accounts WHERE username = $1", req.Username).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if exists > 0 {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:           uuid.New().String(),
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         domain.RolePlayer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The account starts at zero; the welcome grant goes through the
	// ledger so the balance always equals the sum of entries.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, username, password_hash, role, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
	`, account.ID, account.Username, account.PasswordHash, account.Role,
		account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if s.startingCredits > 0 {
		balance, err := s.ledger.Credit(ctx, account.ID, s.startingCredits, domain.ReasonAdjustment, "welcome grant")
		if err != nil {
			return nil, fmt.Errorf("failed to grant starting credits: %w", err)
		}
		account.Balance = balance
	}

	s.audit.Log(ctx, audit.EventAccountRegistered, domain.SeverityInfo,
		fmt.Sprintf("Account registered: %s", account.Username),
		map[string]string{"ip": ip},
		audit.WithAccount(account.ID), audit.WithComponent("auth"))

	return account, nil
}

// LoginRequest contains login credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse contains the login result.
type LoginResponse struct {
	Account *domain.Account `json:"account"`
	Token   string          `json:"token"`
}

// Login verifies credentials and opens a session. Banned accounts
// cannot log in.
func (s *Service) Login(ctx context.Context, req *LoginRequest, ip string) (*LoginResponse, error) {
	var account domain.Account
	var lastReward sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, balance, banned, last_reward_at, reward_streak, created_at, updated_at
		FROM accounts WHERE username = $1
	`, req.Username).Scan(&account.ID, &account.Username, &account.PasswordHash,
		&account.Role, &account.Balance, &account.Banned, &lastReward,
		&account.RewardStreak, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.recordFailedLogin(ctx, req.Username, ip)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if lastReward.Valid {
		account.LastRewardAt = &lastReward.Time
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		s.recordFailedLogin(ctx, req.Username, ip)
		return nil, ErrInvalidCredentials
	}

	if account.Banned {
		return nil, ErrAccountBanned
	}

	_, token, err := s.createSession(ctx, &account, ip)
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.EventAccountLogin, domain.SeverityInfo,
		fmt.Sprintf("Login: %s", account.Username),
		map[string]string{"ip": ip},
		audit.WithAccount(account.ID), audit.WithComponent("auth"))

	return &LoginResponse{Account: &account, Token: token}, nil
}

func (s *Service) createSession(ctx context.Context, account *domain.Account, ip string) (*domain.Session, string, error) {
	now := time.Now().UTC()
	session := &domain.Session{
		ID:             uuid.New().String(),
		AccountID:      account.ID,
		IPAddress:      ip,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.config.TokenExpiry),
		Status:         domain.SessionStatusActive,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"session_id": session.ID,
		"account_id": account.ID,
		"username":   account.Username,
		"role":       string(account.Role),
		"exp":        session.ExpiresAt.Unix(),
		"iat":        now.Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}
	session.Token = tokenString

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, account_id, token, ip_address, created_at, last_activity_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.ID, session.AccountID, session.Token, session.IPAddress,
		session.CreatedAt, session.LastActivityAt, session.ExpiresAt, session.Status)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	return session, tokenString, nil
}

// ValidateToken validates a JWT and returns the live session and its
// account. A ban that landed after login invalidates the session here.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*domain.Session, *domain.Account, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		return nil, nil, ErrSessionExpired
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, nil, ErrSessionExpired
	}
	sessionID, ok := claims["session_id"].(string)
	if !ok {
		return nil, nil, ErrSessionExpired
	}

	var session domain.Session
	err = s.db.QueryRowContext(ctx, `
		SELECT id, account_id, token, ip_address, created_at, last_activity_at, expires_at, status
		FROM sessions WHERE id = $1
	`, sessionID).Scan(&session.ID, &session.AccountID, &session.Token,
		&session.IPAddress, &session.CreatedAt, &session.LastActivityAt,
		&session.ExpiresAt, &session.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}

	if session.Status != domain.SessionStatusActive {
		return nil, nil, ErrSessionExpired
	}
	if time.Now().After(session.ExpiresAt) {
		s.db.ExecContext(ctx, "UPDATE sessions SET status = $1 WHERE id = $2",
			domain.SessionStatusExpired, session.ID)
		return nil, nil, ErrSessionExpired
	}

	account, err := s.ledger.GetAccount(ctx, session.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if account.Banned {
		return nil, nil, ErrAccountBanned
	}

	now := time.Now().UTC()
	s.db.ExecContext(ctx, "UPDATE sessions SET last_activity_at = $1 WHERE id = $2", now, session.ID)
	session.LastActivityAt = now

	return &session, account, nil
}

// Logout terminates a session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status = $1 WHERE id = $2
	`, domain.SessionStatusLoggedOut, sessionID)
	if err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	s.audit.Log(ctx, audit.EventAccountLogout, domain.SeverityInfo,
		"Session logged out", map[string]string{"session_id": sessionID},
		audit.WithComponent("auth"))
	return nil
}

// ListAccounts returns every account, for the admin surface.
func (s *Service) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, role, balance, banned, reward_streak, created_at, updated_at
		FROM accounts ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Username, &a.Role, &a.Balance, &a.Banned,
			&a.RewardStreak, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// SetRole changes an account's role. Existing sessions keep working;
// role is re-read from the account on every token validation.
func (s *Service) SetRole(ctx context.Context, accountID string, role domain.Role, adminID string) error {
	if role != domain.RolePlayer && role != domain.RoleAdmin {
		return fmt.Errorf("unknown role %q", role)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET role = $1, updated_at = NOW() WHERE id = $2
	`, role, accountID)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s not found", accountID)
	}

	s.audit.Log(ctx, audit.EventRoleChanged, domain.SeverityWarning,
		fmt.Sprintf("Role set to %s", role),
		map[string]string{"admin_id": adminID},
		audit.WithAccount(accountID), audit.WithComponent("auth"))
	return nil
}

func (s *Service) recordFailedLogin(ctx context.Context, username, ip string) {
	s.audit.Log(ctx, audit.EventLoginFailed, domain.SeverityWarning,
		fmt.Sprintf("Failed login for %s", username),
		map[string]string{"ip": ip},
		audit.WithComponent("auth"))
}
