package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stickntrade/casino/internal/audit"
	"github.com/stickntrade/casino/internal/config"
	"github.com/stickntrade/casino/internal/database"
	"github.com/stickntrade/casino/internal/ledger"
)

func setupTestAuth(t *testing.T) (*Service, func()) {
	t.Helper()

	db, err := database.New("postgres", "host=localhost dbname=casino sslmode=disable")
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Logf("Migration note: %v", err)
	}
	if err := db.CleanData(); err != nil {
		t.Fatalf("Failed to clean data: %v", err)
	}

	auditSvc := audit.New(db.DB)
	ledgerSvc := ledger.New(db.DB, auditSvc, ledger.RewardPolicy{Base: 100, Step: 50, Cap: 500})
	cfg := &config.AuthConfig{
		JWTSecret:   "test-secret",
		TokenExpiry: time.Hour,
	}
	svc := New(db.DB, cfg, auditSvc, ledgerSvc, 1000)

	return svc, func() {
		db.CleanData()
		db.Close()
	}
}

func TestRegister(t *testing.T) {
	svc, cleanup := setupTestAuth(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		account, err := svc.Register(ctx, &RegisterRequest{
			Username: "alice",
			Password: "password123",
		}, "127.0.0.1")
		if err != nil {
			t.Fatalf("Failed to register: %v", err)
		}
		if account.Balance != 1000 {
			t.Errorf("Expected welcome grant of 1000, got %d", account.Balance)
		}
		if account.Role != "player" {
			t.Errorf("Expected player role, got %s", account.Role)
		}
		if account.PasswordHash == "password123" {
			t.Error("Password stored in plaintext")
		}
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		_, err := svc.Register(ctx, &RegisterRequest{
			Username: "alice",
			Password: "password123",
		}, "127.0.0.1")
		if !errors.Is(err, ErrUserExists) {
			t.Errorf("Expected ErrUserExists, got %v", err)
		}
	})

	t.Run("ShortPassword", func(t *testing.T) {
		_, err := svc.Register(ctx, &RegisterRequest{
			Username: "bob",
			Password: "short",
		}, "127.0.0.1")
		if err == nil {
			t.Error("Expected error for short password")
		}
	})

	t.Run("WelcomeGrantInLedger", func(t *testing.T) {
		account, err := svc.Register(ctx, &RegisterRequest{
			Username: "carol",
			Password: "password123",
		}, "127.0.0.1")
		if err != nil {
			t.Fatalf("Failed to register: %v", err)
		}

		entries, err := svc.ledger.Entries(ctx, account.ID, 10)
		if err != nil {
			t.Fatalf("Failed to get entries: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("Expected 1 ledger entry, got %d", len(entries))
		}
		if entries[0].Amount != 1000 {
			t.Errorf("Expected entry amount 1000, got %d", entries[0].Amount)
		}
	})
}

func TestLoginAndValidate(t *testing.T) {
	svc, cleanup := setupTestAuth(t)
	defer cleanup()

	ctx := context.Background()
	account, err := svc.Register(ctx, &RegisterRequest{
		Username: "alice",
		Password: "password123",
	}, "127.0.0.1")
	if err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	t.Run("Success", func(t *testing.T) {
		resp, err := svc.Login(ctx, &LoginRequest{
			Username: "alice",
			Password: "password123",
		}, "127.0.0.1")
		if err != nil {
			t.Fatalf("Failed to login: %v", err)
		}
		if resp.Token == "" {
			t.Fatal("Expected a token")
		}

		session, got, err := svc.ValidateToken(ctx, resp.Token)
		if err != nil {
			t.Fatalf("Failed to validate: %v", err)
		}
		if got.ID != account.ID {
			t.Errorf("Expected account %s, got %s", account.ID, got.ID)
		}
		if session.AccountID != account.ID {
			t.Errorf("Session bound to wrong account")
		}
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := svc.Login(ctx, &LoginRequest{
			Username: "alice",
			Password: "wrong-password",
		}, "127.0.0.1")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, err := svc.Login(ctx, &LoginRequest{
			Username: "nobody",
			Password: "password123",
		}, "127.0.0.1")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("GarbageToken", func(t *testing.T) {
		_, _, err := svc.ValidateToken(ctx, "not-a-token")
		if !errors.Is(err, ErrSessionExpired) {
			t.Errorf("Expected ErrSessionExpired, got %v", err)
		}
	})
}

func TestLogout(t *testing.T) {
	svc, cleanup := setupTestAuth(t)
	defer cleanup()

	ctx := context.Background()
	_, err := svc.Register(ctx, &RegisterRequest{
		Username: "alice",
		Password: "password123",
	}, "127.0.0.1")
	if err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	resp, err := svc.Login(ctx, &LoginRequest{
		Username: "alice",
		Password: "password123",
	}, "127.0.0.1")
	if err != nil {
		t.Fatalf("Failed to login: %v", err)
	}

	session, _, err := svc.ValidateToken(ctx, resp.Token)
	if err != nil {
		t.Fatalf("Failed to validate: %v", err)
	}

	if err := svc.Logout(ctx, session.ID); err != nil {
		t.Fatalf("Failed to logout: %v", err)
	}

	if _, _, err := svc.ValidateToken(ctx, resp.Token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Expected ErrSessionExpired after logout, got %v", err)
	}
}

func TestBannedAccount(t *testing.T) {
	svc, cleanup := setupTestAuth(t)
	defer cleanup()

	ctx := context.Background()
	account, err := svc.Register(ctx, &RegisterRequest{
		Username: "alice",
		Password: "password123",
	}, "127.0.0.1")
	if err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	resp, err := svc.Login(ctx, &LoginRequest{
		Username: "alice",
		Password: "password123",
	}, "127.0.0.1")
	if err != nil {
		t.Fatalf("Failed to login: %v", err)
	}

	if _, err := svc.db.Exec(`UPDATE accounts SET banned = TRUE WHERE id = $1`, account.ID); err != nil {
		t.Fatalf("Failed to ban: %v", err)
	}

	// A mid-session ban kills the existing token.
	if _, _, err := svc.ValidateToken(ctx, resp.Token); !errors.Is(err, ErrAccountBanned) {
		t.Errorf("Expected ErrAccountBanned, got %v", err)
	}

	// And blocks new logins.
	if _, err := svc.Login(ctx, &LoginRequest{
		Username: "alice",
		Password: "password123",
	}, "127.0.0.1"); !errors.Is(err, ErrAccountBanned) {
		t.Errorf("Expected ErrAccountBanned on login, got %v", err)
	}
}
