package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/stickntrade/casino/internal/audit"
	"github.com/stickntrade/casino/internal/auth"
	"github.com/stickntrade/casino/internal/control"
	"github.com/stickntrade/casino/internal/domain"
	"github.com/stickntrade/casino/internal/engine"
	"github.com/stickntrade/casino/internal/history"
	"github.com/stickntrade/casino/internal/ledger"
	"github.com/stickntrade/casino/internal/limits"
	"github.com/stickntrade/casino/internal/solo"
)

// Handler contains all HTTP handlers.
type Handler struct {
	auth    *auth.Service
	ledger  *ledger.Service
	engine  *engine.Engine
	solo    *solo.Service
	control *control.Service
	history *history.Service
	audit   *audit.Service
	hub     *Hub
}

// New creates a new API handler.
func New(authSvc *auth.Service, ledgerSvc *ledger.Service, eng *engine.Engine, soloSvc *solo.Service, controlSvc *control.Service, historySvc *history.Service, auditSvc *audit.Service, hub *Hub) *Handler {
	return &Handler{
		auth:    authSvc,
		ledger:  ledgerSvc,
		engine:  eng,
		solo:    soloSvc,
		control: controlSvc,
		history: historySvc,
		audit:   auditSvc,
		hub:     hub,
	}
}

// Response helpers

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// === Health & Info ===

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"gaming_enabled": h.control.GamingEnabled(),
	})
}

// ServerInfo handles GET /.
func (h *Handler) ServerInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "casino",
		"version": "1.0.0",
	})
}

// === Authentication ===

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	account, err := h.auth.Register(r.Context(), &req, getClientIP(r))
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			respondError(w, http.StatusConflict, "USER_EXISTS", "Username already exists")
			return
		}
		respondError(w, http.StatusBadRequest, "REGISTRATION_FAILED", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, account)
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	resp, err := h.auth.Login(r.Context(), &req, getClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
		case errors.Is(err, auth.ErrAccountBanned):
			respondError(w, http.StatusForbidden, "ACCOUNT_BANNED", "Account is banned")
		default:
			respondError(w, http.StatusInternalServerError, "LOGIN_FAILED", "Login failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	if err := h.auth.Logout(r.Context(), session.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "LOGOUT_FAILED", "Logout failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, accountFrom(r))
}

// === Wallet ===

// GetBalance handles GET /api/v1/wallet/balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.ledger.GetBalance(r.Context(), accountFrom(r).ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "BALANCE_ERROR", "Failed to get balance")
		return
	}
	respondJSON(w, http.StatusOK, map[string]domain.Credits{"balance": balance})
}

// GetEntries handles GET /api/v1/wallet/entries.
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.ledger.Entries(r.Context(), accountFrom(r).ID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "ENTRIES_ERROR", "Failed to get ledger entries")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// ClaimReward handles POST /api/v1/wallet/reward.
func (h *Handler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	balance, streak, err := h.ledger.ClaimDailyReward(r.Context(), accountFrom(r).ID)
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyClaimed) {
			respondError(w, http.StatusConflict, "ALREADY_CLAIMED", "Daily reward already claimed")
			return
		}
		respondError(w, http.StatusInternalServerError, "REWARD_ERROR", "Failed to claim reward")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"balance": balance,
		"streak":  streak,
	})
}

// RedeemPromo handles POST /api/v1/wallet/promo.
func (h *Handler) RedeemPromo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	balance, err := h.ledger.RedeemPromo(r.Context(), accountFrom(r).ID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrPromoNotFound):
			respondError(w, http.StatusNotFound, "PROMO_NOT_FOUND", "Unknown promo code")
		case errors.Is(err, ledger.ErrPromoRedeemed):
			respondError(w, http.StatusConflict, "PROMO_REDEEMED", "Promo code already redeemed")
		default:
			respondError(w, http.StatusInternalServerError, "PROMO_ERROR", "Failed to redeem promo")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]domain.Credits{"balance": balance})
}

// === Tables ===

// GetTables handles GET /api/v1/tables.
func (h *Handler) GetTables(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Snapshots())
}

// GetTable handles GET /api/v1/tables/{id}.
func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Snapshot(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "UNKNOWN_TABLE", "Unknown table")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// GetTableHistory handles GET /api/v1/tables/{id}/history.
func (h *Handler) GetTableHistory(w http.ResponseWriter, r *http.Request) {
	tableID := mux.Vars(r)["id"]
	if _, err := h.engine.Snapshot(tableID); err != nil {
		respondError(w, http.StatusNotFound, "UNKNOWN_TABLE", "Unknown table")
		return
	}

	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.history.Recent(r.Context(), tableID, n)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "HISTORY_ERROR", "Failed to get history")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// PlaceWager handles POST /api/v1/tables/{id}/wagers.
func (h *Handler) PlaceWager(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Choice string         `json:"choice"`
		Stake  domain.Credits `json:"stake"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	wager, balance, err := h.engine.PlaceWager(r.Context(), mux.Vars(r)["id"], accountFrom(r).ID, req.Choice, req.Stake)
	if err != nil {
		respondError(w, wagerErrorStatus(err), wagerErrorCode(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"wager":   wager,
		"balance": balance,
	})
}

func wagerErrorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrTableClosed):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidChoice),
		errors.Is(err, engine.ErrInvalidStake),
		errors.Is(err, limits.ErrStakeTooSmall),
		errors.Is(err, limits.ErrStakeTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, control.ErrGamingDisabled),
		errors.Is(err, control.ErrBanned):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// === Solo games ===

// StartBlackjack handles POST /api/v1/solo/blackjack.
func (h *Handler) StartBlackjack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stake domain.Credits `json:"stake"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	st, err := h.solo.StartBlackjack(r.Context(), accountFrom(r).ID, req.Stake)
	if err != nil {
		respondSoloError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// BlackjackHit handles POST /api/v1/solo/blackjack/hit.
func (h *Handler) BlackjackHit(w http.ResponseWriter, r *http.Request) {
	st, err := h.solo.Hit(r.Context(), accountFrom(r).ID)
	if err != nil {
		respondSoloError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// BlackjackStand handles POST /api/v1/solo/blackjack/stand.
func (h *Handler) BlackjackStand(w http.ResponseWriter, r *http.Request) {
	st, err := h.solo.Stand(r.Context(), accountFrom(r).ID)
	if err != nil {
		respondSoloError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// PlayCoin handles POST /api/v1/solo/coin.
func (h *Handler) PlayCoin(w http.ResponseWriter, r *http.Request) {
	h.playChance(w, r, h.solo.PlayCoin)
}

// PlayDice handles POST /api/v1/solo/dice.
func (h *Handler) PlayDice(w http.ResponseWriter, r *http.Request) {
	h.playChance(w, r, h.solo.PlayDice)
}

func (h *Handler) playChance(w http.ResponseWriter, r *http.Request, play func(ctx context.Context, accountID, choice string, stake domain.Credits) (*solo.FlipResult, error)) {
	var req struct {
		Choice string         `json:"choice"`
		Stake  domain.Credits `json:"stake"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	res, err := play(r.Context(), accountFrom(r).ID, req.Choice, req.Stake)
	if err != nil {
		respondSoloError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func respondSoloError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, solo.ErrSessionActive):
		respondError(w, http.StatusConflict, "SESSION_ACTIVE", "A hand is already in progress")
	case errors.Is(err, solo.ErrNoSession), errors.Is(err, solo.ErrSessionFinished):
		respondError(w, http.StatusConflict, "NO_SESSION", "No hand in progress")
	case errors.Is(err, solo.ErrInvalidStake), errors.Is(err, solo.ErrInvalidChoice),
		errors.Is(err, limits.ErrStakeTooSmall), errors.Is(err, limits.ErrStakeTooLarge):
		respondError(w, http.StatusBadRequest, "INVALID_PLAY", err.Error())
	case errors.Is(err, control.ErrGamingDisabled), errors.Is(err, control.ErrBanned):
		respondError(w, http.StatusForbidden, "PLAY_BLOCKED", err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		respondError(w, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", "Insufficient funds")
	default:
		respondError(w, http.StatusInternalServerError, "PLAY_ERROR", "Play failed")
	}
}

// === Admin ===

// ListAccounts handles GET /api/v1/admin/accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.auth.ListAccounts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "LIST_ERROR", "Failed to list accounts")
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

// AdjustBalance handles POST /api/v1/admin/accounts/{id}/adjust.
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int64 `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	balance, err := h.ledger.AdjustBalance(r.Context(), mux.Vars(r)["id"], req.Delta, accountFrom(r).ID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrAccountNotFound):
			respondError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			respondError(w, http.StatusBadRequest, "BALANCE_TOO_LOW", "Adjustment would make balance negative")
		default:
			respondError(w, http.StatusInternalServerError, "ADJUST_ERROR", "Failed to adjust balance")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]domain.Credits{"balance": balance})
}

// SetRole handles POST /api/v1/admin/accounts/{id}/role.
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role domain.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := h.auth.SetRole(r.Context(), mux.Vars(r)["id"], req.Role, accountFrom(r).ID); err != nil {
		respondError(w, http.StatusBadRequest, "ROLE_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]domain.Role{"role": req.Role})
}

// BanAccount handles POST /api/v1/admin/accounts/{id}/ban.
func (h *Handler) BanAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.control.BanAccount(r.Context(), mux.Vars(r)["id"], accountFrom(r).ID); err != nil {
		respondError(w, http.StatusNotFound, "BAN_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "account banned"})
}

// UnbanAccount handles DELETE /api/v1/admin/accounts/{id}/ban.
func (h *Handler) UnbanAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.control.UnbanAccount(r.Context(), mux.Vars(r)["id"], accountFrom(r).ID); err != nil {
		respondError(w, http.StatusNotFound, "UNBAN_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "account unbanned"})
}

// SetGaming handles POST /api/v1/admin/gaming.
func (h *Handler) SetGaming(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := h.control.SetGamingEnabled(r.Context(), req.Enabled, accountFrom(r).ID); err != nil {
		respondError(w, http.StatusInternalServerError, "GAMING_ERROR", "Failed to update gaming state")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

// CreatePromo handles POST /api/v1/admin/promos.
func (h *Handler) CreatePromo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code   string         `json:"code"`
		Amount domain.Credits `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := h.ledger.CreatePromo(r.Context(), req.Code, req.Amount); err != nil {
		respondError(w, http.StatusBadRequest, "PROMO_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"code": req.Code})
}

// GetAuditEvents handles GET /api/v1/admin/audit.
func (h *Handler) GetAuditEvents(w http.ResponseWriter, r *http.Request) {
	filter := &audit.EventFilter{
		AccountID: r.URL.Query().Get("account_id"),
		Type:      r.URL.Query().Get("type"),
	}
	events, err := h.audit.GetEvents(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "AUDIT_ERROR", "Failed to get audit events")
		return
	}
	respondJSON(w, http.StatusOK, events)
}
