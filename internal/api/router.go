package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRouter creates and configures the HTTP router.
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(CORSMiddleware)
	r.Use(LoggingMiddleware)

	// Public routes
	r.HandleFunc("/", h.ServerInfo).Methods("GET")
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// The WebSocket endpoint authenticates itself; browsers cannot
	// set headers on the upgrade request.
	r.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Auth (public)
	api.HandleFunc("/auth/register", h.Register).Methods("POST")
	api.HandleFunc("/auth/login", h.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(h.AuthMiddleware)

	protected.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	protected.HandleFunc("/auth/me", h.Me).Methods("GET")

	// Wallet
	protected.HandleFunc("/wallet/balance", h.GetBalance).Methods("GET")
	protected.HandleFunc("/wallet/entries", h.GetEntries).Methods("GET")
	protected.HandleFunc("/wallet/reward", h.ClaimReward).Methods("POST")
	protected.HandleFunc("/wallet/promo", h.RedeemPromo).Methods("POST")

	// Shared tables
	protected.HandleFunc("/tables", h.GetTables).Methods("GET")
	protected.HandleFunc("/tables/{id}", h.GetTable).Methods("GET")
	protected.HandleFunc("/tables/{id}/history", h.GetTableHistory).Methods("GET")
	protected.HandleFunc("/tables/{id}/wagers", h.PlaceWager).Methods("POST")

	// Solo games
	protected.HandleFunc("/solo/blackjack", h.StartBlackjack).Methods("POST")
	protected.HandleFunc("/solo/blackjack/hit", h.BlackjackHit).Methods("POST")
	protected.HandleFunc("/solo/blackjack/stand", h.BlackjackStand).Methods("POST")
	protected.HandleFunc("/solo/coin", h.PlayCoin).Methods("POST")
	protected.HandleFunc("/solo/dice", h.PlayDice).Methods("POST")

	// Admin
	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(h.AdminMiddleware)
	admin.HandleFunc("/accounts", h.ListAccounts).Methods("GET")
	admin.HandleFunc("/accounts/{id}/adjust", h.AdjustBalance).Methods("POST")
	admin.HandleFunc("/accounts/{id}/role", h.SetRole).Methods("POST")
	admin.HandleFunc("/accounts/{id}/ban", h.BanAccount).Methods("POST")
	admin.HandleFunc("/accounts/{id}/ban", h.UnbanAccount).Methods("DELETE")
	admin.HandleFunc("/gaming", h.SetGaming).Methods("POST")
	admin.HandleFunc("/promos", h.CreatePromo).Methods("POST")
	admin.HandleFunc("/audit", h.GetAuditEvents).Methods("GET")

	return r
}

// NotFoundHandler handles 404 errors.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}
