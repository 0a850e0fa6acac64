// Package api provides the HTTP and WebSocket surface of the casino
// server.
package api

import (
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/stickntrade/casino/internal/domain"
	"github.com/stickntrade/casino/internal/games"
)

// Hub fans engine events out to connected clients. Round events go to
// the table's room; balance events go to every connection an account
// holds, whatever room it is in.
type Hub struct {
	mu       sync.RWMutex
	tables   map[string]map[*WSClient]bool
	accounts map[string]map[*WSClient]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		tables:   make(map[string]map[*WSClient]bool),
		accounts: make(map[string]map[*WSClient]bool),
	}
}

func (h *Hub) register(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.accounts[c.accountID] == nil {
		h.accounts[c.accountID] = make(map[*WSClient]bool)
	}
	h.accounts[c.accountID][c] = true
}

func (h *Hub) unregister(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.tables {
		delete(room, c)
	}
	if clients, ok := h.accounts[c.accountID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.accounts, c.accountID)
		}
	}
}

// Join subscribes a client to a table's room. A client watches one
// table at a time.
func (h *Hub) Join(c *WSClient, tableID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.tables {
		delete(room, c)
	}
	if h.tables[tableID] == nil {
		h.tables[tableID] = make(map[*WSClient]bool)
	}
	h.tables[tableID][c] = true
}

// Leave removes a client from its table room.
func (h *Hub) Leave(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.tables {
		delete(room, c)
	}
}

func (h *Hub) toTable(tableID, msgType string, payload interface{}) {
	data, err := encode(msgType, payload)
	if err != nil {
		log.WithError(err).Error("failed to encode broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.tables[tableID] {
		c.enqueue(data)
	}
}

func (h *Hub) toAccount(accountID, msgType string, payload interface{}) {
	data, err := encode(msgType, payload)
	if err != nil {
		log.WithError(err).Error("failed to encode broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.accounts[accountID] {
		c.enqueue(data)
	}
}

func encode(msgType string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: msgType, Payload: payloadBytes})
}

// Countdown broadcasts the remaining betting seconds.
func (h *Hub) Countdown(tableID, roundID string, seconds int) {
	h.toTable(tableID, "countdown", map[string]interface{}{
		"table_id": tableID,
		"round_id": roundID,
		"seconds":  seconds,
	})
}

// BetsLocked announces the close of the betting window. It always
// precedes the result broadcast.
func (h *Hub) BetsLocked(tableID, roundID string) {
	h.toTable(tableID, "bets_locked", map[string]interface{}{
		"table_id": tableID,
		"round_id": roundID,
	})
}

// RoundResult broadcasts a round's outcome.
func (h *Hub) RoundResult(tableID, roundID string, outcome games.Outcome) {
	h.toTable(tableID, "round_result", map[string]interface{}{
		"table_id": tableID,
		"round_id": roundID,
		"winner":   outcome.Winner(),
		"outcome":  outcome,
	})
}

// BalanceUpdate notifies one account of its settled payout and new
// balance on every connection it holds.
func (h *Hub) BalanceUpdate(accountID, tableID, roundID string, payout, balance domain.Credits) {
	h.toAccount(accountID, "balance_update", map[string]interface{}{
		"table_id": tableID,
		"round_id": roundID,
		"payout":   payout,
		"balance":  balance,
	})
}

// RoundReset announces a fresh round and a reopened betting window.
func (h *Hub) RoundReset(tableID, roundID string, seconds int) {
	h.toTable(tableID, "round_reset", map[string]interface{}{
		"table_id": tableID,
		"round_id": roundID,
		"seconds":  seconds,
	})
}
