package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/stickntrade/casino/internal/domain"
	"github.com/stickntrade/casino/internal/engine"
	"github.com/stickntrade/casino/internal/solo"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSClient represents one WebSocket connection.
type WSClient struct {
	conn      *websocket.Conn
	send      chan []byte
	accountID string
}

func (c *WSClient) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		// Slow consumer, drop the message.
	}
}

// HandleWebSocket handles WebSocket connections. Browsers cannot set
// headers on the upgrade request, so the token may also arrive as a
// query parameter.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	_, account, err := h.auth.ValidateToken(r.Context(), token)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Error("websocket upgrade failed")
		return
	}

	client := &WSClient{
		conn:      conn,
		send:      make(chan []byte, 256),
		accountID: account.ID,
	}
	h.hub.register(client)

	go client.writePump()
	go h.readPump(client)
}

// writePump pumps messages from the send channel to the connection.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			w.Close()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the connection to the handler. On any
// exit the client leaves its room and any live blackjack hand is
// abandoned.
func (h *Handler) readPump(c *WSClient) {
	defer func() {
		h.hub.unregister(c)
		h.solo.Discard(c.accountID)
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	h.sendMessage(c, "connected", map[string]interface{}{
		"tables": h.engine.Snapshots(),
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Debug("websocket read error")
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.sendError(c, "INVALID_MESSAGE", "Invalid message format")
			continue
		}

		h.handleWSMessage(c, &msg)
	}
}

// handleWSMessage processes incoming WebSocket messages.
func (h *Handler) handleWSMessage(c *WSClient, msg *WSMessage) {
	ctx := context.Background()

	switch msg.Type {
	case "join_table":
		var payload struct {
			TableID string `json:"table_id"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(c, "INVALID_PAYLOAD", "Invalid join payload")
			return
		}
		snap, err := h.engine.Snapshot(payload.TableID)
		if err != nil {
			h.sendError(c, "UNKNOWN_TABLE", "Unknown table")
			return
		}
		h.hub.Join(c, payload.TableID)

		recent, err := h.history.Recent(ctx, payload.TableID, 25)
		if err != nil {
			log.WithError(err).Warn("failed to load outcome history")
		}
		h.sendMessage(c, "table_state", map[string]interface{}{
			"table":   snap,
			"history": recent,
		})

	case "leave_table":
		h.hub.Leave(c)

	case "place_wager":
		h.handlePlaceWager(c, msg)

	case "blackjack_start":
		var payload struct {
			Stake domain.Credits `json:"stake"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(c, "INVALID_PAYLOAD", "Invalid stake payload")
			return
		}
		st, err := h.solo.StartBlackjack(ctx, c.accountID, payload.Stake)
		if err != nil {
			h.sendSoloError(c, err)
			return
		}
		h.sendMessage(c, "blackjack_state", st)

	case "blackjack_hit":
		st, err := h.solo.Hit(ctx, c.accountID)
		if err != nil {
			h.sendSoloError(c, err)
			return
		}
		h.sendMessage(c, "blackjack_state", st)

	case "blackjack_stand":
		st, err := h.solo.Stand(ctx, c.accountID)
		if err != nil {
			h.sendSoloError(c, err)
			return
		}
		h.sendMessage(c, "blackjack_state", st)

	case "play_coin", "play_dice":
		var payload struct {
			Choice string         `json:"choice"`
			Stake  domain.Credits `json:"stake"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(c, "INVALID_PAYLOAD", "Invalid play payload")
			return
		}

		var res *solo.FlipResult
		var err error
		if msg.Type == "play_coin" {
			res, err = h.solo.PlayCoin(ctx, c.accountID, payload.Choice, payload.Stake)
		} else {
			res, err = h.solo.PlayDice(ctx, c.accountID, payload.Choice, payload.Stake)
		}
		if err != nil {
			h.sendSoloError(c, err)
			return
		}
		h.sendMessage(c, msg.Type+"_result", res)

	case "balance":
		balance, err := h.ledger.GetBalance(ctx, c.accountID)
		if err != nil {
			h.sendError(c, "BALANCE_ERROR", "Failed to get balance")
			return
		}
		h.sendMessage(c, "balance", map[string]interface{}{"balance": balance})

	case "ping":
		h.sendMessage(c, "pong", map[string]interface{}{
			"timestamp": time.Now().Unix(),
		})

	default:
		h.sendError(c, "UNKNOWN_MESSAGE", "Unknown message type: "+msg.Type)
	}
}

// handlePlaceWager routes a wager to the engine and reports acceptance
// with the post-debit balance.
func (h *Handler) handlePlaceWager(c *WSClient, msg *WSMessage) {
	var payload struct {
		TableID string         `json:"table_id"`
		Choice  string         `json:"choice"`
		Stake   domain.Credits `json:"stake"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(c, "INVALID_PAYLOAD", "Invalid wager payload")
		return
	}

	wager, balance, err := h.engine.PlaceWager(context.Background(), payload.TableID, c.accountID, payload.Choice, payload.Stake)
	if err != nil {
		h.sendError(c, wagerErrorCode(err), err.Error())
		return
	}

	h.sendMessage(c, "wager_accepted", map[string]interface{}{
		"wager":   wager,
		"balance": balance,
	})
}

func (h *Handler) sendSoloError(c *WSClient, err error) {
	switch {
	case errors.Is(err, solo.ErrSessionActive):
		h.sendError(c, "SESSION_ACTIVE", "A hand is already in progress")
	case errors.Is(err, solo.ErrNoSession):
		h.sendError(c, "NO_SESSION", "No hand in progress")
	case errors.Is(err, solo.ErrInvalidStake):
		h.sendError(c, "INVALID_STAKE", "Stake must be positive")
	case errors.Is(err, solo.ErrInvalidChoice):
		h.sendError(c, "INVALID_CHOICE", "Invalid choice")
	default:
		h.sendError(c, "PLAY_ERROR", err.Error())
	}
}

func wagerErrorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrUnknownTable):
		return "UNKNOWN_TABLE"
	case errors.Is(err, engine.ErrInvalidChoice):
		return "INVALID_CHOICE"
	case errors.Is(err, engine.ErrInvalidStake):
		return "INVALID_STAKE"
	case errors.Is(err, engine.ErrTableClosed):
		return "TABLE_CLOSED"
	default:
		return "WAGER_REJECTED"
	}
}

// sendMessage sends a message to the client.
func (h *Handler) sendMessage(c *WSClient, msgType string, payload interface{}) {
	data, err := encode(msgType, payload)
	if err != nil {
		log.WithError(err).Error("failed to encode message")
		return
	}
	c.enqueue(data)
}

// sendError sends an error message to the client.
func (h *Handler) sendError(c *WSClient, code, message string) {
	h.sendMessage(c, "error", map[string]string{
		"code":    code,
		"message": message,
	})
}
