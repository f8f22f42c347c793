package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tradeledger/internal/domain"
	"tradeledger/internal/metrics"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 64
)

// WSMessage is a JSON message sent to WebSocket clients
type WSMessage struct {
	Type string      `json:"type"`
	Mode domain.Mode `json:"mode"`
	Data interface{} `json:"data"`
}

// TokenVerifier resolves a bearer token to a user id
type TokenVerifier func(token string) (uuid.UUID, error)

type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
}

// WSHub fans quotes out to every client and trade events to the client
// that owns the trade
type WSHub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	verify  TokenVerifier
	logger  *zap.Logger
}

// NewWSHub creates a new WebSocket hub. verify may be nil, in which case
// clients only receive quotes.
func NewWSHub(verify TokenVerifier, logger *zap.Logger) *WSHub {
	return &WSHub{
		clients: make(map[*wsClient]struct{}),
		verify:  verify,
		logger:  logger,
	}
}

// Publisher returns an EventPublisher that tags messages with mode
func (h *WSHub) Publisher(mode domain.Mode) domain.EventPublisher {
	return &modePublisher{hub: h, mode: mode}
}

// ClientCount returns the number of connected clients
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type modePublisher struct {
	hub  *WSHub
	mode domain.Mode
}

func (p *modePublisher) PublishQuote(q domain.PriceQuote) {
	p.hub.broadcast(WSMessage{Type: "quote", Mode: p.mode, Data: q}, uuid.Nil)
}

func (p *modePublisher) PublishTradeEvent(ev domain.TradeEvent) {
	p.hub.broadcast(WSMessage{Type: ev.Type, Mode: p.mode, Data: ev.Trade}, ev.UserID)
}

// broadcast queues msg for every client, or only for owner's clients when
// owner is set. Slow clients drop messages instead of blocking the engine.
func (h *WSHub) broadcast(msg WSMessage, owner uuid.UUID) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("failed to encode ws message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if owner != uuid.Nil && c.userID != owner {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleWS upgrades GET /ws. An optional ?token= subscribes the client to
// its own trade events.
func (h *WSHub) HandleWS(c echo.Context) error {
	var userID uuid.UUID
	if token := c.QueryParam("token"); token != "" && h.verify != nil {
		id, err := h.verify(token)
		if err != nil {
			return ErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token", nil)
		}
		userID = id
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return nil
	}

	client := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer), userID: userID}
	h.register(client)

	go h.writePump(client)
	go h.readPump(client)
	return nil
}

func (h *WSHub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Inc()
	h.logger.Debug("ws client connected", zap.Int("total", n))
}

func (h *WSHub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()

	metrics.WebSocketClients.Dec()
}

// readPump detects disconnects; clients are not expected to send anything
func (h *WSHub) readPump(c *wsClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only goroutine writing to the connection
func (h *WSHub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
