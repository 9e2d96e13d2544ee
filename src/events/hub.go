// Package events streams order changes to operator dashboards over websocket.
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeexecutor/src/gateway"
	"tradeexecutor/src/orderstatus"
)

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// OrderEvent is the JSON frame sent for every order change.
type OrderEvent struct {
	OrderID          string          `json:"order_id"`
	Symbol           string          `json:"symbol"`
	Side             string          `json:"side"`
	Status           string          `json:"status"`
	DisplayStatus    string          `json:"display_status"`
	Quantity         decimal.Decimal `json:"quantity"`
	ExecutedQuantity decimal.Decimal `json:"executed_quantity"`
	ExecutedPrice    decimal.Decimal `json:"executed_price"`
	Message          string          `json:"message,omitempty"`
	ReceivedAt       time.Time       `json:"received_at"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans order events out to every connected websocket client. A client
// whose buffer is full is disconnected instead of blocking the publisher.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	logger  *logger.Entry
}

func NewHub(log *logger.Entry) *Hub {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  log.WithField("component", "events_hub"),
	}
}

// Publish implements execution.Publisher.
func (h *Hub) Publish(ev gateway.PushEvent) {
	at := ev.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	msg, err := json.Marshal(OrderEvent{
		OrderID:          ev.OrderID,
		Symbol:           ev.Symbol,
		Side:             ev.Side,
		Status:           orderstatus.Normalize(ev.Status),
		DisplayStatus:    orderstatus.Display(ev.Status),
		Quantity:         ev.Quantity,
		ExecutedQuantity: ev.ExecutedQuantity,
		ExecutedPrice:    ev.ExecutedPrice,
		Message:          ev.Message,
		ReceivedAt:       at,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode order event")
		return
	}
	h.broadcast(msg)
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("Websocket client too slow, disconnecting")
			h.drop(c)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("remote", r.RemoteAddr).Info("Websocket client connected")

	go h.writePump(c)
	go h.readPump(c)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.drop(c)
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// readPump discards client frames; it exists to notice disconnects.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
