package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/observability/telemetry"
	"github.com/voltx/rec-hub/internal/ports"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBuffer   = 256
	broadcastQueue = 1024
)

// Hub pushes committed ledger events to connected websocket clients. It is
// registered as a ledger listener and never blocks the ledger: when the
// broadcast queue is full, events are dropped for websocket clients only.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Events waiting to be fanned out.
	broadcast chan domain.Event

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	log *zap.Logger
	mu  sync.RWMutex
}

var _ ports.EventListener = (*Hub)(nil)

// Client is one websocket subscriber with its optional filters.
type Client struct {
	hub *Hub
	// The websocket connection.
	conn *websocket.Conn
	// Buffered channel of outbound messages.
	send chan []byte

	account *domain.Address
	types   map[domain.EventType]bool
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan domain.Event, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run fans events out until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			telemetry.WebsocketClients.Set(0)
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			telemetry.WebsocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			telemetry.WebsocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
		case event := <-h.broadcast:
			h.fanOut(event)
		}
	}
}

func (h *Hub) fanOut(event domain.Event) {
	message, err := json.Marshal(event)
	if err != nil {
		h.log.Error("Failed to encode event for websocket clients", zap.String("event_id", event.ID), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.wants(event) {
			continue
		}
		select {
		case client.send <- message:
		default:
			// Slow consumer.
			close(client.send)
			delete(h.clients, client)
		}
	}
	telemetry.WebsocketClients.Set(float64(len(h.clients)))
}

// OnEvents queues events for delivery without waiting on clients.
func (h *Hub) OnEvents(_ context.Context, events []domain.Event) {
	for _, e := range events {
		select {
		case h.broadcast <- e:
		default:
			h.log.Warn("Websocket broadcast queue full, dropping event",
				zap.String("event_id", e.ID),
				zap.String("type", string(e.Type)),
			)
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Upgrade rejects plain HTTP requests to the websocket route.
func Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Handler serves /ws/events. Clients may narrow the stream with
// ?account=0x... and ?types=Minted,Retired.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client, err := h.newClient(conn)
		if err != nil {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
			return
		}
		select {
		case h.register <- client:
		case <-h.done:
			return
		}

		go client.writePump()
		// The connection is released when this handler returns.
		client.readPump()
	})
}

func (h *Hub) newClient(conn *websocket.Conn) (*Client, error) {
	client := &Client{hub: h, conn: conn, send: make(chan []byte, clientBuffer)}

	if raw := conn.Query("account"); raw != "" {
		account, err := domain.ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		client.account = &account
	}
	if raw := conn.Query("types"); raw != "" {
		client.types = make(map[domain.EventType]bool)
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				client.types[domain.EventType(t)] = true
			}
		}
	}
	return client, nil
}

// wants reports whether the event passes the client's filters.
func (c *Client) wants(e domain.Event) bool {
	if len(c.types) > 0 && !c.types[e.Type] {
		return false
	}
	if c.account == nil {
		return true
	}
	for _, a := range []*domain.Address{e.From, e.To, e.Account} {
		if a != nil && *a == *c.account {
			return true
		}
	}
	return false
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// The stream is push-only; reads keep control frames flowing.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
