// Package ws streams committed market events to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/nftmart/internal/domain"
	"github.com/alanyoungcy/nftmart/internal/events"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	sendBufferSize = 256

	broadcastBuffer = 1024
)

// allKinds subscribes a client to every event kind.
const allKinds = "*"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
	// kinds holds event kind patterns; a trailing '*' matches a prefix.
	kinds map[string]bool
	// accounts, when non-empty, restricts delivery to events touching them.
	accounts map[domain.AccountID]bool
}

// subscribeMsg is the JSON message a client sends to change its filter:
//
//	{"action":"subscribe","kinds":["Taken*","RedeemedDutchAuction"],"accounts":["0x.."]}
type subscribeMsg struct {
	Action   string             `json:"action"`
	Kinds    []string           `json:"kinds"`
	Accounts []domain.AccountID `json:"accounts"`
}

// envelope is the frame every message is wrapped in.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub manages connected clients and broadcasts market events to them. Events
// arrive from the signal bus channel when a bus is configured, or directly
// through Emit otherwise.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan domain.Event
	register   chan *client
	unregister chan *client
	done       chan struct{}
	bus        domain.SignalBus
	mu         sync.RWMutex
	logger     *slog.Logger
	clock      domain.Clock
	startedAt  time.Time
}

var _ domain.EventSink = (*Hub)(nil)

// NewHub creates a hub. bus may be nil; clock feeds the block height sent to
// clients on connect and may be nil too.
func NewHub(bus domain.SignalBus, clock domain.Clock, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan domain.Event, broadcastBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		logger:     logger,
		clock:      clock,
		startedAt:  time.Now().UTC(),
	}
}

// Emit queues ev for broadcast. It never blocks; events are dropped when the
// hub is saturated.
func (h *Hub) Emit(_ context.Context, ev domain.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("ws: broadcast queue full, dropping event",
			slog.String("kind", string(ev.Kind)),
			slog.String("id", ev.ID),
		)
	}
}

// Run starts the hub's main event loop. The loop exits when ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	if h.bus != nil {
		go h.subscribe(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("ws: client connected",
				slog.Int("total_clients", h.ClientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected",
				slog.Int("total_clients", h.ClientCount()),
			)

		case ev := <-h.broadcast:
			data, err := json.Marshal(envelope{Type: "event", Payload: ev})
			if err != nil {
				h.logger.Error("ws: marshal event", slog.String("error", err.Error()))
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(ev) {
					continue
				}
				select {
				case c.send <- data:
				default:
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// subscribe forwards events published on events.Channel into the hub.
func (h *Hub) subscribe(ctx context.Context) {
	msgCh, err := h.bus.Subscribe(ctx, events.Channel)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to channel",
			slog.String("channel", events.Channel),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("ws: subscribed to channel", slog.String("channel", events.Channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: channel subscription closed",
					slog.String("channel", events.Channel),
				)
				return
			}
			var ev domain.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				h.logger.Warn("ws: undecodable event", slog.String("error", err.Error()))
				continue
			}
			h.Emit(ctx, ev)
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub. ?kinds= and ?accounts= (comma separated) set the
// initial filter.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		kinds:    map[string]bool{allKinds: true},
		accounts: make(map[domain.AccountID]bool),
	}
	q := r.URL.Query()
	c.apply(subscribeMsg{
		Action:   "subscribe",
		Kinds:    splitList(q.Get("kinds")),
		Accounts: parseAccounts(splitList(q.Get("accounts"))),
	})

	c.sendHello(r.Context())

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var sub subscribeMsg
		if err := json.Unmarshal(message, &sub); err == nil && sub.Action != "" {
			c.apply(sub)
		}
	}
}

// apply changes the client's filter. An initial subscribe with explicit
// kinds replaces the default wildcard.
func (c *client) apply(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		if len(msg.Kinds) > 0 && c.kinds[allKinds] && len(c.kinds) == 1 {
			delete(c.kinds, allKinds)
		}
		for _, k := range msg.Kinds {
			c.kinds[k] = true
		}
		for _, a := range msg.Accounts {
			c.accounts[a] = true
		}
	case "unsubscribe":
		for _, k := range msg.Kinds {
			delete(c.kinds, k)
		}
		for _, a := range msg.Accounts {
			delete(c.accounts, a)
		}
	}
}

// wants reports whether ev passes the client's filter.
func (c *client) wants(ev domain.Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.accounts) > 0 {
		touched := c.accounts[ev.Who]
		if ev.Counterparty != nil && c.accounts[*ev.Counterparty] {
			touched = true
		}
		if !touched {
			return false
		}
	}

	kind := string(ev.Kind)
	if c.kinds[kind] {
		return true
	}
	for pattern := range c.kinds {
		if strings.HasSuffix(pattern, "*") && strings.HasPrefix(kind, strings.TrimSuffix(pattern, "*")) {
			return true
		}
	}
	return false
}

// sendHello pushes a status frame so clients can mark the connection healthy
// before any market event flows.
func (c *client) sendHello(ctx context.Context) {
	payload := map[string]any{
		"uptime_seconds": int64(time.Since(c.hub.startedAt).Seconds()),
	}
	if c.hub.clock != nil {
		if block, err := c.hub.clock.CurrentBlock(ctx); err == nil {
			payload["block"] = block
		}
	}
	msg, err := json.Marshal(envelope{Type: "hello", Payload: payload})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAccounts(in []string) []domain.AccountID {
	out := make([]domain.AccountID, 0, len(in))
	for _, s := range in {
		var a domain.AccountID
		if err := a.UnmarshalText([]byte(s)); err == nil {
			out = append(out, a)
		}
	}
	return out
}
