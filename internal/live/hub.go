// Package live pushes leaderboard updates to WebSocket subscribers.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/catclicker/catclicker/internal/metrics"
	"github.com/catclicker/catclicker/internal/model"
)

const (
	// DefaultSize is the number of leaderboard entries broadcast.
	DefaultSize = 10

	sendBuffer   = 8
	writeTimeout = 5 * time.Second
)

// LeaderboardSource provides the current top countries.
type LeaderboardSource interface {
	TopCountries(limit int) []model.LeaderboardEntry
}

// Message is the JSON frame sent to subscribers.
type Message struct {
	Type    string                   `json:"type"`
	Entries []model.LeaderboardEntry `json:"entries"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Hub fans leaderboard snapshots out to connected clients.
type Hub struct {
	source         LeaderboardSource
	size           int
	originPatterns []string
	logger         *slog.Logger
	metrics        metrics.Recorder

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithOriginPatterns sets the allowed cross-origin hosts for the upgrade.
func WithOriginPatterns(patterns []string) Option {
	return func(h *Hub) { h.originPatterns = patterns }
}

// WithLogger sets the hub logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a Hub broadcasting the top size countries.
func NewHub(source LeaderboardSource, size int, opts ...Option) *Hub {
	if size <= 0 {
		size = DefaultSize
	}
	h := &Hub{
		source:  source,
		size:    size,
		logger:  slog.Default(),
		metrics: metrics.NewNoop(),
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "live.hub")
	return h
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify broadcasts the current leaderboard. Non-blocking: a client whose
// buffer is full misses this update and gets the next one.
func (h *Hub) Notify() {
	h.mu.RLock()
	empty := len(h.clients) == 0
	h.mu.RUnlock()
	if empty {
		return
	}

	data, err := h.frame()
	if err != nil {
		h.logger.Error("marshal leaderboard", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Drop message if channel full
		}
	}
}

// ServeHTTP upgrades the request and streams leaderboard frames until the
// client disconnects. Incoming messages are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Long-lived stream; the server-wide write timeout must not apply.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	// Initial snapshot so a new subscriber renders immediately.
	if data, err := h.frame(); err == nil {
		c.send <- data
	}

	h.register(c)
	defer h.unregister(c)

	// CloseRead discards client frames and cancels ctx once the peer goes.
	ctx := conn.CloseRead(r.Context())
	c.writePump(ctx)

	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) frame() ([]byte, error) {
	return json.Marshal(Message{Type: "leaderboard", Entries: h.source.TopCountries(h.size)})
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.metrics.SetLiveSubscribers(len(h.clients))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.metrics.SetLiveSubscribers(len(h.clients))
}
