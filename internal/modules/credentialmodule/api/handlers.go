// Package api serves the credential update channel used by clients that
// fetch HLS directly from the origin.
package api

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamgate/internal/interceptor"
	"github.com/mantonx/streamgate/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler pushes SET_API_KEY messages over websockets.
type Handler struct {
	credentials services.CredentialService
	enabled     atomic.Bool
	origins     atomic.Pointer[[]string]
	upgrader    websocket.Upgrader
	logger      hclog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]context.CancelFunc
}

// NewHandler creates a handler. allowedOrigins restricts browser origins
// allowed to open the channel; "*" allows any.
func NewHandler(credentials services.CredentialService, enabled bool, allowedOrigins []string, logger hclog.Logger) *Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	h := &Handler{
		credentials: credentials,
		logger:      logger,
		conns:       make(map[*websocket.Conn]context.CancelFunc),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	h.Configure(enabled, allowedOrigins)
	return h
}

// Configure updates the enabled flag and origin allow-list. Disabling the
// channel closes every open connection.
func (h *Handler) Configure(enabled bool, allowedOrigins []string) {
	origins := append([]string(nil), allowedOrigins...)
	h.origins.Store(&origins)
	if enabled && slices.Contains(origins, "*") {
		h.logger.Warn("credential channel is open to any client; set server.allowed_origins to restrict browser origins")
	}
	if h.enabled.Swap(enabled) && !enabled {
		h.CloseAll()
	}
}

// Enabled reports whether the channel accepts connections.
func (h *Handler) Enabled() bool {
	return h.enabled.Load()
}

// checkOrigin only constrains browsers. Requests without an Origin header
// (CLIs, native players) are always accepted, so enabling the channel hands
// the credential to any client that can reach it.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range *h.origins.Load() {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), u.Scheme+"://"+u.Host) {
			return true
		}
	}
	return false
}

// Channel handles GET /api/credentials/ws
// The current credential is sent on connect and again on every change.
func (h *Handler) Channel(c *gin.Context) {
	if !h.enabled.Load() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "direct origin access is disabled",
			"code":  "FORBIDDEN",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		h.logger.Debug("credential channel upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	h.track(conn, cancel)
	defer h.untrack(conn)

	h.serve(ctx, conn)
}

func (h *Handler) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	updates, unsubscribe := h.credentials.Subscribe()
	defer unsubscribe()

	// The reader only handles control frames; clients never send data.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if key := h.credentials.APIKey(); key != "" {
		if err := h.send(conn, key); err != nil {
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case key := <-updates:
			if err := h.send(conn, key); err != nil {
				h.logger.Debug("credential push failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-readerDone:
			return
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "gateway closing"),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, key string) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(interceptor.Message{Type: interceptor.MessageSetAPIKey, Key: key})
}

func (h *Handler) track(conn *websocket.Conn, cancel context.CancelFunc) {
	h.mu.Lock()
	h.conns[conn] = cancel
	n := len(h.conns)
	h.mu.Unlock()
	h.logger.Debug("credential channel opened", "connections", n)
}

func (h *Handler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	if cancel, ok := h.conns[conn]; ok {
		cancel()
		delete(h.conns, conn)
	}
	h.mu.Unlock()
}

// CloseAll asks every open channel to close.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cancel := range h.conns {
		cancel()
	}
}

// Connections returns the number of open channels.
func (h *Handler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
