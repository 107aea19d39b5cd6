package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/pairlobby/internal/model"
)

const cleanupTimeout = 5 * time.Second

// Sessions receives connection lifecycle and decoded commands
type Sessions interface {
	Connect(ctx context.Context, id model.ConnID) error
	Dispatch(ctx context.Context, id model.ConnID, cmd model.Command) error
}

// Handler upgrades HTTP requests to websocket sessions
type Handler struct {
	hub      *Hub
	sessions Sessions
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu       sync.Mutex
	draining bool
	active   sync.WaitGroup
}

// NewHandler creates a websocket Handler. allowedOrigins of "*" accepts any origin.
func NewHandler(hub *Hub, sessions Sessions, allowedOrigins []string, logger *slog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		logger: logger.With(slog.String("component", "ws")),
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, a := range allowed {
			if strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
				return true
			}
		}
		return false
	}
}

// ServeHTTP runs one connection: it assigns an id, announces it to the
// client, feeds inbound frames to the session controller and reports the
// disconnect once the peer goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.enter() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.active.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}

	id := model.ConnID(uuid.NewString())
	client := NewClient(id, conn, h.logger)
	if !h.hub.Register(client) {
		_ = conn.Close()
		return
	}
	go client.writePump()

	if message, err := Encode(model.EventConnected, model.ConnectedPayload{SocketID: id}); err == nil {
		_ = h.hub.Send(id, message)
	}

	ctx := r.Context()
	if err := h.sessions.Connect(ctx, id); err != nil {
		h.logger.Error("ws session connect failed",
			slog.String("socket_id", string(id)),
			slog.String("error", err.Error()))
		h.hub.Unregister(client)
		return
	}

	client.readPump(func(data []byte) {
		h.handleFrame(ctx, id, data)
	})

	h.close(ctx, client)
}

func (h *Handler) handleFrame(ctx context.Context, id model.ConnID, data []byte) {
	cmd, err := Decode(data)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, model.ErrUnknownCommand) {
			level = slog.LevelDebug
		}
		h.logger.Log(ctx, level, "ws frame ignored",
			slog.String("socket_id", string(id)),
			slog.String("error", err.Error()))
		return
	}
	if err := h.sessions.Dispatch(ctx, id, cmd); err != nil {
		h.logger.Error("ws dispatch failed",
			slog.String("socket_id", string(id)),
			slog.String("command", string(cmd.Name())),
			slog.String("error", err.Error()))
	}
}

// close detaches the client before reporting the disconnect, so the
// departing connection is absent from the local view of every room.
// Leaving the rooms themselves is part of the disconnect command.
func (h *Handler) close(ctx context.Context, client *Client) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	h.hub.Unregister(client)
	if err := h.sessions.Dispatch(ctx, client.id, model.Disconnect{}); err != nil {
		h.logger.Error("ws disconnect dispatch failed",
			slog.String("socket_id", string(client.id)),
			slog.String("error", err.Error()))
	}
}

func (h *Handler) enter() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.active.Add(1)
	return true
}

// Drain refuses new connections and waits until every open one has reported
// its disconnect. Close the hub first so open connections actually end.
func (h *Handler) Drain(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
