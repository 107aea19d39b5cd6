package session

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mcoot/pairlobby/internal/dependencies/random"
	"github.com/mcoot/pairlobby/internal/metrics"
	"github.com/mcoot/pairlobby/internal/model"
	"github.com/mcoot/pairlobby/internal/services/registry"
)

const (
	// gameIDRange bounds minted game ids to [1, gameIDRange]
	gameIDRange = 0x100000

	internalJoinError = "Server internal error joining chat room"
)

// Membership is the room grouping primitive the protocol relies on
type Membership interface {
	Join(ctx context.Context, room string, id model.ConnID) error
	Leave(ctx context.Context, room string, id model.ConnID) error
	LeaveAll(ctx context.Context, id model.ConnID) error
	LocalMembers(ctx context.Context, room string) ([]model.ConnID, error)
	AllMembers(ctx context.Context, room string) (map[model.ConnID]struct{}, error)
}

// Emitter delivers events to one connection or to every member of a room
type Emitter interface {
	Send(id model.ConnID, event model.EventName, payload any)
	SendRoom(ctx context.Context, room string, event model.EventName, payload any)
}

// Config holds executor settings
type Config struct {
	// QueryTimeout bounds each membership query
	QueryTimeout time.Duration
	// QueueSize is the depth of the command queue
	QueueSize int
}

// DefaultConfig returns sensible defaults for the executor
func DefaultConfig() Config {
	return Config{
		QueryTimeout: 5 * time.Second,
		QueueSize:    1024,
	}
}

type phase int

const (
	phaseUnjoined phase = iota
	phaseJoined
	phaseDisconnected
)

// sessionState tracks one connection's protocol phase.
// Only touched from the executor.
type sessionState struct {
	phase   phase
	pending int
}

// Controller implements the session protocol: join_room, invite, uninvite,
// game_start, send_chat_message and disconnect. Commands are executed one at
// a time by Run.
type Controller struct {
	registry *registry.Registry
	rooms    Membership
	emitter  Emitter
	random   random.Random
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      Config

	tasks    chan task
	stopped  chan struct{}
	sessions map[model.ConnID]*sessionState
	inflight atomic.Int64
}

// NewController creates a new session Controller
func NewController(
	registry *registry.Registry,
	rooms Membership,
	emitter Emitter,
	random random.Random,
	metrics *metrics.Metrics,
	cfg Config,
	logger *slog.Logger,
) *Controller {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultConfig().QueryTimeout
	}
	return &Controller{
		registry: registry,
		rooms:    rooms,
		emitter:  emitter,
		random:   random,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "session")),
		cfg:      cfg,
		tasks:    make(chan task, cfg.QueueSize),
		stopped:  make(chan struct{}),
		sessions: make(map[model.ConnID]*sessionState),
	}
}

// Connect records a new connection
func (c *Controller) Connect(ctx context.Context, id model.ConnID) error {
	return c.submit(ctx, func(ctx context.Context) {
		c.session(id)
		c.logger.Info("a page connected to the server: " + string(id))
	})
}

// Dispatch queues a command from a connection for execution
func (c *Controller) Dispatch(ctx context.Context, id model.ConnID, cmd model.Command) error {
	return c.submit(ctx, func(ctx context.Context) {
		c.handle(ctx, id, cmd)
	})
}

// PendingQueries returns the number of membership queries awaiting their continuation
func (c *Controller) PendingQueries() int {
	return int(c.inflight.Load())
}

func (c *Controller) session(id model.ConnID) *sessionState {
	s, ok := c.sessions[id]
	if !ok {
		s = &sessionState{phase: phaseUnjoined}
		c.sessions[id] = s
	}
	return s
}

func (c *Controller) handle(ctx context.Context, id model.ConnID, cmd model.Command) {
	if s, ok := c.sessions[id]; ok && s.phase == phaseDisconnected {
		c.logger.Warn("command from disconnected connection ignored",
			slog.String("socket_id", string(id)),
			slog.String("command", string(cmd.Name())))
		return
	}

	if _, ok := cmd.(model.Disconnect); !ok {
		c.logger.Info("Server received a command",
			slog.String("command", string(cmd.Name())),
			slog.String("socket_id", string(id)),
			slog.Any("payload", cmd))
	}

	switch cmd := cmd.(type) {
	case model.JoinRoom:
		c.joinRoom(ctx, id, cmd.Payload)
	case model.Invite:
		c.handshake(ctx, id, inviteHandshake, cmd.Payload)
	case model.Uninvite:
		c.handshake(ctx, id, uninviteHandshake, cmd.Payload)
	case model.GameStart:
		c.handshake(ctx, id, gameStartHandshake, cmd.Payload)
	case model.SendChatMessage:
		c.sendChatMessage(ctx, id, cmd.Payload)
	case model.Disconnect:
		c.disconnect(ctx, id)
	}
}

// fail answers the requester only
func (c *Controller) fail(id model.ConnID, cmd model.CommandName, event model.EventName, message string) {
	resp := model.NewFailResponse(message)
	c.emitter.Send(id, event, resp)
	c.metrics.CommandHandled(string(cmd), model.ResultFail)
	c.logger.Info(string(cmd)+" command failed",
		slog.String("socket_id", string(id)),
		slog.Any("response", resp))
}

// failInternal answers the requester and flags a registry/membership divergence
func (c *Controller) failInternal(id model.ConnID, cmd model.CommandName, event model.EventName, message string, err error) {
	resp := model.NewFailResponse(message)
	c.emitter.Send(id, event, resp)
	c.metrics.CommandHandled(string(cmd), model.ResultFail)

	attrs := []any{
		slog.String("socket_id", string(id)),
		slog.Any("response", resp),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	c.logger.Error(string(cmd)+" internal error", attrs...)
}

func present(s *string) bool {
	return s != nil && *s != ""
}

func (c *Controller) joinRoom(ctx context.Context, id model.ConnID, p *model.JoinRoomPayload) {
	const (
		cmd   = model.CommandJoinRoom
		event = model.EventJoinRoomResponse
	)

	switch {
	case p == nil:
		c.fail(id, cmd, event, "client did not send a payload")
		return
	case !present(p.Room):
		c.fail(id, cmd, event, "client did not send a valid room to join")
		return
	case !present(p.Username):
		c.fail(id, cmd, event, "client did not send a valid username to join")
		return
	}
	room, username := *p.Room, *p.Username

	if err := c.rooms.Join(ctx, room, id); err != nil {
		c.failInternal(id, cmd, event, internalJoinError, err)
		return
	}

	suspend(ctx, c, id,
		func(ctx context.Context) ([]model.ConnID, error) {
			return c.rooms.LocalMembers(ctx, room)
		},
		func(ctx context.Context, members []model.ConnID, err error) {
			if err != nil || !slices.Contains(members, id) {
				c.abandonJoin(ctx, id, room)
				c.failInternal(id, cmd, event, internalJoinError, err)
				return
			}

			if err := c.registry.Put(ctx, id, username, room); err != nil {
				c.abandonJoin(ctx, id, room)
				c.failInternal(id, cmd, event, internalJoinError, err)
				return
			}
			c.session(id).phase = phaseJoined

			// Every member is re-announced so each client can rebuild its roster
			for _, member := range members {
				player, ok, err := c.registry.Get(ctx, member)
				if err != nil || !ok {
					c.logger.Debug("room member has no player record yet",
						slog.String("room", room),
						slog.String("socket_id", string(member)))
					continue
				}
				resp := model.JoinRoomResponse{
					Result:   model.ResultSuccess,
					SocketID: member,
					Room:     player.Room,
					Username: player.Username,
					Count:    len(members),
				}
				c.emitter.SendRoom(ctx, room, event, resp)
				c.logger.Info("join_room succeeded", slog.Any("response", resp))
			}
			c.metrics.CommandHandled(string(cmd), model.ResultSuccess)
		})
}

// abandonJoin takes a failed join back out of the room group, unless the
// connection's existing record already places it there
func (c *Controller) abandonJoin(ctx context.Context, id model.ConnID, room string) {
	if player, ok, err := c.registry.Get(ctx, id); err == nil && ok && player.Room == room {
		return
	}
	if err := c.rooms.Leave(ctx, room, id); err != nil {
		c.logger.Error("join_room leave failed",
			slog.String("socket_id", string(id)),
			slog.String("room", room),
			slog.String("error", err.Error()))
	}
}

func (c *Controller) sendChatMessage(ctx context.Context, id model.ConnID, p *model.ChatPayload) {
	const (
		cmd   = model.CommandSendChatMessage
		event = model.EventSendChatMessageResponse
	)

	switch {
	case p == nil:
		c.fail(id, cmd, event, "client did not send a payload")
		return
	case !present(p.Room):
		c.fail(id, cmd, event, "client did not send a valid room to message")
		return
	case !present(p.Username):
		c.fail(id, cmd, event, "client did not send a valid username as a message source")
		return
	case p.Message == nil:
		c.fail(id, cmd, event, "client did not send a valid message")
		return
	}

	resp := model.ChatMessageResponse{
		Result:   model.ResultSuccess,
		Username: *p.Username,
		Room:     *p.Room,
		Message:  p.Message,
	}
	c.emitter.SendRoom(ctx, *p.Room, event, resp)
	c.metrics.CommandHandled(string(cmd), model.ResultSuccess)
	c.logger.Info("send_chat_message command succeeded", slog.Any("response", resp))
}

func (c *Controller) disconnect(ctx context.Context, id model.ConnID) {
	c.logger.Info("a page disconnected from the server: " + string(id))

	s := c.session(id)
	s.phase = phaseDisconnected
	if s.pending == 0 {
		delete(c.sessions, id)
	}

	// ordered after any join this connection queued earlier
	if err := c.rooms.LeaveAll(ctx, id); err != nil {
		c.logger.Error("disconnect leave rooms failed",
			slog.String("socket_id", string(id)),
			slog.String("error", err.Error()))
	}

	player, ok, err := c.registry.Get(ctx, id)
	if err != nil {
		c.logger.Error("disconnect lookup failed",
			slog.String("socket_id", string(id)),
			slog.String("error", err.Error()))
		return
	}
	if !ok {
		return
	}

	total, err := c.registry.Count(ctx)
	if err != nil {
		c.logger.Error("disconnect count failed",
			slog.String("socket_id", string(id)),
			slog.String("error", err.Error()))
		total = 1
	}

	payload := model.PlayerDisconnected{
		Username: player.Username,
		Room:     player.Room,
		Count:    max(total-1, 0),
		SocketID: id,
	}
	if err := c.registry.Remove(ctx, id); err != nil {
		c.logger.Error("disconnect remove failed",
			slog.String("socket_id", string(id)),
			slog.String("error", err.Error()))
	}

	c.emitter.SendRoom(ctx, player.Room, model.EventPlayerDisconnected, payload)
	c.metrics.CommandHandled(string(model.CommandDisconnect), model.ResultSuccess)
	c.logger.Info("player_disconnected succeeded", slog.Any("payload", payload))
}

// newGameID mints a session id: hex of a random integer in [1, 0x100000]
func (c *Controller) newGameID() string {
	return strconv.FormatInt(int64(1+c.random.Intn(gameIDRange)), 16)
}
