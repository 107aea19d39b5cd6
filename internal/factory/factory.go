package factory

import (
	"context"
	"errors"
	"io"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mcoot/pairlobby/internal/api"
	"github.com/mcoot/pairlobby/internal/config"
	"github.com/mcoot/pairlobby/internal/dependencies/clock"
	"github.com/mcoot/pairlobby/internal/dependencies/random"
	"github.com/mcoot/pairlobby/internal/logging"
	"github.com/mcoot/pairlobby/internal/metrics"
	"github.com/mcoot/pairlobby/internal/model"
	"github.com/mcoot/pairlobby/internal/rooms"
	"github.com/mcoot/pairlobby/internal/services/registry"
	"github.com/mcoot/pairlobby/internal/services/session"
	"github.com/mcoot/pairlobby/internal/storage"
	"github.com/mcoot/pairlobby/internal/storage/memory"
	redisstorage "github.com/mcoot/pairlobby/internal/storage/redis"
	"github.com/mcoot/pairlobby/internal/web/ws"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock   clock.Clock
	Random  random.Random
	Metrics *metrics.Metrics

	// Transport
	Hub         *ws.Hub
	Broadcaster *ws.Broadcaster
	WebSocket   *ws.Handler

	// Services
	Rooms    *rooms.Index
	Registry *registry.Registry
	Sessions *session.Controller

	logger *slog.Logger

	stop      context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// Session holds executor settings (optional)
	// If zero value, defaults to session.DefaultConfig()
	Session session.Config
	// LogBroadcast mirrors session log records to every client as log events
	LogBroadcast bool
	// AllowedOrigins restricts websocket origins; empty or "*" allows all
	AllowedOrigins []string
}

// FromServerConfig maps the environment configuration onto a factory Config
func FromServerConfig(cfg config.Config, logger *slog.Logger) Config {
	out := Config{
		Logger:      logger,
		StorageType: cfg.StorageType,
		Session: session.Config{
			QueryTimeout: cfg.MembershipQueryTimeout,
			QueueSize:    cfg.CommandQueueSize,
		},
		LogBroadcast:   cfg.LogBroadcast,
		AllowedOrigins: cfg.AllowedOrigins,
	}
	if cfg.StorageType == config.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		redisCfg.PlayerTTL = cfg.RedisPlayerTTL
		out.RedisConfig = &redisCfg
	}
	return out
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = config.StorageTypeMemory
	}

	switch storageType {
	case config.StorageTypeMemory:
		store = memory.New()
	case config.StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	return newWithDependencies(store, clock.New(), random.New(), metrics.New(), cfg, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	m *metrics.Metrics,
	cfg Config,
	logger *slog.Logger,
) *App {
	sessionCfg := cfg.Session
	if sessionCfg == (session.Config{}) {
		sessionCfg = session.DefaultConfig()
	}

	hub := ws.NewHub(m, logger)
	index := rooms.New(store, hub, logger)
	reg := registry.New(store, clk, logger)
	broadcaster := ws.NewBroadcaster(hub, index, logger)

	// Only the session logger is mirrored to clients; transport logs stay local
	sessionLogger := logger
	if cfg.LogBroadcast {
		sessionLogger = slog.New(logging.NewBroadcastHandler(logger.Handler(), broadcaster))
	}
	controller := session.NewController(reg, index, broadcaster, rnd, m, sessionCfg, sessionLogger)

	return &App{
		Storage:     store,
		Clock:       clk,
		Random:      rnd,
		Metrics:     m,
		Hub:         hub,
		Broadcaster: broadcaster,
		WebSocket:   ws.NewHandler(hub, controller, cfg.AllowedOrigins, logger),
		Rooms:       index,
		Registry:    reg,
		Sessions:    controller,
		logger:      logger,
	}
}

// Start runs the hub and the session executor. The executor stops when ctx
// is cancelled or when Close has drained it.
func (a *App) Start(ctx context.Context) {
	ctx, a.stop = context.WithCancel(ctx)
	go a.Hub.Run()
	go a.Sessions.Run(ctx)
}

// Router builds the HTTP handler for the whole server
func (a *App) Router(staticDir string) http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:      a.logger,
		WebSocket:   a.WebSocket,
		Connections: a.Hub,
		Registry:    a.Registry,
		Metrics:     a.Metrics.Handler(),
		StaticDir:   staticDir,
	})
}

// Close shuts the application down in dependency order: it disconnects
// every client, waits for their disconnect commands to be queued and run,
// stops the executor, then releases the records this process owns and the
// storage backend. Calling Close again returns the first result.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.closeErr = a.close(ctx)
	})
	return a.closeErr
}

func (a *App) close(ctx context.Context) error {
	var errs []error

	a.Hub.Close()
	if err := a.WebSocket.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain connections: %w", err))
	}
	if a.stop != nil {
		if err := a.Sessions.Drain(ctx); err != nil && !errors.Is(err, model.ErrExecutorStopped) {
			errs = append(errs, fmt.Errorf("drain executor: %w", err))
		}
		a.stop()
	}

	if err := a.Registry.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if closer, ok := a.Storage.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
