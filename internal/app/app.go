package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/thenoetrevino/tablero/internal/config"
	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/events/redisbus"
	boardservice "github.com/thenoetrevino/tablero/internal/services/board"
	cardservice "github.com/thenoetrevino/tablero/internal/services/card"
	columnservice "github.com/thenoetrevino/tablero/internal/services/column"
)

// App holds all application services and provides dependency injection.
// This is the main application container that manages service lifecycles.
type App struct {
	store *database.Store

	// Event channel for live updates. Nil when no channel is reachable.
	publisher events.Publisher
	bus       events.Bus

	closers []io.Closer

	BoardService  boardservice.Service
	ColumnService columnservice.Service
	CardService   cardservice.Service
}

// New creates a new App over an open store. The publisher may be nil.
func New(store *database.Store, publisher events.Publisher, opts ...Option) *App {
	cfg := appConfig{publisher: publisher}
	for _, opt := range opts {
		opt(&cfg)
	}
	return build(store, cfg)
}

func build(store *database.Store, cfg appConfig) *App {
	if cfg.clock == nil {
		cfg.clock = clockwork.NewRealClock()
	}

	a := &App{store: store, publisher: cfg.publisher}
	if bus, ok := cfg.publisher.(events.Bus); ok {
		a.bus = bus
	}

	a.BoardService = boardservice.NewService(store, cfg.clock)
	a.ColumnService = columnservice.NewService(store, cfg.publisher, columnservice.WithClock(cfg.clock))
	a.CardService = cardservice.NewService(store, cfg.publisher, cardservice.WithClock(cfg.clock))
	return a
}

// Open connects the store and event channel named by conf and builds the
// services over them.
func Open(ctx context.Context, conf *config.Config, opts ...Option) (*App, error) {
	var cfg appConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	store, err := database.Open(ctx, database.Config{
		Driver: database.Dialect(conf.Store.Driver),
		DSN:    conf.Store.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	var closers []io.Closer
	if cfg.publisher == nil {
		publisher, closer, err := openBus(ctx, conf.Events)
		switch {
		case err == nil:
			cfg.publisher = publisher
			closers = append(closers, closer)
		case cfg.requireBus:
			_ = store.Close()
			return nil, err
		default:
			// Graceful degradation: mutations still commit, nobody hears about them
			cfg.logger.Warn("event channel unavailable, continuing without live updates",
				"bus", conf.Events.Bus, "error", err)
		}
	}

	a := build(store, cfg)
	a.closers = closers
	return a, nil
}

// openBus connects the configured channel backend
func openBus(ctx context.Context, conf config.EventsConfig) (events.Bus, io.Closer, error) {
	switch conf.Bus {
	case config.BusHub:
		hub := events.NewHub(events.DefaultQueueSize)
		return hub, hub, nil

	case config.BusDaemon:
		client := events.NewClient(conf.Socket)
		if err := client.Connect(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("daemon at %s: %w (%s)", conf.Socket, err, events.ClassifyDaemonError(err).Hint)
		}
		return client, client, nil

	case config.BusRedis:
		rdb := redis.NewClient(&redis.Options{Addr: conf.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis at %s: %w", conf.RedisAddr, err)
		}
		return redisbus.New(rdb, redisbus.WithPrefix(conf.RedisPrefix)), rdb, nil
	}
	return nil, nil, fmt.Errorf("unknown event bus %q", conf.Bus)
}

// Store returns the underlying ordering store
func (a *App) Store() *database.Store {
	return a.store
}

// Events returns the event channel, or nil when running without one
func (a *App) Events() events.Bus {
	return a.bus
}

// Close releases the event channel and the store
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
