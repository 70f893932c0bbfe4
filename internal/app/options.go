package app

import (
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/thenoetrevino/tablero/internal/events"
)

// Option is a functional option for configuring App initialization
type Option func(*appConfig)

// appConfig holds the configuration for App initialization
type appConfig struct {
	publisher  events.Publisher
	logger     *slog.Logger
	clock      clockwork.Clock
	requireBus bool
}

// WithEventPublisher overrides the publisher chosen from configuration
func WithEventPublisher(p events.Publisher) Option {
	return func(cfg *appConfig) {
		cfg.publisher = p
	}
}

// WithLogger sets the logger for the application
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *appConfig) {
		cfg.logger = logger
	}
}

// WithClock sets the clock used for entity timestamps
func WithClock(clock clockwork.Clock) Option {
	return func(cfg *appConfig) {
		cfg.clock = clock
	}
}

// WithRequiredBus makes Open fail when the configured event channel is
// unreachable. Without it, one-shot commands continue without publishing.
func WithRequiredBus() Option {
	return func(cfg *appConfig) {
		cfg.requireBus = true
	}
}
