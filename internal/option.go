package internal

import (
	"io"
	"log/slog"

	"github.com/starford/keyhash/internal/clock"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	clock  clock.Clock
	logger *slog.Logger
	out    io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithClock replaces the wall clock used for artifact names.
func WithClock(c clock.Clock) Option {
	return func(a *application) {
		a.clock = c
	}
}

// WithLogger replaces the JSON stderr logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithOutput sets where command results are printed.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}
