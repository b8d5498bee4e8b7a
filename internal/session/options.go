// internal/session/options.go
package session

import (
	"log/slog"
	"time"

	"github.com/tamzrod/dsp-mailbox/internal/mailbox"
)

// Config holds the session configuration.
type Config struct {
	// IdleRetries bounds both the idle wait and the reply preamble wait.
	IdleRetries int

	// IdleDelay is slept between two polling reads. Zero polls back to back.
	IdleDelay time.Duration

	// Logger receives exchange diagnostics (optional).
	// Fragment traces are emitted at LevelTrace.
	Logger *slog.Logger
}

func defaultConfig() Config {
	return Config{
		IdleRetries: mailbox.IdleRetries,
		IdleDelay:   500 * time.Microsecond,
	}
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithIdleRetries sets the polling budget. Values below 1 are ignored.
func WithIdleRetries(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.IdleRetries = n
		}
	}
}

// WithIdleDelay sets the delay between polling reads.
func WithIdleDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.IdleDelay = d
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}
