// internal/kcs/options.go
package kcs

import (
	"log/slog"

	"github.com/tamzrod/dsp-mailbox/internal/mailbox"
)

// Config holds the transfer configuration.
type Config struct {
	// ChunkSize is the payload of one SetKcsSetup message, at most mailbox.MaxChunk.
	ChunkSize int

	// Attempts is the number of SetKcsSetup attempts per chunk.
	Attempts int

	// ProgressCallback is called after every verified chunk (optional).
	ProgressCallback ProgressCallback

	// Logger is used for transfer diagnostics (optional).
	Logger *slog.Logger
}

func defaultConfig() Config {
	return Config{
		ChunkSize: mailbox.MaxChunk,
		Attempts:  mailbox.ChunkAttempts,
	}
}

// Option is a functional option for configuring a Transfer.
type Option func(*Config)

// WithChunkSize sets the chunk payload size. Values outside 1..96 are ignored.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= mailbox.MaxChunk {
			c.ChunkSize = size
		}
	}
}

// WithAttempts sets the per-chunk attempt budget. Values below 1 are ignored.
func WithAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Attempts = n
		}
	}
}

// WithProgressCallback sets a callback to track transfer progress.
//
// Example:
//
//	tr, _ := kcs.New(sess, kcs.WithProgressCallback(func(p kcs.Progress) {
//	    fmt.Printf("%.1f%% (%d/%d bytes)\n", p.Percentage, p.Done, p.Total)
//	}))
func WithProgressCallback(cb ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = cb
	}
}

// WithLogger sets the transfer logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}
