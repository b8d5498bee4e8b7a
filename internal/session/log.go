// internal/session/log.go
package session

import (
	"context"
	"log/slog"
)

// LevelTrace is below Debug and carries per-fragment traffic.
const LevelTrace = slog.LevelDebug - 1

func (s *Session) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if s.log == nil {
		return
	}
	s.log.LogAttrs(context.Background(), level, msg, attrs...)
}

func (s *Session) warn(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelWarn, msg, attrs...)
}

func (s *Session) debug(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelDebug, msg, attrs...)
}

func (s *Session) trace(msg string, attrs ...slog.Attr) {
	if !s.traceEnabled {
		return
	}
	s.logattrs(LevelTrace, msg, attrs...)
}
