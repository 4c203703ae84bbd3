// Copyright 2023 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package log

import (
	"context"
	"log/slog"
	"math"
	"os"
	"runtime"
	"time"
)

const errorKey = "LOG_ERROR"

const (
	legacyLevelCrit = iota
	legacyLevelError
	legacyLevelWarn
	legacyLevelInfo
	legacyLevelDebug
	legacyLevelTrace
)

const (
	levelMaxVerbosity slog.Level = math.MinInt
	LevelCrit         slog.Level = 12
	LevelError        slog.Level = slog.LevelError // 8
	LevelWarn         slog.Level = slog.LevelWarn  // 4
	LevelInfo         slog.Level = slog.LevelInfo  // 0
	LevelDebug        slog.Level = slog.LevelDebug // -4
	LevelTrace        slog.Level = -8
)

// FromLegacyLevel converts from old Geth verbosity level constants (0 = crit,
// 5 = trace) to the equivalent slog.Level value used by the modern logger.
func FromLegacyLevel(lvl int) slog.Level {
	switch lvl {
	case legacyLevelCrit:
		return LevelCrit
	case legacyLevelError:
		return LevelError
	case legacyLevelWarn:
		return LevelWarn
	case legacyLevelInfo:
		return LevelInfo
	case legacyLevelDebug:
		return LevelDebug
	case legacyLevelTrace:
		return LevelTrace
	default:
		return LevelDebug
	}
}

// LevelAlignedString returns a fixed-width string representation of lvl,
// suitable for terminal output.
func LevelAlignedString(l slog.Level) string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO "
	case LevelWarn:
		return "WARN "
	case LevelError:
		return "ERROR"
	case LevelCrit:
		return "CRIT "
	default:
		return "unknown level"
	}
}

// LevelString returns a string representation of lvl.
func LevelString(l slog.Level) string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelCrit:
		return "crit"
	default:
		return "unknown"
	}
}

// Logger writes key/value pairs to a handler in the same spirit as log/slog,
// plus the convenience level methods Trace/Debug/Info/Warn/Error/Crit that the
// rest of this module uses instead of reaching for slog directly.
type Logger interface {
	// With returns a new Logger that has this logger's attributes plus the given ones.
	With(ctx ...any) Logger
	// New is an alias for With that returns a new Logger with the given context.
	New(ctx ...any) Logger

	// Log logs a message at the specified level with context key/value pairs.
	Log(level slog.Level, msg string, ctx ...any)

	// Trace logs a message at the trace level with context key/value pairs.
	Trace(msg string, ctx ...any)
	// Debug logs a message at the debug level with context key/value pairs.
	Debug(msg string, ctx ...any)
	// Info logs a message at the info level with context key/value pairs.
	Info(msg string, ctx ...any)
	// Warn logs a message at the warn level with context key/value pairs.
	Warn(msg string, ctx ...any)
	// Error logs a message at the error level with context key/value pairs.
	Error(msg string, ctx ...any)
	// Crit logs a message at the crit level with context key/value pairs, then exits.
	Crit(msg string, ctx ...any)

	// Write logs a message at the specified level, skipping two call frames,
	// to locate the caller.
	Write(level slog.Level, msg string, attrs ...any)

	// Enabled reports whether l is enabled to emit log records at the given context and level.
	Enabled(ctx context.Context, level slog.Level) bool

	// Handler returns the slog.Handler wrapped by this logger.
	Handler() slog.Handler
}

type logger struct {
	inner *slog.Logger
}

// NewLogger returns a logger with the specified handler set.
func NewLogger(h slog.Handler) Logger {
	return &logger{slog.New(h)}
}

func (l *logger) Handler() slog.Handler {
	return l.inner.Handler()
}

func (l *logger) Write(level slog.Level, msg string, attrs ...any) {
	if !l.inner.Enabled(context.Background(), level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	if len(attrs)%2 != 0 {
		attrs = append(attrs, nil, errorKey, "Normalized odd number of arguments by adding nil")
	}
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(attrs...)
	l.inner.Handler().Handle(context.Background(), r)
}

func (l *logger) Log(level slog.Level, msg string, ctx ...any) {
	l.Write(level, msg, ctx...)
}

func (l *logger) With(ctx ...any) Logger {
	return &logger{l.inner.With(ctx...)}
}

func (l *logger) New(ctx ...any) Logger {
	return l.With(ctx...)
}

func (l *logger) Trace(msg string, ctx ...any) {
	l.Write(LevelTrace, msg, ctx...)
}

func (l *logger) Debug(msg string, ctx ...any) {
	l.Write(LevelDebug, msg, ctx...)
}

func (l *logger) Info(msg string, ctx ...any) {
	l.Write(LevelInfo, msg, ctx...)
}

func (l *logger) Warn(msg string, ctx ...any) {
	l.Write(LevelWarn, msg, ctx...)
}

func (l *logger) Error(msg string, ctx ...any) {
	l.Write(LevelError, msg, ctx...)
}

func (l *logger) Crit(msg string, ctx ...any) {
	l.Write(LevelCrit, msg, ctx...)
	os.Exit(1)
}

func (l *logger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.inner.Enabled(ctx, level)
}
