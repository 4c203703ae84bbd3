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
	"os"
	"sync/atomic"
)

var root atomic.Value

func init() {
	root.Store(&logger{slog.New(DiscardHandler())})
}

// SetDefault sets the default global logger. This is expected to be called
// early in program startup, once the logging configuration (verbosity,
// output format, destination) is known.
func SetDefault(l Logger) {
	root.Store(l)
	if lg, ok := l.(*logger); ok {
		slog.SetDefault(lg.inner)
	}
}

// Root returns the currently configured default logger.
func Root() Logger {
	return root.Load().(Logger)
}

// New creates a new logger with the given context, derived from the root logger.
func New(ctx ...any) Logger {
	return Root().With(ctx...)
}

// NewWithHandler creates a logger that directs its output to a specific handler.
func NewWithHandler(h slog.Handler) Logger {
	return NewLogger(h)
}

// Trace logs a message at the trace level to the root logger.
func Trace(msg string, ctx ...any) {
	Root().Write(LevelTrace, msg, ctx...)
}

// Debug logs a message at the debug level to the root logger.
func Debug(msg string, ctx ...any) {
	Root().Write(LevelDebug, msg, ctx...)
}

// Info logs a message at the info level to the root logger.
func Info(msg string, ctx ...any) {
	Root().Write(LevelInfo, msg, ctx...)
}

// Warn logs a message at the warn level to the root logger.
func Warn(msg string, ctx ...any) {
	Root().Write(LevelWarn, msg, ctx...)
}

// Error logs a message at the error level to the root logger.
func Error(msg string, ctx ...any) {
	Root().Write(LevelError, msg, ctx...)
}

// Crit logs a message at the crit level to the root logger, then exits the process.
func Crit(msg string, ctx ...any) {
	Root().Write(LevelCrit, msg, ctx...)
	os.Exit(1)
}

// Enabled reports whether the root logger is enabled for the given level.
func Enabled(ctx context.Context, level slog.Level) bool {
	return Root().Enabled(ctx, level)
}
