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
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
)

// DiscardHandler returns a no-op handler that drops every record. It backs
// the package's default logger until SetDefault is called.
func DiscardHandler() slog.Handler {
	return slog.NewTextHandler(io.Discard, nil)
}

// ---------------------------------------------------------------------------
// Terminal handler
// ---------------------------------------------------------------------------

const termMsgJust = 40

var (
	colorReset  = []byte("\x1b[0m")
	levelColors = map[slog.Level][]byte{
		LevelCrit:  []byte("\x1b[35m"),
		LevelError: []byte("\x1b[31m"),
		LevelWarn:  []byte("\x1b[33m"),
		LevelInfo:  []byte("\x1b[32m"),
		LevelDebug: []byte("\x1b[36m"),
		LevelTrace: []byte("\x1b[34m"),
	}
)

// terminalHandler formats log records for a human on a terminal, with
// optional ANSI color and a fixed field-padding scheme for readability.
type terminalHandler struct {
	mu       sync.Mutex
	wr       io.Writer
	level    slog.Level
	attrs    []slog.Attr
	useColor bool
}

// NewTerminalHandler returns a handler that writes colorized (if useColor) log
// records to wr in a human-readable, unstructured format, at the maximum
// verbosity. Filtering is usually done by wrapping the result in a
// GlogHandler.
func NewTerminalHandler(wr io.Writer, useColor bool) slog.Handler {
	return NewTerminalHandlerWithLevel(wr, levelMaxVerbosity, useColor)
}

// NewTerminalHandlerWithLevel returns the same handler as NewTerminalHandler
// but only logs records at or above the given verbosity level.
func NewTerminalHandlerWithLevel(wr io.Writer, level slog.Level, useColor bool) slog.Handler {
	return &terminalHandler{
		wr:       wr,
		level:    level,
		useColor: useColor,
	}
}

func (h *terminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *terminalHandler) Handle(_ context.Context, r slog.Record) error {
	buf := new(strings.Builder)

	if h.useColor {
		if color, ok := levelColors[r.Level]; ok {
			buf.Write(color)
		}
	}
	buf.WriteString(LevelAlignedString(r.Level))
	if h.useColor {
		buf.Write(colorReset)
	}
	buf.WriteString(" [")
	writeTimeTermFormat(buf, r.Time)
	buf.WriteString("] ")
	buf.WriteString(r.Message)

	length := utf8RuneLen(r.Message)
	if length < termMsgJust {
		buf.WriteString(strings.Repeat(" ", termMsgJust-length))
	} else {
		buf.WriteString(" ")
	}

	for _, a := range h.attrs {
		writeTermAttr(buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeTermAttr(buf, a)
		return true
	})
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.wr, buf.String())
	return err
}

func (h *terminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)
	return &terminalHandler{
		wr:       h.wr,
		level:    h.level,
		useColor: h.useColor,
		attrs:    newAttrs,
	}
}

func (h *terminalHandler) WithGroup(name string) slog.Handler {
	return h
}

func writeTermAttr(buf *strings.Builder, a slog.Attr) {
	buf.WriteString(" ")
	buf.WriteString(a.Key)
	buf.WriteString("=")
	buf.WriteString(formatTermValue(a.Value))
}

func formatTermValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if needsQuoting(s) {
			return strconv.Quote(s)
		}
		return s
	case slog.KindInt64:
		return FormatLogfmtInt64(v.Int64())
	case slog.KindUint64:
		return FormatLogfmtUint64(v.Uint64())
	case slog.KindTime:
		return v.Time().Format("2006-01-02T15:04:05-0700")
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return strconv.Quote(x.Error())
		case *big.Int:
			return formatLogfmtBigInt(x)
		case *uint256.Int:
			if x == nil {
				return "<nil>"
			}
			return FormatLogfmtUint256(x)
		case fmt.Stringer:
			return quoteIfNeeded(x.String())
		default:
			return quoteIfNeeded(fmt.Sprintf("%+v", x))
		}
	default:
		return quoteIfNeeded(v.String())
	}
}

func quoteIfNeeded(s string) string {
	if needsQuoting(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r == ' ' || r == '=' || r == '"' || r < 0x20 {
			return true
		}
	}
	return false
}

func utf8RuneLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

func writeTimeTermFormat(buf interface{ WriteString(string) (int, error) }, t time.Time) {
	buf.WriteString(t.Format(termTimeFormat))
}

// FormatLogfmtUint256 formats n with thousand separators.
func FormatLogfmtUint256(n *uint256.Int) string {
	return formatLogfmtBigInt(n.ToBig())
}

// ---------------------------------------------------------------------------
// Logfmt and JSON handlers
// ---------------------------------------------------------------------------

// LogfmtHandler returns a handler that writes log records in logfmt format,
// suitable for machine parsing with minimal ceremony.
func LogfmtHandler(wr io.Writer) slog.Handler {
	return slog.NewTextHandler(wr, &slog.HandlerOptions{ReplaceAttr: logfmtReplaceAttr})
}

// JSONHandler returns a JSON log handler that emits every level, including
// debug.
func JSONHandler(wr io.Writer) slog.Handler {
	return JSONHandlerWithLevel(wr, levelMaxVerbosity)
}

// JSONHandlerWithLevel returns a JSON log handler that only emits records at
// or above level.
func JSONHandlerWithLevel(wr io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewJSONHandler(wr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logfmtReplaceAttr,
	})
}

func logfmtReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	switch v := a.Value.Any().(type) {
	case *big.Int:
		a.Value = slog.StringValue(formatLogfmtBigInt(v))
	case *uint256.Int:
		if v == nil {
			a.Value = slog.StringValue("<nil>")
		} else {
			a.Value = slog.StringValue(FormatLogfmtUint256(v))
		}
	}
	return a
}

// ---------------------------------------------------------------------------
// GlogHandler: verbosity + per-file vmodule filtering
// ---------------------------------------------------------------------------

type moduleRule struct {
	pattern *regexp.Regexp
	level   slog.Level
}

// GlogHandler wraps another handler and implements Google-style glog
// verbosity and per-file ("vmodule") log level overrides on top of it.
type GlogHandler struct {
	origin slog.Handler

	level    atomic.Int32 // slog.Level, global verbosity threshold
	override atomic.Bool  // true once Vmodule has been called at least once

	mu    sync.RWMutex
	rules []moduleRule
}

// NewGlogHandler returns a GlogHandler wrapping h.
func NewGlogHandler(h slog.Handler) *GlogHandler {
	g := &GlogHandler{origin: h}
	g.level.Store(int32(LevelCrit))
	return g
}

// Verbosity sets the global log verbosity level. Records below this level are
// suppressed unless a more specific vmodule rule applies.
func (g *GlogHandler) Verbosity(level slog.Level) {
	g.level.Store(int32(level))
}

// Vmodule sets a comma-separated list of file-pattern=level rules, e.g.
// "gopher.go=3,rpc*.go=5". A rule overrides the global verbosity for log
// records whose caller file matches the pattern. Patterns are matched
// against the base name of the caller's file only, so a pattern containing
// a '/' never matches.
func (g *GlogHandler) Vmodule(ruleset string) error {
	var rules []moduleRule
	for _, rule := range strings.Split(ruleset, ",") {
		if rule == "" {
			continue
		}
		parts := strings.Split(rule, "=")
		if len(parts) != 2 {
			return fmt.Errorf("invalid vmodule rule %q", rule)
		}
		level, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("invalid verbosity in vmodule rule %q: %v", rule, err)
		}
		pattern, err := compileModulePattern(parts[0])
		if err != nil {
			return fmt.Errorf("invalid pattern in vmodule rule %q: %v", rule, err)
		}
		rules = append(rules, moduleRule{pattern: pattern, level: FromLegacyLevel(level)})
	}

	g.mu.Lock()
	g.rules = rules
	g.mu.Unlock()
	g.override.Store(true)
	return nil
}

func compileModulePattern(p string) (*regexp.Regexp, error) {
	p = regexp.QuoteMeta(p)
	p = strings.ReplaceAll(p, `\*`, ".*")
	p = strings.ReplaceAll(p, `\?`, ".")
	return regexp.Compile("^" + p + "$")
}

func (g *GlogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= slog.Level(g.level.Load()) {
		return true
	}
	return g.override.Load()
}

func (g *GlogHandler) Handle(ctx context.Context, r slog.Record) error {
	if !g.allowed(r) {
		return nil
	}
	return g.origin.Handle(ctx, r)
}

func (g *GlogHandler) allowed(r slog.Record) bool {
	if r.Level >= slog.Level(g.level.Load()) {
		return true
	}
	if !g.override.Load() {
		return false
	}
	g.mu.RLock()
	rules := g.rules
	g.mu.RUnlock()
	if len(rules) == 0 {
		return false
	}
	file := callerFile(r.PC)
	for _, rule := range rules {
		if rule.pattern.MatchString(file) && r.Level >= rule.level {
			return true
		}
	}
	return false
}

func callerFile(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	frame, _ := frames.Next()
	return filepath.Base(frame.File)
}

func (g *GlogHandler) clone(origin slog.Handler) *GlogHandler {
	n := NewGlogHandler(origin)
	n.level.Store(g.level.Load())
	n.override.Store(g.override.Load())
	g.mu.RLock()
	n.rules = g.rules
	g.mu.RUnlock()
	return n
}

func (g *GlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return g.clone(g.origin.WithAttrs(attrs))
}

func (g *GlogHandler) WithGroup(name string) slog.Handler {
	return g.clone(g.origin.WithGroup(name))
}
