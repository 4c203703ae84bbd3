// Copyright 2025 the libevm authors.
//
// The libevm additions to go-ethereum are free software: you can redistribute
// them and/or modify them under the terms of the GNU Lesser General Public License
// as published by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// The libevm additions are distributed in the hope that they will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU Lesser
// General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see
// <http://www.gnu.org/licenses/>.

package log

import (
	"fmt"
	"log/slog"
)

// TypeOf returns a slog.LogValuer reporting the Go type of v, e.g. "int" or
// "*log.foo". It is useful as a log attribute value when only the shape of a
// value matters, not its contents.
func TypeOf(v any) slog.LogValuer {
	return typeOfValue{v}
}

type typeOfValue struct {
	v any
}

func (t typeOfValue) LogValue() slog.Value {
	return slog.StringValue(fmt.Sprintf("%T", t.v))
}

// Lazy defers evaluation of fn until the value is actually logged, avoiding
// the cost of computing attributes for log lines that get filtered out
// before formatting.
func Lazy(fn func() slog.Value) slog.LogValuer {
	return lazyValue{fn}
}

type lazyValue struct {
	fn func() slog.Value
}

func (l lazyValue) LogValue() slog.Value {
	return l.fn()
}
