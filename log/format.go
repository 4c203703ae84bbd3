// Copyright 2022 The go-ethereum Authors
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
	"math/big"
	"strconv"
)

const termTimeFormat = "01-02|15:04:05.000"

// FormatLogfmtInt64 formats n with thousand separators, the way the terminal
// handler renders large integer attribute values.
func FormatLogfmtInt64(n int64) string {
	if n < 0 {
		return "-" + FormatLogfmtUint64(uint64(-n))
	}
	return FormatLogfmtUint64(uint64(n))
}

// FormatLogfmtUint64 formats n with thousand separators.
func FormatLogfmtUint64(n uint64) string {
	if n < 100000 {
		return strconv.FormatUint(n, 10)
	}
	in := []byte(strconv.FormatUint(n, 10))
	out := make([]byte, len(in)+(len(in)-1)/3)
	r := len(in) % 3
	if r == 0 {
		r = 3
	}
	out = out[:r]
	copy(out, in)
	for i, j := r, r; i < len(in); i, j = i+3, j+4 {
		out = append(out, ',')
		out = append(out, in[i:i+3]...)
	}
	return string(out)
}

// formatLogfmtBigInt formats n with thousand separators.
func formatLogfmtBigInt(n *big.Int) string {
	if n == nil {
		return "<nil>"
	}
	neg := n.Sign() < 0
	var abs big.Int
	abs.Abs(n)
	in := []byte(abs.String())
	if len(in) <= 5 {
		if neg {
			return "-" + string(in)
		}
		return string(in)
	}
	out := make([]byte, 0, len(in)+(len(in)-1)/3+1)
	if neg {
		out = append(out, '-')
	}
	if r := len(in) % 3; r != 0 {
		out = append(out, in[:r]...)
		in = in[r:]
	}
	for len(in) > 0 {
		if len(out) > 0 && out[len(out)-1] != '-' {
			out = append(out, ',')
		}
		out = append(out, in[:3]...)
		in = in[3:]
	}
	return string(out)
}
