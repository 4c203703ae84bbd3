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

// Package backoff implements retry delay strategies used by the forward and
// backfill workers when a node-DB read fails transiently.
package backoff

import (
	"math/rand"
	"time"
)

// Exponential produces a sequence of durations that double on every call to
// NextDuration, up to a configured maximum, with optional random jitter
// added on top.
type Exponential struct {
	min    time.Duration
	max    time.Duration
	jitter time.Duration

	attempt int
}

// NewExponential returns an Exponential backoff that starts at min, doubles
// on every attempt, never exceeds max, and adds a uniformly random amount in
// [0, jitter) to every returned duration. If min > max, every call returns
// max.
func NewExponential(min, max, jitter time.Duration) *Exponential {
	return &Exponential{min: min, max: max, jitter: jitter}
}

// NextDuration returns the delay for the next retry attempt and advances the
// internal attempt counter.
func (e *Exponential) NextDuration() time.Duration {
	if e.min > e.max {
		return e.max
	}
	d := e.min << e.attempt
	if d <= 0 || d > e.max {
		d = e.max
	}
	e.attempt++

	if e.jitter > 0 {
		d += time.Duration(rand.Int63n(int64(e.jitter)))
	}
	return d
}

// Reset zeroes the attempt counter so the next call to NextDuration returns
// min again.
func (e *Exponential) Reset() {
	e.attempt = 0
}
