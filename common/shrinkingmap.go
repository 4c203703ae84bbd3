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

package common

// ShrinkingMap wraps a regular Go map and periodically rebuilds it after a
// configurable number of deletions, so that long-running maps with heavy
// churn don't retain the larger bucket-array footprint left behind by
// repeated deletes.
//
// A shrinkThreshold of 0 disables shrinking entirely: deleted keys are
// simply removed from the map and no rebuild ever happens.
type ShrinkingMap[K comparable, V any] struct {
	m map[K]V

	shrinkThreshold int
	deletedKeys     int
}

// NewShrinkingMap creates a new ShrinkingMap. The map is rebuilt once the
// number of deleted-but-not-yet-reclaimed keys reaches shrinkThreshold. Pass
// 0 to disable shrinking.
func NewShrinkingMap[K comparable, V any](shrinkThreshold int) *ShrinkingMap[K, V] {
	return &ShrinkingMap[K, V]{
		m:               make(map[K]V),
		shrinkThreshold: shrinkThreshold,
	}
}

// Set inserts or updates the value for key.
func (s *ShrinkingMap[K, V]) Set(key K, value V) {
	s.m[key] = value
}

// Get returns the value for key, and whether it was present.
func (s *ShrinkingMap[K, V]) Get(key K) (V, bool) {
	v, exists := s.m[key]
	return v, exists
}

// Has reports whether key is present in the map.
func (s *ShrinkingMap[K, V]) Has(key K) bool {
	_, exists := s.m[key]
	return exists
}

// Delete removes key from the map. If shrinking is enabled and enough keys
// have been deleted since the last rebuild, the underlying map is rebuilt.
func (s *ShrinkingMap[K, V]) Delete(key K) bool {
	if _, exists := s.m[key]; !exists {
		return false
	}
	delete(s.m, key)

	s.deletedKeys++
	if s.shrinkThreshold > 0 && s.deletedKeys >= s.shrinkThreshold {
		s.shrink()
	}
	return true
}

// Size returns the number of keys currently stored in the map.
func (s *ShrinkingMap[K, V]) Size() int {
	return len(s.m)
}

// Keys returns a snapshot of the keys currently stored in the map.
func (s *ShrinkingMap[K, V]) Keys() []K {
	keys := make([]K, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	return keys
}

// ForEach calls f for each key/value pair. Iteration stops early if f
// returns false.
func (s *ShrinkingMap[K, V]) ForEach(f func(K, V) bool) {
	for k, v := range s.m {
		if !f(k, v) {
			return
		}
	}
}

func (s *ShrinkingMap[K, V]) shrink() {
	shrunk := make(map[K]V, len(s.m))
	for k, v := range s.m {
		shrunk[k] = v
	}
	s.m = shrunk
	s.deletedKeys = 0
}
