// Copyright 2015 The go-ethereum Authors
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

import (
	"encoding/hex"
)

const (
	// HashLength is the expected length of the chain-agnostic tx/block hash.
	HashLength = 32
	// AddressLength is the expected length of an account address.
	AddressLength = 20
)

// Hash represents a 32-byte identifier, used for both block hashes and
// transaction hashes.
type Hash [HashLength]byte

// BytesToHash sets the last len(b) bytes of a Hash to b. If b is larger than
// 32 bytes, it is truncated from the left.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// SetBytes sets the hash to the value of b, right-aligned and truncated if
// necessary.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// Bytes returns the raw bytes of h.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns a "0x"-prefixed hex string representation of h.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// Address represents a 20-byte chain account address.
type Address [AddressLength]byte

// BytesToAddress sets the last len(b) bytes of an Address to b. If b is
// larger than 20 bytes, it is truncated from the left.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// SetBytes sets the address to the value of b, right-aligned and truncated
// if necessary.
func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// Bytes returns the raw bytes of a.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns a "0x"-prefixed hex string representation of a.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// HexToAddress returns Address with byte values of s.
// If s is larger than len(h), s will be cropped from the left.
func HexToAddress(s string) Address {
	return BytesToAddress(FromHex(s))
}

// IsHexAddress verifies whether a string can represent a valid hex-encoded
// Ethereum-style address or not.
func IsHexAddress(s string) bool {
	if has0xPrefix(s) {
		s = s[2:]
	}
	return len(s) == 2*AddressLength && isHex(s)
}
