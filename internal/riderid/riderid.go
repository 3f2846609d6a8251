// Package riderid generates the 8-digit external rider identifiers.
//
// Identifiers are uniform random digit strings. Generation is only a
// candidate step: the sqlite repository inserts under UNIQUE constraints on
// profiles.rider_id and rider_info.rider_id and retries with a fresh
// candidate on conflict, so the store is the final authority on uniqueness.
package riderid

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Length is the fixed width of a rider identifier.
const Length = 8

// New returns a random 8-digit identifier, zero-padded ("00417293" is
// valid). crypto/rand keeps identifiers unguessable; with 10^8 values the
// collision retry in the repository fires rarely.
func New() string {
	max := big.NewInt(100000000) // 10^8
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// rand.Reader only fails if the OS entropy source is broken;
		// nothing sensible to do but stop.
		panic(fmt.Sprintf("riderid: reading random source: %v", err))
	}
	return fmt.Sprintf("%08d", n.Int64())
}

// Valid reports whether s is a well-formed rider identifier: exactly 8
// ASCII digits.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
