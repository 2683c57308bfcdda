// Package shortcode derives compact base62 codes for short links.
//
// The first attempt for a given seed is a pure digest, so the same URL always
// maps to the same code across processes. Retry attempts mix in the attempt
// number and the current wall clock so a collision never reproduces itself.
package shortcode

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Alphabet is the base62 digit set used for codes, in big.Int.Text order.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultLength is the code length used by Generate.
const DefaultLength = 8

// Generate returns a DefaultLength code for the seed. See GenerateN.
func Generate(seed string, attempt int) string {
	return GenerateN(seed, attempt, DefaultLength)
}

// GenerateN digests the seed into a base62 code of the given length.
//
// attempt 0 is deterministic: identical (seed, 0) pairs produce identical
// codes in any process. attempt > 0 salts the digest with the attempt number
// and the current time in nanoseconds, so each retry yields a fresh candidate.
func GenerateN(seed string, attempt, length int) string {
	if length <= 0 {
		length = DefaultLength
	}

	payload := seed
	if attempt > 0 {
		payload = fmt.Sprintf("%s#%d@%d", seed, attempt, time.Now().UnixNano())
	}

	sum := sha256.Sum256([]byte(payload))

	// 256 bits re-encoded as base62 gives ~43 digits, far more than any
	// sane code length, so truncation never needs padding in practice.
	var n big.Int
	n.SetBytes(sum[:])
	encoded := n.Text(62)

	if len(encoded) < length {
		encoded += strings.Repeat(string(Alphabet[0]), length-len(encoded))
	}
	return encoded[:length]
}
