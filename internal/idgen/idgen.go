// Package idgen mints the opaque, lexicographically sortable 128-bit
// time-ordered identifiers used for MemoryId and MemoryVersionId.
//
// No example in the retrieval pack pulls in a dedicated ID-generation
// library (ulid/ksuid/xid); the teacher's own idgen package hand-rolls a
// base36 encoder over a content hash instead of reaching for one. This
// package follows that same hand-rolled approach, swapping content-hashing
// for a ULID-shaped timestamp+entropy split (since these ids are opaque
// identity, not content fingerprints) and base36 for Crockford base32 to
// match spec §6's "26-character base-32 time-sortable id".
package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// crockfordAlphabet is Crockford's base32 alphabet: no I, L, O, U, to avoid
// confusion with 1, 1, 0, and V/W.
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// timeChars and entropyChars together give the fixed length of a minted id:
// 10 chars for the 48-bit millisecond timestamp, 16 chars for 80 bits of
// entropy.
const (
	timeChars    = 10
	entropyChars = 16
)

// New mints a fresh, time-ordered 26-character identifier for the given
// instant. Two ids minted in the same millisecond sort by their random
// entropy tail, not by creation order — callers that need strict ordering
// within a millisecond should rely on the tie-breaker fields in the
// precedence tuple, not on id order alone.
func New(at time.Time) string {
	ms := uint64(at.UnixMilli())
	if at.Unix() < 0 {
		ms = 0
	}

	entropy := randomEntropy()
	return encodeTime(ms) + encodeEntropy(entropy)
}

// NewAt is an alias of New kept for call sites that read more naturally
// with an explicit "at" argument; both mint from the same clock value.
func NewAt(at time.Time) string { return New(at) }

func randomEntropy() [10]byte {
	var buf [10]byte
	// crypto/rand.Read never returns a short read without an error, and a
	// failure here means the platform RNG is broken; fall back to a
	// UUID-derived source rather than minting a degenerate all-zero id.
	if _, err := rand.Read(buf[:]); err != nil {
		u := uuid.New()
		copy(buf[:], u[6:])
	}
	return buf
}

// encodeTime renders the low 48 bits of ms as 10 Crockford base32 characters.
func encodeTime(ms uint64) string {
	const mask = uint64(1)<<48 - 1
	value := ms & mask
	var out [timeChars]byte
	for i := timeChars - 1; i >= 0; i-- {
		out[i] = crockfordAlphabet[value&0x1F]
		value >>= 5
	}
	return string(out[:])
}

// encodeEntropy renders 80 bits (10 bytes) of entropy as 16 Crockford
// base32 characters, 5 bits per character.
func encodeEntropy(entropy [10]byte) string {
	var bits uint64Pair
	bits.hi = uint64(entropy[0])<<32 | uint64(entropy[1])<<24 | uint64(entropy[2])<<16 | uint64(entropy[3])<<8 | uint64(entropy[4])
	bits.lo = uint64(entropy[5])<<32 | uint64(entropy[6])<<24 | uint64(entropy[7])<<16 | uint64(entropy[8])<<8 | uint64(entropy[9])

	var out [entropyChars]byte
	// 80 bits split across two 40-bit halves, 8 base32 characters each.
	encodeHalf(bits.hi, out[0:8])
	encodeHalf(bits.lo, out[8:16])
	return string(out[:])
}

type uint64Pair struct{ hi, lo uint64 }

func encodeHalf(value uint64, dst []byte) {
	const mask = uint64(1)<<40 - 1
	v := value & mask
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = crockfordAlphabet[v&0x1F]
		v >>= 5
	}
}

// Validate reports whether id is a well-formed 26-character Crockford
// base32 identifier of the shape minted by New.
func Validate(id string) error {
	if len(id) != timeChars+entropyChars {
		return fmt.Errorf("invalid ULID: expected %d characters, got %d", timeChars+entropyChars, len(id))
	}
	upper := strings.ToUpper(id)
	for _, ch := range upper {
		if !strings.ContainsRune(crockfordAlphabet, ch) {
			return fmt.Errorf("invalid ULID: character %q is not valid Crockford base32", ch)
		}
	}
	return nil
}
