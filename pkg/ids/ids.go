// Package ids generates the two identifier flavors the kernel needs:
// time-sortable event ids, and opaque correlation ids for idempotency
// and audit cross-referencing.
//
// Weak RNGs (linear congruential, Mersenne Twister) are forbidden here
// because procurement predictability is an attack; both id flavors are
// backed by crypto/rand.
package ids

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// crockfordAlphabet is the Crockford base32 alphabet (excludes I, L, O, U
// to avoid visual ambiguity), matching the layout used by ULID-style
// identifiers.
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordEncoding = base32.NewEncoding(crockfordAlphabet).WithPadding(base32.NoPadding)

// EventID is a 128-bit time-sortable identifier: 48 high-order bits encode
// a millisecond Unix timestamp, and the remaining 80 bits are crypto/rand
// entropy that disambiguates ids minted within the same millisecond.
//
// Because both the timestamp and the entropy are stored big-endian and
// the Crockford alphabet is monotonic in symbol value, lexicographic
// ordering of the base32 text form matches numeric ordering of the
// underlying bytes: ids sort the same way as strings or as byte slices.
type EventID [16]byte

// NewEventID mints an EventID for instant t.
func NewEventID(t time.Time) (EventID, error) {
	var id EventID
	ms := t.UnixMilli()
	if ms < 0 {
		ms = 0
	}
	ums := uint64(ms)
	id[0] = byte(ums >> 40)
	id[1] = byte(ums >> 32)
	id[2] = byte(ums >> 24)
	id[3] = byte(ums >> 16)
	id[4] = byte(ums >> 8)
	id[5] = byte(ums)

	if _, err := rand.Read(id[6:]); err != nil {
		return EventID{}, fmt.Errorf("ids: mint event id: %w", err)
	}
	return id, nil
}

// String renders the id as Crockford base32 text (26 characters for 16
// bytes at 5 bits/char with no padding).
func (id EventID) String() string {
	return crockfordEncoding.EncodeToString(id[:])
}

// ParseEventID decodes the base32 text form produced by String back into
// an EventID.
func ParseEventID(s string) (EventID, error) {
	decoded, err := crockfordEncoding.DecodeString(s)
	if err != nil {
		return EventID{}, fmt.Errorf("ids: parse event id %q: %w", s, err)
	}
	if len(decoded) != 16 {
		return EventID{}, fmt.Errorf("ids: parse event id %q: decoded to %d bytes, want 16", s, len(decoded))
	}
	var id EventID
	copy(id[:], decoded)
	return id, nil
}

// Less reports whether id sorts before other.
func (id EventID) Less(other EventID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// NewCorrelationID mints an opaque, cryptographically random correlation
// id suitable for command ids and log cross-referencing.
func NewCorrelationID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("ids: mint correlation id: %w", err)
	}
	return u.String(), nil
}
