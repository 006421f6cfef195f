// Package identity models the 32-byte public-key identities that address
// depositors, recipients, the program itself and record slots.
package identity

import (
	"bytes"
	"crypto/sha256"

	"github.com/mr-tron/base58"

	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
)

// Size is the byte length of an identity.
const Size = 32

// Identity is a 32-byte public key rendered as base58 text.
type Identity [Size]byte

// Zero is the all-zero identity.
var Zero Identity

var (
	// ErrInvalidIdentity indicates text that does not decode to exactly 32 bytes.
	ErrInvalidIdentity = ferrors.ValidationError("invalid identity").Build()
)

// Parse decodes a base58 identity string.
func Parse(s string) (Identity, error) {
	var id Identity
	if s == "" {
		return id, ErrInvalidIdentity.WithContext("reason", "empty")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return id, ErrInvalidIdentity.WithCause(err).WithContext("value", s)
	}
	if len(raw) != Size {
		return id, ErrInvalidIdentity.WithContext("value", s).WithContext("length", len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(s string) Identity {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// FromBytes copies a 32-byte slice into an Identity.
func FromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != Size {
		return id, ErrInvalidIdentity.WithContext("length", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String returns the base58 form.
func (id Identity) String() string {
	return base58.Encode(id[:])
}

// Bytes returns a copy of the raw key bytes.
func (id Identity) Bytes() []byte {
	return bytes.Clone(id[:])
}

// IsZero reports whether id is the all-zero identity.
func (id Identity) IsZero() bool {
	return id == Zero
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

const slotMarker = "TaskEscrowSlot"

// DeriveSlot deterministically derives a slot identity from seed material
// scoped to a program. The same seeds and program always yield the same slot.
func DeriveSlot(program Identity, seeds ...[]byte) Identity {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte(slotMarker))
	var id Identity
	copy(id[:], h.Sum(nil))
	return id
}
