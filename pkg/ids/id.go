package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ID identifies an asset or an account
type ID [32]byte

// Empty is the all-zero ID, used to reject unset asset references
var Empty = ID{}

// Generate creates a fresh random ID
func Generate() ID {
	var id ID
	rand.Read(id[:])
	return id
}

// GenerateTestID creates a random ID for testing
func GenerateTestID() ID {
	return Generate()
}

// IsZero reports whether the ID is the empty ID
func (id ID) IsZero() bool {
	return id == Empty
}

// String returns the hex representation of the ID
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the byte representation of the ID
func (id ID) Bytes() []byte {
	return id[:]
}

// FromString creates an ID from a hex string
func FromString(s string) (ID, error) {
	var id ID
	bytes, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(bytes) != 32 {
		return id, fmt.Errorf("invalid ID length: expected 32, got %d", len(bytes))
	}
	copy(id[:], bytes)
	return id, nil
}
