package security

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher produces salted one-way digests of verification codes and compares
// candidates in constant time. Callers must not log or persist the plaintext
// code.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 12 is a
// reasonable default for interactive verification.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of value. The salt is generated per call, so
// hashing the same value twice yields different digests. Returns the hash as
// a string suitable for storage.
func (h *Hasher) Hash(value []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(value, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies value against the stored hash. Returns nil if they match;
// returns an error (including bcrypt.ErrMismatchedHashAndPassword) if they do
// not or on invalid hash.
func (h *Hasher) Compare(hash string, value []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), value)
}
