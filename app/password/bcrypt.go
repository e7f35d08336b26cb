package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = 10

type Hasher interface {
	Hash(plaintext string) (string, error)
	Compare(plaintext, hashed string) bool
}

type BcryptHasher struct {
	cost int
}

// NewBcryptHasher falls back to DefaultCost when cost is outside bcrypt's accepted range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("password must not be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare is constant-time with respect to the plaintext; any error (including a
// malformed hash) counts as a mismatch.
func (h *BcryptHasher) Compare(plaintext, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}
