package access

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured
const DefaultBcryptCost = 12

// Hasher is a one-way password hasher with a configurable work factor.
// Hashing is salted internally and therefore non-deterministic; two digests
// of the same plaintext never compare equal byte for byte.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt cost. Costs outside the
// range bcrypt accepts fall back to DefaultBcryptCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &Hasher{cost: cost}
}

// HashPassword will generate a password digest
func (h *Hasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	return string(digest), err
}

// ComparePasswordAndHash will validate the given cleartext password against
// the stored digest. The comparison runs the full bcrypt verification
// regardless of where the mismatch occurs, so it leaks no timing signal
// distinguishing digest shapes.
func (h *Hasher) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash returns a digest of a throwaway password, useful for
// placeholder accounts.
func (h *Hasher) RandomPasswordHash() string {
	pwd := uuid.New()

	digest, err := h.HashPassword(pwd.String())
	if err != nil {
		return h.RandomPasswordHash()
	}

	return digest
}
