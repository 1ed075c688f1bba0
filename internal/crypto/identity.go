package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

var ErrIdentitySaltNotSet = errors.New("identity salt not set")

// identityHashLen is the number of hex characters kept (64 bits).
const identityHashLen = 16

// IdentityHasher turns raw reporter identifiers (network origin, phone) into a
// stable one-way hash. The raw value is never returned or stored.
type IdentityHasher struct {
	key [32]byte
}

// NewIdentityHasher derives the MAC key from salt.
func NewIdentityHasher(salt string) (*IdentityHasher, error) {
	if strings.TrimSpace(salt) == "" {
		return nil, ErrIdentitySaltNotSet
	}
	return &IdentityHasher{key: blake2b.Sum256([]byte(salt))}, nil
}

// Hash returns the truncated keyed hash of raw, or "" when raw is blank.
func (h *IdentityHasher) Hash(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	mac, err := blake2b.New256(h.key[:])
	if err != nil {
		// Only possible for keys longer than 64 bytes.
		panic(fmt.Sprintf("blake2b: %v", err))
	}
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))[:identityHashLen]
}
