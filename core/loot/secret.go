package loot

import (
	"crypto/rand"
	"fmt"
)

// secretSize is 256 bits, sized generously for the server-private
// secret backing the secure path.
const secretSize = 32

// Secret is the server-private seed for the secure loot path. Its zero
// value is never used in production; NewSecret generates one from a CSPRNG.
// Secret intentionally implements fmt.Stringer and fmt.GoStringer so that
// accidental logging or %v formatting never exposes the key material.
type Secret struct {
	bytes [secretSize]byte
}

// NewSecret generates a fresh random secret.
func NewSecret() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s.bytes[:]); err != nil {
		return Secret{}, fmt.Errorf("loot: generating secret: %w", err)
	}
	return s, nil
}

// Rotate replaces the secret's bytes with freshly generated randomness,
// used by periodic secret rotation.
func (s *Secret) Rotate() error {
	fresh, err := NewSecret()
	if err != nil {
		return err
	}
	*s = fresh
	return nil
}

// String never reveals the secret's material.
func (s Secret) String() string { return "loot.Secret(REDACTED)" }

// GoString never reveals the secret's material; it governs %#v formatting.
func (s Secret) GoString() string { return "loot.Secret(REDACTED)" }
