package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// federatedHash marks accounts whose password lives with the identity provider.
// It never matches any password.
const federatedHash = "!federated"

func hashPassword(password string, cost int) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// legacyHash is the unsalted SHA-256 hex digest older account exports carry.
func legacyHash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func isLegacyHash(h string) bool {
	if len(h) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}

// verifyPassword compares a password with a stored hash. upgrade is true when
// the stored hash matched but is in the legacy format.
func verifyPassword(stored, password string) (ok, upgrade bool) {
	switch {
	case strings.HasPrefix(stored, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil, false
	case isLegacyHash(stored):
		match := subtle.ConstantTimeCompare([]byte(strings.ToLower(stored)), []byte(legacyHash(password))) == 1
		return match, match
	default:
		return false, false
	}
}
