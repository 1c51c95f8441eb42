package idgen

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

const charset = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateSecureID generates a cryptographically secure ID with the given prefix and length.
// Uses only lowercase alphanumerics, joined to the prefix with an underscore.
func GenerateSecureID(prefix string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid id length %d", length)
	}

	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := make([]byte, length)
	for i := range bytes {
		encoded[i] = charset[int(bytes[i])%len(charset)]
	}

	if prefix == "" {
		return string(encoded), nil
	}
	return fmt.Sprintf("%s_%s", prefix, string(encoded)), nil
}

// NewGuestID returns a fresh guest identity, e.g. guest_k3x9...
func NewGuestID() (string, error) {
	return GenerateSecureID("guest", 16)
}

// NewUUID returns a random UUID string used for conversations, messages and correlation ids.
func NewUUID() string {
	return uuid.NewString()
}
