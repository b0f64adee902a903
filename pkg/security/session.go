package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const sessionHandleBytes = 32

// NewSessionHandle returns an opaque URL-safe identifier for guest sessions.
func NewSessionHandle() (string, error) {
	buf := make([]byte, sessionHandleBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session handle: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidSessionHandle reports whether raw looks like a handle minted by NewSessionHandle.
func ValidSessionHandle(raw string) bool {
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	return err == nil && len(decoded) == sessionHandleBytes
}
