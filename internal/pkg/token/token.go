package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// NewSessionToken generates a cryptographically random 64-character hex token.
func NewSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewCode returns a uniformly random 6-digit passcode in 100000..999999.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
