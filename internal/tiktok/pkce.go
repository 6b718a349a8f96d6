package tiktok

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

const (
	verifierLength = 64
	stateLength    = 16

	// RFC 7636 unreserved characters.
	verifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
	stateCharset    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// AuthSession holds the PKCE material for a single authorization attempt.
// The challenge travels on the authorize URL, the verifier only on the
// token exchange.
type AuthSession struct {
	Verifier  string
	Challenge string
	State     string
}

func NewAuthSession() (*AuthSession, error) {
	verifier, err := randomString(verifierLength, verifierCharset)
	if err != nil {
		return nil, fmt.Errorf("generate code verifier: %w", err)
	}

	state, err := randomString(stateLength, stateCharset)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}

	return &AuthSession{
		Verifier:  verifier,
		Challenge: S256Challenge(verifier),
		State:     state,
	}, nil
}

// S256Challenge derives the code challenge as base64url (no padding) of the
// SHA-256 digest of the verifier, per RFC 7636.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func randomString(length int, charset string) (string, error) {
	max := big.NewInt(int64(len(charset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = charset[n.Int64()]
	}
	return string(out), nil
}
