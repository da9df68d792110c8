package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"errors"
)

// tokenEncoding is RFC4648 base32 restricted to lowercase, giving a
// 32-character alphanumeric session token.
var tokenEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// TokenLength is the exact wire length of a session token.
const TokenLength = 32

// ErrKeyTooShort is returned by NewTokenSigner when the key is unusable.
var ErrKeyTooShort = errors.New("auth: token key must be at least 32 bytes")

// TokenSigner mints opaque session tokens. The signature is not interpreted
// by the session manager (sessions are looked up by exact token match in an
// in-memory map); it exists so a token cannot be forged by a client that
// merely guesses a 32-character string.
type TokenSigner struct {
	key []byte
}

// NewTokenSigner builds a signer from an HMAC key of at least 32 bytes.
func NewTokenSigner(key []byte) (*TokenSigner, error) {
	if len(key) < 32 {
		return nil, ErrKeyTooShort
	}
	return &TokenSigner{key: key}, nil
}

// Generate returns a fresh 32-character alphanumeric token.
func (s *TokenSigner) Generate() (string, error) {
	nonce := make([]byte, 20)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, s.key)
	mac.Write(nonce)
	sig := mac.Sum(nil)

	raw := append(nonce, sig...)
	encoded := tokenEncoding.EncodeToString(raw)
	return encoded[:TokenLength], nil
}
