// Package auth implements the server's two one-way functions: password
// hashing (bcrypt) and session token generation (HMAC-SHA256 over a random
// nonce).
package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword computes a salted password digest. bcrypt folds its own salt
// into the returned digest, so the caller-supplied salt is mixed in as a
// pepper to keep the User.Salt field meaningful without a second KDF.
func HashPassword(password string, salt []byte) ([]byte, error) {
	return bcrypt.GenerateFromPassword(append([]byte(password), salt...), bcrypt.DefaultCost)
}

// CheckPassword reports whether password, peppered with salt, matches digest.
func CheckPassword(digest, salt []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(digest, append([]byte(password), salt...)) == nil
}
