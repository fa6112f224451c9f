package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// CryptoRandomBytes generates cryptographically secure random bytes
func CryptoRandomBytes(length int64) ([]byte, error) {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	return buf, err
}

// CryptoRandomString generates a random hex string for salts and secrets
func CryptoRandomString(length int) (string, error) {
	bytes, err := CryptoRandomBytes(int64((length + 1) / 2))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}

// HashSecret returns the PBKDF2 hash of a session secret with salt
func HashSecret(secret, salt string) string {
	hash := pbkdf2.Key([]byte(secret), []byte(salt), 10000, 50, sha256.New)
	return hex.EncodeToString(hash)
}

// VerifySecret reports whether secret hashes to want under salt, in
// constant time.
func VerifySecret(secret, salt, want string) bool {
	got := HashSecret(secret, salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// SHA256Hex returns the SHA-256 hash of s as a lowercase hex string.
// Intended for high-entropy, unguessable values (e.g. randomly generated
// tokens); for such inputs a salt is not required.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
