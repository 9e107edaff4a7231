package directory

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argonPrefix = "argon2id$"

// Argon2id parameters for new hashes.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// NewSalt returns a fresh per-principal salt: 16 random bytes, hex-encoded.
func NewSalt() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashPassword derives a versioned Argon2id hash from the password and salt.
func HashPassword(password, salt string) string {
	key := argon2.IDKey([]byte(password), []byte(salt), argonTime, argonMemory, argonThreads, argonKeyLen)
	return argonPrefix + base64.RawStdEncoding.EncodeToString(key)
}

// VerifyPassword checks a password against a stored hash in constant time.
// Hashes carrying the argon2id prefix use the current KDF; anything else is
// the legacy sha256(salt || password) hex scheme, kept so existing
// credentials keep working until the next password change.
func VerifyPassword(stored, salt, password string) bool {
	if strings.HasPrefix(stored, argonPrefix) {
		expected := HashPassword(password, salt)
		return subtle.ConstantTimeCompare([]byte(stored), []byte(expected)) == 1
	}
	sum := sha256.Sum256([]byte(salt + password))
	legacy := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(stored), []byte(legacy)) == 1
}

// NewSessionToken returns an opaque URL-safe token with 256 bits of entropy.
func NewSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
