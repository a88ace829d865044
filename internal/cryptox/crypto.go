// Package cryptox implements the credential hasher: a keyed, deterministic
// transform of a plaintext password into the value stored with the user.
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashPassword returns hex(HMAC-SHA256(salt, plaintext)).
//
// There is no per-user salt, so equal passwords hash equally and login is a
// plain comparison of hashes. An empty salt is accepted and yields a weak but
// valid hash.
func HashPassword(plaintext, salt string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}

// Hasher binds the server-wide salt.
type Hasher struct {
	salt string
}

func NewHasher(salt string) *Hasher {
	return &Hasher{salt: salt}
}

func (h *Hasher) Hash(plaintext string) string {
	return HashPassword(plaintext, h.salt)
}

// Matches reports whether plaintext hashes to stored.
func (h *Hasher) Matches(stored, plaintext string) bool {
	return Equal(stored, h.Hash(plaintext))
}

// Equal compares two hashes in constant time.
func Equal(stored, hashed string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(hashed)) == 1
}
