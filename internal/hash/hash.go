// Package hash derives fixed-size keys from account names and passphrases.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256 returns the 32-byte digest of key, usable as an AES-256 key.
func SHA256(key []byte) []byte {
	hash := sha256.Sum256(key)

	return hash[:]
}

// SHA256Hex returns the hex digest of s, usable as a file name.
func SHA256Hex(s string) string {
	return hex.EncodeToString(SHA256([]byte(s)))
}
