// Package credential hashes and verifies user secrets.
//
// Stored form is scheme-tagged so future upgrades never reinterpret old rows:
//
//	salted-sha256$<salt-hex>$<digest-hex>
//
// where digest = SHA-256(saltBytes || secretUTF8). Verification fails closed
// on any malformed stored form and compares digests in constant time.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	dErrors "registrar/pkg/domain-errors"
)

// SchemeSaltedSHA256 tags the only stored form currently written. Rows
// without a recognized scheme tag (including legacy plaintext) never verify.
const SchemeSaltedSHA256 = "salted-sha256"

const (
	separator = "$"
	saltBytes = 16
)

// Hash produces the storable form of a secret with a fresh random salt.
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}

	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("could not generate salt: %w", err)
	}

	digest := digest(salt, secret)
	return SchemeSaltedSHA256 + separator + hex.EncodeToString(salt) + separator + hex.EncodeToString(digest), nil
}

// Verify reports whether candidate matches the stored form. Malformed input
// (wrong part count, unknown scheme, undecodable salt or digest) yields
// false, never an error: a corrupt row must deny access, not crash login.
func Verify(stored, candidate string) bool {
	parts := strings.Split(stored, separator)
	if len(parts) != 3 || parts[0] != SchemeSaltedSHA256 {
		return false
	}

	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(parts[2])
	if err != nil || len(want) != sha256.Size {
		return false
	}

	got := digest(salt, candidate)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func digest(salt []byte, secret string) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(secret))
	return h.Sum(nil)
}
