package credential

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashRoundTrip(t *testing.T) {
	for _, secret := range []string{"password123", "p", "correct horse battery staple", "pässwörd☃"} {
		stored, err := Hash(secret)
		require.NoError(t, err)

		assert.True(t, Verify(stored, secret), "hash then verify must succeed for %q", secret)
		assert.False(t, Verify(stored, secret+"x"))
		assert.False(t, Verify(stored, ""))
	}
}

func TestHashForm(t *testing.T) {
	stored, err := Hash("password123")
	require.NoError(t, err)

	parts := strings.Split(stored, "$")
	require.Len(t, parts, 3)
	assert.Equal(t, SchemeSaltedSHA256, parts[0])
	assert.Len(t, parts[1], 32, "16 salt bytes hex-encoded")
	assert.Len(t, parts[2], 64, "sha-256 digest hex-encoded")
}

func TestHashSaltsAreUnique(t *testing.T) {
	a, err := Hash("same secret")
	require.NoError(t, err)
	b, err := Hash("same secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "per-secret salt must differ between calls")
}

func TestHashRejectsEmptySecret(t *testing.T) {
	_, err := Hash("")
	assert.Error(t, err)
}

func TestVerifyFailsClosed(t *testing.T) {
	cases := map[string]string{
		"empty":               "",
		"plaintext row":       "password123",
		"legacy untagged":     "a1b2c3$deadbeef",
		"unknown scheme":      "bcrypt$a1$b2",
		"missing digest":      "salted-sha256$a1b2",
		"non-hex salt":        "salted-sha256$zz$" + strings.Repeat("ab", 32),
		"non-hex digest":      "salted-sha256$" + strings.Repeat("ab", 16) + "$zz",
		"digest wrong length": "salted-sha256$" + strings.Repeat("ab", 16) + "$abcd",
	}
	for name, stored := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, Verify(stored, "password123"))
		})
	}
}
