package credentials

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sharedCipherOnce sync.Once
	sharedCipher     *Cipher
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()

	sharedCipherOnce.Do(func() {
		c, err := NewCipher("a-long-enough-encryption-secret", "test-salt")
		if err != nil {
			panic(err)
		}
		sharedCipher = c
	})
	return sharedCipher
}

func TestCipher_RoundTrip(t *testing.T) {
	t.Parallel()

	c := testCipher(t)

	for _, plaintext := range []string{"", "api-key", strings.Repeat("s3cr3t", 100), "ключ"} {
		ciphertext, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		decrypted, err := c.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestCipher_FreshNonce(t *testing.T) {
	t.Parallel()

	c := testCipher(t)

	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCipher_Rejects(t *testing.T) {
	t.Parallel()

	c := testCipher(t)
	valid, err := c.Encrypt("payload")
	require.NoError(t, err)

	tampered := []byte(valid)
	tampered[len(tampered)-3] ^= 0x01

	tests := []struct {
		name       string
		ciphertext string
	}{
		{"not-base64", "%%%"},
		{"too-short", "AAAA"},
		{"tampered", string(tampered)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := c.Decrypt(tt.ciphertext)
			assert.True(t, errors.Is(err, ErrInvalidCiphertext), "got %v", err)
		})
	}
}

func TestCipher_WrongSecret(t *testing.T) {
	t.Parallel()

	ciphertext, err := testCipher(t).Encrypt("payload")
	require.NoError(t, err)

	other, err := NewCipher("another-encryption-secret", "test-salt")
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewCipher_MissingSecret(t *testing.T) {
	t.Parallel()

	_, err := NewCipher("", "salt")
	assert.ErrorIs(t, err, ErrMissingSecret)
}
