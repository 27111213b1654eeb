package campaign

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	t.Parallel()

	sum, err := Hash([]byte("abc"), SHA1)
	require.NoError(t, err)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", sum)

	sum, err = Hash([]byte("abc"), SHA256)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)

	_, err = Hash([]byte("abc"), HashAlgorithm("md5"))
	assert.Error(t, err)
}

func TestVerifyHash(t *testing.T) {
	t.Parallel()

	const sha1abc = "a9993e364706816aba3e25717850c26c9cd0d89d"

	tests := []struct {
		name     string
		expected string
		wantErr  bool
	}{
		{"exact", sha1abc, false},
		{"uppercase", strings.ToUpper(sha1abc), false},
		{"prefixed", "0x" + sha1abc, false},
		{"padded", " " + sha1abc + "\n", false},
		{"different", "0000000000000000000000000000000000000000", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := VerifyHash([]byte("abc"), tt.expected, SHA1)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrHashMismatch)
				return
			}
			assert.NoError(t, err)
		})
	}
}
