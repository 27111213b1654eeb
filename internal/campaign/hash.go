package campaign

import (
	"crypto/sha1" //nolint:gosec // content-store addressing, not a security boundary
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

// HashAlgorithm names a content digest.
type HashAlgorithm string

const (
	SHA1   HashAlgorithm = "sha1"
	SHA256 HashAlgorithm = "sha256"
)

// Default digests of the content store.
const (
	DefaultManifestHash = SHA1
	DefaultResultsHash  = SHA256
)

// ErrHashMismatch is returned when content does not match its expected digest.
var ErrHashMismatch = errors.New("content hash mismatch")

func (a HashAlgorithm) new() (hash.Hash, error) {
	switch a {
	case SHA1:
		return sha1.New(), nil //nolint:gosec // see import
	case SHA256:
		return sha256.New(), nil
	}
	return nil, fmt.Errorf("unsupported hash algorithm %q", string(a))
}

// Hash returns the hex digest of data.
func Hash(data []byte, alg HashAlgorithm) (string, error) {
	h, err := alg.new()
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyHash checks data against a hex digest, ignoring case and an
// optional 0x prefix.
func VerifyHash(data []byte, expected string, alg HashAlgorithm) error {
	actual, err := Hash(data, alg)
	if err != nil {
		return err
	}

	expected = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(expected)), "0x")
	if actual != expected {
		return fmt.Errorf("%w: %s expected %s, got %s", ErrHashMismatch, alg, expected, actual)
	}
	return nil
}
