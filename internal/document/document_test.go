package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Deterministic(t *testing.T) {
	// Given: the same byte content
	data := []byte("kubernetes pods share a network namespace")

	// When: fingerprinting twice
	h1 := Fingerprint(data)
	h2 := Fingerprint(data)

	// Then: hashes are identical and hex-encoded SHA-256 length
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestFingerprint_SingleByteDifference(t *testing.T) {
	h1 := Fingerprint([]byte("version 1"))
	h2 := Fingerprint([]byte("version 2"))

	assert.NotEqual(t, h1, h2)
}

func TestFingerprint_Empty(t *testing.T) {
	// Empty input still yields a stable hash, not an empty string.
	assert.Len(t, Fingerprint(nil), 64)
	assert.Equal(t, Fingerprint(nil), Fingerprint([]byte{}))
}
