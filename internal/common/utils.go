package common

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// MakeRandHexString generates size random bytes and returns them hex-encoded,
// so the resulting string is 2*size characters long.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HasAllowedExtension reports whether filename ends with AllowedFileExtension,
// ignoring case.
func HasAllowedExtension(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), AllowedFileExtension)
}
