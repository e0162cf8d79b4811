// Package crypto computes and verifies digests of snapshot files.
package crypto

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/and161185/docsnap/internal/errs"
)

// ChecksumAlgorithm names the digest written into run manifests.
const ChecksumAlgorithm = "blake2b-256"

// Checksum returns the hex-encoded BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum compares data against an expected hex digest in constant time.
func VerifyChecksum(data []byte, expected string) error {
	got := Checksum(data)
	if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		return fmt.Errorf("%w: want %s, got %s", errs.ErrChecksumMismatch, expected, got)
	}
	return nil
}
