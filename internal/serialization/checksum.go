package serialization

import (
	"crypto/sha256"
	"errors"
)

// ErrChecksumMismatch reports that the stored tensor data does not match the
// checksum in the header, usually a truncated or corrupted file.
var ErrChecksumMismatch = errors.New("serialization: checksum mismatch")

// ComputeChecksum returns the SHA-256 digest of data.
func ComputeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// ValidateChecksum compares a computed digest against the stored one.
func ValidateChecksum(computed, stored [ChecksumSize]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}
