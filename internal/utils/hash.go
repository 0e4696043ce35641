package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SHA256Hex returns the lowercase hex-encoded SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SignatureHash derives the non-repudiation token recorded for a signature.
// It binds the signer and signing time to the exact content being signed; it is
// not a cryptographic signature over the document bytes.
func SignatureHash(contentHash, signerUUID string, signedAt time.Time) string {
	payload := fmt.Sprintf("%s:%s:%s", contentHash, signerUUID, signedAt.UTC().Format(time.RFC3339Nano))
	return SHA256Hex([]byte(payload))
}
