package models

import (
	"encoding/json"
	"time"
)

// LedgerTimeFormat is how timestamps are serialized inside anchored payloads.
// Second precision keeps the canonical JSON stable across a ledger round-trip.
const LedgerTimeFormat = time.RFC3339

// SignatureMetadata is one signature entry inside an anchored payload.
type SignatureMetadata struct {
	SignerID      string `json:"signer_id"`
	SignatureHash string `json:"signature_hash"`
	SignedAt      string `json:"signed_at"`
}

// VersionMetadata is the payload anchored to the ledger when a version
// completes signing. Field order is fixed; the canonical serialization is the
// plain JSON encoding of this struct, so re-encoding a fetched payload
// reproduces the anchored bytes exactly.
type VersionMetadata struct {
	VersionID   uint                `json:"version_id"`
	ContentHash string              `json:"content_hash"`
	Title       string              `json:"title"`
	CreatorID   string              `json:"creator_id"`
	Signatures  []SignatureMetadata `json:"signatures"`
	FinalizedAt string              `json:"finalized_at"`
}

// CanonicalJSON returns the canonical serialization of the payload.
func (m *VersionMetadata) CanonicalJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FormatLedgerTime renders t in the anchored-payload timestamp format.
func FormatLedgerTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(LedgerTimeFormat)
}

// ParseLedgerTime parses a timestamp from an anchored payload.
func ParseLedgerTime(s string) (time.Time, error) {
	return time.Parse(LedgerTimeFormat, s)
}
