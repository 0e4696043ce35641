package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMetadata() *VersionMetadata {
	return &VersionMetadata{
		VersionID:   7,
		ContentHash: "aabbcc",
		Title:       "Supply Agreement",
		CreatorID:   "creator-uuid",
		Signatures: []SignatureMetadata{
			{SignerID: "signer-a", SignatureHash: "hash-a", SignedAt: "2025-03-14T09:26:53Z"},
			{SignerID: "signer-b", SignatureHash: "hash-b", SignedAt: "2025-03-14T09:27:11Z"},
		},
		FinalizedAt: "2025-03-14T09:27:11Z",
	}
}

func TestVersionMetadataCanonicalJSON(t *testing.T) {
	t.Run("StableFieldOrder", func(t *testing.T) {
		data, err := testMetadata().CanonicalJSON()
		require.NoError(t, err)
		assert.Equal(t,
			`{"version_id":7,"content_hash":"aabbcc","title":"Supply Agreement",`+
				`"creator_id":"creator-uuid","signatures":[`+
				`{"signer_id":"signer-a","signature_hash":"hash-a","signed_at":"2025-03-14T09:26:53Z"},`+
				`{"signer_id":"signer-b","signature_hash":"hash-b","signed_at":"2025-03-14T09:27:11Z"}],`+
				`"finalized_at":"2025-03-14T09:27:11Z"}`,
			string(data))
	})

	t.Run("RoundTripReproducesBytes", func(t *testing.T) {
		original, err := testMetadata().CanonicalJSON()
		require.NoError(t, err)

		var fetched VersionMetadata
		require.NoError(t, json.Unmarshal(original, &fetched))
		reencoded, err := fetched.CanonicalJSON()
		require.NoError(t, err)
		assert.Equal(t, original, reencoded)
	})
}

func TestLedgerTime(t *testing.T) {
	t.Run("FormatDropsSubseconds", func(t *testing.T) {
		at := time.Date(2025, 3, 14, 9, 26, 53, 987654321, time.UTC)
		assert.Equal(t, "2025-03-14T09:26:53Z", FormatLedgerTime(at))
	})

	t.Run("FormatNormalizesToUTC", func(t *testing.T) {
		loc := time.FixedZone("KST", 9*3600)
		at := time.Date(2025, 3, 14, 18, 26, 53, 0, loc)
		assert.Equal(t, "2025-03-14T09:26:53Z", FormatLedgerTime(at))
	})

	t.Run("ParseInvertsFormat", func(t *testing.T) {
		at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
		parsed, err := ParseLedgerTime(FormatLedgerTime(at))
		require.NoError(t, err)
		assert.True(t, parsed.Equal(at))
	})
}
