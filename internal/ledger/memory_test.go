package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenantlab/contract-notary/internal/models"
)

func TestMemoryGateway(t *testing.T) {
	ctx := context.Background()

	payload := &models.VersionMetadata{
		VersionID:   3,
		ContentHash: "cafe",
		Title:       "Agreement",
		CreatorID:   "creator",
		Signatures: []models.SignatureMetadata{
			{SignerID: "a", SignatureHash: "h", SignedAt: "2025-03-14T09:26:53Z"},
		},
		FinalizedAt: "2025-03-14T09:26:53Z",
	}

	t.Run("AnchorThenFetch", func(t *testing.T) {
		gw := NewMemoryGateway()
		anchorID, err := gw.Anchor(ctx, payload)
		require.NoError(t, err)
		assert.NotEmpty(t, anchorID)
		assert.Equal(t, 1, gw.AnchorCount())

		fetched, err := gw.FetchAnchored(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, payload, fetched)
	})

	t.Run("FetchUnknownVersion", func(t *testing.T) {
		gw := NewMemoryGateway()
		_, err := gw.FetchAnchored(ctx, 42)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("InjectedAnchorFailure", func(t *testing.T) {
		gw := NewMemoryGateway()
		gw.AnchorErr = errors.New("down")
		_, err := gw.Anchor(ctx, payload)
		assert.Error(t, err)
		assert.Equal(t, 0, gw.AnchorCount())
	})

	t.Run("CanceledContext", func(t *testing.T) {
		gw := NewMemoryGateway()
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := gw.FetchAnchored(canceled, 3)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
