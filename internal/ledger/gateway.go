package ledger

import (
	"context"
	"errors"

	"github.com/covenantlab/contract-notary/internal/models"
)

// ErrNotFound is returned by FetchAnchored when the ledger holds no payload
// for the requested version.
var ErrNotFound = errors.New("ledger: no anchored payload for version")

// Gateway is the core's view of the external ledger. Both operations are
// atomic from the caller's perspective; transport details stay inside the
// implementation.
type Gateway interface {
	// Anchor records the payload on the ledger and returns the ledger's
	// reference for the record (a transaction hash on chain-backed
	// implementations).
	Anchor(ctx context.Context, payload *models.VersionMetadata) (string, error)

	// FetchAnchored returns the payload previously anchored for the version,
	// or ErrNotFound.
	FetchAnchored(ctx context.Context, versionID uint) (*models.VersionMetadata, error)
}
