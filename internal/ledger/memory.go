package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/covenantlab/contract-notary/internal/models"
)

// MemoryGateway is an in-process Gateway used by tests and local development.
// Payloads are stored as their canonical JSON so fetches observe the same
// round-trip behavior as a real ledger.
type MemoryGateway struct {
	mu      sync.Mutex
	records map[uint]string
	anchors int

	// AnchorErr, when set, makes every Anchor call fail.
	AnchorErr error
	// FetchErr, when set, makes every FetchAnchored call fail.
	FetchErr error
	// Tamper, when set, rewrites the fetched payload before it is returned,
	// simulating ledger-side corruption.
	Tamper func(*models.VersionMetadata)
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{records: make(map[uint]string)}
}

func (g *MemoryGateway) Anchor(ctx context.Context, payload *models.VersionMetadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AnchorErr != nil {
		return "", g.AnchorErr
	}

	data, err := payload.CanonicalJSON()
	if err != nil {
		return "", err
	}
	g.anchors++
	g.records[payload.VersionID] = string(data)
	return fmt.Sprintf("memtx-%d", g.anchors), nil
}

func (g *MemoryGateway) FetchAnchored(ctx context.Context, versionID uint) (*models.VersionMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FetchErr != nil {
		return nil, g.FetchErr
	}

	raw, ok := g.records[versionID]
	if !ok {
		return nil, ErrNotFound
	}
	var payload models.VersionMetadata
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, err
	}
	if g.Tamper != nil {
		g.Tamper(&payload)
	}
	return &payload, nil
}

// AnchorCount reports how many Anchor calls have succeeded.
func (g *MemoryGateway) AnchorCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.anchors
}
