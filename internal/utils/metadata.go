package utils

import (
	"github.com/covenantlab/contract-notary/internal/models"
)

// HashMetadata returns the hex SHA-256 of the payload's canonical JSON. This
// is the value stored in AnchorRecord and recomputed during verification.
func HashMetadata(m *models.VersionMetadata) (string, error) {
	data, err := m.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return SHA256Hex(data), nil
}
