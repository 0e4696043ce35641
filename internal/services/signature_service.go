package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/covenantlab/contract-notary/internal/ledger"
	"github.com/covenantlab/contract-notary/internal/models"
	"github.com/covenantlab/contract-notary/internal/utils"
)

const defaultAnchorTimeout = 30 * time.Second

// SignatureService collects signatures against the current version of a
// contract and, when every required party has signed, closes the contract and
// anchors the version metadata to the ledger in the same transaction.
type SignatureService interface {
	Sign(ctx context.Context, contractID uint, signer *models.User) (*models.Signature, error)
	ListSignatures(ctx context.Context, versionID uint) ([]models.Signature, error)
}

type signatureService struct {
	db            *gorm.DB
	gateway       ledger.Gateway
	anchorTimeout time.Duration
}

// NewSignatureService creates a new SignatureService. anchorTimeout bounds the
// ledger call made while the signing transaction is held; zero selects the
// default.
func NewSignatureService(db *gorm.DB, gateway ledger.Gateway, anchorTimeout time.Duration) SignatureService {
	if anchorTimeout <= 0 {
		anchorTimeout = defaultAnchorTimeout
	}
	return &signatureService{db: db, gateway: gateway, anchorTimeout: anchorTimeout}
}

// Sign records the signer's signature on the contract's current version.
// Either the whole operation succeeds, or nothing is persisted: when this
// signature completes the required set and notarization fails, the signature
// itself rolls back too and the caller must retry.
func (s *signatureService) Sign(ctx context.Context, contractID uint, signer *models.User) (*models.Signature, error) {
	var signature *models.Signature
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contract models.Contract
		if err := tx.First(&contract, contractID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrContractNotFound
			}
			return err
		}
		if contract.Status != models.ContractStatusOpen {
			return ErrCannotSign
		}
		if contract.CurrentVersionID == nil {
			return ErrVersionNotFound
		}

		// The version row stays locked through the completion check and the
		// status flip, so two final signers racing each other serialize here
		// and only the first one runs the notarization path.
		var version models.ContractVersion
		if err := lockForUpdate(tx).First(&version, *contract.CurrentVersionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVersionNotFound
			}
			return err
		}
		if version.Status != models.VersionStatusPendingSignature {
			return ErrVersionNotPending
		}

		var partyCount int64
		if err := tx.Model(&models.ContractParty{}).
			Where("contract_id = ? AND user_id = ?", contract.ID, signer.ID).
			Count(&partyCount).Error; err != nil {
			return err
		}
		if partyCount == 0 {
			return ErrUnauthorized
		}

		var signedCount int64
		if err := tx.Model(&models.Signature{}).
			Where("contract_version_id = ? AND signer_id = ?", version.ID, signer.ID).
			Count(&signedCount).Error; err != nil {
			return err
		}
		if signedCount > 0 {
			return ErrAlreadySigned
		}

		now := time.Now()
		signature = &models.Signature{
			ContractVersionID: version.ID,
			SignerID:          signer.ID,
			SignatureHash:     utils.SignatureHash(version.ContentHash, signer.UUID, now),
			SignedAt:          now,
		}
		if err := tx.Create(signature).Error; err != nil {
			return err
		}

		complete, signatures, err := s.checkCompletion(tx, &contract, &version)
		if err != nil {
			return err
		}
		if !complete {
			return nil
		}

		if err := tx.Model(&version).Update("status", models.VersionStatusSigned).Error; err != nil {
			return err
		}
		if err := tx.Model(&contract).Updates(map[string]interface{}{
			"status":        models.ContractStatusClosed,
			"updated_by_id": signer.ID,
			"updated_at":    now,
		}).Error; err != nil {
			return err
		}

		return s.notarize(ctx, tx, &contract, &version, signatures)
	})
	if err != nil {
		return nil, err
	}
	return signature, nil
}

// checkCompletion reports whether every required signer has a signature for
// the version. Required signers are all parties of the contract; an empty
// party set never completes.
func (s *signatureService) checkCompletion(tx *gorm.DB, contract *models.Contract, version *models.ContractVersion) (bool, []models.Signature, error) {
	var parties []models.ContractParty
	if err := tx.Where("contract_id = ?", contract.ID).Find(&parties).Error; err != nil {
		return false, nil, err
	}
	if len(parties) == 0 {
		return false, nil, nil
	}

	var signatures []models.Signature
	if err := tx.Preload("Signer").
		Where("contract_version_id = ?", version.ID).
		Find(&signatures).Error; err != nil {
		return false, nil, err
	}

	signedBy := make(map[uint]bool, len(signatures))
	for _, sig := range signatures {
		signedBy[sig.SignerID] = true
	}
	for _, party := range parties {
		if !signedBy[party.UserID] {
			return false, nil, nil
		}
	}
	return true, signatures, nil
}

// notarize builds the version metadata, anchors it and records the single
// AnchorRecord. Runs inside the signing transaction; any failure here rolls
// the whole sign call back.
func (s *signatureService) notarize(ctx context.Context, tx *gorm.DB, contract *models.Contract, version *models.ContractVersion, signatures []models.Signature) error {
	var creator models.User
	if err := tx.First(&creator, contract.CreatedByID).Error; err != nil {
		return err
	}

	finalizedAt := time.Now()
	metadata := buildVersionMetadata(version, contract.Title, creator.UUID, signatures, finalizedAt)

	metadataHash, err := utils.HashMetadata(metadata)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotarizationFailed, err)
	}

	anchorCtx, cancel := context.WithTimeout(ctx, s.anchorTimeout)
	defer cancel()
	anchorID, err := s.gateway.Anchor(anchorCtx, metadata)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotarizationFailed, err)
	}

	return tx.Create(&models.AnchorRecord{
		ContractVersionID: version.ID,
		MetadataHash:      metadataHash,
		AnchorID:          anchorID,
		RecordedAt:        time.Now(),
	}).Error
}

// ListSignatures returns the signatures recorded for a version.
func (s *signatureService) ListSignatures(ctx context.Context, versionID uint) ([]models.Signature, error) {
	var signatures []models.Signature
	err := s.db.WithContext(ctx).Preload("Signer").
		Where("contract_version_id = ?", versionID).
		Find(&signatures).Error
	return signatures, err
}

// buildVersionMetadata assembles the ledger payload for a version. Signatures
// are ordered by signer id so the canonical serialization is deterministic.
func buildVersionMetadata(version *models.ContractVersion, title, creatorUUID string, signatures []models.Signature, finalizedAt time.Time) *models.VersionMetadata {
	entries := make([]models.SignatureMetadata, 0, len(signatures))
	for _, sig := range signatures {
		entries = append(entries, models.SignatureMetadata{
			SignerID:      sig.Signer.UUID,
			SignatureHash: sig.SignatureHash,
			SignedAt:      models.FormatLedgerTime(sig.SignedAt),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SignerID < entries[j].SignerID
	})

	return &models.VersionMetadata{
		VersionID:   version.ID,
		ContentHash: version.ContentHash,
		Title:       title,
		CreatorID:   creatorUUID,
		Signatures:  entries,
		FinalizedAt: models.FormatLedgerTime(finalizedAt),
	}
}

// lockForUpdate applies a row lock on server databases. SQLite has a single
// writer and rejects FOR UPDATE syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
