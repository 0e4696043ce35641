package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/covenantlab/contract-notary/internal/ledger"
	"github.com/covenantlab/contract-notary/internal/models"
	"github.com/covenantlab/contract-notary/internal/utils"
)

type VerificationStatus string

const (
	VerificationSuccess      VerificationStatus = "SUCCESS"
	VerificationFailed       VerificationStatus = "FAILED"
	VerificationError        VerificationStatus = "ERROR"
	VerificationDataNotFound VerificationStatus = "DATA_NOT_FOUND"
	VerificationNotChecked   VerificationStatus = "NOT_CHECKED"
)

// StageResult is the outcome of one verification stage.
type StageResult struct {
	Status        VerificationStatus `json:"status"`
	Details       string             `json:"details"`
	Discrepancies []string           `json:"discrepancies,omitempty"`
}

// VerificationReport is the structured verdict of an integrity check. The
// anchor check proves the anchored record still hashes to what was stored at
// notarization time; the state check proves the current relational rows still
// match what was anchored. Inconsistent data is a reportable state here, not
// an error.
type VerificationReport struct {
	VersionID      uint        `json:"version_id"`
	AnchorCheck    StageResult `json:"anchor_check"`
	StateCheck     StageResult `json:"state_check"`
	OverallSuccess bool        `json:"overall_success"`
	Message        string      `json:"message"`
}

// VerificationService reconciles the relational state of a signed version
// against its anchored ledger record.
type VerificationService interface {
	Verify(ctx context.Context, contractID uint, versionNumber int, requester *models.User) (*VerificationReport, error)
}

type verificationService struct {
	db      *gorm.DB
	gateway ledger.Gateway
}

// NewVerificationService creates a new VerificationService
func NewVerificationService(db *gorm.DB, gateway ledger.Gateway) VerificationService {
	return &verificationService{db: db, gateway: gateway}
}

// Verify runs the two-stage integrity check. It only returns an error for the
// initial lookups (unknown contract or version, unauthorized requester);
// everything after that degrades into the report.
func (s *verificationService) Verify(ctx context.Context, contractID uint, versionNumber int, requester *models.User) (*VerificationReport, error) {
	db := s.db.WithContext(ctx)

	var contract models.Contract
	if err := db.First(&contract, contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, err
	}

	if contract.CreatedByID != requester.ID {
		var partyCount int64
		if err := db.Model(&models.ContractParty{}).
			Where("contract_id = ? AND user_id = ?", contract.ID, requester.ID).
			Count(&partyCount).Error; err != nil {
			return nil, err
		}
		if partyCount == 0 {
			return nil, ErrUnauthorized
		}
	}

	var version models.ContractVersion
	err := db.Where("contract_id = ? AND version_number = ?", contract.ID, versionNumber).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}

	report := &VerificationReport{VersionID: version.ID}

	var record models.AnchorRecord
	err = db.Where("contract_version_id = ?", version.ID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			report.AnchorCheck = StageResult{
				Status:  VerificationDataNotFound,
				Details: "no anchor record exists for this version",
			}
			report.StateCheck = StageResult{
				Status:  VerificationNotChecked,
				Details: "state reconciliation requires an anchor record",
			}
			report.Message = "integrity verification failed: this version was never notarized"
			return report, nil
		}
		return nil, err
	}

	anchored := s.checkAnchor(ctx, report, &record)
	if anchored != nil {
		s.checkState(db, report, &contract, &version, anchored)
	} else if report.StateCheck.Status == "" {
		report.StateCheck = StageResult{
			Status:  VerificationNotChecked,
			Details: "no ledger payload available to reconcile against",
		}
	}

	report.OverallSuccess = report.AnchorCheck.Status == VerificationSuccess &&
		report.StateCheck.Status == VerificationSuccess
	report.Message = s.summarize(report)
	return report, nil
}

// checkAnchor runs stage one: fetch the anchored payload and compare its
// canonical hash against the hash recorded at notarization time. Returns the
// payload when one could be fetched, whatever the hash verdict.
func (s *verificationService) checkAnchor(ctx context.Context, report *VerificationReport, record *models.AnchorRecord) *models.VersionMetadata {
	payload, err := s.gateway.FetchAnchored(ctx, record.ContractVersionID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			report.AnchorCheck = StageResult{
				Status:  VerificationDataNotFound,
				Details: fmt.Sprintf("ledger holds no payload for this version (anchor id %s)", record.AnchorID),
			}
			return nil
		}
		report.AnchorCheck = StageResult{
			Status:  VerificationError,
			Details: fmt.Sprintf("failed to fetch anchored payload: %v", err),
		}
		return nil
	}

	fetchedHash, err := utils.HashMetadata(payload)
	if err != nil {
		report.AnchorCheck = StageResult{
			Status:  VerificationError,
			Details: fmt.Sprintf("failed to hash fetched payload: %v", err),
		}
		return payload
	}

	if fetchedHash == record.MetadataHash {
		report.AnchorCheck = StageResult{
			Status:  VerificationSuccess,
			Details: "anchored payload hashes to the value stored at notarization time",
		}
	} else {
		report.AnchorCheck = StageResult{
			Status:  VerificationFailed,
			Details: "anchored payload does not hash to the value stored at notarization time",
			Discrepancies: []string{
				fmt.Sprintf("recorded metadata hash: %s", record.MetadataHash),
				fmt.Sprintf("recomputed ledger hash: %s", fetchedHash),
			},
		}
	}
	return payload
}

// checkState runs stage two: rebuild the metadata from current relational
// rows and diff it field by field against the anchored payload. The ledger's
// finalized_at is the comparison basis since that value has no independent
// relational copy.
func (s *verificationService) checkState(db *gorm.DB, report *VerificationReport, contract *models.Contract, version *models.ContractVersion, anchored *models.VersionMetadata) {
	var creator models.User
	if err := db.First(&creator, contract.CreatedByID).Error; err != nil {
		report.StateCheck = StageResult{
			Status:  VerificationError,
			Details: fmt.Sprintf("failed to reconstruct current state: %v", err),
		}
		return
	}

	var signatures []models.Signature
	err := db.Preload("Signer").
		Where("contract_version_id = ?", version.ID).
		Find(&signatures).Error
	if err != nil {
		report.StateCheck = StageResult{
			Status:  VerificationError,
			Details: fmt.Sprintf("failed to reconstruct current state: %v", err),
		}
		return
	}

	var discrepancies []string
	if version.ID != anchored.VersionID {
		discrepancies = append(discrepancies,
			fmt.Sprintf("version id mismatch: db=%d ledger=%d", version.ID, anchored.VersionID))
	}
	if version.ContentHash != anchored.ContentHash {
		discrepancies = append(discrepancies,
			fmt.Sprintf("content hash mismatch: db=%s ledger=%s", version.ContentHash, anchored.ContentHash))
	}
	if contract.Title != anchored.Title {
		discrepancies = append(discrepancies,
			fmt.Sprintf("title mismatch: db=%q ledger=%q", contract.Title, anchored.Title))
	}
	if creator.UUID != anchored.CreatorID {
		discrepancies = append(discrepancies,
			fmt.Sprintf("creator mismatch: db=%s ledger=%s", creator.UUID, anchored.CreatorID))
	}
	discrepancies = append(discrepancies, diffSignatures(signatures, anchored.Signatures)...)

	if len(discrepancies) == 0 {
		report.StateCheck = StageResult{
			Status:  VerificationSuccess,
			Details: "current relational state matches the anchored payload",
		}
	} else {
		report.StateCheck = StageResult{
			Status:        VerificationFailed,
			Details:       "current relational state diverges from the anchored payload",
			Discrepancies: discrepancies,
		}
	}
}

// diffSignatures compares the two signature sets keyed by signer id.
// Timestamps compare at second precision, which the ledger serialization
// already enforces.
func diffSignatures(current []models.Signature, anchored []models.SignatureMetadata) []string {
	var discrepancies []string
	if len(current) != len(anchored) {
		discrepancies = append(discrepancies,
			fmt.Sprintf("signature count mismatch: db=%d ledger=%d", len(current), len(anchored)))
	}

	anchoredBySigner := make(map[string]models.SignatureMetadata, len(anchored))
	for _, entry := range anchored {
		anchoredBySigner[entry.SignerID] = entry
	}

	currentSigners := make(map[string]bool, len(current))
	for _, sig := range current {
		signerID := sig.Signer.UUID
		currentSigners[signerID] = true

		entry, ok := anchoredBySigner[signerID]
		if !ok {
			discrepancies = append(discrepancies,
				fmt.Sprintf("extra signer %s: present in db, absent from ledger", signerID))
			continue
		}
		if sig.SignatureHash != entry.SignatureHash {
			discrepancies = append(discrepancies,
				fmt.Sprintf("signature hash mismatch for signer %s", signerID))
		}
		if models.FormatLedgerTime(sig.SignedAt) != entry.SignedAt {
			discrepancies = append(discrepancies,
				fmt.Sprintf("signed-at mismatch for signer %s: db=%s ledger=%s",
					signerID, models.FormatLedgerTime(sig.SignedAt), entry.SignedAt))
		}
	}

	for _, entry := range anchored {
		if !currentSigners[entry.SignerID] {
			discrepancies = append(discrepancies,
				fmt.Sprintf("missing signer %s: present in ledger, absent from db", entry.SignerID))
		}
	}
	return discrepancies
}

// summarize picks the most relevant cause for the report message: missing
// anchor data first, then the anchor check, then the state check.
func (s *verificationService) summarize(report *VerificationReport) string {
	if report.OverallSuccess {
		return "integrity verified: relational state matches the anchored ledger record"
	}
	switch report.AnchorCheck.Status {
	case VerificationDataNotFound:
		return "integrity verification failed: no anchored data found on the ledger"
	case VerificationFailed:
		return "integrity verification failed: the anchored payload no longer matches the hash stored at notarization time"
	case VerificationError:
		return "integrity verification error: the anchored payload could not be checked"
	}
	switch report.StateCheck.Status {
	case VerificationFailed:
		return "integrity verification failed: the current relational state diverges from the anchored payload"
	case VerificationError:
		return "integrity verification error: the current relational state could not be reconstructed"
	}
	return "integrity verification incomplete"
}
