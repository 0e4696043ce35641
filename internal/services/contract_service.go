package services

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/covenantlab/contract-notary/internal/models"
	"github.com/covenantlab/contract-notary/internal/storage"
	"github.com/covenantlab/contract-notary/internal/utils"
)

// ContractService owns contract creation, versioning, participant management
// and soft deletion. Signing and verification live in their own services.
type ContractService interface {
	CreateContract(ctx context.Context, creator *models.User, req CreateContractRequest) (*models.Contract, error)
	ReviseContract(ctx context.Context, contractID uint, updater *models.User, req ReviseContractRequest) (*models.Contract, error)
	AddParticipant(ctx context.Context, contractID uint, requester *models.User, participantUUID string, role models.PartyRole) (*models.ContractParty, error)
	DeleteContract(ctx context.Context, contractID uint, requester *models.User) error
	GetContract(ctx context.Context, contractID uint) (*models.Contract, error)
	ListContractsByUser(ctx context.Context, userUUID string, limit, offset int) ([]models.Contract, error)
	GetVersionHistory(ctx context.Context, contractID uint) ([]models.ContractVersion, error)
}

type CreateContractRequest struct {
	Title            string   `validate:"required,max=255"`
	Description      string   `validate:"max=4000"`
	Content          []byte   `validate:"required"`
	ParticipantUUIDs []string `validate:"dive,uuid4"`
}

type ReviseContractRequest struct {
	Content     []byte `validate:"required"`
	Title       *string
	Description *string
}

type contractService struct {
	db        *gorm.DB
	users     UserService
	store     storage.ContentStore
	validator *validator.Validate
}

// NewContractService creates a new ContractService
func NewContractService(db *gorm.DB, users UserService, store storage.ContentStore) ContractService {
	return &contractService{
		db:        db,
		users:     users,
		store:     store,
		validator: validator.New(),
	}
}

// CreateContract creates the contract together with its version 1 in
// PENDING_SIGNATURE. The creator is always recorded as INITIATOR; every
// distinct participant id becomes a COUNTERPARTY.
func (s *contractService) CreateContract(ctx context.Context, creator *models.User, req CreateContractRequest) (*models.Contract, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	// Resolve every participant before touching the store or the database so
	// an unknown id fails the whole operation up front.
	participants, err := s.users.GetUsersByUUIDs(ctx, req.ParticipantUUIDs)
	if err != nil {
		return nil, err
	}

	contentHash := utils.SHA256Hex(req.Content)
	locator, err := s.store.Put(ctx, req.Content)
	if err != nil {
		return nil, err
	}

	contract := &models.Contract{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.ContractStatusOpen,
		CreatedByID: creator.ID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(contract).Error; err != nil {
			return err
		}

		version := &models.ContractVersion{
			ContractID:    contract.ID,
			VersionNumber: 1,
			StorageKey:    locator,
			ContentHash:   contentHash,
			Status:        models.VersionStatusPendingSignature,
		}
		if err := tx.Create(version).Error; err != nil {
			return err
		}
		if err := tx.Model(contract).Update("current_version_id", version.ID).Error; err != nil {
			return err
		}
		contract.CurrentVersion = version

		if err := tx.Create(&models.ContractParty{
			ContractID: contract.ID,
			UserID:     creator.ID,
			Role:       models.PartyRoleInitiator,
		}).Error; err != nil {
			return err
		}

		seen := map[uint]bool{creator.ID: true}
		for _, participant := range participants {
			if seen[participant.ID] {
				continue
			}
			seen[participant.ID] = true
			if err := tx.Create(&models.ContractParty{
				ContractID: contract.ID,
				UserID:     participant.ID,
				Role:       models.PartyRoleCounterparty,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// ReviseContract archives the current version and creates the next one in
// PENDING_SIGNATURE. Signatures never carry over to the new version.
func (s *contractService) ReviseContract(ctx context.Context, contractID uint, updater *models.User, req ReviseContractRequest) (*models.Contract, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	contentHash := utils.SHA256Hex(req.Content)
	locator, err := s.store.Put(ctx, req.Content)
	if err != nil {
		return nil, err
	}

	var contract models.Contract
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&contract, contractID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrContractNotFound
			}
			return err
		}
		if contract.Status != models.ContractStatusOpen {
			return ErrContractNotModifiable
		}

		isParty, err := s.isParty(tx, contract.ID, updater.ID)
		if err != nil {
			return err
		}
		if contract.CreatedByID != updater.ID && !isParty {
			return ErrUnauthorized
		}

		newVersionNumber := 1
		if contract.CurrentVersionID != nil {
			var previous models.ContractVersion
			if err := tx.First(&previous, *contract.CurrentVersionID).Error; err != nil {
				return err
			}
			if err := tx.Model(&previous).Update("status", models.VersionStatusArchived).Error; err != nil {
				return err
			}
			newVersionNumber = previous.VersionNumber + 1
		}

		version := &models.ContractVersion{
			ContractID:    contract.ID,
			VersionNumber: newVersionNumber,
			StorageKey:    locator,
			ContentHash:   contentHash,
			Status:        models.VersionStatusPendingSignature,
		}
		if err := tx.Create(version).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"current_version_id": version.ID,
			"updated_by_id":      updater.ID,
			"updated_at":         time.Now(),
		}
		if req.Title != nil && *req.Title != "" {
			updates["title"] = *req.Title
		}
		if req.Description != nil && *req.Description != "" {
			updates["description"] = *req.Description
		}
		if err := tx.Model(&contract).Updates(updates).Error; err != nil {
			return err
		}
		contract.CurrentVersion = version
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

// AddParticipant adds a user to an open contract. Only the creator may add
// participants, and the creator can only ever appear as INITIATOR.
func (s *contractService) AddParticipant(ctx context.Context, contractID uint, requester *models.User, participantUUID string, role models.PartyRole) (*models.ContractParty, error) {
	participant, err := s.users.GetUserByUUID(ctx, participantUUID)
	if err != nil {
		return nil, err
	}

	var party *models.ContractParty
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contract models.Contract
		if err := tx.First(&contract, contractID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrContractNotFound
			}
			return err
		}
		if contract.Status != models.ContractStatusOpen {
			return ErrContractNotModifiable
		}
		if contract.CreatedByID != requester.ID {
			return ErrUnauthorized
		}
		if participant.ID == contract.CreatedByID && role != models.PartyRoleInitiator {
			return ErrInvalidRole
		}

		exists, err := s.isParty(tx, contract.ID, participant.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrParticipantExists
		}

		party = &models.ContractParty{
			ContractID: contract.ID,
			UserID:     participant.ID,
			Role:       role,
		}
		if err := tx.Create(party).Error; err != nil {
			return err
		}

		return tx.Model(&contract).Updates(map[string]interface{}{
			"updated_by_id": requester.ID,
			"updated_at":    time.Now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return party, nil
}

// DeleteContract soft-deletes the contract. Versions, parties, signatures and
// anchor records stay in place as history.
func (s *contractService) DeleteContract(ctx context.Context, contractID uint, requester *models.User) error {
	var contract models.Contract
	err := s.db.WithContext(ctx).First(&contract, contractID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrContractNotFound
		}
		return err
	}
	if contract.CreatedByID != requester.ID {
		return ErrUnauthorized
	}
	return s.db.WithContext(ctx).Delete(&contract).Error
}

// GetContract returns the contract with its creator and current version.
func (s *contractService) GetContract(ctx context.Context, contractID uint) (*models.Contract, error) {
	var contract models.Contract
	err := s.db.WithContext(ctx).
		Preload("CreatedBy").
		Preload("CurrentVersion").
		First(&contract, contractID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, err
	}
	return &contract, nil
}

// ListContractsByUser returns contracts where the user participates, newest
// first.
func (s *contractService) ListContractsByUser(ctx context.Context, userUUID string, limit, offset int) ([]models.Contract, error) {
	user, err := s.users.GetUserByUUID(ctx, userUUID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Joins("JOIN contract_parties ON contract_parties.contract_id = contracts.id").
		Where("contract_parties.user_id = ?", user.ID).
		Preload("CurrentVersion").
		Order("contracts.created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var contracts []models.Contract
	err = query.Find(&contracts).Error
	return contracts, err
}

// GetVersionHistory returns every version of the contract in order.
func (s *contractService) GetVersionHistory(ctx context.Context, contractID uint) ([]models.ContractVersion, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Contract{}).Where("id = ?", contractID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrContractNotFound
	}

	var versions []models.ContractVersion
	err := s.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("version_number ASC").
		Find(&versions).Error
	return versions, err
}

// isParty reports whether the user is linked to the contract under any role.
func (s *contractService) isParty(tx *gorm.DB, contractID, userID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.ContractParty{}).
		Where("contract_id = ? AND user_id = ?", contractID, userID).
		Count(&count).Error
	return count > 0, err
}
