package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenantlab/contract-notary/internal/models"
	"github.com/covenantlab/contract-notary/internal/storage"
	"github.com/covenantlab/contract-notary/internal/utils"
)

func TestContractService_CreateContract(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	service := NewContractService(db, users, storage.NewMemoryStore())
	ctx := context.Background()

	creator := createTestUser(t, db, "creator")
	counterparty := createTestUser(t, db, "counterparty")

	t.Run("CreatesContractWithFirstVersion", func(t *testing.T) {
		content := []byte("supply agreement v1")
		contract, err := service.CreateContract(ctx, creator, CreateContractRequest{
			Title:            "Supply Agreement",
			Description:      "Annual supply terms",
			Content:          content,
			ParticipantUUIDs: []string{counterparty.UUID},
		})
		require.NoError(t, err)

		assert.Equal(t, models.ContractStatusOpen, contract.Status)
		require.NotNil(t, contract.CurrentVersion)
		assert.Equal(t, 1, contract.CurrentVersion.VersionNumber)
		assert.Equal(t, models.VersionStatusPendingSignature, contract.CurrentVersion.Status)
		assert.Equal(t, utils.SHA256Hex(content), contract.CurrentVersion.ContentHash)
		assert.NotEmpty(t, contract.CurrentVersion.StorageKey)

		var parties []models.ContractParty
		require.NoError(t, db.Where("contract_id = ?", contract.ID).Order("id").Find(&parties).Error)
		require.Len(t, parties, 2)
		assert.Equal(t, creator.ID, parties[0].UserID)
		assert.Equal(t, models.PartyRoleInitiator, parties[0].Role)
		assert.Equal(t, counterparty.ID, parties[1].UserID)
		assert.Equal(t, models.PartyRoleCounterparty, parties[1].Role)
	})

	t.Run("DeduplicatesParticipants", func(t *testing.T) {
		contract, err := service.CreateContract(ctx, creator, CreateContractRequest{
			Title:            "Dedup Test",
			Content:          []byte("content"),
			ParticipantUUIDs: []string{counterparty.UUID, counterparty.UUID, creator.UUID},
		})
		require.NoError(t, err)

		var count int64
		require.NoError(t, db.Model(&models.ContractParty{}).
			Where("contract_id = ?", contract.ID).Count(&count).Error)
		assert.EqualValues(t, 2, count)
	})

	t.Run("UnknownParticipantFails", func(t *testing.T) {
		_, err := service.CreateContract(ctx, creator, CreateContractRequest{
			Title:            "Broken",
			Content:          []byte("content"),
			ParticipantUUIDs: []string{"8a2ef64b-5c1d-4a5f-9d98-2b3a6f0c7e11"},
		})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("MissingTitleFails", func(t *testing.T) {
		_, err := service.CreateContract(ctx, creator, CreateContractRequest{
			Content: []byte("content"),
		})
		assert.Error(t, err)
	})
}

func TestContractService_ReviseContract(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	service := NewContractService(db, users, storage.NewMemoryStore())
	ctx := context.Background()

	creator := createTestUser(t, db, "creator")
	counterparty := createTestUser(t, db, "counterparty")
	stranger := createTestUser(t, db, "stranger")

	newContract := func(t *testing.T) *models.Contract {
		contract, err := service.CreateContract(ctx, creator, CreateContractRequest{
			Title:            "Base",
			Content:          []byte("v1 content"),
			ParticipantUUIDs: []string{counterparty.UUID},
		})
		require.NoError(t, err)
		return contract
	}

	t.Run("ArchivesPreviousAndIncrementsNumber", func(t *testing.T) {
		contract := newContract(t)
		v1ID := *contract.CurrentVersionID

		newTitle := "Base (amended)"
		revised, err := service.ReviseContract(ctx, contract.ID, counterparty, ReviseContractRequest{
			Content: []byte("v2 content"),
			Title:   &newTitle,
		})
		require.NoError(t, err)

		require.NotNil(t, revised.CurrentVersion)
		assert.Equal(t, 2, revised.CurrentVersion.VersionNumber)
		assert.Equal(t, models.VersionStatusPendingSignature, revised.CurrentVersion.Status)
		assert.Equal(t, utils.SHA256Hex([]byte("v2 content")), revised.CurrentVersion.ContentHash)

		var previous models.ContractVersion
		require.NoError(t, db.First(&previous, v1ID).Error)
		assert.Equal(t, models.VersionStatusArchived, previous.Status)

		var reloaded models.Contract
		require.NoError(t, db.First(&reloaded, contract.ID).Error)
		assert.Equal(t, "Base (amended)", reloaded.Title)
		require.NotNil(t, reloaded.UpdatedByID)
		assert.Equal(t, counterparty.ID, *reloaded.UpdatedByID)
	})

	t.Run("SignaturesDoNotCarryOver", func(t *testing.T) {
		contract := newContract(t)
		v1ID := *contract.CurrentVersionID

		require.NoError(t, db.Create(&models.Signature{
			ContractVersionID: v1ID,
			SignerID:          creator.ID,
			SignatureHash:     "somehash",
			SignedAt:          time.Now(),
		}).Error)

		revised, err := service.ReviseContract(ctx, contract.ID, creator, ReviseContractRequest{
			Content: []byte("v2 content"),
		})
		require.NoError(t, err)

		var count int64
		require.NoError(t, db.Model(&models.Signature{}).
			Where("contract_version_id = ?", revised.CurrentVersion.ID).Count(&count).Error)
		assert.EqualValues(t, 0, count)

		// The archived version keeps its historic signature.
		require.NoError(t, db.Model(&models.Signature{}).
			Where("contract_version_id = ?", v1ID).Count(&count).Error)
		assert.EqualValues(t, 1, count)
	})

	t.Run("StrangerUnauthorized", func(t *testing.T) {
		contract := newContract(t)
		_, err := service.ReviseContract(ctx, contract.ID, stranger, ReviseContractRequest{
			Content: []byte("v2 content"),
		})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("ClosedContractNotModifiable", func(t *testing.T) {
		contract := newContract(t)
		require.NoError(t, db.Model(&models.Contract{}).
			Where("id = ?", contract.ID).
			Update("status", models.ContractStatusClosed).Error)

		_, err := service.ReviseContract(ctx, contract.ID, creator, ReviseContractRequest{
			Content: []byte("v2 content"),
		})
		assert.ErrorIs(t, err, ErrContractNotModifiable)
	})

	t.Run("UnknownContract", func(t *testing.T) {
		_, err := service.ReviseContract(ctx, 99999, creator, ReviseContractRequest{
			Content: []byte("v2 content"),
		})
		assert.ErrorIs(t, err, ErrContractNotFound)
	})
}

func TestContractService_AddParticipant(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	service := NewContractService(db, users, storage.NewMemoryStore())
	ctx := context.Background()

	creator := createTestUser(t, db, "creator")
	counterparty := createTestUser(t, db, "counterparty")
	late := createTestUser(t, db, "late-joiner")

	contract, err := service.CreateContract(ctx, creator, CreateContractRequest{
		Title:            "Joinable",
		Content:          []byte("content"),
		ParticipantUUIDs: []string{counterparty.UUID},
	})
	require.NoError(t, err)

	t.Run("AddsCounterparty", func(t *testing.T) {
		party, err := service.AddParticipant(ctx, contract.ID, creator, late.UUID, models.PartyRoleCounterparty)
		require.NoError(t, err)
		assert.Equal(t, late.ID, party.UserID)
		assert.Equal(t, models.PartyRoleCounterparty, party.Role)
	})

	t.Run("DuplicateRejected", func(t *testing.T) {
		_, err := service.AddParticipant(ctx, contract.ID, creator, late.UUID, models.PartyRoleCounterparty)
		assert.ErrorIs(t, err, ErrParticipantExists)
	})

	t.Run("NonCreatorRequesterUnauthorized", func(t *testing.T) {
		_, err := service.AddParticipant(ctx, contract.ID, counterparty, late.UUID, models.PartyRoleCounterparty)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("CreatorUnderOtherRoleInvalid", func(t *testing.T) {
		_, err := service.AddParticipant(ctx, contract.ID, creator, creator.UUID, models.PartyRoleCounterparty)
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("UnknownParticipantFails", func(t *testing.T) {
		_, err := service.AddParticipant(ctx, contract.ID, creator, "5f0b2c7d-1234-4abc-9def-0123456789ab", models.PartyRoleCounterparty)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestContractService_DeleteContract(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	service := NewContractService(db, users, storage.NewMemoryStore())
	ctx := context.Background()

	creator := createTestUser(t, db, "creator")
	other := createTestUser(t, db, "other")

	contract, err := service.CreateContract(ctx, creator, CreateContractRequest{
		Title:   "Disposable",
		Content: []byte("content"),
	})
	require.NoError(t, err)

	t.Run("OnlyCreatorMayDelete", func(t *testing.T) {
		err := service.DeleteContract(ctx, contract.ID, other)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("SoftDeleteKeepsHistory", func(t *testing.T) {
		require.NoError(t, service.DeleteContract(ctx, contract.ID, creator))

		_, err := service.GetContract(ctx, contract.ID)
		assert.ErrorIs(t, err, ErrContractNotFound)

		// Row and version history survive the soft delete.
		var unscoped models.Contract
		require.NoError(t, db.Unscoped().First(&unscoped, contract.ID).Error)
		assert.True(t, unscoped.DeletedAt.Valid)

		var versionCount int64
		require.NoError(t, db.Model(&models.ContractVersion{}).
			Where("contract_id = ?", contract.ID).Count(&versionCount).Error)
		assert.EqualValues(t, 1, versionCount)
	})
}

func TestContractService_Queries(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	service := NewContractService(db, users, storage.NewMemoryStore())
	ctx := context.Background()

	creator := createTestUser(t, db, "creator")
	counterparty := createTestUser(t, db, "counterparty")

	first, err := service.CreateContract(ctx, creator, CreateContractRequest{
		Title:            "First",
		Content:          []byte("a"),
		ParticipantUUIDs: []string{counterparty.UUID},
	})
	require.NoError(t, err)
	_, err = service.CreateContract(ctx, creator, CreateContractRequest{
		Title:   "Second",
		Content: []byte("b"),
	})
	require.NoError(t, err)

	t.Run("ListContractsByUser", func(t *testing.T) {
		mine, err := service.ListContractsByUser(ctx, creator.UUID, 10, 0)
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		theirs, err := service.ListContractsByUser(ctx, counterparty.UUID, 10, 0)
		require.NoError(t, err)
		require.Len(t, theirs, 1)
		assert.Equal(t, "First", theirs[0].Title)
	})

	t.Run("GetVersionHistory", func(t *testing.T) {
		_, err := service.ReviseContract(ctx, first.ID, creator, ReviseContractRequest{
			Content: []byte("a2"),
		})
		require.NoError(t, err)

		versions, err := service.GetVersionHistory(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, 1, versions[0].VersionNumber)
		assert.Equal(t, models.VersionStatusArchived, versions[0].Status)
		assert.Equal(t, 2, versions[1].VersionNumber)
		assert.Equal(t, models.VersionStatusPendingSignature, versions[1].Status)
	})

	t.Run("HistoryForUnknownContract", func(t *testing.T) {
		_, err := service.GetVersionHistory(ctx, 99999)
		assert.ErrorIs(t, err, ErrContractNotFound)
	})
}
