package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/covenantlab/contract-notary/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Contract{},
		&models.ContractVersion{},
		&models.ContractParty{},
		&models.Signature{},
		&models.AnchorRecord{},
	)
	require.NoError(t, err)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()

	user, err := NewUserService(db).CreateUser(context.Background(), name, name+"@example.com")
	require.NoError(t, err)
	return user
}
