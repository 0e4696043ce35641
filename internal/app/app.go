// Package app wires the service layer together for an embedding API surface.
package app

import (
	"fmt"

	"github.com/covenantlab/contract-notary/internal/config"
	"github.com/covenantlab/contract-notary/internal/ledger"
	"github.com/covenantlab/contract-notary/internal/services"
	"github.com/covenantlab/contract-notary/internal/storage"
)

// App bundles the initialized services and their shared resources.
type App struct {
	DB        services.DBService
	Gateway   ledger.Gateway
	Store     storage.ContentStore
	Users     services.UserService
	Contracts services.ContractService
	Signing   services.SignatureService
	Verifier  services.VerificationService
}

// New initializes the database, ledger gateway, content store and every
// service from the given configuration.
func New(cfg *config.Config) (*App, error) {
	var dbService services.DBService
	var err error
	if cfg.PostgresURL != "" {
		dbService, err = services.NewPostgresDBService(cfg.PostgresURL)
	} else {
		dbService, err = services.NewSqliteDBService(cfg.SqlitePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gateway, err := ledger.NewEvmGateway(cfg.LedgerRPCURL, cfg.LedgerContractAddress, cfg.LedgerPrivateKey, cfg.LedgerTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger gateway: %w", err)
	}

	store, err := storage.NewFileStore(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize content store: %w", err)
	}

	return NewWithDependencies(dbService, gateway, store, cfg), nil
}

// NewWithDependencies wires the services on top of already-constructed
// external collaborators. Tests use this with the in-memory gateway and store.
func NewWithDependencies(dbService services.DBService, gateway ledger.Gateway, store storage.ContentStore, cfg *config.Config) *App {
	db := dbService.GetDB()
	users := services.NewUserService(db)

	return &App{
		DB:        dbService,
		Gateway:   gateway,
		Store:     store,
		Users:     users,
		Contracts: services.NewContractService(db, users, store),
		Signing:   services.NewSignatureService(db, gateway, cfg.LedgerTimeout),
		Verifier:  services.NewVerificationService(db, gateway),
	}
}

// Close releases the database connection.
func (a *App) Close() error {
	return a.DB.Close()
}
