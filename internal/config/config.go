package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration.
type Config struct {
	// Database configuration. PostgresURL wins when both are set; SqlitePath
	// is the local/development fallback.
	PostgresURL string
	SqlitePath  string

	// Ledger configuration.
	LedgerRPCURL          string
	LedgerContractAddress string
	LedgerPrivateKey      string
	LedgerTimeout         time.Duration

	// Content storage directory.
	StorageDir string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		PostgresURL:           os.Getenv("POSTGRES_URL"),
		SqlitePath:            getEnv("SQLITE_PATH", "notary.db"),
		LedgerRPCURL:          os.Getenv("LEDGER_RPC_URL"),
		LedgerContractAddress: os.Getenv("LEDGER_CONTRACT_ADDRESS"),
		LedgerPrivateKey:      os.Getenv("LEDGER_PRIVATE_KEY"),
		LedgerTimeout:         getEnvAsDuration("LEDGER_TIMEOUT", 30*time.Second),
		StorageDir:            getEnv("STORAGE_DIR", "content"),
	}

	if cfg.LedgerRPCURL == "" {
		return nil, fmt.Errorf("LEDGER_RPC_URL is required")
	}
	if cfg.LedgerContractAddress == "" {
		return nil, fmt.Errorf("LEDGER_CONTRACT_ADDRESS is required")
	}
	if cfg.LedgerPrivateKey == "" {
		return nil, fmt.Errorf("LEDGER_PRIVATE_KEY is required")
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration or returns a
// default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
