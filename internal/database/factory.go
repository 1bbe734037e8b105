package database

import (
	"fmt"
	"os"
	"path/filepath"

	"sst-go/internal/config"
	"sst-go/internal/sst"
)

// FileName is the journal's file name inside the configured data directory.
const FileName = "sst.db"

// NewDatabaseFromConfig opens the journal described by cfg.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock sst.Clock) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, FileName), clock)
	case "memory":
		return NewSQLiteDatabase(":memory:", clock)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
