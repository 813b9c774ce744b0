package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/ktsuji/passbook-flow/internal/extract"
	"github.com/ktsuji/passbook-flow/internal/storage"
)

// openStorage opens (and lazily creates) the learning database at the
// configured path.
func openStorage() (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "passbook", "passbook.db")
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// buildExtractors assembles the configured model extractors. A provider
// without an API key is simply absent; with neither configured the engine
// falls back to demonstration data.
func buildExtractors() (primary, secondary extract.Extractor) {
	if key := viper.GetString("anthropic.api_key"); key != "" {
		ext, err := extract.NewExtractor(extract.Config{
			Provider: "anthropic",
			APIKey:   key,
			Model:    viper.GetString("anthropic.model"),
		})
		if err != nil {
			slog.Warn("failed to configure anthropic extractor", "error", err)
		} else {
			primary = ext
		}
	}

	if key := viper.GetString("openai.api_key"); key != "" {
		ext, err := extract.NewExtractor(extract.Config{
			Provider: "openai",
			APIKey:   key,
			Model:    viper.GetString("openai.model"),
		})
		if err != nil {
			slog.Warn("failed to configure openai extractor", "error", err)
		} else {
			secondary = ext
		}
	}

	return primary, secondary
}
