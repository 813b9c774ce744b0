package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Correction history",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS correction_history (
					id TEXT PRIMARY KEY,
					file_ref TEXT NOT NULL,
					user_id TEXT,
					correction_type TEXT NOT NULL,
					original_data TEXT NOT NULL,
					corrected_data TEXT NOT NULL,
					position TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_correction_history_file_ref ON correction_history(file_ref)`,
				`CREATE INDEX idx_correction_history_created_at ON correction_history(created_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Learning patterns",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS learning_patterns (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					pattern_type TEXT NOT NULL,
					original_pattern TEXT NOT NULL,
					corrected_pattern TEXT NOT NULL,
					frequency INTEGER DEFAULT 1,
					confidence_score REAL DEFAULT 0.5,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					last_used DATETIME,
					UNIQUE(pattern_type, original_pattern, corrected_pattern)
				)`,
				`CREATE INDEX idx_learning_patterns_frequency ON learning_patterns(frequency DESC)`,
				`CREATE INDEX idx_learning_patterns_confidence ON learning_patterns(confidence_score)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Kana dictionary",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS kana_dictionary (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					kana_text TEXT NOT NULL UNIQUE,
					converted_text TEXT NOT NULL,
					scope TEXT NOT NULL DEFAULT '',
					usage_count INTEGER DEFAULT 0,
					confidence_score REAL DEFAULT 0.5,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_kana_dictionary_scope ON kana_dictionary(scope)`,
				`CREATE INDEX idx_kana_dictionary_confidence ON kana_dictionary(confidence_score)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Column mappings",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS column_mappings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					source_format TEXT NOT NULL,
					original_name TEXT NOT NULL,
					display_name TEXT NOT NULL,
					standard_name TEXT NOT NULL,
					data_type TEXT NOT NULL DEFAULT 'text',
					position INTEGER NOT NULL DEFAULT 0,
					is_visible INTEGER NOT NULL DEFAULT 1,
					is_editable INTEGER NOT NULL DEFAULT 1,
					is_required INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX idx_column_mappings_source_format ON column_mappings(source_format)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
