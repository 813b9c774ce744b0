package storage

import (
	"context"
	"fmt"

	"github.com/ktsuji/passbook-flow/internal/model"
)

// GetColumnMappings returns the mapping rows for a source format in display
// position order.
func (s *SQLiteStorage) GetColumnMappings(ctx context.Context, sourceFormat string) ([]model.ColumnMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sourceFormat, "sourceFormat"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_format, original_name, display_name, standard_name, data_type, position, is_visible, is_editable, is_required
		FROM column_mappings
		WHERE source_format = ?
		ORDER BY position ASC
	`, sourceFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to query column mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []model.ColumnMapping
	for rows.Next() {
		var m model.ColumnMapping
		var dataType string
		err := rows.Scan(&m.ID, &m.SourceFormat, &m.OriginalName, &m.DisplayName, &m.StandardName,
			&dataType, &m.Position, &m.IsVisible, &m.IsEditable, &m.IsRequired)
		if err != nil {
			return nil, fmt.Errorf("failed to scan column mapping: %w", err)
		}
		m.DataType = model.ColumnDataType(dataType)
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate column mappings: %w", err)
	}

	return mappings, nil
}

// ReplaceColumnMappings atomically swaps the whole mapping set for a source
// format: delete-all then insert-all, never a partial merge. An empty set
// clears the format.
func (s *SQLiteStorage) ReplaceColumnMappings(ctx context.Context, sourceFormat string, mappings []model.ColumnMapping) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sourceFormat, "sourceFormat"); err != nil {
		return err
	}
	if err := validateMappings(mappings); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM column_mappings WHERE source_format = ?`, sourceFormat); err != nil {
		return fmt.Errorf("failed to clear column mappings: %w", err)
	}

	for i := range mappings {
		m := &mappings[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO column_mappings (source_format, original_name, display_name, standard_name, data_type, position, is_visible, is_editable, is_required)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, sourceFormat, m.OriginalName, m.DisplayName, m.StandardName, string(m.DataType),
			m.Position, m.IsVisible, m.IsEditable, m.IsRequired)
		if err != nil {
			return fmt.Errorf("failed to insert column mapping %q: %w", m.OriginalName, err)
		}
	}

	return tx.Commit()
}
