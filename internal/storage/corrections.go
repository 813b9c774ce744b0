package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ktsuji/passbook-flow/internal/model"
)

// SaveCorrection appends one correction record to the history log. The log
// is append-only; records are never updated in place. Assigns an ID and
// creation time if the caller left them unset.
func (s *SQLiteStorage) SaveCorrection(ctx context.Context, record *model.CorrectionRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCorrection(record); err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	original, err := record.Original.Encode()
	if err != nil {
		return err
	}
	corrected, err := record.Corrected.Encode()
	if err != nil {
		return err
	}

	var position sql.NullString
	if record.Position != nil {
		data, marshalErr := json.Marshal(record.Position)
		if marshalErr != nil {
			return fmt.Errorf("failed to encode position: %w", marshalErr)
		}
		position = sql.NullString{String: string(data), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO correction_history (id, file_ref, user_id, correction_type, original_data, corrected_data, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.FileRef, nullableString(record.UserID), string(record.Type),
		original, corrected, position, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save correction: %w", err)
	}

	return nil
}

// GetCorrectionsByFile returns every correction recorded against a file,
// oldest first.
func (s *SQLiteStorage) GetCorrectionsByFile(ctx context.Context, fileRef string) ([]model.CorrectionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(fileRef, "fileRef"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_ref, user_id, correction_type, original_data, corrected_data, position, created_at
		FROM correction_history
		WHERE file_ref = ?
		ORDER BY created_at ASC
	`, fileRef)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.CorrectionRecord
	for rows.Next() {
		record, scanErr := scanCorrection(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate corrections: %w", err)
	}

	return records, nil
}

// CountCorrectionsByType counts corrections recorded since a point in time,
// grouped by correction type.
func (s *SQLiteStorage) CountCorrectionsByType(ctx context.Context, since time.Time) (map[model.CorrectionType]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT correction_type, COUNT(*)
		FROM correction_history
		WHERE created_at >= ?
		GROUP BY correction_type
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count corrections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.CorrectionType]int64)
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan correction count: %w", err)
		}
		counts[model.CorrectionType(kind)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate correction counts: %w", err)
	}

	return counts, nil
}

func scanCorrection(rows *sql.Rows) (*model.CorrectionRecord, error) {
	var record model.CorrectionRecord
	var kind string
	var userID, position sql.NullString
	var original, corrected string

	err := rows.Scan(&record.ID, &record.FileRef, &userID, &kind,
		&original, &corrected, &position, &record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan correction: %w", err)
	}

	record.Type = model.CorrectionType(kind)
	record.UserID = userID.String

	record.Original, err = model.DecodeSnapshot(original)
	if err != nil {
		return nil, fmt.Errorf("correction %s: %w", record.ID, err)
	}
	record.Corrected, err = model.DecodeSnapshot(corrected)
	if err != nil {
		return nil, fmt.Errorf("correction %s: %w", record.ID, err)
	}

	if position.Valid {
		var pos model.Position
		if err := json.Unmarshal([]byte(position.String), &pos); err != nil {
			return nil, fmt.Errorf("correction %s: failed to decode position: %w", record.ID, err)
		}
		record.Position = &pos
	}

	return &record, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
