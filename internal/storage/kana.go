package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ktsuji/passbook-flow/internal/model"
)

// Confidence trajectory for kana entries mirrors learning patterns with a
// gentler step.
const (
	kanaInitialConfidence = 0.5
	kanaReinforcement     = 0.05
)

// LookupKana finds an exact-match dictionary entry for a kana string,
// preferring an entry scoped to the given source format over a generic one.
func (s *SQLiteStorage) LookupKana(ctx context.Context, kanaText, scope string) (*model.KanaEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(kanaText, "kanaText"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, kana_text, converted_text, scope, usage_count, confidence_score, created_at
		FROM kana_dictionary
		WHERE kana_text = ? AND (scope = ? OR scope = '')
		ORDER BY CASE WHEN scope = ? THEN 0 ELSE 1 END, usage_count DESC
		LIMIT 1
	`, kanaText, scope, scope)

	entry, err := scanKana(row)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up kana entry: %w", err)
	}
	return entry, nil
}

// ListKanaByConfidence returns entries above a confidence threshold, longest
// kana text first with usage count breaking ties. This ordering is what the
// converter's substring pass walks.
func (s *SQLiteStorage) ListKanaByConfidence(ctx context.Context, minConfidence float64) ([]model.KanaEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateConfidence(minConfidence, "minConfidence"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kana_text, converted_text, scope, usage_count, confidence_score, created_at
		FROM kana_dictionary
		WHERE confidence_score > ?
		ORDER BY LENGTH(kana_text) DESC, usage_count DESC
	`, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to query kana dictionary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.KanaEntry
	for rows.Next() {
		entry, scanErr := scanKana(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan kana entry: %w", scanErr)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate kana dictionary: %w", err)
	}

	return entries, nil
}

// BumpKanaUsage increments an entry's usage counter after a conversion hit.
func (s *SQLiteStorage) BumpKanaUsage(ctx context.Context, kanaText string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(kanaText, "kanaText"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE kana_dictionary SET usage_count = usage_count + 1 WHERE kana_text = ?
	`, kanaText)
	if err != nil {
		return fmt.Errorf("failed to bump kana usage: %w", err)
	}
	return nil
}

// LearnKana records one observation of a kana substitution. A matching
// (kana_text, converted_text, scope) entry is reinforced; an unseen
// kana_text is inserted at the initial confidence. Insertion never
// overwrites a conflicting entry for the same kana_text: the first writer
// wins.
func (s *SQLiteStorage) LearnKana(ctx context.Context, kanaText, convertedText, scope string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateKanaEntry(kanaText, convertedText); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE kana_dictionary
		SET usage_count = usage_count + 1,
		    confidence_score = MIN(1.0, confidence_score + ?)
		WHERE kana_text = ? AND converted_text = ? AND scope = ?
	`, kanaReinforcement, kanaText, convertedText, scope)
	if err != nil {
		return fmt.Errorf("failed to reinforce kana entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to reinforce kana entry: %w", err)
	}
	if affected > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO kana_dictionary (kana_text, converted_text, scope, usage_count, confidence_score)
		VALUES (?, ?, ?, 0, ?)
	`, kanaText, convertedText, scope, kanaInitialConfidence)
	if err != nil {
		return fmt.Errorf("failed to insert kana entry: %w", err)
	}

	return nil
}

func scanKana(row scannable) (*model.KanaEntry, error) {
	var entry model.KanaEntry
	err := row.Scan(&entry.ID, &entry.KanaText, &entry.ConvertedText, &entry.Scope,
		&entry.UsageCount, &entry.ConfidenceScore, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
