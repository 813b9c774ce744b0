package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ktsuji/passbook-flow/internal/model"
)

// Confidence trajectory for learned patterns: start middling, step up on
// each reinforcement, never exceed certainty.
const (
	patternInitialConfidence = 0.5
	patternReinforcement     = 0.08
)

// UpsertLearningPattern records one observation of a (type, original,
// corrected) substitution. A new triple is inserted at the initial
// confidence; a repeat observation bumps frequency and confidence.
func (s *SQLiteStorage) UpsertLearningPattern(ctx context.Context, patternType model.PatternType, original, corrected string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	pattern := model.LearningPattern{Type: patternType, OriginalPattern: original, CorrectedPattern: corrected}
	if err := pattern.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learning_patterns (pattern_type, original_pattern, corrected_pattern, frequency, confidence_score)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(pattern_type, original_pattern, corrected_pattern) DO UPDATE SET
			frequency = frequency + 1,
			confidence_score = MIN(1.0, confidence_score + ?)
	`, string(patternType), original, corrected, patternInitialConfidence, patternReinforcement)
	if err != nil {
		return fmt.Errorf("failed to upsert learning pattern: %w", err)
	}

	return nil
}

// GetLearningPattern fetches one pattern by its key triple.
func (s *SQLiteStorage) GetLearningPattern(ctx context.Context, patternType model.PatternType, original, corrected string) (*model.LearningPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, pattern_type, original_pattern, corrected_pattern, frequency, confidence_score, created_at, last_used
		FROM learning_patterns
		WHERE pattern_type = ? AND original_pattern = ? AND corrected_pattern = ?
	`, string(patternType), original, corrected)

	pattern, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get learning pattern: %w", err)
	}
	return pattern, nil
}

// GetTopLearningPatterns returns patterns above a confidence threshold,
// highest frequency first, capped at limit. This is the pattern applier's
// working set.
func (s *SQLiteStorage) GetTopLearningPatterns(ctx context.Context, minConfidence float64, limit int) ([]model.LearningPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateConfidence(minConfidence, "minConfidence"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidRange)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern_type, original_pattern, corrected_pattern, frequency, confidence_score, created_at, last_used
		FROM learning_patterns
		WHERE confidence_score > ?
		ORDER BY frequency DESC
		LIMIT ?
	`, minConfidence, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query learning patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.LearningPattern
	for rows.Next() {
		pattern, scanErr := scanPattern(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan learning pattern: %w", scanErr)
		}
		patterns = append(patterns, *pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate learning patterns: %w", err)
	}

	return patterns, nil
}

// TouchLearningPattern stamps a pattern's last_used time after a successful
// application.
func (s *SQLiteStorage) TouchLearningPattern(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE learning_patterns SET last_used = ? WHERE id = ?
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch learning pattern: %w", err)
	}
	return nil
}

// LearningPatternStats summarizes the pattern store for reporting.
func (s *SQLiteStorage) LearningPatternStats(ctx context.Context) (int64, float64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, 0, err
	}

	var count int64
	var avgConfidence sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(confidence_score) FROM learning_patterns
	`).Scan(&count, &avgConfidence)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to compute pattern stats: %w", err)
	}

	return count, avgConfidence.Float64, nil
}

// scannable covers both sql.Row and sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanPattern(row scannable) (*model.LearningPattern, error) {
	var pattern model.LearningPattern
	var kind string
	var lastUsed sql.NullTime

	err := row.Scan(&pattern.ID, &kind, &pattern.OriginalPattern, &pattern.CorrectedPattern,
		&pattern.Frequency, &pattern.ConfidenceScore, &pattern.CreatedAt, &lastUsed)
	if err != nil {
		return nil, err
	}

	pattern.Type = model.PatternType(kind)
	if lastUsed.Valid {
		t := lastUsed.Time
		pattern.LastUsed = &t
	}
	return &pattern, nil
}
