// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ktsuji/passbook-flow/internal/model"
)

// Storage defines the contract for the learning persistence layer.
type Storage interface {
	// Correction operations
	SaveCorrection(ctx context.Context, record *model.CorrectionRecord) error
	GetCorrectionsByFile(ctx context.Context, fileRef string) ([]model.CorrectionRecord, error)
	CountCorrectionsByType(ctx context.Context, since time.Time) (map[model.CorrectionType]int64, error)

	// Learning pattern operations
	UpsertLearningPattern(ctx context.Context, patternType model.PatternType, original, corrected string) error
	GetLearningPattern(ctx context.Context, patternType model.PatternType, original, corrected string) (*model.LearningPattern, error)
	GetTopLearningPatterns(ctx context.Context, minConfidence float64, limit int) ([]model.LearningPattern, error)
	TouchLearningPattern(ctx context.Context, id int64) error
	LearningPatternStats(ctx context.Context) (count int64, avgConfidence float64, err error)

	// Kana dictionary operations
	LookupKana(ctx context.Context, kanaText, scope string) (*model.KanaEntry, error)
	ListKanaByConfidence(ctx context.Context, minConfidence float64) ([]model.KanaEntry, error)
	BumpKanaUsage(ctx context.Context, kanaText string) error
	LearnKana(ctx context.Context, kanaText, convertedText, scope string) error

	// Column mapping operations
	GetColumnMappings(ctx context.Context, sourceFormat string) ([]model.ColumnMapping, error)
	ReplaceColumnMappings(ctx context.Context, sourceFormat string, mappings []model.ColumnMapping) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// ProgressSink receives fire-and-forget progress notifications. Delivery is
// best effort; implementations must never block the pipeline.
type ProgressSink interface {
	Notify(message string, percent int)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(message string, percent int)

// Notify implements ProgressSink.
func (f ProgressFunc) Notify(message string, percent int) {
	if f != nil {
		f(message, percent)
	}
}
