package learning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ktsuji/passbook-flow/internal/model"
	"github.com/ktsuji/passbook-flow/internal/normalize"
	"github.com/ktsuji/passbook-flow/internal/service"
)

// Pattern applier working-set bounds: only well-reinforced patterns replay,
// and only the most frequent slice of them.
const (
	patternMinConfidence = 0.6
	patternLimit         = 100
)

// Service ties correction recording, pattern mining, and pattern replay
// together over one storage backend.
type Service struct {
	store service.Storage
	kana  *KanaConverter
}

// NewService creates the learning service.
func NewService(store service.Storage) *Service {
	return &Service{
		store: store,
		kana:  NewKanaConverter(store),
	}
}

// Kana exposes the service's converter for standalone conversion commands.
func (s *Service) Kana() *KanaConverter {
	return s.kana
}

// RecordCorrection appends a correction to the history log and mines it for
// reusable patterns. The correction itself must persist; pattern derivation
// is best effort and never fails the call.
func (s *Service) RecordCorrection(ctx context.Context, record *model.CorrectionRecord) (string, error) {
	if err := s.store.SaveCorrection(ctx, record); err != nil {
		return "", fmt.Errorf("failed to record correction: %w", err)
	}

	s.learnFromCorrection(ctx, record)

	slog.Info("recorded correction", "id", record.ID, "file", record.FileRef, "type", record.Type)
	return record.ID, nil
}

// learnFromCorrection derives kana and generic patterns from one correction.
func (s *Service) learnFromCorrection(ctx context.Context, record *model.CorrectionRecord) {
	// Kana substitutions are only mined from edits that carry a real
	// description change typed by the user.
	if record.Type == model.CorrectionCellEdit || record.Type == model.CorrectionRowAdd {
		origDesc, origOK := record.Original.Description()
		corrDesc, corrOK := record.Corrected.Description()
		if origOK && corrOK && origDesc != corrDesc && normalize.ContainsHalfWidthKana(origDesc) {
			if err := s.kana.LearnPattern(ctx, origDesc, corrDesc, model.KanaScopeGeneric); err != nil {
				slog.Warn("failed to learn kana pattern", "error", err)
			}
		}
	}

	patternType, ok := determinePatternType(record.Original, record.Corrected)
	if !ok {
		return
	}

	original, err := record.Original.Encode()
	if err != nil {
		slog.Warn("failed to encode original snapshot", "error", err)
		return
	}
	corrected, err := record.Corrected.Encode()
	if err != nil {
		slog.Warn("failed to encode corrected snapshot", "error", err)
		return
	}

	if err := s.store.UpsertLearningPattern(ctx, patternType, original, corrected); err != nil {
		slog.Warn("failed to upsert learning pattern", "type", patternType, "error", err)
	}
}

// determinePatternType classifies what a correction changed. Description
// changes win over amount fields, which win over dates.
func determinePatternType(original, corrected model.FieldSnapshot) (model.PatternType, bool) {
	if original.Has("description") && corrected.Has("description") {
		origDesc, _ := original.Description()
		corrDesc, _ := corrected.Description()
		if origDesc != corrDesc {
			return model.PatternDescription, true
		}
	}
	if original.Has("amount") || original.Has("withdrawal") || original.Has("deposit") {
		return model.PatternAmount, true
	}
	if original.Has("date") {
		return model.PatternDate, true
	}
	return "", false
}

// ApplyLearnedCorrections replays learned substitutions over freshly
// extracted transactions: kana conversion first, then the high-confidence
// pattern working set in frequency order. Best effort throughout — an
// unusable pattern is skipped and the input rows always come back.
func (s *Service) ApplyLearnedCorrections(ctx context.Context, transactions []model.Transaction, scope string) []model.Transaction {
	if len(transactions) == 0 {
		return transactions
	}

	patterns, err := s.store.GetTopLearningPatterns(ctx, patternMinConfidence, patternLimit)
	if err != nil {
		slog.Warn("failed to load learning patterns", "error", err)
		patterns = nil
	}

	corrected := make([]model.Transaction, len(transactions))
	for i := range transactions {
		txn := transactions[i].Clone()
		txn.Description = s.kana.Convert(ctx, txn.Description, scope)

		for j := range patterns {
			s.tryApplyPattern(ctx, &txn, &patterns[j])
		}
		corrected[i] = txn
	}

	return corrected
}

// tryApplyPattern attempts one pattern against one transaction's
// description, exact match first, then substring replacement. A pattern
// whose stored snapshot cannot be decoded is skipped, never fatal.
func (s *Service) tryApplyPattern(ctx context.Context, txn *model.Transaction, pattern *model.LearningPattern) {
	if pattern.Type != model.PatternDescription {
		return
	}

	original, err := model.DecodeSnapshot(pattern.OriginalPattern)
	if err != nil {
		slog.Debug("skipping unparseable pattern", "id", pattern.ID, "error", err)
		return
	}
	correctedSnap, err := model.DecodeSnapshot(pattern.CorrectedPattern)
	if err != nil {
		slog.Debug("skipping unparseable pattern", "id", pattern.ID, "error", err)
		return
	}

	origDesc, ok := original.Description()
	if !ok || origDesc == "" {
		return
	}
	corrDesc, ok := correctedSnap.Description()
	if !ok {
		return
	}

	applied := false
	switch {
	case txn.Description == origDesc:
		txn.Description = corrDesc
		applied = true
	case strings.Contains(txn.Description, origDesc):
		txn.Description = strings.ReplaceAll(txn.Description, origDesc, corrDesc)
		applied = true
	}

	if applied {
		slog.Debug("applied learning pattern", "from", origDesc, "to", corrDesc)
		if err := s.store.TouchLearningPattern(ctx, pattern.ID); err != nil {
			slog.Warn("failed to touch learning pattern", "id", pattern.ID, "error", err)
		}
	}
}

// Stats summarizes the learning subsystem for reporting.
type Stats struct {
	CorrectionCounts  map[model.CorrectionType]int64
	TopPatterns       []model.LearningPattern
	RecentCorrections int64
	PatternCount      int64
	AverageConfidence float64
}

// statsWindow bounds the "recent corrections" metric.
const statsWindow = 30 * 24 * time.Hour

// statsTopPatterns bounds the most-frequent-pattern listing. Unlike the
// replay working set, the listing is not confidence-gated: low-confidence
// patterns are exactly the ones worth seeing in a report.
const statsTopPatterns = 10

// Stats gathers improvement metrics over the recent correction history and
// the full pattern store.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.store.CountCorrectionsByType(ctx, time.Now().UTC().Add(-statsWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count corrections: %w", err)
	}

	patternCount, avgConfidence, err := s.store.LearningPatternStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute pattern stats: %w", err)
	}

	top, err := s.store.GetTopLearningPatterns(ctx, 0, statsTopPatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to list top patterns: %w", err)
	}

	var recent int64
	for _, count := range counts {
		recent += count
	}

	return &Stats{
		CorrectionCounts:  counts,
		TopPatterns:       top,
		RecentCorrections: recent,
		PatternCount:      patternCount,
		AverageConfidence: avgConfidence,
	}, nil
}
