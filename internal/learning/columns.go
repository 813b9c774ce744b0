package learning

import (
	"context"
	"fmt"
	"strings"

	"github.com/ktsuji/passbook-flow/internal/model"
	"github.com/ktsuji/passbook-flow/internal/service"
)

// ColumnMapper manages per-source-format column layouts and detects column
// headers in raw statement text.
type ColumnMapper struct {
	store service.Storage
}

// NewColumnMapper creates a mapper backed by the given store.
func NewColumnMapper(store service.Storage) *ColumnMapper {
	return &ColumnMapper{store: store}
}

// GetMapping returns the saved column layout for a source format in display
// order.
func (m *ColumnMapper) GetMapping(ctx context.Context, sourceFormat string) ([]model.ColumnMapping, error) {
	return m.store.GetColumnMappings(ctx, sourceFormat)
}

// SaveMapping replaces the whole column layout for a source format. Rows
// missing an original or standard name are silently dropped, never rejected.
func (m *ColumnMapper) SaveMapping(ctx context.Context, sourceFormat string, mappings []model.ColumnMapping) error {
	kept := make([]model.ColumnMapping, 0, len(mappings))
	for _, mapping := range mappings {
		if strings.TrimSpace(mapping.OriginalName) == "" || strings.TrimSpace(mapping.StandardName) == "" {
			continue
		}
		mapping.SourceFormat = sourceFormat
		if mapping.DisplayName == "" {
			mapping.DisplayName = mapping.OriginalName
		}
		if mapping.DataType == "" {
			mapping.DataType = standardColumnType(mapping.StandardName)
		}
		kept = append(kept, mapping)
	}

	if err := m.store.ReplaceColumnMappings(ctx, sourceFormat, kept); err != nil {
		return fmt.Errorf("failed to save column mapping: %w", err)
	}
	return nil
}

// headerEntry pairs a known header string with its canonical field name.
// Declaration order is the detection order.
type headerEntry struct {
	header   string
	standard string
}

// knownHeaders lists the passbook header variants the detector scans for.
var knownHeaders = []headerEntry{
	{"日付", "date"},
	{"取引日", "date"},
	{"摘要", "description"},
	{"お取引内容", "description"},
	{"出金", "withdrawal"},
	{"お引出し", "withdrawal"},
	{"支払金額", "withdrawal"},
	{"入金", "deposit"},
	{"お預入れ", "deposit"},
	{"預り金額", "deposit"},
	{"残高", "balance"},
	{"差引残高", "balance"},
	{"お取引後残高", "balance"},
}

// DetectColumnsFromText scans statement text for known header strings and
// returns one mapping row per match, in the scanning dictionary's declared
// order.
func (m *ColumnMapper) DetectColumnsFromText(text, sourceFormat string) []model.ColumnMapping {
	var detected []model.ColumnMapping
	position := 1

	for _, entry := range knownHeaders {
		if !strings.Contains(text, entry.header) {
			continue
		}
		detected = append(detected, model.ColumnMapping{
			SourceFormat: sourceFormat,
			OriginalName: entry.header,
			DisplayName:  entry.header,
			StandardName: entry.standard,
			DataType:     standardColumnType(entry.standard),
			Position:     position,
			IsVisible:    true,
			IsEditable:   true,
		})
		position++
	}

	return detected
}

// standardColumnType infers a rendering type from a canonical field name.
func standardColumnType(standardName string) model.ColumnDataType {
	switch standardName {
	case "date":
		return model.ColumnDate
	case "withdrawal", "deposit", "balance":
		return model.ColumnCurrency
	default:
		return model.ColumnText
	}
}
