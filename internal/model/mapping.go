package model

import "fmt"

// ColumnDataType is the rendering/validation type of a mapped column.
type ColumnDataType string

// Column data types.
const (
	ColumnDate     ColumnDataType = "date"
	ColumnText     ColumnDataType = "text"
	ColumnCurrency ColumnDataType = "currency"
)

// ColumnMapping maps one source-format column onto a canonical field.
// The full set for a source format is replaced wholesale on save.
type ColumnMapping struct {
	SourceFormat string         `json:"source_format"`
	OriginalName string         `json:"original_name"`
	DisplayName  string         `json:"display_name"`
	StandardName string         `json:"standard_name"`
	DataType     ColumnDataType `json:"data_type"`
	ID           int64          `json:"id,omitempty"`
	Position     int            `json:"position"`
	IsVisible    bool           `json:"is_visible"`
	IsEditable   bool           `json:"is_editable"`
	IsRequired   bool           `json:"is_required"`
}

// Validate checks a mapping row. Rows with an empty original or standard
// name are dropped by the mapper before this is ever called, so an empty
// name here is a programming error.
func (m *ColumnMapping) Validate() error {
	if m.SourceFormat == "" {
		return fmt.Errorf("mapping missing source format")
	}
	if m.OriginalName == "" {
		return fmt.Errorf("mapping missing original name")
	}
	if m.StandardName == "" {
		return fmt.Errorf("mapping missing standard name")
	}
	return nil
}
