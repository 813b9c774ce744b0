package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ktsuji/passbook-flow/internal/common"
)

// CorrectionType is the closed set of user edit kinds.
type CorrectionType string

// Correction kinds.
const (
	CorrectionCellEdit  CorrectionType = "cell_edit"
	CorrectionRowAdd    CorrectionType = "row_add"
	CorrectionRowDelete CorrectionType = "row_delete"
	CorrectionRowMerge  CorrectionType = "row_merge"
)

// Valid reports whether the correction type is a known variant.
func (c CorrectionType) Valid() bool {
	switch c {
	case CorrectionCellEdit, CorrectionRowAdd, CorrectionRowDelete, CorrectionRowMerge:
		return true
	default:
		return false
	}
}

// Position locates a correction inside the extracted table.
type Position struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
}

// CorrectionRecord is one immutable log entry of a user edit.
type CorrectionRecord struct {
	CreatedAt time.Time
	Position  *Position
	ID        string
	FileRef   string
	UserID    string
	Type      CorrectionType
	Original  FieldSnapshot
	Corrected FieldSnapshot
}

// Validate checks the record before it is persisted.
func (r *CorrectionRecord) Validate() error {
	if r.FileRef == "" {
		return fmt.Errorf("correction missing file reference")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("unknown correction type %q", r.Type)
	}
	if len(r.Original.Fields) == 0 && len(r.Corrected.Fields) == 0 {
		return fmt.Errorf("correction carries no data")
	}
	return nil
}

// snapshotVersion is bumped if the stored snapshot layout ever changes.
const snapshotVersion = 1

// FieldSnapshot is a versioned, structured capture of a transaction record
// at correction time. Stored patterns reference snapshots instead of opaque
// stringified records so reconstruction cannot fail on formatting drift.
type FieldSnapshot struct {
	Fields map[string]any `json:"fields"`
	V      int            `json:"v"`
}

// NewFieldSnapshot captures a transaction's serialized fields.
func NewFieldSnapshot(txn Transaction) (FieldSnapshot, error) {
	data, err := json.Marshal(txn)
	if err != nil {
		return FieldSnapshot{}, fmt.Errorf("failed to snapshot transaction: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return FieldSnapshot{}, fmt.Errorf("failed to snapshot transaction: %w", err)
	}
	return FieldSnapshot{V: snapshotVersion, Fields: fields}, nil
}

// SnapshotFromFields wraps an already-assembled field map.
func SnapshotFromFields(fields map[string]any) FieldSnapshot {
	return FieldSnapshot{V: snapshotVersion, Fields: fields}
}

// Description returns the description field, if the snapshot has one.
func (s FieldSnapshot) Description() (string, bool) {
	v, ok := s.Fields["description"]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Has reports whether a named field is present.
func (s FieldSnapshot) Has(name string) bool {
	_, ok := s.Fields[name]
	return ok
}

// Encode serializes the snapshot for storage.
func (s FieldSnapshot) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return string(data), nil
}

// DecodeSnapshot parses a stored snapshot body. An unparseable or
// unversioned body fails with ErrPatternParse, the skip signal for
// pattern application.
func DecodeSnapshot(body string) (FieldSnapshot, error) {
	var s FieldSnapshot
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		return FieldSnapshot{}, fmt.Errorf("%w: %v", common.ErrPatternParse, err)
	}
	if s.V == 0 || s.Fields == nil {
		return FieldSnapshot{}, fmt.Errorf("%w: body missing version or fields", common.ErrPatternParse)
	}
	return s, nil
}
