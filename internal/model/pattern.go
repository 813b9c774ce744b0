package model

import (
	"fmt"
	"time"
)

// PatternType classifies what a learned correction changed.
type PatternType string

// Pattern types derived from corrections.
const (
	PatternDescription PatternType = "description"
	PatternAmount      PatternType = "amount"
	PatternDate        PatternType = "date"
)

// LearningPattern is a generalized (original -> corrected) substitution
// mined from user corrections. Frequency and confidence only ever increase
// under normal operation.
type LearningPattern struct {
	CreatedAt        time.Time
	LastUsed         *time.Time
	Type             PatternType
	OriginalPattern  string
	CorrectedPattern string
	ID               int64
	Frequency        int64
	ConfidenceScore  float64
}

// Validate checks a pattern before persistence.
func (p *LearningPattern) Validate() error {
	switch p.Type {
	case PatternDescription, PatternAmount, PatternDate:
	default:
		return fmt.Errorf("unknown pattern type %q", p.Type)
	}
	if p.OriginalPattern == "" || p.CorrectedPattern == "" {
		return fmt.Errorf("pattern bodies cannot be empty")
	}
	return nil
}

// KanaScopeGeneric marks a kana entry that applies to every source format.
const KanaScopeGeneric = ""

// KanaEntry maps a half-width katakana string to its canonical full-width
// form. Scope is a source-format (bank) name, or KanaScopeGeneric.
type KanaEntry struct {
	CreatedAt       time.Time
	KanaText        string
	ConvertedText   string
	Scope           string
	ID              int64
	UsageCount      int64
	ConfidenceScore float64
}

// Validate checks a kana entry before persistence.
func (e *KanaEntry) Validate() error {
	if e.KanaText == "" {
		return fmt.Errorf("kana text cannot be empty")
	}
	if e.ConvertedText == "" {
		return fmt.Errorf("converted text cannot be empty")
	}
	return nil
}
