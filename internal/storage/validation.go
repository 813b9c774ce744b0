package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ktsuji/passbook-flow/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidRange      = errors.New("value out of range")
	ErrInvalidCorrection = errors.New("invalid correction record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateConfidence ensures a confidence value sits in [0,1].
func validateConfidence(v float64, paramName string) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be between 0 and 1", ErrInvalidRange, paramName)
	}
	return nil
}

// validateCorrection validates a correction record before persistence.
func validateCorrection(record *model.CorrectionRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCorrection, err)
	}
	return nil
}

// validateKanaEntry validates kana learner input.
func validateKanaEntry(kanaText, convertedText string) error {
	if err := validateString(kanaText, "kanaText"); err != nil {
		return err
	}
	return validateString(convertedText, "convertedText")
}

// validateMappings validates a mapping set. Callers drop unnamed rows before
// reaching storage, so any invalid row here is a programming error.
func validateMappings(mappings []model.ColumnMapping) error {
	if mappings == nil {
		return fmt.Errorf("%w: mappings", ErrNilParameter)
	}
	for i := range mappings {
		if err := mappings[i].Validate(); err != nil {
			return fmt.Errorf("mapping at index %d: %w", i, err)
		}
	}
	return nil
}
