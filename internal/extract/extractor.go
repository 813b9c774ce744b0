// Package extract sends page images to vision-capable language models and
// parses their replies into transaction candidates.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ktsuji/passbook-flow/internal/common"
	"github.com/ktsuji/passbook-flow/internal/model"
)

// Extractor is one vision model behind a provider-neutral interface.
// Implementations never return an error: any transport, API, or parse
// failure is absorbed into an empty candidate with ErrorTag set, so the
// orchestrator never branches on provider identity or failure mode.
type Extractor interface {
	// Extract performs exhaustive row extraction on one page image.
	Extract(ctx context.Context, page model.Page) model.ExtractionCandidate

	// Verify re-examines the page with a prior candidate embedded in the
	// prompt as a numeric-verification task.
	Verify(ctx context.Context, page model.Page, prior model.ExtractionCandidate) model.ExtractionCandidate

	// Name identifies the provider in error tags and logs.
	Name() string
}

// Config holds provider settings for one extractor.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// NewExtractor creates an extractor for the configured provider.
func NewExtractor(cfg Config) (Extractor, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		return newAnthropicExtractor(cfg)
	case "openai":
		return newOpenAIExtractor(cfg)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Provider)
	}
}

// failedCandidate builds the empty, error-tagged candidate that stands in
// for any provider failure. The tag is the rendered ErrProvider chain, so
// the provider and failure mode stay greppable in stored results.
func failedCandidate(provider, reason string, err error) model.ExtractionCandidate {
	failure := fmt.Errorf("%w: %s_%s", common.ErrProvider, provider, reason)
	if err != nil {
		failure = fmt.Errorf("%w: %v", failure, err)
	}
	return model.ExtractionCandidate{
		Transactions: []model.Transaction{},
		Confidence:   0.0,
		ErrorTag:     failure.Error(),
	}
}
