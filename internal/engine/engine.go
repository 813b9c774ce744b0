// Package engine orchestrates document extraction: it rasterizes input,
// picks a strategy per page quality, drives the model extractors, and merges
// their candidates into one result.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ktsuji/passbook-flow/internal/extract"
	"github.com/ktsuji/passbook-flow/internal/model"
	"github.com/ktsuji/passbook-flow/internal/raster"
	"github.com/ktsuji/passbook-flow/internal/service"
)

// Strategy selection thresholds over the page quality estimate.
const (
	singleModelThreshold = 0.8
	stagedThreshold      = 0.5
)

// rasterizer is the slice of the raster package the engine needs; an
// interface so tests can substitute synthetic pages.
type rasterizer interface {
	Rasterize(ctx context.Context, data []byte, sink service.ProgressSink, progressFrom, progressTo int) ([]model.Page, error)
}

// Engine runs the per-document extraction pipeline. Either extractor may be
// nil when its provider is not configured; with both nil the engine
// short-circuits to the demonstration dataset.
type Engine struct {
	extractorA extract.Extractor
	extractorB extract.Extractor
	rasterizer rasterizer
	quality    QualityFunc
}

// Config holds optional engine knobs.
type Config struct {
	Quality QualityFunc
}

// New creates an engine with the default quality heuristic.
func New(a, b extract.Extractor) *Engine {
	return NewWithConfig(a, b, Config{})
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(a, b extract.Extractor, cfg Config) *Engine {
	quality := cfg.Quality
	if quality == nil {
		quality = DefaultQuality
	}
	// Keep the primary slot filled so single_model always has a target.
	if a == nil {
		a, b = b, nil
	}
	return &Engine{
		extractorA: a,
		extractorB: b,
		rasterizer: raster.New(),
		quality:    quality,
	}
}

// Process turns raw document bytes into a ProcessingResult. It always
// returns a well-formed result; the error is non-nil only for documents
// that could not be rasterized at all.
func (e *Engine) Process(ctx context.Context, data []byte, sink service.ProgressSink) (*model.ProcessingResult, error) {
	kind := raster.DetectKind(data)
	slog.Info("processing document", "bytes", len(data), "kind", kind)

	if kind == model.KindPDF {
		return e.processPDF(ctx, data, sink)
	}

	mediaType := "image/png"
	if kind == model.KindJPEG {
		mediaType = "image/jpeg"
	}

	result := e.processPage(ctx, model.Page{Index: 0, Data: data, MediaType: mediaType})
	notify(sink, fmt.Sprintf("Processing completed! %d transactions extracted", len(result.Transactions)), 100)
	return result, nil
}

func (e *Engine) processPDF(ctx context.Context, data []byte, sink service.ProgressSink) (*model.ProcessingResult, error) {
	notify(sink, "Converting PDF pages to images...", 0)

	pages, err := e.rasterizer.Rasterize(ctx, data, sink, 0, 10)
	if err != nil {
		slog.Error("rasterization failed", "error", err)
		return &model.ProcessingResult{
			Transactions: []model.Transaction{},
			Strategy:     model.StrategyError,
		}, err
	}

	notify(sink, fmt.Sprintf("PDF converted to %d images. Starting analysis...", len(pages)), 10)

	var all []model.Transaction
	var totalConfidence float64
	for i, page := range pages {
		select {
		case <-ctx.Done():
			return &model.ProcessingResult{
				Transactions: []model.Transaction{},
				Strategy:     model.StrategyError,
			}, ctx.Err()
		default:
		}

		percent := 10 + (i*80)/len(pages)
		notify(sink, fmt.Sprintf("Analyzing page %d/%d with AI...", i+1, len(pages)), percent)

		pageResult := e.processPage(ctx, page)
		all = append(all, pageResult.Transactions...)
		totalConfidence += pageResult.ConfidenceScore

		notify(sink, fmt.Sprintf("Page %d completed: %d transactions found", i+1, len(pageResult.Transactions)),
			percent+80/len(pages))
	}

	notify(sink, fmt.Sprintf("Finalizing results: %d transactions found", len(all)), 95)

	if all == nil {
		all = []model.Transaction{}
	}
	result := &model.ProcessingResult{
		Transactions:    all,
		ConfidenceScore: clamp01(totalConfidence / float64(len(pages))),
		Strategy:        model.StrategyMultiPageStaged,
	}

	notify(sink, fmt.Sprintf("Processing completed! %d transactions extracted", len(all)), 100)
	return result, nil
}

// processPage runs the quality-gated strategy state machine for one page.
// It never fails: a panicking strategy falls back to the demonstration
// dataset so extraction always terminates with some result.
func (e *Engine) processPage(ctx context.Context, page model.Page) (result *model.ProcessingResult) {
	if e.extractorA == nil {
		slog.Info("no provider credentials configured, using demonstration data")
		return mockResult()
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("extraction strategy failed, falling back to demonstration data",
				"page", page.Index, "panic", r)
			result = mockResult()
		}
	}()

	quality := e.quality(page)
	slog.Debug("assessed page quality", "page", page.Index, "quality", quality)

	switch {
	case quality > singleModelThreshold:
		return e.singleModel(ctx, page)
	case quality > stagedThreshold:
		return e.stagedVerify(ctx, page)
	default:
		return e.parallelMerge(ctx, page)
	}
}

// singleModel trusts the primary extractor alone.
func (e *Engine) singleModel(ctx context.Context, page model.Page) *model.ProcessingResult {
	candidate := e.extractorA.Extract(ctx, page)
	if candidate.Failed() {
		slog.Warn("single model extraction failed", "page", page.Index, "error_tag", candidate.ErrorTag)
	}

	confA := candidate.Confidence
	return &model.ProcessingResult{
		Transactions:     normalizeTransactions(candidate.Transactions, candidate.Confidence),
		ConfidenceScore:  clamp01(candidate.Confidence),
		Strategy:         model.StrategySingleModel,
		ModelAConfidence: &confA,
	}
}

// stagedVerify extracts with the primary, then has the secondary verify the
// numbers with the primary's candidate embedded in its prompt.
func (e *Engine) stagedVerify(ctx context.Context, page model.Page) *model.ProcessingResult {
	candA := e.extractorA.Extract(ctx, page)
	candB := e.verifyWithSecondary(ctx, page, candA)
	return mergeCandidates(candA, candB, model.StrategyStagedVerify)
}

// parallelMerge runs both extractors concurrently and reconciles. Failure
// of either side never cancels the other; both always complete before the
// merge.
func (e *Engine) parallelMerge(ctx context.Context, page model.Page) *model.ProcessingResult {
	var candA, candB model.ExtractionCandidate

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		candA = e.extractorA.Extract(ctx, page)
	}()
	go func() {
		defer wg.Done()
		candB = e.extractWithSecondary(ctx, page)
	}()
	wg.Wait()

	return mergeCandidates(candA, candB, model.StrategyParallelMerge)
}

func (e *Engine) extractWithSecondary(ctx context.Context, page model.Page) model.ExtractionCandidate {
	if e.extractorB == nil {
		return missingCandidate()
	}
	return e.extractorB.Extract(ctx, page)
}

func (e *Engine) verifyWithSecondary(ctx context.Context, page model.Page, prior model.ExtractionCandidate) model.ExtractionCandidate {
	if e.extractorB == nil {
		return missingCandidate()
	}
	return e.extractorB.Verify(ctx, page, prior)
}

// missingCandidate stands in for an unconfigured secondary provider.
func missingCandidate() model.ExtractionCandidate {
	return model.ExtractionCandidate{
		Transactions: []model.Transaction{},
		ErrorTag:     "provider_not_configured",
	}
}

// notify delivers a progress event if a sink is present. Fire and forget:
// the sink is never on the critical path.
func notify(sink service.ProgressSink, message string, percent int) {
	if sink == nil {
		return
	}
	sink.Notify(message, percent)
}
