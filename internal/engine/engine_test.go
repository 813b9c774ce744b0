package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ktsuji/passbook-flow/internal/model"
	"github.com/ktsuji/passbook-flow/internal/service"
)

// stubExtractor scripts candidate responses for strategy tests.
type stubExtractor struct {
	name        string
	extract     func(page model.Page) model.ExtractionCandidate
	verify      func(page model.Page, prior model.ExtractionCandidate) model.ExtractionCandidate
	extractHits atomic.Int64
	verifyHits  atomic.Int64
}

func (s *stubExtractor) Extract(_ context.Context, page model.Page) model.ExtractionCandidate {
	s.extractHits.Add(1)
	if s.extract != nil {
		return s.extract(page)
	}
	return model.ExtractionCandidate{Transactions: []model.Transaction{}}
}

func (s *stubExtractor) Verify(_ context.Context, page model.Page, prior model.ExtractionCandidate) model.ExtractionCandidate {
	s.verifyHits.Add(1)
	if s.verify != nil {
		return s.verify(page, prior)
	}
	return model.ExtractionCandidate{Transactions: []model.Transaction{}}
}

func (s *stubExtractor) Name() string { return s.name }

// stubRasterizer returns scripted pages without touching MuPDF.
type stubRasterizer struct {
	pages []model.Page
	err   error
}

func (s *stubRasterizer) Rasterize(_ context.Context, _ []byte, _ service.ProgressSink, _, _ int) ([]model.Page, error) {
	return s.pages, s.err
}

func fixedQuality(q float64) QualityFunc {
	return func(model.Page) float64 { return q }
}

func pageRow(desc string, conf float64) model.ExtractionCandidate {
	return model.ExtractionCandidate{
		Transactions: []model.Transaction{{Date: "01/01", Description: desc, Balance: 1}},
		Confidence:   conf,
	}
}

var pdfHeader = []byte("%PDF-1.4 fake")

func TestProcessPageHighQualityUsesSingleModel(t *testing.T) {
	a := &stubExtractor{name: "a", extract: func(model.Page) model.ExtractionCandidate { return pageRow("給与", 0.9) }}
	b := &stubExtractor{name: "b"}
	e := NewWithConfig(a, b, Config{Quality: fixedQuality(0.9)})

	result := e.processPage(context.Background(), model.Page{})

	if result.Strategy != model.StrategySingleModel {
		t.Fatalf("strategy = %s", result.Strategy)
	}
	if a.extractHits.Load() != 1 || b.extractHits.Load() != 0 || b.verifyHits.Load() != 0 {
		t.Errorf("single model must only touch A: a=%d b_extract=%d b_verify=%d",
			a.extractHits.Load(), b.extractHits.Load(), b.verifyHits.Load())
	}
	if result.ConfidenceScore != 0.9 {
		t.Errorf("confidence = %f, want A's self-reported 0.9", result.ConfidenceScore)
	}
}

func TestProcessPageMidQualityUsesStagedVerify(t *testing.T) {
	a := &stubExtractor{name: "a", extract: func(model.Page) model.ExtractionCandidate { return pageRow("ｾﾌﾞﾝ", 0.8) }}
	var gotPrior model.ExtractionCandidate
	b := &stubExtractor{name: "b", verify: func(_ model.Page, prior model.ExtractionCandidate) model.ExtractionCandidate {
		gotPrior = prior
		return pageRow("セブン", 0.85)
	}}
	e := NewWithConfig(a, b, Config{Quality: fixedQuality(0.7)})

	result := e.processPage(context.Background(), model.Page{})

	if result.Strategy != model.StrategyStagedVerify {
		t.Fatalf("strategy = %s", result.Strategy)
	}
	if b.verifyHits.Load() != 1 || b.extractHits.Load() != 0 {
		t.Error("staged verify must call B.Verify, not B.Extract")
	}
	if len(gotPrior.Transactions) != 1 || gotPrior.Transactions[0].Description != "ｾﾌﾞﾝ" {
		t.Errorf("B did not receive A's candidate: %+v", gotPrior)
	}
}

func TestProcessPageLowQualityUsesParallelMerge(t *testing.T) {
	a := &stubExtractor{name: "a", extract: func(model.Page) model.ExtractionCandidate { return pageRow("振込", 0.6) }}
	b := &stubExtractor{name: "b", extract: func(model.Page) model.ExtractionCandidate { return pageRow("振込", 0.7) }}
	e := NewWithConfig(a, b, Config{Quality: fixedQuality(0.3)})

	result := e.processPage(context.Background(), model.Page{})

	if result.Strategy != model.StrategyParallelMerge {
		t.Fatalf("strategy = %s", result.Strategy)
	}
	if a.extractHits.Load() != 1 || b.extractHits.Load() != 1 {
		t.Error("parallel merge must extract with both models")
	}
	if result.AgreementScore == nil || *result.AgreementScore != 1.0 {
		t.Errorf("agreement = %v", result.AgreementScore)
	}
}

func TestProcessPageFailedProviderStillYieldsResult(t *testing.T) {
	a := &stubExtractor{name: "a", extract: func(model.Page) model.ExtractionCandidate {
		return model.ExtractionCandidate{Transactions: []model.Transaction{}, ErrorTag: "anthropic_api_error"}
	}}
	e := NewWithConfig(a, nil, Config{Quality: fixedQuality(0.9)})

	result := e.processPage(context.Background(), model.Page{})

	if result == nil {
		t.Fatal("nil result")
	}
	if len(result.Transactions) != 0 || result.ConfidenceScore != 0.0 {
		t.Errorf("failed page should yield empty result, got %d txns conf %f",
			len(result.Transactions), result.ConfidenceScore)
	}
}

func TestProcessPageNoProvidersShortCircuitsToMockData(t *testing.T) {
	e := New(nil, nil)

	result := e.processPage(context.Background(), model.Page{})

	if result.Strategy != model.StrategyMockData {
		t.Fatalf("strategy = %s, want mock_data", result.Strategy)
	}
	if len(result.Transactions) == 0 {
		t.Error("demonstration dataset is empty")
	}
	if result.Transactions[1].Extra["vendor"] != "東京電力" {
		t.Error("demonstration dataset lost dynamic fields")
	}
}

func TestProcessPagePanickingStrategyFallsBackToMockData(t *testing.T) {
	a := &stubExtractor{name: "a"}
	e := NewWithConfig(a, nil, Config{Quality: func(model.Page) float64 { panic("bad image") }})

	result := e.processPage(context.Background(), model.Page{})

	if result.Strategy != model.StrategyMockData {
		t.Fatalf("strategy = %s, want mock_data fallback", result.Strategy)
	}
}

func TestProcessMultiPageConcatenatesInPageOrder(t *testing.T) {
	pages := []model.Page{
		{Index: 0, Data: []byte("p0"), MediaType: "image/png"},
		{Index: 1, Data: []byte("p1"), MediaType: "image/png"},
		{Index: 2, Data: []byte("p2"), MediaType: "image/png"},
	}
	a := &stubExtractor{name: "a", extract: func(page model.Page) model.ExtractionCandidate {
		return pageRow(fmt.Sprintf("page-%d", page.Index), 0.6)
	}}
	// Distinct per-page qualities exercise different per-page strategies.
	qualities := map[int]float64{0: 0.9, 1: 0.7, 2: 0.3}
	b := &stubExtractor{name: "b", extract: func(page model.Page) model.ExtractionCandidate {
		return pageRow(fmt.Sprintf("page-%d", page.Index), 0.6)
	}, verify: func(page model.Page, _ model.ExtractionCandidate) model.ExtractionCandidate {
		return pageRow(fmt.Sprintf("page-%d", page.Index), 0.6)
	}}

	e := NewWithConfig(a, b, Config{Quality: func(p model.Page) float64 { return qualities[p.Index] }})
	e.rasterizer = &stubRasterizer{pages: pages}

	result, err := e.Process(context.Background(), pdfHeader, nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.Strategy != model.StrategyMultiPageStaged {
		t.Errorf("strategy = %s, want multi_page_staged", result.Strategy)
	}
	if len(result.Transactions) != 3 {
		t.Fatalf("got %d transactions, want 3", len(result.Transactions))
	}
	for i, txn := range result.Transactions {
		want := fmt.Sprintf("page-%d", i)
		if txn.Description != want {
			t.Errorf("transaction %d = %q, want %q (page order)", i, txn.Description, want)
		}
	}
}

func TestProcessMultiPageFailedPageDoesNotAbortRemaining(t *testing.T) {
	pages := []model.Page{{Index: 0}, {Index: 1}, {Index: 2}}
	a := &stubExtractor{name: "a", extract: func(page model.Page) model.ExtractionCandidate {
		if page.Index == 1 {
			return model.ExtractionCandidate{Transactions: []model.Transaction{}, ErrorTag: "anthropic_api_error"}
		}
		return pageRow(fmt.Sprintf("page-%d", page.Index), 0.9)
	}}
	e := NewWithConfig(a, nil, Config{Quality: fixedQuality(0.9)})
	e.rasterizer = &stubRasterizer{pages: pages}

	result, err := e.Process(context.Background(), pdfHeader, nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(result.Transactions) != 2 {
		t.Errorf("got %d transactions, want 2 (pages 0 and 2)", len(result.Transactions))
	}
	// Mean over page count: (0.9 + 0 + 0.9) / 3.
	want := 0.6
	if diff := result.ConfidenceScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %f, want %f", result.ConfidenceScore, want)
	}
}

func TestProcessMalformedPDFYieldsErrorResult(t *testing.T) {
	e := New(nil, nil)
	e.rasterizer = &stubRasterizer{err: fmt.Errorf("rasterization failed: broken xref")}

	result, err := e.Process(context.Background(), pdfHeader, nil)

	if err == nil {
		t.Fatal("expected an error for a malformed document")
	}
	if result == nil || result.Strategy != model.StrategyError {
		t.Fatalf("result = %+v, want error-strategy result", result)
	}
	if result.Transactions == nil || len(result.Transactions) != 0 {
		t.Error("error result must carry an empty, non-nil transaction list")
	}
}

func TestProcessReportsProgressMonotonically(t *testing.T) {
	pages := []model.Page{{Index: 0}, {Index: 1}}
	a := &stubExtractor{name: "a", extract: func(model.Page) model.ExtractionCandidate { return pageRow("x", 0.9) }}
	e := NewWithConfig(a, nil, Config{Quality: fixedQuality(0.9)})
	e.rasterizer = &stubRasterizer{pages: pages}

	var percents []int
	sink := service.ProgressFunc(func(_ string, percent int) {
		percents = append(percents, percent)
	})

	if _, err := e.Process(context.Background(), pdfHeader, sink); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(percents) == 0 {
		t.Fatal("no progress events delivered")
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Errorf("progress regressed: %v", percents)
		}
	}
	if percents[len(percents)-1] != 100 {
		t.Errorf("final progress = %d, want 100", percents[len(percents)-1])
	}
}
