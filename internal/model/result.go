package model

// Strategy identifies how a document or page was processed.
type Strategy string

// Processing strategies.
const (
	StrategySingleModel     Strategy = "single_model"
	StrategyStagedVerify    Strategy = "staged_verify"
	StrategyParallelMerge   Strategy = "parallel_merge"
	StrategyMultiPageStaged Strategy = "multi_page_staged"
	StrategyMockData        Strategy = "mock_data"
	StrategyError           Strategy = "error"
)

// ExtractionCandidate is the output of one model extractor for one page.
// Immutable once returned; a failed call yields an empty candidate with
// ErrorTag set rather than an error.
type ExtractionCandidate struct {
	ErrorTag     string
	Transactions []Transaction
	Confidence   float64
}

// Failed reports whether the candidate came from a provider failure.
func (c ExtractionCandidate) Failed() bool {
	return c.ErrorTag != ""
}

// ProcessingResult is the final output for one document.
type ProcessingResult struct {
	ModelAConfidence *float64
	ModelBConfidence *float64
	AgreementScore   *float64
	Strategy         Strategy
	Transactions     []Transaction
	ConfidenceScore  float64
}

// DocumentKind is the sniffed type of an uploaded byte stream.
type DocumentKind string

// Recognized document kinds.
const (
	KindPDF     DocumentKind = "pdf"
	KindJPEG    DocumentKind = "jpeg"
	KindPNG     DocumentKind = "png"
	KindUnknown DocumentKind = "unknown"
)

// Page is one rasterized image derived from a document.
type Page struct {
	Data      []byte
	MediaType string
	Index     int
}
