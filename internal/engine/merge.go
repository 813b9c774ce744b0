package engine

import (
	"github.com/ktsuji/passbook-flow/internal/model"
	"github.com/ktsuji/passbook-flow/internal/normalize"
)

// agreementScore measures how similar two independent extractions are,
// by transaction count only. Content-level diffing is deliberately out of
// scope: counts are cheap and correlate well with gross disagreement.
func agreementScore(a, b model.ExtractionCandidate) float64 {
	countA, countB := len(a.Transactions), len(b.Transactions)
	if countA == 0 || countB == 0 {
		return 0.5
	}
	if countA > countB {
		countA, countB = countB, countA
	}
	return float64(countA) / float64(countB)
}

// finalConfidence blends the two self-reported confidences with the
// agreement score. The returned value is not clamped; callers clamp before
// persisting.
func finalConfidence(confA, confB, agreement float64) float64 {
	switch {
	case agreement > 0.95:
		return min(confA, confB) + 0.05
	case agreement > 0.85:
		return (confA + confB) / 2
	default:
		return max(confA, confB) * 0.7
	}
}

// mergeCandidates reconciles two candidates for the same page. A is the
// base; B is advisory only and never injects rows A missed. Descriptions
// pass through the text normalizer on the way out.
func mergeCandidates(a, b model.ExtractionCandidate, strategy model.Strategy) *model.ProcessingResult {
	agreement := agreementScore(a, b)
	confidence := clamp01(finalConfidence(a.Confidence, b.Confidence, agreement))

	confA, confB := a.Confidence, b.Confidence
	return &model.ProcessingResult{
		Transactions:     normalizeTransactions(a.Transactions, a.Confidence),
		ConfidenceScore:  confidence,
		Strategy:         strategy,
		ModelAConfidence: &confA,
		ModelBConfidence: &confB,
		AgreementScore:   &agreement,
	}
}

// normalizeTransactions applies description normalization and fills in the
// overall confidence for rows that carry no individual score.
func normalizeTransactions(transactions []model.Transaction, overallConfidence float64) []model.Transaction {
	out := make([]model.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		t := txn.Clone()
		t.Description = normalize.Text(t.Description)
		if t.ConfidenceScore == 0 {
			t.ConfidenceScore = clamp01(overallConfidence)
		}
		out = append(out, t)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
