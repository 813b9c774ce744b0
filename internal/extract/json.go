package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ktsuji/passbook-flow/internal/model"
)

// scrapeJSON returns the first balanced JSON object in a model reply: the
// slice from the first '{' to the last '}'. Models wrap JSON in prose and
// markdown fences often enough that strict parsing of the whole reply is a
// losing game.
func scrapeJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return text[start : end+1], nil
}

// candidatePayload is the JSON shape both providers are prompted to return.
type candidatePayload struct {
	Transactions []model.Transaction `json:"transactions"`
	Confidence   float64             `json:"confidence"`
}

// parseCandidate turns a raw model reply into an extraction candidate.
func parseCandidate(text string) (model.ExtractionCandidate, error) {
	jsonStr, err := scrapeJSON(text)
	if err != nil {
		return model.ExtractionCandidate{}, err
	}

	var payload candidatePayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return model.ExtractionCandidate{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if payload.Transactions == nil {
		payload.Transactions = []model.Transaction{}
	}

	return model.ExtractionCandidate{
		Transactions: payload.Transactions,
		Confidence:   payload.Confidence,
	}, nil
}
