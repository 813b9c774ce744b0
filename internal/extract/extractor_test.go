package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktsuji/passbook-flow/internal/common"
	"github.com/ktsuji/passbook-flow/internal/model"
)

func testPage() model.Page {
	return model.Page{
		Index:     0,
		Data:      []byte{0x89, 'P', 'N', 'G'},
		MediaType: "image/png",
	}
}

// The adapters build their own http.Client, so httpmock must be activated
// on that client rather than the default transport.
func newTestAnthropic(t *testing.T) Extractor {
	t.Helper()
	ext, err := NewExtractor(Config{
		Provider: "anthropic",
		APIKey:   "test-key",
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	httpmock.ActivateNonDefault(ext.(*anthropicExtractor).httpClient)
	return ext
}

func newTestOpenAI(t *testing.T) Extractor {
	t.Helper()
	ext, err := NewExtractor(Config{
		Provider: "openai",
		APIKey:   "test-key",
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	httpmock.ActivateNonDefault(ext.(*openaiExtractor).httpClient)
	return ext
}

func anthropicReply(text string) httpmock.Responder {
	return httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
		"id":      "msg_1",
		"content": []map[string]string{{"type": "text", "text": text}},
	})
}

func openaiReply(text string) httpmock.Responder {
	return httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
		"id": "chatcmpl-1",
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": text}},
		},
	})
}

func TestNewExtractorUnknownProvider(t *testing.T) {
	_, err := NewExtractor(Config{Provider: "bard", APIKey: "k"})
	assert.Error(t, err)
}

func TestNewExtractorRequiresAPIKey(t *testing.T) {
	for _, provider := range []string{"anthropic", "openai"} {
		_, err := NewExtractor(Config{Provider: provider})
		assert.Error(t, err, provider)
	}
}

func TestFailedCandidateTagsProviderFailure(t *testing.T) {
	candidate := failedCandidate("anthropic", "api_error", assert.AnError)

	assert.True(t, candidate.Failed())
	assert.Empty(t, candidate.Transactions)
	assert.Contains(t, candidate.ErrorTag, common.ErrProvider.Error())
	assert.Contains(t, candidate.ErrorTag, "anthropic_api_error")
	assert.Contains(t, candidate.ErrorTag, assert.AnError.Error())
}

func TestAnthropicExtractParsesWrappedJSON(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, anthropicEndpoint,
		anthropicReply("Here you go:\n{\"transactions\": [{\"date\": \"01/15\", \"description\": \"ｾﾌﾞﾝ\", \"withdrawal\": 800, \"deposit\": null, \"balance\": 99200}], \"confidence\": 0.88}"))

	candidate := newTestAnthropic(t).Extract(context.Background(), testPage())

	assert.False(t, candidate.Failed())
	assert.InDelta(t, 0.88, candidate.Confidence, 1e-9)
	require.Len(t, candidate.Transactions, 1)
	assert.Equal(t, "ｾﾌﾞﾝ", candidate.Transactions[0].Description)
}

func TestAnthropicExtractAbsorbsAPIFailure(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, anthropicEndpoint,
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"error": "overloaded"}`))

	candidate := newTestAnthropic(t).Extract(context.Background(), testPage())

	assert.True(t, candidate.Failed())
	assert.Empty(t, candidate.Transactions)
	assert.Zero(t, candidate.Confidence)
	assert.Contains(t, candidate.ErrorTag, "anthropic_api_error")
}

func TestAnthropicExtractAbsorbsUnparseableReply(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, anthropicEndpoint,
		anthropicReply("I cannot read this image at all."))

	candidate := newTestAnthropic(t).Extract(context.Background(), testPage())

	assert.True(t, candidate.Failed())
	assert.Contains(t, candidate.ErrorTag, "anthropic_parse_error")
}

func TestOpenAIExtractSendsDataURL(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var captured map[string]any
	httpmock.RegisterResponder(http.MethodPost, openaiEndpoint,
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&captured); err != nil {
				return nil, err
			}
			return openaiReply(`{"transactions": [], "confidence": 0.7}`)(req)
		})

	candidate := newTestOpenAI(t).Extract(context.Background(), testPage())

	assert.False(t, candidate.Failed())
	body, err := json.Marshal(captured)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "data:image/png;base64,"), "request should embed a data URL")
	assert.True(t, strings.Contains(string(body), "json_object"), "extraction should force JSON output")
}

func TestOpenAIVerifyEmbedsPriorCandidate(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var captured string
	httpmock.RegisterResponder(http.MethodPost, openaiEndpoint,
		func(req *http.Request) (*http.Response, error) {
			var body map[string]any
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return nil, err
			}
			raw, _ := json.Marshal(body)
			captured = string(raw)
			return openaiReply(`{"transactions": [{"date": "01/15", "description": "セブン", "withdrawal": 800, "deposit": null, "balance": 99200}], "confidence": 0.9}`)(req)
		})

	prior := model.ExtractionCandidate{
		Transactions: []model.Transaction{{Date: "01/15", Description: "ｾﾌﾞﾝ", Balance: 99200}},
		Confidence:   0.8,
	}

	candidate := newTestOpenAI(t).Verify(context.Background(), testPage(), prior)

	assert.False(t, candidate.Failed())
	assert.Contains(t, captured, "01/15", "prior transactions should be embedded in the prompt")
}

func TestOpenAIExtractAbsorbsTransportFailure(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, openaiEndpoint,
		httpmock.NewErrorResponder(assert.AnError))

	candidate := newTestOpenAI(t).Extract(context.Background(), testPage())

	assert.True(t, candidate.Failed())
	assert.Contains(t, candidate.ErrorTag, "openai_api_error")
}
