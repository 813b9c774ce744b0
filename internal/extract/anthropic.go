package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ktsuji/passbook-flow/internal/common"
	"github.com/ktsuji/passbook-flow/internal/model"
)

// anthropicExtractor implements the Extractor interface for the Anthropic API.
type anthropicExtractor struct {
	httpClient *http.Client
	apiKey     string
	model      string
	maxTokens  int
}

const anthropicEndpoint = "https://api.anthropic.com/v1/messages"

// newAnthropicExtractor creates a new Anthropic vision extractor.
func newAnthropicExtractor(cfg Config) (Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	m := cfg.Model
	if m == "" {
		m = "claude-3-5-sonnet-20241022"
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4000
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &anthropicExtractor{
		apiKey:    cfg.APIKey,
		model:     m,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Name identifies this provider in error tags and logs.
func (c *anthropicExtractor) Name() string {
	return "anthropic"
}

// Extract performs exhaustive row extraction on one page image.
func (c *anthropicExtractor) Extract(ctx context.Context, page model.Page) model.ExtractionCandidate {
	return c.request(ctx, page, extractionPrompt)
}

// Verify re-reads the page against a prior candidate's numbers.
func (c *anthropicExtractor) Verify(ctx context.Context, page model.Page, prior model.ExtractionCandidate) model.ExtractionCandidate {
	return c.request(ctx, page, verificationPrompt(prior))
}

func (c *anthropicExtractor) request(ctx context.Context, page model.Page, prompt string) model.ExtractionCandidate {
	requestBody := map[string]any{
		"model":      c.model,
		"max_tokens": c.maxTokens,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{
						"type": "image",
						"source": map[string]any{
							"type":       "base64",
							"media_type": page.MediaType,
							"data":       base64.StdEncoding.EncodeToString(page.Data),
						},
					},
				},
			},
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return failedCandidate(c.Name(), "api_error", err)
	}

	var responseText string
	err = common.WithRetry(ctx, func() error {
		text, reqErr := c.send(ctx, jsonBody)
		if reqErr != nil {
			return reqErr
		}
		responseText = text
		return nil
	}, common.RetryOptions{MaxAttempts: 2})
	if err != nil {
		slog.Warn("anthropic request failed", "page", page.Index, "error", err)
		return failedCandidate(c.Name(), "api_error", err)
	}

	candidate, err := parseCandidate(responseText)
	if err != nil {
		slog.Warn("anthropic response unparseable", "page", page.Index, "error", err)
		return failedCandidate(c.Name(), "parse_error", err)
	}

	slog.Debug("anthropic extraction complete",
		"page", page.Index,
		"transactions", len(candidate.Transactions),
		"confidence", candidate.Confidence)
	return candidate
}

func (c *anthropicExtractor) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicEndpoint, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", common.ErrRateLimit
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var response anthropicResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	return response.Content[0].Text, nil
}

// anthropicResponse represents the Anthropic API response structure.
type anthropicResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
