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

// openaiExtractor implements the Extractor interface for the OpenAI API.
type openaiExtractor struct {
	httpClient *http.Client
	apiKey     string
	model      string
	maxTokens  int
}

const openaiEndpoint = "https://api.openai.com/v1/chat/completions"

const openaiSystemPrompt = "You are a bank statement data extraction expert. Always respond with valid JSON only, no additional text."

// newOpenAIExtractor creates a new OpenAI vision extractor.
func newOpenAIExtractor(cfg Config) (Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	m := cfg.Model
	if m == "" {
		m = "gpt-4o"
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4000
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &openaiExtractor{
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
func (c *openaiExtractor) Name() string {
	return "openai"
}

// Extract performs exhaustive row extraction on one page image.
func (c *openaiExtractor) Extract(ctx context.Context, page model.Page) model.ExtractionCandidate {
	return c.request(ctx, page, extractionPrompt, true)
}

// Verify re-reads the page against a prior candidate's numbers.
func (c *openaiExtractor) Verify(ctx context.Context, page model.Page, prior model.ExtractionCandidate) model.ExtractionCandidate {
	return c.request(ctx, page, verificationPrompt(prior), false)
}

func (c *openaiExtractor) request(ctx context.Context, page model.Page, prompt string, forceJSON bool) model.ExtractionCandidate {
	imageURL := fmt.Sprintf("data:%s;base64,%s", page.MediaType, base64.StdEncoding.EncodeToString(page.Data))

	requestBody := map[string]any{
		"model":      c.model,
		"max_tokens": c.maxTokens,
		"messages": []map[string]any{
			{
				"role":    "system",
				"content": openaiSystemPrompt,
			},
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]any{"url": imageURL}},
				},
			},
		},
	}
	if forceJSON {
		requestBody["response_format"] = map[string]string{"type": "json_object"}
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
		slog.Warn("openai request failed", "page", page.Index, "error", err)
		return failedCandidate(c.Name(), "api_error", err)
	}

	candidate, err := parseCandidate(responseText)
	if err != nil {
		slog.Warn("openai response unparseable", "page", page.Index, "error", err)
		return failedCandidate(c.Name(), "parse_error", err)
	}

	slog.Debug("openai extraction complete",
		"page", page.Index,
		"transactions", len(candidate.Transactions),
		"confidence", candidate.Confidence)
	return candidate
}

func (c *openaiExtractor) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openaiEndpoint, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

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
		return "", fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var response openaiResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return response.Choices[0].Message.Content, nil
}

// openaiResponse represents the OpenAI API response structure.
type openaiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}
