package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// OpenAIClient implements Client using the OpenAI Chat Completions API.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewOpenAIClient creates a client for the OpenAI Chat Completions API.
// baseURL may point at any compatible endpoint (proxy or alternative vendor).
func NewOpenAIClient(apiKey, baseURL string, rps float64) *OpenAIClient {
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *OpenAIClient) Name() ID { return OpenAI }

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAIClient) Generate(ctx context.Context, model, instruction string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	reqBody := openaiRequest{
		Model: model,
		Messages: []openaiMessage{
			{Role: "user", Content: instruction},
		},
		Temperature: 0.7,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("openai request: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: sending request: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if err := classifyStatus(resp.StatusCode, respBody, "openai"); err != nil {
		return "", err
	}

	var openaiResp openaiResponse
	if err := json.Unmarshal(respBody, &openaiResp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}

	if openaiResp.Error != nil {
		return "", fmt.Errorf("%w: openai error: %s: %s", ErrUnavailable, openaiResp.Error.Type, openaiResp.Error.Message)
	}

	if len(openaiResp.Choices) == 0 || openaiResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: openai returned no choices", ErrEmptyResponse)
	}

	return openaiResp.Choices[0].Message.Content, nil
}

// classifyStatus maps a non-200 status to a sentinel error, keeping the raw
// body in the wrapped message for server-side logs only.
func classifyStatus(status int, body []byte, backend string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s status %d: %s", ErrAuth, backend, status, string(body))
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s status %d: %s", ErrRateLimited, backend, status, string(body))
	case status >= 500:
		return fmt.Errorf("%w: %s status %d: %s", ErrUnavailable, backend, status, string(body))
	default:
		return fmt.Errorf("%s API error (status %d): %s", backend, status, string(body))
	}
}
