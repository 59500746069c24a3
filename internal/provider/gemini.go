package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// GeminiClient implements Client using the Gemini generateContent API.
type GeminiClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewGeminiClient creates a client for the Gemini REST API.
func NewGeminiClient(apiKey, baseURL string, rps float64) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *GeminiClient) Name() ID { return Gemini }

// Gemini generateContent request/response types.
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *GeminiClient) Generate(ctx context.Context, model, instruction string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: instruction}}},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("gemini request: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: sending request: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if err := classifyStatus(resp.StatusCode, respBody, "gemini"); err != nil {
		// Gemini reports a bad key as 400 INVALID_ARGUMENT, not 401.
		if resp.StatusCode == http.StatusBadRequest && bytes.Contains(respBody, []byte("API_KEY_INVALID")) {
			return "", fmt.Errorf("%w: gemini status 400: %s", ErrAuth, string(respBody))
		}
		return "", err
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}

	if geminiResp.Error != nil {
		return "", fmt.Errorf("%w: gemini error: %s: %s", ErrUnavailable, geminiResp.Error.Status, geminiResp.Error.Message)
	}

	if len(geminiResp.Candidates) == 0 {
		return "", fmt.Errorf("%w: gemini returned no candidates", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: gemini candidate had no text", ErrEmptyResponse)
	}

	return sb.String(), nil
}
