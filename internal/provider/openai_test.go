package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIGenerate(t *testing.T) {
	var gotReq openaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("auth header = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "<svg><circle/></svg>"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, 100)
	got, err := c.Generate(context.Background(), "gpt-4o", "draw a circle")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "<svg><circle/></svg>" {
		t.Errorf("got %q", got)
	}

	if gotReq.Model != "gpt-4o" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "draw a circle" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
	if gotReq.Temperature != 0.7 {
		t.Errorf("temperature = %v", gotReq.Temperature)
	}
}

func TestOpenAIErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuth},
		{"forbidden", http.StatusForbidden, ErrAuth},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer srv.Close()

			c := NewOpenAIClient("sk-test", srv.URL, 100)
			_, err := c.Generate(context.Background(), "gpt-4o", "x")
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, 100)
	_, err := c.Generate(context.Background(), "gpt-4o", "x")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("got %v, want ErrEmptyResponse", err)
	}
}

func TestOpenAIConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	c := NewOpenAIClient("sk-test", srv.URL, 100)
	_, err := c.Generate(context.Background(), "gpt-4o", "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}
