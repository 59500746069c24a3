// Package provider implements the allow-listed AI backend clients and the
// registry that resolves and caches them.
package provider

import (
	"context"
	"errors"
)

// ID identifies a supported backend.
type ID string

const (
	OpenAI ID = "openai"
	Gemini ID = "gemini"
)

// ParseID converts a wire value into a backend ID.
func ParseID(s string) (ID, bool) {
	switch ID(s) {
	case OpenAI, Gemini:
		return ID(s), true
	default:
		return "", false
	}
}

// Descriptor is an allow-listed backend and its permitted models.
// The model list order is significant: the first entry is the default.
type Descriptor struct {
	ID     ID
	Models []string
}

// Client is a callable generation backend.
type Client interface {
	// Name returns the backend identifier.
	Name() ID
	// Generate sends the instruction to the backend and returns the raw
	// model text. The call is bounded by the context deadline.
	Generate(ctx context.Context, model, instruction string) (string, error)
}

// Sentinel errors for backend failure classification.
var (
	ErrUnconfigured  = errors.New("provider: not configured")
	ErrAuth          = errors.New("provider: authentication failed")
	ErrRateLimited   = errors.New("provider: rate limited")
	ErrUnavailable   = errors.New("provider: backend unavailable")
	ErrEmptyResponse = errors.New("provider: empty response")
)

// IsAuth reports whether err indicates an invalid or rejected credential.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsTransient reports whether err is worth retrying by the caller
// (rate limiting, network failure, timeout, upstream outage).
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
