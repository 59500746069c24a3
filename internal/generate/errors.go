package generate

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a generation failure for callers. Every kind maps to
// one fixed user-safe message; raw backend diagnostics stay in server logs.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation_error"
	KindAuthRequired        ErrorKind = "authentication_required"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindModelNotAllowed     ErrorKind = "model_not_allowed"
	KindQuotaExceeded       ErrorKind = "quota_exceeded"
	KindBackendTransient    ErrorKind = "backend_transient"
	KindBackendAuth         ErrorKind = "backend_auth"
	KindInvalidOutput       ErrorKind = "invalid_output"
	KindInternal            ErrorKind = "internal"
)

// Error is a classified generation failure. Message is always safe to show
// to an end user; Err carries the full detail for logs.
type Error struct {
	Kind      ErrorKind
	Message   string
	Remaining int // meaningful only for KindQuotaExceeded
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a classified *Error from err.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

func failf(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Fixed user-facing vocabulary. Detail never leaks into these.
const (
	msgEmptyDescription = "description must not be empty"
	msgUnknownKind      = "unsupported content type"
	msgLoginRequired    = "please log in first"
	msgNoProvider       = "no generation backend is available"
	msgQuotaExceeded    = "usage limit reached"
	msgTransient        = "generation failed, please try again"
	msgBackendAuth      = "backend configuration error, please contact the administrator"
	msgInvalidOutput    = "the generated result was not usable, please try again"
)
