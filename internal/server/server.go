// Package server exposes the generation pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/everstacklabs/inkgen/internal/auth"
	"github.com/everstacklabs/inkgen/internal/generate"
	"github.com/everstacklabs/inkgen/internal/provider"
	"github.com/everstacklabs/inkgen/internal/store"
)

// Generator is the orchestration surface the server needs.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (*generate.Result, error)
}

// Registry lists allow-listed backends for the providers endpoint.
type Registry interface {
	Allowed() []provider.Descriptor
	Default() (provider.ID, bool)
}

// Server handles the HTTP API.
type Server struct {
	svc      Generator
	registry Registry
	accounts store.AccountStore
	assets   store.AssetStore
	wechat   *auth.WeChat
}

// New creates the server. wechat may be nil when login is not configured.
func New(svc Generator, registry Registry, accounts store.AccountStore, assets store.AssetStore, wechat *auth.WeChat) *Server {
	return &Server{
		svc:      svc,
		registry: registry,
		accounts: accounts,
		assets:   assets,
		wechat:   wechat,
	}
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/providers", s.handleProviders)
	mux.HandleFunc("GET /api/assets", s.handleAssetList)
	mux.HandleFunc("GET /api/assets/{id}", s.handleAssetGet)
	mux.HandleFunc("DELETE /api/assets/{id}", s.handleAssetDelete)
	mux.HandleFunc("GET /api/user", s.handleUser)
	mux.HandleFunc("GET /api/admin/accounts", s.handleAccountList)
	mux.HandleFunc("PATCH /api/admin/accounts/{id}", s.handleAccountUpdate)
	mux.HandleFunc("GET /api/auth/wechat/authorize", s.handleWeChatAuthorize)
	mux.HandleFunc("GET /api/auth/wechat/callback", s.handleWeChatCallback)

	return s.withRequestLog(mux)
}

// withRequestLog tags each request with an id and logs its outcome.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.New().String()
		started := time.Now()

		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		slog.Info("request",
			"id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"elapsed", time.Since(started))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

type errorResponse struct {
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
	Remaining *int   `json:"remaining,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// writeError maps a classified generation error onto an HTTP status and the
// fixed user-safe message vocabulary. Unclassified errors become a generic
// 500; their detail is logged, never echoed.
func writeError(w http.ResponseWriter, err error) {
	if ge, ok := generate.AsError(err); ok {
		resp := errorResponse{ErrorKind: string(ge.Kind), Message: ge.Message}
		if ge.Kind == generate.KindQuotaExceeded {
			remaining := ge.Remaining
			resp.Remaining = &remaining
		}
		writeJSON(w, statusFor(ge.Kind), resp)
		return
	}

	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{ErrorKind: "not_found", Message: "not found"})
		return
	}

	slog.Error("unclassified error", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		ErrorKind: string(generate.KindInternal),
		Message:   "internal error, please try again",
	})
}

func statusFor(kind generate.ErrorKind) int {
	switch kind {
	case generate.KindValidation, generate.KindProviderUnavailable, generate.KindModelNotAllowed:
		return http.StatusBadRequest
	case generate.KindAuthRequired:
		return http.StatusUnauthorized
	case generate.KindQuotaExceeded:
		return http.StatusForbidden
	case generate.KindBackendTransient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
