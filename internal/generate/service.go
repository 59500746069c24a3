// Package generate coordinates a generation request end to end: validation,
// quota, backend resolution, prompt construction, the backend call, output
// sanitization, and usage accounting.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/everstacklabs/inkgen/internal/content"
	"github.com/everstacklabs/inkgen/internal/prompt"
	"github.com/everstacklabs/inkgen/internal/provider"
	"github.com/everstacklabs/inkgen/internal/quota"
	"github.com/everstacklabs/inkgen/internal/sanitize"
)

// Registry is the backend-resolution surface the service needs.
type Registry interface {
	Resolve(id provider.ID) (provider.Client, error)
	Allowed() []provider.Descriptor
	Default() (provider.ID, bool)
	Descriptor(id provider.ID) (provider.Descriptor, bool)
	ModelAllowed(id provider.ID, model string) bool
}

// Ledger is the quota surface the service needs.
type Ledger interface {
	Check(ctx context.Context, accountID string) (quota.Status, error)
	Consume(ctx context.Context, accountID string) error
}

// Request is one inbound generation call.
type Request struct {
	Description      string
	AccountID        string
	Provider         string
	Model            string
	Kind             content.Kind
	PriorOutput      string
	PriorDescription string
}

// Result is a successful generation.
type Result struct {
	Markup    string
	Kind      content.Kind
	Provider  provider.ID
	Model     string
	Remaining int
}

// Service is the generation orchestrator.
type Service struct {
	registry       Registry
	ledger         Ledger
	allowAnonymous bool
	timeout        time.Duration
}

// NewService creates the orchestrator. timeout bounds the backend call.
func NewService(registry Registry, ledger Ledger, allowAnonymous bool, timeout time.Duration) *Service {
	return &Service{
		registry:       registry,
		ledger:         ledger,
		allowAnonymous: allowAnonymous,
		timeout:        timeout,
	}
}

// Generate runs one request through the pipeline. Quota is consumed only
// after the output has been sanitized successfully; any earlier failure
// leaves the account's counter untouched.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	// Validate.
	if strings.TrimSpace(req.Description) == "" {
		return nil, failf(KindValidation, msgEmptyDescription, nil)
	}
	if req.Kind == "" {
		req.Kind = content.KindSVG
	}
	if !req.Kind.Valid() {
		return nil, failf(KindValidation, msgUnknownKind, fmt.Errorf("content kind %q", req.Kind))
	}

	anonymous := req.AccountID == ""
	if anonymous && !s.allowAnonymous {
		return nil, failf(KindAuthRequired, msgLoginRequired, nil)
	}

	// Quota check. Anonymous requests bypass the ledger entirely.
	var status quota.Status
	if !anonymous {
		var err error
		status, err = s.ledger.Check(ctx, req.AccountID)
		if err != nil {
			return nil, failf(KindInternal, msgTransient, err)
		}
		if !status.Allowed {
			return nil, &Error{
				Kind:      KindQuotaExceeded,
				Message:   msgQuotaExceeded,
				Remaining: status.Remaining,
			}
		}
	}

	// Resolve backend and model.
	id, model, err := s.resolveTarget(req)
	if err != nil {
		return nil, err
	}

	client, err := s.registry.Resolve(id)
	if err != nil {
		return nil, failf(KindProviderUnavailable, msgNoProvider, err)
	}

	// Build the instruction and invoke the backend. This is the one
	// blocking step; it is bounded and never retried here.
	mode := prompt.ModeFor(req.PriorOutput, req.PriorDescription)
	instruction := prompt.Build(req.Kind, mode, req.Description)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	raw, err := client.Generate(callCtx, model, instruction)
	if err != nil {
		slog.Error("backend call failed",
			"provider", id,
			"model", model,
			"elapsed", time.Since(started),
			"error", err)
		return nil, classifyBackendErr(err)
	}

	// Sanitize. A failure here is safe to retry: no quota has moved.
	markup, err := sanitize.Clean(raw, req.Kind)
	if err != nil {
		slog.Error("sanitize failed",
			"provider", id,
			"model", model,
			"kind", req.Kind,
			"error", err)
		return nil, failf(KindInvalidOutput, msgInvalidOutput, err)
	}
	// Record usage for identified, capacity-bound accounts.
	remaining := quota.Unlimited
	if !anonymous && status.Remaining != quota.Unlimited {
		if err := s.ledger.Consume(ctx, req.AccountID); err != nil {
			// The artifact exists; losing it over a bookkeeping failure
			// helps nobody. Log and report the pre-consume remainder.
			slog.Error("quota consume failed", "account", req.AccountID, "error", err)
			remaining = status.Remaining
		} else if after, err := s.ledger.Check(ctx, req.AccountID); err == nil {
			remaining = after.Remaining
		} else {
			remaining = status.Remaining - 1
		}
	}

	attrs := []any{
		"provider", id,
		"model", model,
		"kind", req.Kind,
		"mode", mode.Kind,
		"anonymous", anonymous,
		"elapsed", time.Since(started),
	}
	if req.Kind == content.KindHTML {
		// Prose that got doc-shell wrapped parses to a body with no element
		// children; flag it so bad outputs are findable without the artifact.
		attrs = append(attrs, "has_markup", sanitize.HasElements(markup))
	}
	slog.Info("generation complete", attrs...)

	return &Result{
		Markup:    markup,
		Kind:      req.Kind,
		Provider:  id,
		Model:     model,
		Remaining: remaining,
	}, nil
}

// resolveTarget picks the backend and model, enforcing the allow-lists.
func (s *Service) resolveTarget(req Request) (provider.ID, string, error) {
	var id provider.ID
	if req.Provider != "" {
		parsed, ok := provider.ParseID(req.Provider)
		if !ok {
			return "", "", failf(KindProviderUnavailable, msgNoProvider,
				fmt.Errorf("unknown provider %q", req.Provider))
		}
		if _, ok := s.registry.Descriptor(parsed); !ok {
			return "", "", failf(KindProviderUnavailable, msgNoProvider,
				fmt.Errorf("provider %q is not enabled", req.Provider))
		}
		id = parsed
	} else {
		def, ok := s.registry.Default()
		if !ok {
			return "", "", failf(KindProviderUnavailable, msgNoProvider,
				fmt.Errorf("no providers configured"))
		}
		id = def
	}

	desc, _ := s.registry.Descriptor(id)
	if req.Model != "" {
		if !s.registry.ModelAllowed(id, req.Model) {
			return "", "", failf(KindModelNotAllowed,
				fmt.Sprintf("model %q is not enabled for %s", req.Model, id),
				fmt.Errorf("model %q not in allow-list for %s", req.Model, id))
		}
		return id, req.Model, nil
	}
	return id, desc.Models[0], nil
}

func classifyBackendErr(err error) *Error {
	if provider.IsAuth(err) {
		return failf(KindBackendAuth, msgBackendAuth, err)
	}
	return failf(KindBackendTransient, msgTransient, err)
}
