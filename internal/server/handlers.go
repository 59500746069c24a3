package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/everstacklabs/inkgen/internal/content"
	"github.com/everstacklabs/inkgen/internal/generate"
	"github.com/everstacklabs/inkgen/internal/quota"
	"github.com/everstacklabs/inkgen/internal/store"
)

type generateRequest struct {
	Description      string `json:"description"`
	AccountID        string `json:"accountId"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	ContentType      string `json:"contentType"`
	PriorOutput      string `json:"priorOutput"`
	PriorDescription string `json:"priorDescription"`
	BaseAssetID      string `json:"baseAssetId"`
}

type generateResponse struct {
	Markup      string `json:"markup"`
	ContentType string `json:"contentType"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	AssetID     string `json:"assetId"`
	Remaining   int    `json:"remaining"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			ErrorKind: string(generate.KindValidation),
			Message:   "invalid request body",
		})
		return
	}

	kind, err := content.ParseKind(req.ContentType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			ErrorKind: string(generate.KindValidation),
			Message:   err.Error(),
		})
		return
	}

	// Modifying an existing asset by id: load its markup as the prior
	// output unless the caller supplied one inline.
	priorOutput := req.PriorOutput
	priorDesc := req.PriorDescription
	if req.BaseAssetID != "" && priorOutput == "" {
		base, err := s.assets.GetAsset(r.Context(), req.BaseAssetID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeError(w, err)
			return
		}
		if base != nil {
			priorOutput = base.Markup
			if priorDesc == "" {
				priorDesc = base.Description
			}
		}
	}

	result, err := s.svc.Generate(r.Context(), generate.Request{
		Description:      req.Description,
		AccountID:        req.AccountID,
		Provider:         req.Provider,
		Model:            req.Model,
		Kind:             kind,
		PriorOutput:      priorOutput,
		PriorDescription: priorDesc,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// Persisting the artifact is the server's job, not the orchestrator's.
	asset := &store.Asset{
		ID:          uuid.New().String(),
		AccountID:   req.AccountID,
		Description: req.Description,
		Markup:      result.Markup,
		Kind:        result.Kind,
		Provider:    string(result.Provider),
		Model:       result.Model,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.assets.CreateAsset(r.Context(), asset); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Markup:      result.Markup,
		ContentType: string(result.Kind),
		Provider:    string(result.Provider),
		Model:       result.Model,
		AssetID:     asset.ID,
		Remaining:   result.Remaining,
	})
}

type providerInfo struct {
	ID     string   `json:"id"`
	Models []string `json:"models"`
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	allowed := s.registry.Allowed()
	infos := make([]providerInfo, 0, len(allowed))
	for _, d := range allowed {
		infos = append(infos, providerInfo{ID: string(d.ID), Models: d.Models})
	}

	resp := struct {
		Providers []providerInfo `json:"providers"`
		Default   string         `json:"default,omitempty"`
	}{Providers: infos}
	if def, ok := s.registry.Default(); ok {
		resp.Default = string(def)
	}

	writeJSON(w, http.StatusOK, resp)
}

type assetSummary struct {
	ID          string `json:"id"`
	AccountID   string `json:"accountId,omitempty"`
	Description string `json:"description"`
	ContentType string `json:"contentType"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	CreatedAt   string `json:"createdAt"`
}

func summarize(a *store.Asset) assetSummary {
	return assetSummary{
		ID:          a.ID,
		AccountID:   a.AccountID,
		Description: a.Description,
		ContentType: string(a.Kind),
		Provider:    a.Provider,
		Model:       a.Model,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleAssetList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	assets, total, err := s.assets.ListAssets(r.Context(), store.ListOptions{
		AccountID: q.Get("accountId"),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	summaries := make([]assetSummary, 0, len(assets))
	for _, a := range assets {
		summaries = append(summaries, summarize(a))
	}

	writeJSON(w, http.StatusOK, struct {
		Assets []assetSummary `json:"assets"`
		Total  int            `json:"total"`
	}{Assets: summaries, Total: total})
}

func (s *Server) handleAssetGet(w http.ResponseWriter, r *http.Request) {
	a, err := s.assets.GetAsset(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := struct {
		assetSummary
		Markup string `json:"markup"`
	}{assetSummary: summarize(a), Markup: a.Markup}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAssetDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.assets.DeleteAsset(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Deleted bool `json:"deleted"`
	}{Deleted: true})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			ErrorKind: string(generate.KindValidation),
			Message:   "accountId is required",
		})
		return
	}

	acct, err := s.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	remaining := quota.Unlimited
	if !acct.Unlimited {
		remaining = acct.Capacity - acct.Consumed
	}

	writeJSON(w, http.StatusOK, struct {
		AccountID string `json:"accountId"`
		Nickname  string `json:"nickname,omitempty"`
		Remaining int    `json:"remaining"`
		Unlimited bool   `json:"unlimited"`
	}{
		AccountID: acct.ID,
		Nickname:  acct.Nickname,
		Remaining: remaining,
		Unlimited: acct.Unlimited,
	})
}

type accountSummary struct {
	ID        string `json:"id"`
	OpenID    string `json:"openId,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	Consumed  int    `json:"consumed"`
	Capacity  int    `json:"capacity"`
	Unlimited bool   `json:"unlimited"`
	CreatedAt string `json:"createdAt"`
}

func summarizeAccount(a *store.Account) accountSummary {
	return accountSummary{
		ID:        a.ID,
		OpenID:    a.OpenID,
		Nickname:  a.Nickname,
		Consumed:  a.Consumed,
		Capacity:  a.Capacity,
		Unlimited: a.Unlimited,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleAccountList(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.ListAccounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	summaries := make([]accountSummary, 0, len(accounts))
	for _, a := range accounts {
		summaries = append(summaries, summarizeAccount(a))
	}

	writeJSON(w, http.StatusOK, struct {
		Accounts []accountSummary `json:"accounts"`
	}{Accounts: summaries})
}

// accountUpdateRequest adjusts an account's entitlements. Absent fields leave
// the account unchanged.
type accountUpdateRequest struct {
	Unlimited     *bool `json:"unlimited"`
	ResetConsumed bool  `json:"resetConsumed"`
	AddCapacity   int   `json:"addCapacity"`
}

func (s *Server) handleAccountUpdate(w http.ResponseWriter, r *http.Request) {
	var req accountUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			ErrorKind: string(generate.KindValidation),
			Message:   "invalid request body",
		})
		return
	}
	if req.AddCapacity < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			ErrorKind: string(generate.KindValidation),
			Message:   "addCapacity must not be negative",
		})
		return
	}

	acct, err := s.accounts.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Unlimited != nil {
		acct.Unlimited = *req.Unlimited
	}
	if req.ResetConsumed {
		acct.Consumed = 0
	}
	acct.Capacity += req.AddCapacity

	if err := s.accounts.UpdateAccount(r.Context(), acct); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summarizeAccount(acct))
}

func (s *Server) handleWeChatAuthorize(w http.ResponseWriter, r *http.Request) {
	if s.wechat == nil || !s.wechat.Configured() {
		writeJSON(w, http.StatusNotImplemented, errorResponse{
			ErrorKind: "login_unavailable",
			Message:   "login is not configured",
		})
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		state = uuid.New().String()
	}

	url, err := s.wechat.AuthorizeURL(state)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		URL   string `json:"url"`
		State string `json:"state"`
	}{URL: url, State: state})
}

func (s *Server) handleWeChatCallback(w http.ResponseWriter, r *http.Request) {
	if s.wechat == nil || !s.wechat.Configured() {
		writeJSON(w, http.StatusNotImplemented, errorResponse{
			ErrorKind: "login_unavailable",
			Message:   "login is not configured",
		})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			ErrorKind: string(generate.KindValidation),
			Message:   "code is required",
		})
		return
	}

	acct, err := s.wechat.Login(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		AccountID string `json:"accountId"`
		Nickname  string `json:"nickname,omitempty"`
	}{AccountID: acct.ID, Nickname: acct.Nickname})
}
