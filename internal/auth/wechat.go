// Package auth implements the WeChat open-platform login exchange. It yields
// an opaque account identifier; sessions and cookies are the caller's
// concern.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/everstacklabs/inkgen/internal/config"
	"github.com/everstacklabs/inkgen/internal/store"
)

// ErrNotConfigured is returned when the WeChat app credentials are absent.
var ErrNotConfigured = errors.New("auth: wechat login not configured")

// WeChat endpoints for the QR-login flow.
const (
	wechatAuthURL  = "https://open.weixin.qq.com/connect/qrconnect"
	wechatTokenURL = "https://api.weixin.qq.com/sns/oauth2/access_token"
)

// WeChat exchanges login codes for accounts.
type WeChat struct {
	oauth           oauth2.Config
	appID           string
	secret          string
	tokenURL        string
	client          *http.Client
	accounts        store.AccountStore
	defaultCapacity int
}

// NewWeChat creates the login exchanger. accounts receives first-time logins
// with the default capacity.
func NewWeChat(cfg config.WeChatConfig, accounts store.AccountStore, defaultCapacity int) *WeChat {
	return &WeChat{
		oauth: oauth2.Config{
			ClientID:    cfg.AppID,
			Endpoint:    oauth2.Endpoint{AuthURL: wechatAuthURL},
			RedirectURL: cfg.RedirectURL,
			Scopes:      []string{"snsapi_login"},
		},
		appID:           cfg.AppID,
		secret:          cfg.Secret,
		tokenURL:        wechatTokenURL,
		client:          &http.Client{},
		accounts:        accounts,
		defaultCapacity: defaultCapacity,
	}
}

// Configured reports whether app credentials are present.
func (w *WeChat) Configured() bool {
	return w.appID != "" && w.secret != ""
}

// AuthorizeURL builds the QR-login URL for the given CSRF state.
// WeChat expects appid rather than the standard client_id parameter.
func (w *WeChat) AuthorizeURL(state string) (string, error) {
	if !w.Configured() {
		return "", ErrNotConfigured
	}
	return w.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("appid", w.appID)), nil
}

// wechatToken is the sns/oauth2/access_token response. Failures arrive in the
// same shape with errcode/errmsg set and a 200 status.
type wechatToken struct {
	AccessToken string `json:"access_token"`
	OpenID      string `json:"openid"`
	UnionID     string `json:"unionid"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

// exchangeCode redeems a callback code for the WeChat openid. The token
// endpoint is nonstandard: it wants appid/secret/code as query parameters on
// a GET and serves its JSON body as text/plain, so the exchange is
// hand-rolled rather than routed through oauth2.Exchange.
func (w *WeChat) exchangeCode(ctx context.Context, code string) (string, error) {
	q := url.Values{}
	q.Set("appid", w.appID)
	q.Set("secret", w.secret)
	q.Set("code", code)
	q.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.tokenURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchanging wechat code: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wechat token endpoint status %d: %s", resp.StatusCode, string(body))
	}

	var tok wechatToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if tok.ErrCode != 0 {
		return "", fmt.Errorf("wechat token exchange failed: %d %s", tok.ErrCode, tok.ErrMsg)
	}
	if tok.OpenID == "" {
		return "", fmt.Errorf("wechat token response missing openid")
	}
	return tok.OpenID, nil
}

// Login exchanges a callback code for the WeChat openid and returns the
// matching account, creating one with the default quota on first login.
func (w *WeChat) Login(ctx context.Context, code string) (*store.Account, error) {
	if !w.Configured() {
		return nil, ErrNotConfigured
	}

	openID, err := w.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	acct, err := w.accounts.GetAccountByOpenID(ctx, openID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	acct = &store.Account{
		ID:       uuid.New().String(),
		OpenID:   openID,
		Consumed: 0,
		Capacity: w.defaultCapacity,
	}
	if err := w.accounts.CreateAccount(ctx, acct); err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	return acct, nil
}
