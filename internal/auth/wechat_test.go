package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/everstacklabs/inkgen/internal/config"
	"github.com/everstacklabs/inkgen/internal/store"
)

func testWeChat(t *testing.T, handler http.HandlerFunc) (*WeChat, *store.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	mem := store.NewMemoryStore()
	w := NewWeChat(config.WeChatConfig{
		AppID:       "wx-app",
		Secret:      "wx-secret",
		RedirectURL: "https://example.com/cb",
	}, mem, 3)
	w.tokenURL = srv.URL
	return w, mem
}

// The token endpoint deviates from RFC 6749: credentials go in the query
// string of a GET and the JSON body is served as text/plain.
func TestLoginExchangesCodeViaQueryParams(t *testing.T) {
	var gotQuery url.Values
	w, mem := testWeChat(t, func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		gotQuery = r.URL.Query()
		rw.Header().Set("Content-Type", "text/plain")
		_, _ = rw.Write([]byte(`{"access_token":"at","expires_in":7200,"openid":"open-1","scope":"snsapi_login"}`))
	})

	acct, err := w.Login(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if gotQuery.Get("appid") != "wx-app" || gotQuery.Get("secret") != "wx-secret" {
		t.Errorf("credentials missing from query: %v", gotQuery)
	}
	if gotQuery.Get("code") != "code-1" || gotQuery.Get("grant_type") != "authorization_code" {
		t.Errorf("code/grant_type missing from query: %v", gotQuery)
	}

	if acct.OpenID != "open-1" || acct.Capacity != 3 {
		t.Errorf("account = %+v", acct)
	}
	if acct.ID == "" {
		t.Error("expected a generated account id")
	}

	// First login persisted the account.
	if _, err := mem.GetAccountByOpenID(context.Background(), "open-1"); err != nil {
		t.Errorf("account not persisted: %v", err)
	}
}

func TestLoginReturnsExistingAccount(t *testing.T) {
	w, mem := testWeChat(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain")
		_, _ = rw.Write([]byte(`{"access_token":"at","openid":"open-1"}`))
	})

	seeded := &store.Account{ID: "u1", OpenID: "open-1", Capacity: 10, Consumed: 4}
	if err := mem.CreateAccount(context.Background(), seeded); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	acct, err := w.Login(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if acct.ID != "u1" || acct.Capacity != 10 || acct.Consumed != 4 {
		t.Errorf("got %+v, want the seeded account", acct)
	}
}

// WeChat reports failures as 200 with errcode/errmsg in the body.
func TestLoginRejectsErrorResponse(t *testing.T) {
	w, _ := testWeChat(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain")
		_, _ = rw.Write([]byte(`{"errcode":40029,"errmsg":"invalid code"}`))
	})

	_, err := w.Login(context.Background(), "bad-code")
	if err == nil || !strings.Contains(err.Error(), "40029") {
		t.Errorf("got %v, want errcode 40029 surfaced", err)
	}
}

func TestLoginRejectsMissingOpenID(t *testing.T) {
	w, _ := testWeChat(t, func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte(`{"access_token":"at"}`))
	})

	_, err := w.Login(context.Background(), "code-1")
	if err == nil || !strings.Contains(err.Error(), "openid") {
		t.Errorf("got %v, want missing-openid error", err)
	}
}

func TestUnconfigured(t *testing.T) {
	w := NewWeChat(config.WeChatConfig{}, store.NewMemoryStore(), 3)

	if w.Configured() {
		t.Error("empty credentials must not report configured")
	}
	if _, err := w.AuthorizeURL("state"); err != ErrNotConfigured {
		t.Errorf("AuthorizeURL: got %v, want ErrNotConfigured", err)
	}
	if _, err := w.Login(context.Background(), "code"); err != ErrNotConfigured {
		t.Errorf("Login: got %v, want ErrNotConfigured", err)
	}
}

func TestAuthorizeURL(t *testing.T) {
	w := NewWeChat(config.WeChatConfig{
		AppID:       "wx-app",
		Secret:      "wx-secret",
		RedirectURL: "https://example.com/cb",
	}, store.NewMemoryStore(), 3)

	raw, err := w.AuthorizeURL("csrf-1")
	if err != nil {
		t.Fatalf("AuthorizeURL: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parsing %q: %v", raw, err)
	}
	q := u.Query()
	if q.Get("appid") != "wx-app" {
		t.Errorf("appid = %q", q.Get("appid"))
	}
	if q.Get("state") != "csrf-1" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if q.Get("scope") != "snsapi_login" {
		t.Errorf("scope = %q", q.Get("scope"))
	}
	if q.Get("redirect_uri") != "https://example.com/cb" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}
