package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/services/shared/htmx"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/auth"
	"github.com/louisbranch/statehouse/internal/services/web/storage"
	websqlite "github.com/louisbranch/statehouse/internal/services/web/storage/sqlite"
	"github.com/louisbranch/statehouse/internal/store/hydration"
)

var testNow = time.Date(2026, 1, 18, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *websqlite.Store {
	t.Helper()
	st, err := websqlite.Open(filepath.Join(t.TempDir(), "web.db"), websqlite.WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestHandler(t *testing.T, mode hydration.Mode, st storage.Store) http.Handler {
	t.Helper()
	if st == nil {
		st = openTestStore(t)
	}
	h, err := NewHandler(Config{Mode: mode}, Dependencies{
		Storage: st,
		Now:     func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return h
}

type requestOption func(*http.Request)

func asHTMX() requestOption {
	return func(r *http.Request) { r.Header.Set(htmx.RequestHeader, "true") }
}

func withCookies(cookies []*http.Cookie) requestOption {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func withHeader(key, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func get(t *testing.T, h http.Handler, target string, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func post(t *testing.T, h http.Handler, target string, form url.Values, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func assertBody(t *testing.T, rec *httptest.ResponseRecorder, wants ...string) {
	t.Helper()
	body := rec.Body.String()
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body:\n%s", want, body)
		}
	}
}

func assertNotBody(t *testing.T, rec *httptest.ResponseRecorder, unwanted ...string) {
	t.Helper()
	body := rec.Body.String()
	for _, value := range unwanted {
		if strings.Contains(body, value) {
			t.Fatalf("unexpected %q in body:\n%s", value, body)
		}
	}
}

func TestNewHandlerValidatesInputs(t *testing.T) {
	if _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("expected error without storage")
	}
	st := openTestStore(t)
	_, err := NewHandler(Config{Mode: "sideways"}, Dependencies{Storage: st})
	if !apperrors.HasCode(err, apperrors.CodeInvalidMode) {
		t.Fatalf("expected invalid mode, got %v", err)
	}
}

func TestNewServerRequiresAddress(t *testing.T) {
	st := openTestStore(t)
	if _, err := NewServer(context.Background(), Config{}, Dependencies{Storage: st}); err == nil {
		t.Fatal("expected error for missing address")
	}
	srv, err := NewServer(context.Background(), Config{HTTPAddr: "127.0.0.1:0"}, Dependencies{Storage: st})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if srv.Addr() != "127.0.0.1:0" {
		t.Fatalf("Addr() = %q", srv.Addr())
	}
}

func TestListenAndServeStopsWithContext(t *testing.T) {
	st := openTestStore(t)
	srv, err := NewServer(context.Background(), Config{HTTPAddr: "127.0.0.1:0"}, Dependencies{Storage: st})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ListenAndServe() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestHandler(t, "", nil), "/up")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestCounterPageEmbedsPayload(t *testing.T) {
	rec := get(t, newTestHandler(t, hydration.ModeServerRenderHydrate, nil), "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	assertBody(t, rec,
		`<script id="__STATEHOUSE_STATE__counter" type="application/json">{"count":0}</script>`,
		"Count: 0",
	)
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
}

func TestModesControlPayloads(t *testing.T) {
	ssr := get(t, newTestHandler(t, hydration.ModeServerRender, nil), "/")
	assertBody(t, ssr, "Count: 0")
	assertNotBody(t, ssr, hydration.Prefix)

	csr := get(t, newTestHandler(t, hydration.ModeClientRender, nil), "/tokens")
	assertBody(t, csr, `data-mode="client-render"`, `id="app"`)
	assertNotBody(t, csr, hydration.Prefix, "Harbor Lamp")
}

func TestRequestScopesAreIsolated(t *testing.T) {
	h := newTestHandler(t, "", nil)
	for i := 0; i < 3; i++ {
		rec := get(t, h, "/")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d: %s", i, rec.Code, rec.Body.String())
		}
		if got := strings.Count(rec.Body.String(), hydration.ScriptID("counter")); got != 1 {
			t.Fatalf("request %d embedded %d counter payloads", i, got)
		}
	}
}

func TestCounterActionsPersist(t *testing.T) {
	h := newTestHandler(t, "", nil)

	rec := post(t, h, "/counter/increment", nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("increment = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	post(t, h, "/counter/increment", nil)
	post(t, h, "/counter/decrement", nil)

	page := get(t, h, "/")
	assertBody(t, page, "Count: 1", `{"count":1}`)

	frag := post(t, h, "/counter/reset", nil, asHTMX())
	if frag.Code != http.StatusOK {
		t.Fatalf("htmx reset status = %d", frag.Code)
	}
	if frag.Header().Get(htmx.PushURLHeader) != "/" {
		t.Fatalf("push url = %q", frag.Header().Get(htmx.PushURLHeader))
	}
	assertBody(t, frag, `id="counter"`, "Count: 0")
	assertNotBody(t, frag, "<html")
}

func TestLocalizedPage(t *testing.T) {
	rec := get(t, newTestHandler(t, "", nil), "/", withHeader("Accept-Language", "pt-BR,pt;q=0.9"))
	assertBody(t, rec, `<html lang="pt-BR">`, "Valor: 0")
}

func TestLoginLogoutFlow(t *testing.T) {
	h := newTestHandler(t, "", nil)

	form := url.Values{"email": {"ada@example.com"}, "password": {"secret"}, "remember_me": {"true"}}
	login := post(t, h, "/auth/login", form)
	if login.Code != http.StatusSeeOther || login.Header().Get("Location") != "/auth" {
		t.Fatalf("login = %d %q: %s", login.Code, login.Header().Get("Location"), login.Body.String())
	}
	cookies := login.Result().Cookies()
	var session *http.Cookie
	for _, c := range cookies {
		if c.Name == sessionCookieName {
			session = c
		}
	}
	if session == nil || session.Value == "" || !session.HttpOnly {
		t.Fatalf("expected session cookie, got %+v", cookies)
	}
	if session.MaxAge <= 0 {
		t.Fatalf("remembered session MaxAge = %d", session.MaxAge)
	}

	page := get(t, h, "/auth", withCookies([]*http.Cookie{session}))
	assertBody(t, page, "Signed in as ada", `"email":"ada@example.com"`, hydration.ScriptID("auth_store"))
	assertNotBody(t, page, "secret")

	logout := post(t, h, "/auth/logout", nil, withCookies([]*http.Cookie{session}), asHTMX())
	if logout.Code != http.StatusOK {
		t.Fatalf("logout status = %d", logout.Code)
	}
	assertBody(t, logout, "Guest")

	after := get(t, h, "/auth", withCookies([]*http.Cookie{session}))
	assertBody(t, after, "You are browsing as Guest.")
}

func TestLoginKeepsAuthenticatorIdentity(t *testing.T) {
	authn := auth.AuthenticatorFunc(func(_ context.Context, c auth.Credentials) (auth.User, auth.Token, error) {
		return auth.User{ID: "user_987", Email: c.Email, Name: "Grace Hopper"}, auth.Token{AccessToken: "sso"}, nil
	})
	h, err := NewHandler(Config{}, Dependencies{
		Storage:       openTestStore(t),
		Authenticator: authn,
		Now:           func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	form := url.Values{"email": {"grace@example.com"}, "password": {"secret"}}
	login := post(t, h, "/auth/login", form)
	if login.Code != http.StatusSeeOther {
		t.Fatalf("login = %d: %s", login.Code, login.Body.String())
	}
	var session *http.Cookie
	for _, c := range login.Result().Cookies() {
		if c.Name == sessionCookieName {
			session = c
		}
	}
	if session == nil {
		t.Fatal("expected session cookie")
	}

	page := get(t, h, "/auth", withCookies([]*http.Cookie{session}))
	assertBody(t, page, "Signed in as Grace Hopper", `"id":"user_987"`, `"name":"Grace Hopper"`)
	assertNotBody(t, page, `"id":"user_123"`)
}

func TestLoginValidationFailure(t *testing.T) {
	h := newTestHandler(t, "", nil)
	form := url.Values{"email": {"ada@example.com"}}

	plain := post(t, h, "/auth/login", form)
	if plain.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", plain.Code)
	}
	assertBody(t, plain, "Password is required", hydration.ScriptID("auth_store"), "<html")
	for _, c := range plain.Result().Cookies() {
		if c.Name == sessionCookieName {
			t.Fatal("failed login must not set a session")
		}
	}

	frag := post(t, h, "/auth/login", form, asHTMX())
	if frag.Code != http.StatusOK {
		t.Fatalf("htmx status = %d", frag.Code)
	}
	assertBody(t, frag, `id="auth"`, "Password is required")
	assertNotBody(t, frag, "<html")
}

func TestTokensPageFiltersFromQuery(t *testing.T) {
	h := newTestHandler(t, "", nil)

	all := get(t, h, "/tokens")
	assertBody(t, all, "5 tokens", "Harbor Lamp", "Steady Unit")
	body := all.Body.String()
	if strings.Index(body, "Steady Unit") > strings.Index(body, "Moss Signal") {
		t.Fatal("expected market cap descending by default")
	}

	filtered := get(t, h, "/tokens?q=orbit")
	assertBody(t, filtered, `data-token-id="2oCxjpWWEmCuNaXiBSVahUKP1xRMRAiBfCg98YyHpump"`, `"search_query":"orbit"`)
	// The payload keeps the full list; only the rendered rows are filtered.
	assertNotBody(t, filtered, `data-token-id="4vGHdzcNrDf8XVE8H19Rqea86RULz7xi89ew1sSJpump"`)
}

func TestTokensActionsRedirectToFilteredURL(t *testing.T) {
	h := newTestHandler(t, "", nil)

	tests := []struct {
		name   string
		path   string
		form   url.Values
		wantTo string
	}{
		{name: "new field", path: "/tokens/sort", form: url.Values{"field": {"price"}}, wantTo: "/tokens?dir=desc&sort=price"},
		{name: "flip default", path: "/tokens/sort", form: url.Values{"field": {"mcap"}}, wantTo: "/tokens?dir=asc&sort=mcap"},
		{name: "keeps search", path: "/tokens/sort", form: url.Values{"q": {"lamp"}, "sort": {"price"}, "dir": {"desc"}, "field": {"price"}}, wantTo: "/tokens?dir=asc&q=lamp&sort=price"},
		{name: "search", path: "/tokens/search", form: url.Values{"q": {" moss "}}, wantTo: "/tokens?q=moss"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := post(t, h, tc.path, tc.form)
			if rec.Code != http.StatusSeeOther {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("Location"); got != tc.wantTo {
				t.Fatalf("Location = %q, want %q", got, tc.wantTo)
			}
		})
	}

	frag := post(t, h, "/tokens/search", url.Values{"q": {"lamp"}}, asHTMX())
	if frag.Header().Get(htmx.PushURLHeader) != "/tokens?q=lamp" {
		t.Fatalf("push url = %q", frag.Header().Get(htmx.PushURLHeader))
	}
	assertBody(t, frag, `id="tokens"`, "Harbor Lamp")
	assertNotBody(t, frag, "Quiet Orbit")
}

func TestNotFoundAndCanonicalPaths(t *testing.T) {
	h := newTestHandler(t, "", nil)

	missing := get(t, h, "/missing")
	if missing.Code != http.StatusNotFound {
		t.Fatalf("status = %d", missing.Code)
	}
	assertBody(t, missing, "Page not found")

	slash := get(t, h, "/tokens/?q=lamp")
	if slash.Code != http.StatusMovedPermanently || slash.Header().Get("Location") != "/tokens?q=lamp" {
		t.Fatalf("redirect = %d %q", slash.Code, slash.Header().Get("Location"))
	}
}

type failingStore struct {
	storage.Store
}

func (failingStore) LoadCounter(context.Context, string) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestStorageFailureRendersErrorPage(t *testing.T) {
	h := newTestHandler(t, "", failingStore{Store: openTestStore(t)})
	rec := get(t, h, "/")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	assertBody(t, rec, `role="alert"`, "Something went wrong.")
	assertNotBody(t, rec, "disk on fire", hydration.Prefix)
}

func TestErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: apperrors.New(apperrors.CodeActionValidation, "bad"), want: http.StatusBadRequest},
		{err: apperrors.New(apperrors.CodeActionNetwork, "down"), want: http.StatusServiceUnavailable},
		{err: apperrors.New(apperrors.CodeActionTimeout, "slow"), want: http.StatusGatewayTimeout},
		{err: apperrors.New(apperrors.CodeSerialization, "encode"), want: http.StatusInternalServerError},
		{err: apperrors.New(apperrors.CodeNotFound, "missing store"), want: http.StatusInternalServerError},
		{err: io.EOF, want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := errorHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("errorHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
