package i18nhttp

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveLocale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		target      string
		cookie      string
		accept      string
		want        string
		wantPersist bool
	}{
		{name: "query wins", target: "/?lang=pt-BR", cookie: "en-US", want: "pt-BR", wantPersist: true},
		{name: "unknown query ignored", target: "/?lang=xx", accept: "pt-BR", want: "pt-BR"},
		{name: "cookie", target: "/", cookie: "pt-BR", accept: "en-US", want: "pt-BR"},
		{name: "accept language", target: "/", accept: "pt-BR,pt;q=0.9", want: "pt-BR"},
		{name: "default", target: "/", want: "en-US"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LangCookieName, Value: tc.cookie})
			}
			if tc.accept != "" {
				req.Header.Set("Accept-Language", tc.accept)
			}
			got, persist := ResolveLocale(req)
			if got != tc.want || persist != tc.wantPersist {
				t.Fatalf("ResolveLocale = (%q, %v), want (%q, %v)", got, persist, tc.want, tc.wantPersist)
			}
		})
	}
}

func TestMiddlewareBindsLocaleAndPersistsQuery(t *testing.T) {
	t.Parallel()

	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = LocaleFromContext(r.Context())
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?lang=pt-BR", nil))

	if seen != "pt-BR" {
		t.Fatalf("locale = %q, want pt-BR", seen)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != LangCookieName || cookies[0].Value != "pt-BR" {
		t.Fatalf("cookies = %v", cookies)
	}
}

func TestLocaleFromContextDefault(t *testing.T) {
	t.Parallel()
	if got := LocaleFromContext(nil); got != "en-US" {
		t.Fatalf("locale = %q, want en-US", got)
	}
}

func TestBuildLanguageOptions(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/tokens?q=lamp", nil)
	options := BuildLanguageOptions(req, "pt-BR")
	if len(options) != 2 {
		t.Fatalf("len(options) = %d, want 2", len(options))
	}
	if options[0].Locale != "en-US" || options[0].Active {
		t.Fatalf("options[0] = %+v", options[0])
	}
	if !options[1].Active {
		t.Fatalf("options[1].Active = false, want true")
	}
	if options[1].URL != "/tokens?lang=pt-BR&q=lamp" {
		t.Fatalf("options[1].URL = %q", options[1].URL)
	}
}

func TestLanguageURL(t *testing.T) {
	t.Parallel()

	if got := LanguageURL("", "", "en-US"); got != "/?lang=en-US" {
		t.Fatalf("LanguageURL = %q", got)
	}
}
