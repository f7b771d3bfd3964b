// Package i18nhttp resolves the request locale for rendered pages.
package i18nhttp

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/louisbranch/statehouse/internal/platform/i18n/catalog"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the user's language preference.
	LangCookieName = "statehouse_lang"
)

// LanguageOption represents a supported language option in UI surfaces.
type LanguageOption struct {
	Locale string
	URL    string
	Active bool
}

// ResolveLocale determines the best supported locale for the request, in
// order: lang query parameter, language cookie, Accept-Language header.
// The bool reports whether the query parameter chose the locale and should
// be persisted as a cookie.
func ResolveLocale(r *http.Request) (string, bool) {
	bundle := catalog.Default()
	if r == nil {
		return catalog.BaseLocale, false
	}
	if langValue := strings.TrimSpace(r.URL.Query().Get(LangParam)); langValue != "" && bundle.HasLocale(langValue) {
		return langValue, true
	}
	if cookie, err := r.Cookie(LangCookieName); err == nil && bundle.HasLocale(cookie.Value) {
		return cookie.Value, false
	}
	return bundle.Match(r.Header.Get("Accept-Language")), false
}

// SetLanguageCookie persists the selected language on the response.
func SetLanguageCookie(w http.ResponseWriter, locale string) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    locale,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

type localeContextKey struct{}

// WithLocale binds locale to ctx.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeContextKey{}, locale)
}

// LocaleFromContext returns the locale bound to ctx, or the base locale.
func LocaleFromContext(ctx context.Context) string {
	if ctx != nil {
		if locale, ok := ctx.Value(localeContextKey{}).(string); ok && locale != "" {
			return locale
		}
	}
	return catalog.BaseLocale
}

// Middleware resolves the locale once per request and binds it to the
// request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale, persist := ResolveLocale(r)
		if persist {
			SetLanguageCookie(w, locale)
		}
		next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), locale)))
	})
}

// BuildLanguageOptions returns supported locales with the active one marked
// and a link that switches to each.
func BuildLanguageOptions(r *http.Request, active string) []LanguageOption {
	locales := catalog.Default().Locales()
	options := make([]LanguageOption, 0, len(locales))
	for _, locale := range locales {
		path, rawQuery := "/", ""
		if r != nil && r.URL != nil {
			path, rawQuery = r.URL.Path, r.URL.RawQuery
		}
		options = append(options, LanguageOption{
			Locale: locale,
			URL:    LanguageURL(path, rawQuery, locale),
			Active: locale == active,
		})
	}
	return options
}

// LanguageURL returns the current URL with the language param updated.
func LanguageURL(path string, rawQuery string, locale string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "/"
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		query = url.Values{}
	}
	query.Set(LangParam, locale)
	return (&url.URL{Path: path, RawQuery: query.Encode()}).String()
}
