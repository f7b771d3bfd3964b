package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/platform/i18n/catalog"
	"github.com/louisbranch/statehouse/internal/platform/requestctx"
	"github.com/louisbranch/statehouse/internal/services/shared/htmx"
	"github.com/louisbranch/statehouse/internal/services/shared/i18nhttp"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/auth"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/counter"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/tokens"
	"github.com/louisbranch/statehouse/internal/services/web/templates"
	"github.com/louisbranch/statehouse/internal/services/web/tokenquery"
	"github.com/louisbranch/statehouse/internal/store/hydration"
	"github.com/louisbranch/statehouse/internal/store/hydration/embed"
	"github.com/louisbranch/statehouse/internal/store/registry"
)

// MountID is the element the client-render shell leaves for the client.
const MountID = "app"

func (h *handler) pageContext(r *http.Request) templates.PageContext {
	locale := i18nhttp.LocaleFromContext(r.Context())
	return templates.PageContext{
		Lang:         locale,
		Loc:          catalog.Default().Printer(locale),
		AppName:      h.appName,
		CurrentPath:  r.URL.Path,
		CurrentQuery: r.URL.RawQuery,
		Languages:    i18nhttp.BuildLanguageOptions(r, locale),
	}
}

// document wraps body in the layout. In hydrate mode the head carries the
// payloads collected for this request.
func (h *handler) document(r *http.Request, page templates.PageContext, titleKey string, body templ.Component) templ.Component {
	if h.config.Mode.Embeds() {
		if c, ok := embed.CollectorFromContext(r.Context()); ok {
			page.Head = c.Component()
		}
	}
	return templates.Layout(page, page.T(titleKey), body)
}

// renderPage serves a page, or its main content for htmx navigation.
func (h *handler) renderPage(w http.ResponseWriter, r *http.Request, titleKey string, body func(templates.PageContext) templ.Component) {
	page := h.pageContext(r)
	if h.config.Mode == hydration.ModeClientRender {
		htmx.RenderPage(w, r, nil, templates.Shell(page, page.T(titleKey), MountID))
		return
	}
	htmx.RenderPage(w, r, nil, h.document(r, page, titleKey, body(page)))
}

// provide registers src in the request scope, queueing its payload when the
// mode embeds snapshots.
func provide[S any](ctx context.Context, mode hydration.Mode, src hydration.Source[S], codec hydration.Codec[S]) error {
	if !mode.Embeds() {
		return registry.ProvideContext(ctx, src)
	}
	c, ok := embed.CollectorFromContext(ctx)
	if !ok {
		return apperrors.New(apperrors.CodeNoRegistry, "no payload collector bound to context")
	}
	return embed.ProvideHydrated(ctx, c, src, codec)
}

func (h *handler) loadCounter(ctx context.Context) (*counter.Store, error) {
	n, err := h.storage.LoadCounter(ctx, DefaultCounterName)
	if err != nil {
		return nil, fmt.Errorf("load counter: %w", err)
	}
	return counter.WithState(counter.State{Count: n}), nil
}

func (h *handler) loadAuth(r *http.Request) (*auth.Store, error) {
	sess, ok, err := h.sessionFromRequest(r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return auth.New(), nil
	}
	return auth.WithState(authStateForSession(sess)), nil
}

func (h *handler) loadTokens(ctx context.Context, q tokenquery.Query) (*tokens.Store, error) {
	list, err := h.storage.ListTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	s := tokens.WithTokens(list, tokens.WithClock(h.now))
	if err := q.Apply(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (h *handler) handleCounterPage(w http.ResponseWriter, r *http.Request) {
	if h.config.Mode == hydration.ModeClientRender {
		h.renderPage(w, r, "counter.title", nil)
		return
	}
	s, err := h.loadCounter(r.Context())
	if err == nil {
		err = provide(r.Context(), h.config.Mode, s, counter.Codec)
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.renderPage(w, r, "counter.title", func(page templates.PageContext) templ.Component {
		return templates.CounterCard(page, s)
	})
}

func (h *handler) handleAuthPage(w http.ResponseWriter, r *http.Request) {
	if h.config.Mode == hydration.ModeClientRender {
		h.renderPage(w, r, "auth.title", nil)
		return
	}
	s, err := h.loadAuth(r)
	if err == nil {
		err = provide(r.Context(), h.config.Mode, s, auth.Codec)
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.renderPage(w, r, "auth.title", func(page templates.PageContext) templ.Component {
		return templates.AuthCard(page, s)
	})
}

func (h *handler) handleTokensPage(w http.ResponseWriter, r *http.Request) {
	if h.config.Mode == hydration.ModeClientRender {
		h.renderPage(w, r, "tokens.title", nil)
		return
	}
	s, err := h.loadTokens(r.Context(), tokenquery.Parse(r.URL.Query()))
	if err == nil {
		err = provide(r.Context(), h.config.Mode, s, tokens.Codec)
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.renderPage(w, r, "tokens.title", func(page templates.PageContext) templ.Component {
		return templates.TokenTable(page, s)
	})
}

func (h *handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	page := h.pageContext(r)
	c := templates.ErrorPage(page, page.T("core.error.not_found"), page.T("core.error.not_found_detail"))
	templ.Handler(c, templ.WithStatus(http.StatusNotFound)).ServeHTTP(w, r)
}

// renderError logs err and serves a localized error page.
func (h *handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorHTTPStatus(err)
	ctx := r.Context()
	h.logger.ErrorContext(ctx, "request failed",
		slog.String("request_id", requestctx.RequestIDFromContext(ctx)),
		slog.String("path", r.URL.Path),
		slog.String("code", string(apperrors.CodeOf(err))),
		slog.Any("err", err),
	)
	page := h.pageContext(r)
	message := apperrors.LocalizedMessage(err, page.Lang)
	templ.Handler(templates.ErrorPage(page, page.T("core.error.title"), message), templ.WithStatus(status)).ServeHTTP(w, r)
}
