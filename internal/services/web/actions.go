package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/platform/requestctx"
	"github.com/louisbranch/statehouse/internal/platform/timeouts"
	"github.com/louisbranch/statehouse/internal/services/shared/htmx"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/auth"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/counter"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/tokens"
	"github.com/louisbranch/statehouse/internal/services/web/routepath"
	"github.com/louisbranch/statehouse/internal/services/web/templates"
	"github.com/louisbranch/statehouse/internal/services/web/tokenquery"
	"github.com/louisbranch/statehouse/internal/store"
	"github.com/louisbranch/statehouse/internal/store/async"
	"github.com/louisbranch/statehouse/internal/store/hydration"
	"github.com/louisbranch/statehouse/internal/store/hydration/embed"
	"github.com/louisbranch/statehouse/internal/store/registry"
)

// Form field names posted by the templates.
const (
	formEmail      = "email"
	formPassword   = "password"
	formRememberMe = "remember_me"
	formSortField  = "field"
)

func parseForm(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return apperrors.Wrap(apperrors.CodeActionValidation, "parse form", err)
	}
	return nil
}

func (h *handler) handleCounterAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Load, change and save happen under one lock so concurrent posts do
	// not lose updates.
	h.counterMu.Lock()
	defer h.counterMu.Unlock()

	loaded, err := h.loadCounter(ctx)
	if err == nil {
		err = registry.ProvideContext(ctx, loaded)
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	s, err := registry.UseContext[*counter.Store](ctx, store.NewIdentity(counter.Key))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	switch r.URL.Path {
	case routepath.CounterIncrement:
		s.Increment()
	case routepath.CounterDecrement:
		s.Decrement()
	case routepath.CounterReset:
		s.Reset()
	}
	if err := h.storage.SaveCounter(ctx, DefaultCounterName, s.Count()); err != nil {
		h.renderError(w, r, err)
		return
	}
	page := h.pageContext(r)
	htmx.SeeOther(w, r, routepath.Root, templates.CounterCard(page, s))
}

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.renderError(w, r, err)
		return
	}
	ctx := r.Context()
	if err := registry.ProvideContext(ctx, auth.New()); err != nil {
		h.renderError(w, r, err)
		return
	}
	s, err := registry.UseContext[*auth.Store](ctx, store.NewIdentity(auth.Key))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	creds := auth.Credentials{
		Email:      strings.TrimSpace(r.PostFormValue(formEmail)),
		Password:   r.PostFormValue(formPassword),
		RememberMe: r.PostFormValue(formRememberMe) == "true",
	}
	loginCtx, cancel := context.WithTimeout(ctx, timeouts.Action)
	user, err := async.RunSync(loginCtx, h.scheduler, s, auth.LoginAsync(h.authn, creds))
	cancel()
	if err != nil {
		// The store carries the failure message; show the form again.
		h.logger.InfoContext(ctx, "login rejected",
			slog.String("request_id", requestctx.RequestIDFromContext(ctx)),
			slog.String("code", string(apperrors.CodeOf(err))),
		)
		h.renderActionFailure(w, r, "auth.title", func(page templates.PageContext) templ.Component {
			return templates.AuthCard(page, s)
		}, func() error { return embedSnapshot(ctx, h, s, auth.Codec) })
		return
	}
	if err := h.startSession(ctx, w, user, creds.RememberMe); err != nil {
		h.renderError(w, r, err)
		return
	}
	page := h.pageContext(r)
	htmx.SeeOther(w, r, routepath.Auth, templates.AuthCard(page, s))
}

func (h *handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loaded, err := h.loadAuth(r)
	if err == nil {
		err = registry.ProvideContext(ctx, loaded)
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	s, err := registry.UseContext[*auth.Store](ctx, store.NewIdentity(auth.Key))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if err := h.endSession(w, r); err != nil {
		h.renderError(w, r, err)
		return
	}
	s.Logout()
	page := h.pageContext(r)
	htmx.SeeOther(w, r, routepath.Auth, templates.AuthCard(page, s))
}

func (h *handler) handleTokensSort(w http.ResponseWriter, r *http.Request) {
	h.handleTokensAction(w, r, func(s *tokens.Store) error {
		return s.ToggleSort(tokenquery.ParseField(r.PostFormValue(formSortField)))
	})
}

func (h *handler) handleTokensSearch(w http.ResponseWriter, r *http.Request) {
	h.handleTokensAction(w, r, func(s *tokens.Store) error {
		s.Search(r.PostFormValue(tokenquery.SearchParam))
		return nil
	})
}

// handleTokensAction rebuilds the explorer from the filters posted with the
// form, applies change and sends the browser to the matching URL.
func (h *handler) handleTokensAction(w http.ResponseWriter, r *http.Request, change func(*tokens.Store) error) {
	if err := parseForm(r); err != nil {
		h.renderError(w, r, err)
		return
	}
	ctx := r.Context()
	loaded, err := h.loadTokens(ctx, tokenquery.Parse(r.PostForm))
	if err == nil {
		err = registry.ProvideContext(ctx, loaded)
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	s, err := registry.UseContext[*tokens.Store](ctx, store.NewIdentity(tokens.Key))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if err := change(s); err != nil {
		h.renderError(w, r, err)
		return
	}
	page := h.pageContext(r)
	target := tokenquery.FromStore(s).URL(routepath.Tokens)
	htmx.SeeOther(w, r, target, templates.TokenTable(page, s))
}

// renderActionFailure answers a rejected form post with the card showing
// the recorded error. htmx swaps the fragment in place; plain posts get the
// whole page with a 422 status.
func (h *handler) renderActionFailure(w http.ResponseWriter, r *http.Request, titleKey string, body func(templates.PageContext) templ.Component, collect func() error) {
	page := h.pageContext(r)
	if htmx.IsHTMXRequest(r) {
		templ.Handler(body(page)).ServeHTTP(w, r)
		return
	}
	if err := collect(); err != nil {
		h.renderError(w, r, err)
		return
	}
	doc := h.document(r, page, titleKey, body(page))
	templ.Handler(doc, templ.WithStatus(http.StatusUnprocessableEntity)).ServeHTTP(w, r)
}

// embedSnapshot queues the payload of a store that is already provided.
func embedSnapshot[S any](ctx context.Context, h *handler, src hydration.Source[S], codec hydration.Codec[S]) error {
	if !h.config.Mode.Embeds() {
		return nil
	}
	c, ok := embed.CollectorFromContext(ctx)
	if !ok {
		return apperrors.New(apperrors.CodeNoRegistry, "no payload collector bound to context")
	}
	return embed.Collect(c, src, codec)
}
