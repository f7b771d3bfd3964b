package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/auth"
	"github.com/louisbranch/statehouse/internal/services/web/routepath"
)

// AuthCardID is the element id htmx swaps after auth actions.
const AuthCardID = "auth"

// AuthCard renders the signed-in user or the login form.
func AuthCard(page PageContext, s *auth.Store) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := newWriter(ctx, out)
		w.raw(`<section class="card"`)
		w.attr("id", AuthCardID)
		w.raw("><h1>")
		w.text(page.T("auth.title"))
		w.raw(`</h1><div class="avatar" aria-hidden="true">`)
		w.text(s.Initials())
		w.raw("</div>")

		if s.IsAuthenticated() {
			w.raw(`<p class="user">`)
			w.text(page.T("auth.signed_in", s.DisplayName()))
			w.raw("</p>")
			if email, ok := s.Email(); ok {
				w.raw(`<p class="email">`)
				w.text(email)
				w.raw("</p>")
			}
			w.postButton(routepath.AuthLogout, "#"+AuthCardID, page.T("auth.logout"), "secondary")
			w.raw("</section>")
			return w.err
		}

		w.raw(`<p class="user">`)
		w.text(page.T("auth.signed_out", s.DisplayName()))
		w.raw("</p>")
		if s.HasError() {
			w.raw(`<p class="error" role="alert">`)
			w.text(s.Err())
			w.raw("</p>")
		}
		w.raw(`<form method="post"`)
		w.attr("action", routepath.AuthLogin)
		w.attr("hx-post", routepath.AuthLogin)
		w.attr("hx-target", "#"+AuthCardID)
		w.raw(` hx-swap="outerHTML"><label>`)
		w.text(page.T("auth.email"))
		w.raw(` <input type="email" name="email" autocomplete="email"></label><label>`)
		w.text(page.T("auth.password"))
		w.raw(` <input type="password" name="password" autocomplete="current-password"></label><label><input type="checkbox" name="remember_me" value="true"> `)
		w.text(page.T("auth.remember"))
		w.raw(`</label><button type="submit">`)
		w.text(page.T("auth.login"))
		w.raw("</button></form></section>")
		return w.err
	})
}
