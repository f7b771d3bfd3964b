package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/louisbranch/statehouse/internal/services/web/routepath"
)

// Layout wraps body in the document shell. Navigation links and the
// language switcher are shared by every page.
func Layout(page PageContext, title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := newWriter(ctx, out)
		w.raw("<!DOCTYPE html><html")
		w.attr("lang", page.Lang)
		w.raw(`><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		w.text(ComposePageTitle(title, page.appName()))
		w.raw(`</title><script defer`)
		w.attr("src", HTMXScriptURL)
		w.raw("></script>")
		w.component(page.Head)
		w.raw(`</head><body hx-boost="true"><nav class="nav">`)
		for _, link := range []struct{ path, key string }{
			{routepath.Root, "core.nav.counter"},
			{routepath.Auth, "core.nav.auth"},
			{routepath.Tokens, "core.nav.tokens"},
		} {
			w.raw("<a")
			w.attr("href", link.path)
			if link.path == page.CurrentPath {
				w.raw(` aria-current="page"`)
			}
			w.raw(">")
			w.text(page.T(link.key))
			w.raw("</a>")
		}
		if len(page.Languages) > 0 {
			w.raw(`<span class="languages">`)
			for _, option := range page.Languages {
				w.raw("<a")
				w.attr("href", option.URL)
				w.attr("hreflang", option.Locale)
				if option.Active {
					w.raw(` class="active"`)
				}
				w.raw(">")
				w.text(option.Locale)
				w.raw("</a>")
			}
			w.raw("</span>")
		}
		w.raw(`</nav><main id="main">`)
		w.component(body)
		w.raw("</main></body></html>")
		return w.err
	})
}

// ErrorPage renders a full error document.
func ErrorPage(page PageContext, title, message string) templ.Component {
	return Layout(page, title, templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := newWriter(ctx, out)
		w.raw(`<section class="error" role="alert"><h1>`)
		w.text(title)
		w.raw("</h1><p>")
		w.text(message)
		w.raw(`</p><a href="` + routepath.Root + `">`)
		w.text(page.T("core.error.back"))
		w.raw("</a></section>")
		return w.err
	}))
}

// Shell renders the client-render document: navigation and an empty mount
// point, with no server data.
func Shell(page PageContext, title, mount string) templ.Component {
	return Layout(page, title, templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := newWriter(ctx, out)
		w.raw(`<div data-mode="client-render"`)
		w.attr("id", mount)
		w.raw(">")
		w.text(page.T("core.shell.loading"))
		w.raw("</div>")
		return w.err
	}))
}
