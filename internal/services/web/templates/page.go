// Package templates renders the server pages as templ components.
package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/louisbranch/statehouse/internal/platform/branding"
	"github.com/louisbranch/statehouse/internal/services/shared/i18nhttp"
	"golang.org/x/text/message"
)

// HTMXScriptURL is the htmx build loaded by every page.
const HTMXScriptURL = "https://unpkg.com/htmx.org@2.0.4"

// PageContext carries per-request rendering inputs.
type PageContext struct {
	Lang         string
	Loc          *message.Printer
	AppName      string
	CurrentPath  string
	CurrentQuery string
	Languages    []i18nhttp.LanguageOption
	// Head renders extra elements at the end of <head>, such as state
	// payloads.
	Head templ.Component
}

// T translates key with args.
func (p PageContext) T(key string, args ...any) string {
	if p.Loc == nil {
		return key
	}
	return p.Loc.Sprintf(key, args...)
}

func (p PageContext) appName() string {
	if name := strings.TrimSpace(p.AppName); name != "" {
		return name
	}
	return branding.AppName
}

// ComposePageTitle appends the app name to title unless it already ends
// with it.
func ComposePageTitle(title, appName string) string {
	title = strings.TrimSpace(title)
	if appName == "" {
		appName = branding.AppName
	}
	if title == "" {
		return appName
	}
	if strings.HasSuffix(title, "| "+appName) {
		return title
	}
	if trimmed, ok := strings.CutSuffix(title, "- "+appName); ok {
		return strings.TrimSpace(trimmed) + " | " + appName
	}
	return title + " | " + appName
}

// writer accumulates the first write error so components can render
// straight-line markup.
type writer struct {
	ctx context.Context
	w   io.Writer
	err error
}

func newWriter(ctx context.Context, w io.Writer) *writer {
	return &writer{ctx: ctx, w: w}
}

func (w *writer) raw(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) attr(name, value string) {
	w.raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

func (w *writer) component(c templ.Component) {
	if w.err != nil || c == nil {
		return
	}
	w.err = c.Render(w.ctx, w.w)
}

// postButton renders a one-button form that posts to action and swaps the
// response into target.
func (w *writer) postButton(action, target, label, class string, hidden ...[2]string) {
	w.raw(`<form method="post"`)
	w.attr("action", action)
	w.attr("hx-post", action)
	w.attr("hx-target", target)
	w.attr("hx-swap", "outerHTML")
	w.raw(">")
	for _, field := range hidden {
		w.raw(`<input type="hidden"`)
		w.attr("name", field[0])
		w.attr("value", field[1])
		w.raw(">")
	}
	w.raw(`<button type="submit"`)
	if class != "" {
		w.attr("class", class)
	}
	w.raw(">")
	w.text(label)
	w.raw("</button></form>")
}
