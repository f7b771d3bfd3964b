// Package htmx switches between fragment and full-page responses depending
// on whether htmx issued the request.
package htmx

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/a-h/templ"
)

const (
	// RequestHeader marks requests issued by htmx.
	RequestHeader = "HX-Request"
	// RedirectHeader asks htmx to navigate the whole page.
	RedirectHeader = "HX-Redirect"
	// PushURLHeader asks htmx to update the address bar after a swap.
	PushURLHeader = "HX-Push-Url"
)

// responseBuffer captures component rendering for fragment extraction.
type responseBuffer struct {
	header      http.Header
	statusCode  int
	body        bytes.Buffer
	headerWrote bool
}

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{
		header:     make(http.Header),
		statusCode: http.StatusOK,
	}
}

func (w *responseBuffer) Header() http.Header {
	return w.header
}

func (w *responseBuffer) WriteHeader(status int) {
	if w.headerWrote {
		return
	}
	w.headerWrote = true
	w.statusCode = status
}

func (w *responseBuffer) Write(body []byte) (int, error) {
	return w.body.Write(body)
}

// IsHTMXRequest reports whether the request was initiated by htmx.
func IsHTMXRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	return strings.EqualFold(r.Header.Get(RequestHeader), "true")
}

// RenderPage renders fragment for htmx requests and full otherwise.
//
// When fragment is nil the htmx response is the <main> content of full.
func RenderPage(w http.ResponseWriter, r *http.Request, fragment templ.Component, full templ.Component) {
	if !IsHTMXRequest(r) {
		if full == nil {
			full = fragment
		}
		if full != nil {
			templ.Handler(full).ServeHTTP(w, r)
		}
		return
	}

	if fragment != nil {
		templ.Handler(fragment).ServeHTTP(w, r)
		return
	}
	if full == nil {
		return
	}

	capture := newResponseBuffer()
	templ.Handler(full).ServeHTTP(capture, r)
	body := capture.body.Bytes()
	if mainContent, ok := extractMainContent(body); ok {
		body = mainContent
	}
	copyHeaders(w.Header(), capture.Header())
	if capture.statusCode != http.StatusOK {
		w.WriteHeader(capture.statusCode)
	}
	_, _ = w.Write(body)
}

// SeeOther finishes a form post. htmx requests receive the fragment so the
// swap happens in place; plain requests are redirected to target with 303.
func SeeOther(w http.ResponseWriter, r *http.Request, target string, fragment templ.Component) {
	if IsHTMXRequest(r) && fragment != nil {
		w.Header().Set(PushURLHeader, target)
		templ.Handler(fragment).ServeHTTP(w, r)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if strings.EqualFold(key, "Set-Cookie") {
			for _, value := range values {
				dst.Add(key, value)
			}
			continue
		}
		for _, value := range values {
			dst.Set(key, value)
		}
	}
}

func extractMainContent(body []byte) ([]byte, bool) {
	start := bytes.Index(body, []byte("<main"))
	if start < 0 {
		return nil, false
	}
	openClose := bytes.Index(body[start:], []byte(">"))
	if openClose < 0 {
		return nil, false
	}
	contentStart := start + openClose + 1
	end := bytes.Index(body[contentStart:], []byte("</main>"))
	if end < 0 {
		return nil, false
	}
	return body[contentStart : contentStart+end], true
}
