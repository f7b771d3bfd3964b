// Package locate is the client half of hydration: it finds payloads in a
// delivered document and rebuilds stores from them before anything mounts.
package locate

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/store/hydration"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Observer is told about every fallback so a cold start caused by missing or
// malformed data is never mistaken for a normal one.
type Observer interface {
	HydrationFailed(ctx context.Context, key string, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, key string, err error)

// HydrationFailed implements Observer.
func (f ObserverFunc) HydrationFailed(ctx context.Context, key string, err error) {
	f(ctx, key, err)
}

// Option configures a Document.
type Option func(*Document)

// WithObserver sets the fallback observer.
func WithObserver(o Observer) Option {
	return func(d *Document) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithLogger sets the document logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

type element struct {
	script bool
	data   string
}

// Document is a parsed page indexed by payload key. Every key resolves at
// most once; later Hydrate calls return the first outcome.
type Document struct {
	elements map[string]element
	observer Observer
	logger   *slog.Logger

	mu       sync.Mutex
	resolved map[string]resolution
}

// resolution is the first outcome recorded for a key, error included.
type resolution struct {
	result any
	err    error
}

// Parse reads an HTML document and indexes its payload elements.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDeserialization, "parse document", err)
	}
	d := &Document{
		elements: make(map[string]element),
		logger:   slog.Default(),
		resolved: make(map[string]resolution),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.index(root)
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(doc string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(doc), opts...)
}

func (d *Document) index(n *html.Node) {
	if n.Type == html.ElementNode {
		if key, ok := hydration.KeyFromID(attr(n, "id")); ok {
			// The first element with an id wins, as in the DOM.
			if _, seen := d.elements[key]; !seen {
				d.elements[key] = element{script: n.DataAtom == atom.Script, data: text(n)}
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.index(c)
	}
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// Keys lists the payload keys present in the document.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.elements))
	for key := range d.elements {
		keys = append(keys, key)
	}
	return keys
}

// Has reports whether an element for key exists.
func (d *Document) Has(key string) bool {
	_, ok := d.elements[key]
	return ok
}

// Lookup returns the payload for key. A missing element is PAYLOAD_MISSING;
// an element that is not a script is DESERIALIZATION_FAILED.
func (d *Document) Lookup(key string) (hydration.Payload, error) {
	el, ok := d.elements[key]
	if !ok {
		return hydration.Payload{}, apperrors.WithMetadata(apperrors.CodePayloadMissing, "no payload in document", map[string]string{
			"key": key,
		})
	}
	if !el.script {
		return hydration.Payload{}, apperrors.WithMetadata(apperrors.CodeDeserialization, "payload element is not a script", map[string]string{
			"key":    key,
			"reason": hydration.ReasonElement,
		})
	}
	return hydration.Payload{Key: key, Data: el.data}, nil
}
