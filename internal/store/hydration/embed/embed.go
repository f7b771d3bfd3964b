// Package embed is the server half of hydration: it serializes populated
// stores and renders their payloads into the outgoing document.
package embed

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/a-h/templ"
	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/store"
	"github.com/louisbranch/statehouse/internal/store/hydration"
	"github.com/louisbranch/statehouse/internal/store/registry"
)

// Collector gathers the payloads of one rendered document.
type Collector struct {
	mu       sync.Mutex
	payloads []hydration.Payload
	keys     map[string]struct{}
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{keys: make(map[string]struct{})}
}

// Add queues data under key. A document carries one payload per key, so a
// second Add for the same key fails.
func (c *Collector) Add(key, data string) error {
	if err := store.NewIdentity(key).Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.keys[key]; exists {
		return apperrors.WithMetadata(apperrors.CodeDuplicateKey, "payload already embedded", map[string]string{
			"key": key,
		})
	}
	c.keys[key] = struct{}{}
	c.payloads = append(c.payloads, hydration.Payload{Key: key, Data: data})
	return nil
}

// Has reports whether key was already added.
func (c *Collector) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.keys[key]
	return ok
}

// Payloads returns the queued payloads in insertion order.
func (c *Collector) Payloads() []hydration.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]hydration.Payload, len(c.payloads))
	copy(out, c.payloads)
	return out
}

// Len returns the number of queued payloads.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

// Component renders every queued payload.
func (c *Collector) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, p := range c.Payloads() {
			if err := Script(p).Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

// Collect serializes the current snapshot of src and queues it under the
// store key.
func Collect[S any](c *Collector, src hydration.Source[S], codec hydration.Codec[S]) error {
	key := src.Identity().Key
	data, err := codec.Encode(src.State().Get())
	if err != nil {
		return apperrors.WrapWithMetadata(apperrors.CodeSerialization, "serialize store", map[string]string{
			"key": key,
		}, err)
	}
	return c.Add(key, data)
}

// ProvideHydrated registers src in the registry bound to ctx and queues its
// payload. Both steps reject a key that is already in use.
func ProvideHydrated[S any](ctx context.Context, c *Collector, src hydration.Source[S], codec hydration.Codec[S]) error {
	key := src.Identity().Key
	if c.Has(key) {
		return apperrors.WithMetadata(apperrors.CodeDuplicateKey, "payload already embedded", map[string]string{
			"key": key,
		})
	}
	data, err := codec.Encode(src.State().Get())
	if err != nil {
		return apperrors.WrapWithMetadata(apperrors.CodeSerialization, "serialize store", map[string]string{
			"key": key,
		}, err)
	}
	if err := registry.ProvideContext(ctx, src); err != nil {
		return err
	}
	return c.Add(key, data)
}

// Escape neutralises "</script" sequences, in any letter case, inside payload
// text so the element cannot be closed early. Other text is left untouched.
// Codecs must read "<\/script" back as "</script"; JSON strings do.
func Escape(data string) string {
	const closing = "</script"
	if !strings.Contains(strings.ToLower(data), closing) {
		return data
	}
	var b strings.Builder
	b.Grow(len(data) + 8)
	for i := 0; i < len(data); i++ {
		if data[i] == '<' && i+len(closing) <= len(data) && strings.EqualFold(data[i:i+len(closing)], closing) {
			b.WriteString(`<\/`)
			b.WriteString(data[i+2 : i+len(closing)])
			i += len(closing) - 1
			continue
		}
		b.WriteByte(data[i])
	}
	return b.String()
}

// HTML renders one payload element as a string.
func HTML(key, data string) string {
	var b strings.Builder
	_ = writeScript(&b, hydration.Payload{Key: key, Data: data})
	return b.String()
}

// Script renders one payload element.
func Script(p hydration.Payload) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return writeScript(w, p)
	})
}

func writeScript(w io.Writer, p hydration.Payload) error {
	_, err := io.WriteString(w, `<script id="`+templ.EscapeString(hydration.ScriptID(p.Key))+
		`" type="application/json">`+Escape(p.Data)+`</script>`)
	return err
}

type collectorContextKey struct{}

// WithCollector binds c to ctx.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, collectorContextKey{}, c)
}

// CollectorFromContext returns the collector bound to ctx.
func CollectorFromContext(ctx context.Context) (*Collector, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(collectorContextKey{}).(*Collector)
	return c, ok && c != nil
}
