// Package client is a hydrating client for the statehouse web pages. It
// plays the browser's part: it fetches a rendered document, rebuilds every
// known store from the embedded payloads before mounting, and then keeps
// the token list fresh.
//
// Stores are never fetched before mount when every payload is present. A
// store that fell back to its default snapshot is marked for refetch, and
// Refetch replaces its snapshot through the snapshot service.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/platform/timeouts"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/auth"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/counter"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/tokens"
	"github.com/louisbranch/statehouse/internal/store"
	"github.com/louisbranch/statehouse/internal/store/async"
	"github.com/louisbranch/statehouse/internal/store/hydration"
	"github.com/louisbranch/statehouse/internal/store/hydration/locate"
	"github.com/louisbranch/statehouse/internal/store/registry"
)

// Fetcher returns a fresh payload for a store key.
type Fetcher interface {
	Fetch(ctx context.Context, key string) (hydration.Payload, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, key string) (hydration.Payload, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, key string) (hydration.Payload, error) {
	return f(ctx, key)
}

// Client hydrates and mounts one document.
type Client struct {
	httpClient  *http.Client
	fetcher     Fetcher
	tokenSource tokens.Source
	scheduler   *async.Scheduler
	logger      *slog.Logger

	mu       sync.Mutex
	doc      *locate.Document
	registry *registry.Registry
	counter  *locate.Result[*counter.Store]
	auth     *locate.Result[*auth.Store]
	tokens   *locate.Result[*tokens.Store]
	mounted  bool

	refreshes atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used to load documents.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithFetcher sets the source of fresh payloads.
func WithFetcher(f Fetcher) Option {
	return func(c *Client) {
		c.fetcher = f
	}
}

// WithTokenSource overrides the source polled by live refresh. By default
// live refresh reads the token payload through the fetcher.
func WithTokenSource(src tokens.Source) Option {
	return func(c *Client) {
		c.tokenSource = src
	}
}

// WithScheduler sets the scheduler async actions run on.
func WithScheduler(s *async.Scheduler) Option {
	return func(c *Client) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a client with nothing loaded.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeouts.PageFetch},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.scheduler == nil {
		c.scheduler = async.NewScheduler(async.WithLogger(c.logger))
	}
	return c
}

// Load fetches the document at url and indexes its payloads.
func (c *Client) Load(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return async.Network("load page", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return async.Failed(fmt.Sprintf("load page: status %d", resp.StatusCode), nil)
	}
	return c.LoadDocument(resp.Body)
}

// LoadDocument indexes an already fetched document.
func (c *Client) LoadDocument(r io.Reader) error {
	doc, err := locate.Parse(r, locate.WithLogger(c.logger))
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc = doc
	c.registry = nil
	c.counter, c.auth, c.tokens = nil, nil, nil
	c.mounted = false
	return nil
}

// Hydrate rebuilds the counter, auth and token stores from the loaded
// document into a fresh registry, then seals it. Missing or malformed
// payloads fall back to default stores marked for refetch.
func (c *Client) Hydrate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == nil {
		return apperrors.New(apperrors.CodeInvalidLifecycle, "hydrate before a document was loaded")
	}
	if c.registry != nil {
		return nil
	}
	reg := registry.New("client")
	counterRes, err := locate.Hydrate(ctx, c.doc, reg, counter.Hydratable())
	if err != nil {
		return err
	}
	authRes, err := locate.Hydrate(ctx, c.doc, reg, auth.Hydratable())
	if err != nil {
		return err
	}
	tokensRes, err := locate.Hydrate(ctx, c.doc, reg, tokens.Hydratable())
	if err != nil {
		return err
	}
	reg.Seal()
	c.registry = reg
	c.counter, c.auth, c.tokens = counterRes, authRes, tokensRes
	return nil
}

// Registry returns the sealed registry, or nil before Hydrate.
func (c *Client) Registry() *registry.Registry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry
}

// Counter returns the hydrated counter store.
func (c *Client) Counter() *counter.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counter == nil {
		return nil
	}
	return c.counter.Store
}

// Auth returns the hydrated auth store.
func (c *Client) Auth() *auth.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auth == nil {
		return nil
	}
	return c.auth.Store
}

// Tokens returns the hydrated token store.
func (c *Client) Tokens() *tokens.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens == nil {
		return nil
	}
	return c.tokens.Store
}

// Outcome summarizes how one store was hydrated.
type Outcome struct {
	Key          string
	Phase        hydration.Phase
	NeedsRefetch bool
	Err          error
}

// Outcomes reports each store's hydration result in hydration order.
func (c *Client) Outcomes() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registry == nil {
		return nil
	}
	return []Outcome{
		outcomeOf(counter.Key, c.counter),
		outcomeOf(auth.Key, c.auth),
		outcomeOf(tokens.Key, c.tokens),
	}
}

// Hydrated reports whether the store was rebuilt from its payload.
func (o Outcome) Hydrated() bool {
	return o.Phase == hydration.Hydrated
}

func outcomeOf[St any](key string, res *locate.Result[St]) Outcome {
	return Outcome{Key: key, Phase: res.Phase, NeedsRefetch: res.NeedsRefetch, Err: res.Err}
}

// Mounted reports whether Mount has run.
func (c *Client) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// Mount renders the current view to w through the stores' getters.
func (c *Client) Mount(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registry == nil {
		return apperrors.New(apperrors.CodeInvalidLifecycle, "mount before hydration")
	}
	if err := render(w, c.counter.Store, c.auth.Store, c.tokens.Store); err != nil {
		return err
	}
	c.mounted = true
	return nil
}

func render(w io.Writer, cs *counter.Store, as *auth.Store, ts *tokens.Store) error {
	var b strings.Builder
	fmt.Fprintf(&b, "counter: %d (doubled %d)\n", cs.Count(), cs.Doubled())
	if email, ok := as.Email(); ok {
		fmt.Fprintf(&b, "user: %s <%s>\n", as.DisplayName(), email)
	} else {
		fmt.Fprintf(&b, "user: %s\n", as.DisplayName())
	}
	field, desc := ts.Sort()
	direction := "asc"
	if desc {
		direction = "desc"
	}
	label := field.Label()
	if label == "" {
		label = tokens.SortMarketCap.Label()
	}
	fmt.Fprintf(&b, "tokens: %d of %d by %s %s\n", len(ts.Filtered()), ts.Count(), label, direction)
	for _, tok := range ts.Filtered() {
		fmt.Fprintf(&b, "  %-6s %-16s %12s %10s\n", tok.Symbol, tok.Name, tok.FormattedPrice(), tok.FormattedMcap())
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Refetch fetches a fresh snapshot for every store that fell back during
// hydration and applies it. Stores that hydrated from their payload are not
// fetched. It returns the number of stores refreshed.
func (c *Client) Refetch(ctx context.Context) (int, error) {
	c.mu.Lock()
	counterRes, authRes, tokensRes := c.counter, c.auth, c.tokens
	hydrated := c.registry != nil
	c.mu.Unlock()
	if !hydrated {
		return 0, apperrors.New(apperrors.CodeInvalidLifecycle, "refetch before hydration")
	}

	refreshed := 0
	steps := []func() (bool, error){
		func() (bool, error) {
			return refetch(ctx, c, counterRes, counter.Codec, (*counter.Store).ApplySnapshot)
		},
		func() (bool, error) {
			return refetch(ctx, c, authRes, auth.Codec, (*auth.Store).ApplySnapshot)
		},
		func() (bool, error) {
			return refetch(ctx, c, tokensRes, tokens.Codec, (*tokens.Store).ApplySnapshot)
		},
	}
	for _, step := range steps {
		done, err := step()
		if err != nil {
			return refreshed, err
		}
		if done {
			refreshed++
		}
	}
	return refreshed, nil
}

// refetch replaces the snapshot of a fallen-back store. The mutation runs
// on the scheduler so it does not interleave with a running action.
func refetch[St store.Identifiable, S any](ctx context.Context, c *Client, res *locate.Result[St], codec hydration.Codec[S], apply func(St, S)) (bool, error) {
	if res == nil || !res.NeedsRefetch {
		return false, nil
	}
	if c.fetcher == nil {
		return false, apperrors.New(apperrors.CodeNotFound, "no snapshot fetcher configured")
	}
	key := res.Store.Identity().Key
	payload, err := c.fetcher.Fetch(ctx, key)
	if err != nil {
		return false, err
	}
	snapshot, err := codec.Decode(payload.Data)
	if err != nil {
		return false, apperrors.WrapWithMetadata(apperrors.CodeDeserialization, "decode fetched snapshot", map[string]string{
			"key":    key,
			"reason": hydration.Reason(err),
		}, err)
	}
	if err := c.scheduler.Do(ctx, func() { apply(res.Store, snapshot) }); err != nil {
		return false, err
	}
	c.mu.Lock()
	res.NeedsRefetch = false
	c.mu.Unlock()
	c.logger.DebugContext(ctx, "store refetched", slog.String("store", key))
	return true, nil
}

// SnapshotTokenSource reads the token list from the token store payload
// served by f.
func SnapshotTokenSource(f Fetcher) tokens.Source {
	return tokens.SourceFunc(func(ctx context.Context) ([]tokens.Token, error) {
		payload, err := f.Fetch(ctx, tokens.Key)
		if err != nil {
			return nil, err
		}
		st, err := tokens.Codec.Decode(payload.Data)
		if err != nil {
			return nil, err
		}
		return st.Tokens, nil
	})
}

// Refreshes returns how many live refresh runs completed.
func (c *Client) Refreshes() int64 {
	return c.refreshes.Load()
}

// StartLiveRefresh polls the token source every interval until ctx ends or
// the returned stop function is called. It is only allowed once the client
// is mounted.
func (c *Client) StartLiveRefresh(ctx context.Context, interval time.Duration) (func(), error) {
	c.mu.Lock()
	mounted := c.mounted
	var ts *tokens.Store
	if c.tokens != nil {
		ts = c.tokens.Store
	}
	c.mu.Unlock()
	if !mounted {
		return nil, apperrors.New(apperrors.CodeNotMounted, "live refresh requires a mounted client")
	}
	src := c.tokenSource
	if src == nil {
		if c.fetcher == nil {
			return nil, apperrors.New(apperrors.CodeNotFound, "no token source configured")
		}
		src = SnapshotTokenSource(c.fetcher)
	}
	if interval <= 0 {
		interval = tokens.RefreshInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := async.RunSync(ctx, c.scheduler, ts, tokens.Refresh(src))
				if err != nil {
					if async.IsContextError(err) {
						return
					}
					c.logger.WarnContext(ctx, "live refresh failed", slog.String("store", tokens.Key), slog.Any("err", err))
					continue
				}
				c.refreshes.Add(1)
				c.logger.DebugContext(ctx, "live refresh", slog.String("store", tokens.Key), slog.Int("tokens", n))
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}
