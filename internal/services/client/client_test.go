package client

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/tokens"
	"github.com/louisbranch/statehouse/internal/services/web"
	websqlite "github.com/louisbranch/statehouse/internal/services/web/storage/sqlite"
	"github.com/louisbranch/statehouse/internal/store/hydration"
	"github.com/louisbranch/statehouse/internal/store/hydration/embed"
)

// fakeFetcher serves canned payloads and counts calls.
type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string]string
	calls    []string
	err      error
}

func (f *fakeFetcher) Fetch(_ context.Context, key string) (hydration.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	if f.err != nil {
		return hydration.Payload{}, f.err
	}
	data, ok := f.payloads[key]
	if !ok {
		return hydration.Payload{}, apperrors.WithMetadata(apperrors.CodePayloadMissing, "no snapshot", map[string]string{"key": key})
	}
	return hydration.Payload{Key: key, Data: data}, nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func document(scripts ...string) string {
	return "<!DOCTYPE html><html><head>" + strings.Join(scripts, "") + "</head><body><main></main></body></html>"
}

func loadString(t *testing.T, c *Client, doc string) {
	t.Helper()
	if err := c.LoadDocument(strings.NewReader(doc)); err != nil {
		t.Fatalf("load document: %v", err)
	}
}

func TestHydrateBeforeLoadFails(t *testing.T) {
	c := New()
	if err := c.Hydrate(context.Background()); !apperrors.HasCode(err, apperrors.CodeInvalidLifecycle) {
		t.Fatalf("expected lifecycle error, got %v", err)
	}
	if err := c.Mount(&bytes.Buffer{}); !apperrors.HasCode(err, apperrors.CodeInvalidLifecycle) {
		t.Fatalf("expected lifecycle error, got %v", err)
	}
}

func TestHydrateAllPayloadsPresent(t *testing.T) {
	fetcher := &fakeFetcher{}
	c := New(WithFetcher(fetcher))
	loadString(t, c, document(
		embed.HTML("counter", `{"count":7}`),
		embed.HTML("auth_store", `{"user":{"id":"user_123","email":"ada@example.com","name":"ada","avatar_url":null},"token":null,"remember_me":false}`),
		embed.HTML("token_store", `{"tokens":[],"selected_token_id":null,"search_query":"","sort_by":"Price","sort_desc":true,"last_fetched":null}`),
	))
	if err := c.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	for _, o := range c.Outcomes() {
		if o.Phase != hydration.Hydrated || o.NeedsRefetch || o.Err != nil {
			t.Fatalf("outcome %+v", o)
		}
	}
	if !c.Registry().Sealed() {
		t.Fatal("expected sealed registry")
	}

	var out bytes.Buffer
	if err := c.Mount(&out); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	for _, want := range []string{"counter: 7 (doubled 14)", "user: ada <ada@example.com>", "by Price desc"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in view:\n%s", want, out.String())
		}
	}
	if n, err := c.Refetch(context.Background()); err != nil || n != 0 {
		t.Fatalf("Refetch() = %d, %v", n, err)
	}
	if calls := fetcher.Calls(); len(calls) != 0 {
		t.Fatalf("expected no fetches, got %v", calls)
	}
}

func TestFallbackStoresAreRefetched(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string]string{
		"auth_store":  `{"user":null,"token":null,"remember_me":false}`,
		"token_store": `{"tokens":[{"id":"moss","name":"Moss Signal","symbol":"MOSS","decimals":6,"usdPrice":0.5,"mcap":72000,"fdv":0,"liquidity":0,"holderCount":3,"totalSupply":0,"circSupply":0,"organicScore":0,"bondingCurve":0,"tags":[]}],"selected_token_id":null,"search_query":"","sort_by":"MarketCap","sort_desc":true,"last_fetched":null}`,
	}}
	c := New(WithFetcher(fetcher))
	loadString(t, c, document(
		embed.HTML("counter", `{"count":2}`),
		embed.HTML("token_store", `{"tokens":`),
	))
	if err := c.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}

	outcomes := c.Outcomes()
	if outcomes[0].Phase != hydration.Hydrated {
		t.Fatalf("counter outcome %+v", outcomes[0])
	}
	if !outcomes[1].NeedsRefetch || !errors.Is(outcomes[1].Err, apperrors.ErrPayloadMissing) {
		t.Fatalf("auth outcome %+v", outcomes[1])
	}
	if !outcomes[2].NeedsRefetch || !errors.Is(outcomes[2].Err, apperrors.ErrDeserialization) {
		t.Fatalf("tokens outcome %+v", outcomes[2])
	}
	if c.Tokens().Count() != 0 {
		t.Fatal("fallback token store should start empty")
	}
	if len(fetcher.Calls()) != 0 {
		t.Fatal("hydration must not fetch")
	}

	n, err := c.Refetch(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("Refetch() = %d, %v", n, err)
	}
	if got := fetcher.Calls(); len(got) != 2 || got[0] != "auth_store" || got[1] != "token_store" {
		t.Fatalf("fetch calls = %v", got)
	}
	if c.Tokens().Count() != 1 {
		t.Fatalf("Count() = %d after refetch", c.Tokens().Count())
	}
	if c.Counter().Count() != 2 {
		t.Fatalf("hydrated counter changed: %d", c.Counter().Count())
	}

	// A second pass has nothing left to fetch.
	if n, err := c.Refetch(context.Background()); err != nil || n != 0 {
		t.Fatalf("second Refetch() = %d, %v", n, err)
	}
}

func TestRefetchReportsFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("unreachable")}
	c := New(WithFetcher(fetcher))
	loadString(t, c, document())
	if err := c.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if _, err := c.Refetch(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if !c.Outcomes()[0].NeedsRefetch {
		t.Fatal("failed refetch must keep the store marked")
	}
}

func TestLiveRefreshRequiresMount(t *testing.T) {
	c := New(WithFetcher(&fakeFetcher{}))
	loadString(t, c, document())
	if err := c.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if _, err := c.StartLiveRefresh(context.Background(), time.Millisecond); !apperrors.HasCode(err, apperrors.CodeNotMounted) {
		t.Fatalf("expected not mounted, got %v", err)
	}
}

func TestLiveRefreshReplacesTokens(t *testing.T) {
	var polls atomic.Int64
	src := tokens.SourceFunc(func(context.Context) ([]tokens.Token, error) {
		n := polls.Add(1)
		list := make([]tokens.Token, n)
		for i := range list {
			list[i] = tokens.Token{ID: string(rune('a' + i)), Name: "T", Symbol: "T"}
		}
		return list, nil
	})
	c := New(WithTokenSource(src))
	loadString(t, c, document())
	if err := c.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if err := c.Mount(&bytes.Buffer{}); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}

	stop, err := c.StartLiveRefresh(context.Background(), 5*time.Millisecond)
	if err != nil {
		t.Fatalf("StartLiveRefresh() error = %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for c.Refreshes() < 2 {
		if time.Now().After(deadline) {
			stop()
			t.Fatalf("refreshes = %d", c.Refreshes())
		}
		time.Sleep(5 * time.Millisecond)
	}
	stop()
	if c.Tokens().Count() < 2 {
		t.Fatalf("Count() = %d", c.Tokens().Count())
	}
	if _, ok := c.Tokens().LastFetched(); !ok {
		t.Fatal("expected LastFetched after refresh")
	}
}

// TestRenderedPageHydratesWithoutFetching loads a page from the web server
// and hydrates every store from it without touching the snapshot service.
func TestRenderedPageHydratesWithoutFetching(t *testing.T) {
	st, err := websqlite.Open(filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.SaveCounter(context.Background(), web.DefaultCounterName, 5); err != nil {
		t.Fatalf("save counter: %v", err)
	}
	handler, err := web.NewHandler(web.Config{Mode: hydration.ModeServerRenderHydrate}, web.Dependencies{Storage: st})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	fetcher := &fakeFetcher{}
	c := New(WithFetcher(fetcher), WithHTTPClient(srv.Client()))
	ctx := context.Background()

	// Each page embeds one store; the others fall back.
	if err := c.Load(ctx, srv.URL+"/"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := c.Hydrate(ctx); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if err := c.Mount(&bytes.Buffer{}); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if c.Counter().Count() != 5 {
		t.Fatalf("Count() = %d, want 5", c.Counter().Count())
	}
	if !c.Outcomes()[0].Hydrated() {
		t.Fatalf("counter outcome %+v", c.Outcomes()[0])
	}
	if len(fetcher.Calls()) != 0 {
		t.Fatalf("fetched before mount: %v", fetcher.Calls())
	}

	if err := c.Load(ctx, srv.URL+"/tokens?sort=price&dir=asc"); err != nil {
		t.Fatalf("Load(tokens) error = %v", err)
	}
	if err := c.Hydrate(ctx); err != nil {
		t.Fatalf("Hydrate(tokens) error = %v", err)
	}
	if c.Tokens().Count() != 5 {
		t.Fatalf("tokens Count() = %d", c.Tokens().Count())
	}
	if field, desc := c.Tokens().Sort(); field != tokens.SortPrice || desc {
		t.Fatalf("Sort() = %v, %v", field, desc)
	}

	if err := c.Load(ctx, srv.URL+"/missing"); err == nil {
		t.Fatal("expected error for a missing page")
	}
}
