package embed

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/store"
	"github.com/louisbranch/statehouse/internal/store/hydration"
	"github.com/louisbranch/statehouse/internal/store/registry"
)

type counterState struct {
	Count int `json:"count"`
}

type failingCodec struct{}

func (failingCodec) Encode(counterState) (string, error) { return "", errors.New("boom") }
func (failingCodec) Decode(string) (counterState, error) { return counterState{}, nil }

func TestCollectRendersScript(t *testing.T) {
	s, _ := store.New("counter", counterState{Count: 5})
	c := NewCollector()
	if err := Collect[counterState](c, s, hydration.JSONCodec[counterState]{}); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	var buf bytes.Buffer
	if err := c.Component().Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := `<script id="__STATEHOUSE_STATE__counter" type="application/json">{"count":5}</script>`
	if buf.String() != want {
		t.Fatalf("rendered = %q, want %q", buf.String(), want)
	}
	if HTML("counter", `{"count":5}`) != want {
		t.Fatalf("HTML() = %q", HTML("counter", `{"count":5}`))
	}
}

func TestAddRejectsDuplicateKey(t *testing.T) {
	c := NewCollector()
	if err := c.Add("counter", "{}"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	err := c.Add("counter", "{}")
	if apperrors.CodeOf(err) != apperrors.CodeDuplicateKey {
		t.Fatalf("second Add() error = %v, want duplicate", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
	if err := c.Add("", "{}"); apperrors.CodeOf(err) != apperrors.CodeInvalidIdentity {
		t.Fatalf("Add(blank) error = %v", err)
	}
}

func TestPayloadsKeepInsertionOrder(t *testing.T) {
	c := NewCollector()
	for _, key := range []string{"b", "a", "c"} {
		if err := c.Add(key, "{}"); err != nil {
			t.Fatalf("Add(%q) error = %v", key, err)
		}
	}
	got := c.Payloads()
	if got[0].Key != "b" || got[1].Key != "a" || got[2].Key != "c" {
		t.Fatalf("Payloads() = %v", got)
	}
}

func TestEscapeNeutralisesClosingTag(t *testing.T) {
	data := `{"name":"</script><script>alert(1)</script>"}`
	html := HTML("x", data)
	if strings.Count(html, "</script>") != 1 {
		t.Fatalf("payload closes the element early: %s", html)
	}
	if !strings.Contains(html, `<\/script>`) {
		t.Fatalf("expected escaped closing tag in %s", html)
	}
}

func TestEscapeOnlyTouchesScriptClosers(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `{"html":"</div>"}`, want: `{"html":"</div>"}`},
		{in: `a</b`, want: `a</b`},
		{in: `</SCRIPT>`, want: `<\/SCRIPT>`},
		{in: `x</ScRiPt y</script`, want: `x<\/ScRiPt y<\/script`},
		{in: `</scrip`, want: `</scrip`},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		if got := Escape(tt.in); got != tt.want {
			t.Fatalf("Escape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCollectSerializationFailure(t *testing.T) {
	s, _ := store.New("counter", counterState{})
	c := NewCollector()
	err := Collect[counterState](c, s, failingCodec{})
	if apperrors.CodeOf(err) != apperrors.CodeSerialization {
		t.Fatalf("Collect() error = %v, want serialization", err)
	}
	if c.Len() != 0 {
		t.Fatal("failed serialization must not queue a payload")
	}
}

func TestProvideHydrated(t *testing.T) {
	ctx := registry.WithRegistry(context.Background(), registry.New("request"))
	c := NewCollector()
	first, _ := store.New("counter", counterState{Count: 1})
	if err := ProvideHydrated[counterState](ctx, c, first, hydration.JSONCodec[counterState]{}); err != nil {
		t.Fatalf("ProvideHydrated() error = %v", err)
	}

	got, err := registry.UseContext[*store.Store[counterState]](ctx, store.NewIdentity("counter"))
	if err != nil || got != first {
		t.Fatalf("UseContext() = %v, %v", got, err)
	}

	second, _ := store.New("counter", counterState{Count: 2}, store.WithScope[counterState]("other"))
	err = ProvideHydrated[counterState](ctx, c, second, hydration.JSONCodec[counterState]{})
	if apperrors.CodeOf(err) != apperrors.CodeDuplicateKey {
		t.Fatalf("ProvideHydrated(reused key) error = %v, want duplicate", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestProvideHydratedWithoutRegistry(t *testing.T) {
	s, _ := store.New("counter", counterState{})
	err := ProvideHydrated[counterState](context.Background(), NewCollector(), s, hydration.JSONCodec[counterState]{})
	if apperrors.CodeOf(err) != apperrors.CodeNoRegistry {
		t.Fatalf("ProvideHydrated() error = %v, want no registry", err)
	}
}

func TestCollectorContext(t *testing.T) {
	c := NewCollector()
	ctx := WithCollector(context.Background(), c)
	got, ok := CollectorFromContext(ctx)
	if !ok || got != c {
		t.Fatal("expected collector from context")
	}
	if _, ok := CollectorFromContext(context.Background()); ok {
		t.Fatal("expected no collector")
	}
}
