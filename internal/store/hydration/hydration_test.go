package hydration

import (
	"reflect"
	"testing"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
)

type stats struct {
	Holders int      `json:"holders"`
	Tags    []string `json:"tags,omitempty"`
}

type snapshot struct {
	Count  int               `json:"count"`
	Name   *string           `json:"name,omitempty"`
	Stats  *stats            `json:"stats,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

func TestScriptID(t *testing.T) {
	if got := ScriptID("counter"); got != "__STATEHOUSE_STATE__counter" {
		t.Fatalf("ScriptID() = %q", got)
	}
	key, ok := KeyFromID(ScriptID("token_store"))
	if !ok || key != "token_store" {
		t.Fatalf("KeyFromID() = %q, %v", key, ok)
	}
	for _, id := range []string{"", Prefix, "counter", "__OTHER__counter"} {
		if _, ok := KeyFromID(id); ok {
			t.Fatalf("KeyFromID(%q) matched", id)
		}
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	name := "alice"
	cases := []snapshot{
		{},
		{Count: -3},
		{Count: 5, Name: &name},
		{Count: 1, Stats: &stats{Holders: 10, Tags: []string{"a", "</script>"}}},
		{Labels: map[string]string{"k": "v"}},
	}
	codec := JSONCodec[snapshot]{}
	for _, want := range cases {
		data, err := codec.Encode(want)
		if err != nil {
			t.Fatalf("Encode(%+v) error = %v", want, err)
		}
		got, err := codec.Decode(data)
		if err != nil {
			t.Fatalf("Decode(%s) error = %v", data, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip = %+v, want %+v", got, want)
		}
	}
}

func TestJSONCodecDecodeFailures(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		reason string
	}{
		{name: "empty", data: "", reason: ReasonSyntax},
		{name: "garbage", data: "not json", reason: ReasonSyntax},
		{name: "truncated", data: `{"count": 5`, reason: ReasonSyntax},
		{name: "trailing value", data: `{"count": 5} {"count": 6}`, reason: ReasonSyntax},
		{name: "wrong type", data: `{"count":"five"}`, reason: ReasonShape},
		{name: "null payload", data: `null`, reason: ReasonShape},
		{name: "empty object", data: `{}`, reason: ReasonShape},
		{name: "null field", data: `{"count":null}`, reason: ReasonShape},
		{name: "only unknown fields", data: `{"wrong":"field"}`, reason: ReasonShape},
		{name: "nested missing field", data: `{"count":1,"stats":{}}`, reason: ReasonShape},
		{name: "nested null field", data: `{"count":1,"stats":{"holders":null}}`, reason: ReasonShape},
		{name: "array payload", data: `[1,2]`, reason: ReasonShape},
	}
	codec := JSONCodec[snapshot]{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.data)
			if apperrors.CodeOf(err) != apperrors.CodeDeserialization {
				t.Fatalf("Decode() error = %v, want deserialization", err)
			}
			if got := Reason(err); got != tt.reason {
				t.Fatalf("Reason() = %q, want %q", got, tt.reason)
			}
		})
	}
}

func TestJSONCodecIgnoresUnknownFields(t *testing.T) {
	got, err := JSONCodec[snapshot]{}.Decode(`{"count":5,"label":"x","stats":{"holders":2,"extra":true}}`)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := snapshot{Count: 5, Stats: &stats{Holders: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Decode() = %+v, want %+v", got, want)
	}
}

func TestJSONCodecAcceptsOptionalAndNullCollections(t *testing.T) {
	tests := []struct {
		name string
		data string
		want snapshot
	}{
		{name: "optional fields absent", data: `{"count":2}`, want: snapshot{Count: 2}},
		{name: "optional pointer null", data: `{"count":2,"name":null,"stats":null}`, want: snapshot{Count: 2}},
		{name: "null map", data: `{"count":2,"labels":null}`, want: snapshot{Count: 2}},
		{name: "null slice", data: `{"count":2,"stats":{"holders":1,"tags":null}}`, want: snapshot{Count: 2, Stats: &stats{Holders: 1}}},
	}
	codec := JSONCodec[snapshot]{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Decode(tt.data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestJSONCodecNullForPointerSnapshot(t *testing.T) {
	got, err := JSONCodec[*snapshot]{}.Decode(`null`)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got != nil {
		t.Fatalf("Decode() = %+v, want nil", got)
	}
}

func TestJSONCodecEncodeFailure(t *testing.T) {
	_, err := JSONCodec[chan int]{}.Encode(make(chan int))
	if apperrors.CodeOf(err) != apperrors.CodeSerialization {
		t.Fatalf("Encode() error = %v, want serialization", err)
	}
}

func TestPhaseTransitions(t *testing.T) {
	success := []Phase{NotHydrated, PayloadLocated, Deserialized, StoreConstructed, Registered, Hydrated}
	for i := 0; i+1 < len(success); i++ {
		if !CanTransition(success[i], success[i+1]) {
			t.Fatalf("CanTransition(%s, %s) = false", success[i], success[i+1])
		}
	}

	invalid := [][2]Phase{
		{NotHydrated, Deserialized},
		{PayloadLocated, HydrationFailed},
		{Registered, HydrationFailed},
		{Hydrated, NotHydrated},
		{HydrationFailed, NotHydrated},
		{Deserialized, PayloadLocated},
	}
	for _, edge := range invalid {
		if CanTransition(edge[0], edge[1]) {
			t.Fatalf("CanTransition(%s, %s) = true", edge[0], edge[1])
		}
	}
	if !CanTransition(NotHydrated, HydrationFailed) {
		t.Fatal("expected failure edge from not_hydrated")
	}
	if !Hydrated.Terminal() || !HydrationFailed.Terminal() || Registered.Terminal() {
		t.Fatal("unexpected terminal phases")
	}
	if Phase(42).String() != "unknown" || Deserialized.String() != "deserialized" {
		t.Fatal("unexpected phase names")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		embeds  bool
		server  bool
		wantErr bool
	}{
		{in: "", want: ModeServerRenderHydrate, embeds: true, server: true},
		{in: "server-render-hydrate", want: ModeServerRenderHydrate, embeds: true, server: true},
		{in: " SSR ", want: ModeServerRender, server: true},
		{in: "client-render", want: ModeClientRender},
		{in: "static", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if apperrors.CodeOf(err) != apperrors.CodeInvalidMode {
				t.Fatalf("ParseMode(%q) error = %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
		if got.Embeds() != tt.embeds || got.Locates() != tt.embeds || got.RendersOnServer() != tt.server {
			t.Fatalf("mode %q flags mismatch", got)
		}
	}
}
