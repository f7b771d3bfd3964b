// Package hydration transfers store snapshots from a server-rendered
// document to the process that continues it.
//
// The server half lives in hydration/embed and the client half in
// hydration/locate; either can be linked alone. This package holds what
// both halves agree on: the element naming scheme, the payload shape, the
// codec and the per-store phase machine.
package hydration

import (
	"strings"

	"github.com/louisbranch/statehouse/internal/store"
)

// Prefix is prepended to a store key to form the element id of its payload.
const Prefix = "__STATEHOUSE_STATE__"

// ScriptID returns the element id carrying the payload for key.
func ScriptID(key string) string {
	return Prefix + key
}

// KeyFromID returns the store key encoded in an element id.
func KeyFromID(id string) (string, bool) {
	if !strings.HasPrefix(id, Prefix) || len(id) == len(Prefix) {
		return "", false
	}
	return id[len(Prefix):], true
}

// Payload is one serialized snapshot bound to its store key.
type Payload struct {
	Key  string
	Data string
}

// Source is the read side of a store that can be serialized.
type Source[S any] interface {
	store.Identifiable
	State() store.ReadView[S]
}

// Hydratable describes how to rebuild a domain store of type St from a
// snapshot of type S.
type Hydratable[St store.Identifiable, S any] struct {
	// Key is the store key; it names the payload element.
	Key string
	// Codec converts snapshots to and from payload text.
	Codec Codec[S]
	// Default returns the snapshot used when no payload can be recovered.
	Default func() S
	// Construct builds the store from a snapshot without going through its
	// default constructor.
	Construct func(S) St
}
