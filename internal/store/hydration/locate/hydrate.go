package locate

import (
	"context"
	"log/slog"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/store"
	"github.com/louisbranch/statehouse/internal/store/hydration"
	"github.com/louisbranch/statehouse/internal/store/registry"
)

// Result is the outcome of hydrating one store.
type Result[St any] struct {
	// Store is registered in both outcomes: built from the payload on
	// success, from the default snapshot on fallback.
	Store St
	Phase hydration.Phase
	// Err is PAYLOAD_MISSING or DESERIALIZATION_FAILED on fallback.
	Err error
	// NeedsRefetch marks a fallback store that should fetch fresh data now.
	NeedsRefetch bool
	History      []hydration.Phase
}

// Hydrated reports whether the store was rebuilt from the payload.
func (r *Result[St]) Hydrated() bool {
	return r.Phase == hydration.Hydrated
}

func (r *Result[St]) advance(to hydration.Phase) {
	if !hydration.CanTransition(r.Phase, to) {
		panic("hydration: invalid phase transition " + r.Phase.String() + " -> " + to.String())
	}
	r.Phase = to
	r.History = append(r.History, to)
}

// Hydrate rebuilds the store described by h from d and registers it in reg.
//
// A missing or malformed payload is not returned as an error: the default
// store is registered, the Result carries the cause with NeedsRefetch set and
// the document observer is notified. The returned error is reserved for
// failures that make the registry unusable, such as a duplicate identity.
//
// Repeat calls for the same key return the first Result and error without
// touching the document, the observer or the registry again.
func Hydrate[St store.Identifiable, S any](ctx context.Context, d *Document, reg *registry.Registry, h hydration.Hydratable[St, S]) (*Result[St], error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cached, ok := d.resolved[h.Key]; ok {
		res, ok := cached.result.(*Result[St])
		if !ok {
			return nil, apperrors.WithMetadata(apperrors.CodeTypeMismatch, "key hydrated with a different store type", map[string]string{
				"key": h.Key,
			})
		}
		return res, cached.err
	}

	res := &Result[St]{Phase: hydration.NotHydrated, History: []hydration.Phase{hydration.NotHydrated}}
	snapshot, err := recoverSnapshot(d, h)
	if err != nil {
		res.advance(hydration.HydrationFailed)
		res.Err = err
		res.NeedsRefetch = true
		d.logger.WarnContext(ctx, "hydration fallback",
			slog.String("store", h.Key),
			slog.String("code", string(apperrors.CodeOf(err))),
			slog.Any("err", err),
		)
		if d.observer != nil {
			d.observer.HydrationFailed(ctx, h.Key, err)
		}
		res.Store = h.Construct(defaultSnapshot(h))
		provideErr := registry.ProvideStore(reg, res.Store)
		d.resolved[h.Key] = resolution{result: res, err: provideErr}
		return res, provideErr
	}

	res.advance(hydration.PayloadLocated)
	res.advance(hydration.Deserialized)
	res.Store = h.Construct(snapshot)
	res.advance(hydration.StoreConstructed)
	if err := registry.ProvideStore(reg, res.Store); err != nil {
		d.resolved[h.Key] = resolution{result: res, err: err}
		return res, err
	}
	res.advance(hydration.Registered)
	res.advance(hydration.Hydrated)
	d.logger.DebugContext(ctx, "store hydrated", slog.String("store", h.Key))
	d.resolved[h.Key] = resolution{result: res}
	return res, nil
}

func recoverSnapshot[St store.Identifiable, S any](d *Document, h hydration.Hydratable[St, S]) (S, error) {
	var zero S
	payload, err := d.Lookup(h.Key)
	if err != nil {
		return zero, err
	}
	var codec hydration.Codec[S] = hydration.JSONCodec[S]{}
	if h.Codec != nil {
		codec = h.Codec
	}
	snapshot, err := codec.Decode(payload.Data)
	if err != nil {
		return zero, apperrors.WrapWithMetadata(apperrors.CodeDeserialization, "decode payload", map[string]string{
			"key":    h.Key,
			"reason": hydration.Reason(err),
		}, err)
	}
	return snapshot, nil
}

func defaultSnapshot[St store.Identifiable, S any](h hydration.Hydratable[St, S]) S {
	if h.Default != nil {
		return h.Default()
	}
	var zero S
	return zero
}
