package registry

import (
	"context"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/store"
)

// registryContextKey is the context key for the active registry scope.
type registryContextKey struct{}

// WithRegistry binds r to ctx.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, registryContextKey{}, r)
}

// FromContext returns the registry bound to ctx.
func FromContext(ctx context.Context) (*Registry, bool) {
	if ctx == nil {
		return nil, false
	}
	r, ok := ctx.Value(registryContextKey{}).(*Registry)
	return r, ok && r != nil
}

// WithChild binds a child of the current scope to ctx and returns both.
func WithChild(ctx context.Context, name string) (context.Context, *Registry, error) {
	parent, err := requireRegistry(ctx)
	if err != nil {
		return ctx, nil, err
	}
	child := parent.Child(name)
	return WithRegistry(ctx, child), child, nil
}

// ProvideContext registers s in the registry bound to ctx.
func ProvideContext(ctx context.Context, s store.Identifiable) error {
	r, err := requireRegistry(ctx)
	if err != nil {
		return err
	}
	return ProvideStore(r, s)
}

// UseContext resolves id from the registry bound to ctx.
func UseContext[T any](ctx context.Context, id store.Identity) (T, error) {
	r, err := requireRegistry(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return UseAs[T](r, id)
}

func requireRegistry(ctx context.Context) (*Registry, error) {
	r, ok := FromContext(ctx)
	if !ok {
		return nil, apperrors.New(apperrors.CodeNoRegistry, "no registry bound to context")
	}
	return r, nil
}
