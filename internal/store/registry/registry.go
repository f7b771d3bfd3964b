// Package registry binds store instances to identities so code below the
// provider can resolve them without threading parameters.
//
// A Registry is an explicit scope object: servers create one per request,
// clients one per process. Child scopes resolve through their ancestors, which
// models providing a store on the path from the root to its consumers.
package registry

import (
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/store"
)

// Registry holds provided stores for one scope.
type Registry struct {
	name   string
	parent *Registry

	mu      sync.RWMutex
	entries map[store.Identity]any
	sealed  bool
}

// New creates a root scope.
func New(name string) *Registry {
	return &Registry{name: name, entries: make(map[store.Identity]any)}
}

// Child opens a nested scope that falls back to r on lookup.
func (r *Registry) Child(name string) *Registry {
	child := New(name)
	child.parent = r
	return child
}

// Name returns the scope name.
func (r *Registry) Name() string {
	return r.name
}

// Parent returns the enclosing scope, nil for a root.
func (r *Registry) Parent() *Registry {
	return r.parent
}

// Provide registers value under id in this scope. Providing the same
// identity twice in one scope is a configuration error; shadowing an
// ancestor's entry is allowed.
func (r *Registry) Provide(id store.Identity, value any) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if value == nil {
		return apperrors.WithMetadata(apperrors.CodeInvalidIdentity, "cannot provide a nil store", map[string]string{
			"identity": id.String(),
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return apperrors.WithMetadata(apperrors.CodeRegistrySealed, "provide after seal", map[string]string{
			"identity": id.String(),
			"scope":    r.name,
		})
	}
	if _, exists := r.entries[id]; exists {
		return apperrors.WithMetadata(apperrors.CodeDuplicateKey, "store already provided", map[string]string{
			"identity": id.String(),
			"scope":    r.name,
		})
	}
	r.entries[id] = value
	return nil
}

// Use resolves id in this scope or the nearest ancestor that provides it.
func (r *Registry) Use(id store.Identity) (any, error) {
	for scope := r; scope != nil; scope = scope.parent {
		scope.mu.RLock()
		value, ok := scope.entries[id]
		scope.mu.RUnlock()
		if ok {
			return value, nil
		}
	}
	return nil, apperrors.WithMetadata(apperrors.CodeNotFound, "store not provided", map[string]string{
		"identity": id.String(),
		"scope":    r.name,
	})
}

// Has reports whether id resolves from this scope.
func (r *Registry) Has(id store.Identity) bool {
	_, err := r.Use(id)
	return err == nil
}

// Seal ends the provide pass for this scope; later Provide calls fail.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Len returns the number of identities provided in this scope.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Identities lists this scope's identities sorted by their string form.
func (r *Registry) Identities() []store.Identity {
	r.mu.RLock()
	ids := make([]store.Identity, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// ProvideStore registers s under its own identity.
func ProvideStore(r *Registry, s store.Identifiable) error {
	if isNil(s) {
		return apperrors.New(apperrors.CodeInvalidIdentity, "cannot provide a nil store")
	}
	return r.Provide(s.Identity(), s)
}

// isNil reports whether v is nil or a typed nil behind an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	value := reflect.ValueOf(v)
	switch value.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return value.IsNil()
	}
	return false
}

// UseAs resolves id and asserts the result to T.
func UseAs[T any](r *Registry, id store.Identity) (T, error) {
	var zero T
	value, err := r.Use(id)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, apperrors.WithMetadata(apperrors.CodeTypeMismatch, "store has unexpected type", map[string]string{
			"identity": id.String(),
		})
	}
	return typed, nil
}

// UseStore resolves a store holding snapshots of type S.
func UseStore[S any](r *Registry, id store.Identity) (*store.Store[S], error) {
	return UseAs[*store.Store[S]](r, id)
}

// MustUse is UseAs for wiring code where a missing store is a programming
// error.
func MustUse[T any](r *Registry, id store.Identity) T {
	value, err := UseAs[T](r, id)
	if err != nil {
		panic(err)
	}
	return value
}

// ProvideType registers value under the identity derived from T and scope.
func ProvideType[T any](r *Registry, scope string, value T) error {
	return r.Provide(store.IdentityOf[T](scope), value)
}

// UseType resolves the value registered by ProvideType.
func UseType[T any](r *Registry, scope string) (T, error) {
	return UseAs[T](r, store.IdentityOf[T](scope))
}

// NewScopeID returns a random scope discriminator for multi-instance stores.
func NewScopeID() string {
	return uuid.NewString()
}
