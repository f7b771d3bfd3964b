package store

import (
	"log/slog"
	"sync"
	"sync/atomic"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/store/reactive"
)

// Container is the reactive primitive a store wraps.
type Container[S any] interface {
	Read() S
	Replace(S)
	Subscribe(func(S)) func()
}

// ReadView is the read-only view over a store's current snapshot.
type ReadView[S any] interface {
	Get() S
	Subscribe(func(S)) func()
}

// Option configures store construction.
type Option[S any] func(*config[S])

type config[S any] struct {
	scope     string
	container func(S) Container[S]
	clone     func(S) S
	logger    *slog.Logger
}

// WithScope binds the store to a scope discriminator.
func WithScope[S any](scope string) Option[S] {
	return func(c *config[S]) { c.scope = scope }
}

// WithContainer swaps the reactive primitive used to hold snapshots.
func WithContainer[S any](factory func(initial S) Container[S]) Option[S] {
	return func(c *config[S]) {
		if factory != nil {
			c.container = factory
		}
	}
}

// WithClone sets a deep-copy function applied to the current snapshot before
// it is handed to a mutator. Snapshots holding slices or maps need one so a
// failing mutator cannot leak writes into the committed value.
func WithClone[S any](clone func(S) S) Option[S] {
	return func(c *config[S]) { c.clone = clone }
}

// WithLogger sets the logger used for commit diagnostics.
func WithLogger[S any](logger *slog.Logger) Option[S] {
	return func(c *config[S]) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Store is the public half of a state container.
type Store[S any] struct {
	identity  Identity
	container Container[S]
	revision  atomic.Uint64
	logger    *slog.Logger
}

// Writer is the exclusive mutation capability for one store.
type Writer[S any] struct {
	store *Store[S]
	clone func(S) S
	mu    sync.Mutex
}

// New constructs a store holding initial and returns its writer.
// It is the only way to obtain a Writer.
func New[S any](key string, initial S, opts ...Option[S]) (*Store[S], *Writer[S]) {
	cfg := config[S]{
		container: func(v S) Container[S] { return reactive.NewSignal(v) },
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	s := &Store[S]{
		identity:  Identity{Key: key, Scope: cfg.scope},
		container: cfg.container(initial),
		logger:    cfg.logger,
	}
	return s, &Writer[S]{store: s, clone: cfg.clone}
}

// State returns the read-only view.
func (s *Store[S]) State() ReadView[S] {
	return view[S]{c: s.container}
}

// Identity returns the registry identity.
func (s *Store[S]) Identity() Identity {
	return s.identity
}

// Key returns the stable store key.
func (s *Store[S]) Key() string {
	return s.identity.Key
}

// Scope returns the scope discriminator, empty when unscoped.
func (s *Store[S]) Scope() string {
	return s.identity.Scope
}

// Revision counts committed snapshots since construction.
func (s *Store[S]) Revision() uint64 {
	return s.revision.Load()
}

type view[S any] struct {
	c Container[S]
}

func (v view[S]) Get() S {
	return v.c.Read()
}

func (v view[S]) Subscribe(fn func(S)) func() {
	return v.c.Subscribe(fn)
}

// Select evaluates getter against the current snapshot.
func Select[S, T any](v ReadView[S], getter func(S) T) T {
	return getter(v.Get())
}

// Commit applies a pure transformation of the current snapshot. The
// container is replaced only when mutate succeeds; otherwise the error is
// returned wrapped as MUTATION_REJECTED and the snapshot is unchanged.
//
// Listeners run synchronously inside Commit and must not commit to the same
// store.
func (w *Writer[S]) Commit(name string, mutate func(S) (S, error)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	current := w.store.container.Read()
	if w.clone != nil {
		current = w.clone(current)
	}
	next, err := mutate(current)
	if err != nil {
		w.store.logger.Debug("mutation rejected",
			slog.String("store", w.store.identity.String()),
			slog.String("mutator", name),
			slog.Any("err", err),
		)
		return apperrors.WrapWithMetadata(apperrors.CodeMutationRejected, "mutator "+name+" rejected", map[string]string{
			"store":   w.store.identity.String(),
			"mutator": name,
		}, err)
	}
	w.store.container.Replace(next)
	w.store.revision.Add(1)
	return nil
}

// Update is Commit for transformations that cannot fail.
func (w *Writer[S]) Update(name string, mutate func(S) S) {
	_ = w.Commit(name, func(s S) (S, error) { return mutate(s), nil })
}

// Set replaces the snapshot unconditionally.
func (w *Writer[S]) Set(name string, next S) {
	w.Update(name, func(S) S { return next })
}

// Read returns the current snapshot; mutators use it to validate
// preconditions before committing.
func (w *Writer[S]) Read() S {
	return w.store.container.Read()
}
