package store

import (
	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
)

// Builder assembles a store step by step. It is the terse authoring path;
// everything it produces goes through New.
type Builder[S any] struct {
	key            string
	initial        *S
	requireInitial bool
	opts           []Option[S]
}

// NewBuilder starts a builder for key.
func NewBuilder[S any](key string) *Builder[S] {
	return &Builder[S]{key: key}
}

// Scope binds the built store to scope.
func (b *Builder[S]) Scope(scope string) *Builder[S] {
	b.opts = append(b.opts, WithScope[S](scope))
	return b
}

// Initial sets the starting snapshot.
func (b *Builder[S]) Initial(state S) *Builder[S] {
	b.initial = &state
	return b
}

// RequireInitial makes Build fail when no initial snapshot was supplied
// instead of falling back to the zero value.
func (b *Builder[S]) RequireInitial() *Builder[S] {
	b.requireInitial = true
	return b
}

// Options appends construction options.
func (b *Builder[S]) Options(opts ...Option[S]) *Builder[S] {
	b.opts = append(b.opts, opts...)
	return b
}

// Build validates the configuration and constructs the store.
func (b *Builder[S]) Build() (*Store[S], *Writer[S], error) {
	if err := NewIdentity(b.key).Validate(); err != nil {
		return nil, nil, err
	}
	var initial S
	if b.initial != nil {
		initial = *b.initial
	} else if b.requireInitial {
		return nil, nil, apperrors.WithMetadata(apperrors.CodeMissingInitial, "initial state not provided", map[string]string{
			"identity": b.key,
		})
	}
	s, w := New(b.key, initial, b.opts...)
	return s, w, nil
}
