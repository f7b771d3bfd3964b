// Package tokens is the token explorer store: a list of tokens with search,
// sort and selection, refreshed from a Source.
package tokens

import (
	"context"
	"slices"
	"strings"
	"time"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/store"
	"github.com/louisbranch/statehouse/internal/store/async"
	"github.com/louisbranch/statehouse/internal/store/hydration"
)

// Key identifies the token store and its payload.
const Key = "token_store"

// RefreshInterval is how often live refresh polls the source.
const RefreshInterval = 30 * time.Second

// State is the token explorer snapshot. Loading and Error are transient.
type State struct {
	Tokens          []Token    `json:"tokens"`
	SelectedTokenID *string    `json:"selected_token_id"`
	SearchQuery     string     `json:"search_query"`
	SortBy          SortField  `json:"sort_by"`
	SortDesc        bool       `json:"sort_desc"`
	LastFetched     *time.Time `json:"last_fetched"`
	Loading         bool       `json:"-"`
	Error           string     `json:"-"`
}

// DefaultState is the snapshot of a store built with no data.
func DefaultState() State {
	return State{SortBy: SortMarketCap}
}

// Store is the token explorer store.
type Store struct {
	*store.Store[State]
	w   *store.Writer[State]
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp LastFetched.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty store sorted by market cap.
func New(opts ...Option) *Store {
	return WithState(DefaultState(), opts...)
}

// WithTokens returns a store holding tokens fetched now.
func WithTokens(tokens []Token, opts ...Option) *Store {
	s := New(opts...)
	s.setTokens(tokens)
	return s
}

// WithState returns a store holding st.
func WithState(st State, opts ...Option) *Store {
	inner, w := store.New(Key, st, store.WithClone(cloneState))
	s := &Store{Store: inner, w: w, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func cloneState(st State) State {
	st.Tokens = slices.Clone(st.Tokens)
	if st.SelectedTokenID != nil {
		id := *st.SelectedTokenID
		st.SelectedTokenID = &id
	}
	if st.LastFetched != nil {
		at := *st.LastFetched
		st.LastFetched = &at
	}
	return st
}

// Tokens returns every token in source order.
func (s *Store) Tokens() []Token {
	return slices.Clone(s.State().Get().Tokens)
}

// Filtered returns the tokens matching the search query in sort order.
func (s *Store) Filtered() []Token {
	return store.Select(s.State(), filtered)
}

func filtered(st State) []Token {
	out := make([]Token, 0, len(st.Tokens))
	query := strings.ToLower(strings.TrimSpace(st.SearchQuery))
	for _, t := range st.Tokens {
		if query == "" || t.matches(query) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b Token) int {
		ka, kb := st.SortBy.key(a), st.SortBy.key(b)
		cmp := 0
		switch {
		case ka < kb:
			cmp = -1
		case ka > kb:
			cmp = 1
		}
		if st.SortDesc {
			return -cmp
		}
		return cmp
	})
	return out
}

// Selected returns the selected token.
func (s *Store) Selected() (Token, bool) {
	st := s.State().Get()
	if st.SelectedTokenID == nil {
		return Token{}, false
	}
	for _, t := range st.Tokens {
		if t.ID == *st.SelectedTokenID {
			return t, true
		}
	}
	return Token{}, false
}

// Count returns the number of tokens held.
func (s *Store) Count() int {
	return len(s.State().Get().Tokens)
}

// Sort returns the sort field and direction.
func (s *Store) Sort() (SortField, bool) {
	st := s.State().Get()
	return st.SortBy, st.SortDesc
}

func (s *Store) SearchQuery() string { return s.State().Get().SearchQuery }
func (s *Store) IsLoading() bool     { return s.State().Get().Loading }
func (s *Store) Err() string         { return s.State().Get().Error }

// LastFetched returns when the token list was last replaced.
func (s *Store) LastFetched() (time.Time, bool) {
	st := s.State().Get()
	if st.LastFetched == nil {
		return time.Time{}, false
	}
	return *st.LastFetched, true
}

func (s *Store) setTokens(tokens []Token) {
	at := s.now().UTC().Truncate(time.Second)
	s.w.Update("set_tokens", func(st State) State {
		st.Tokens = slices.Clone(tokens)
		st.LastFetched = &at
		st.Loading = false
		st.Error = ""
		return st
	})
}

func (s *Store) setLoading(loading bool) {
	s.w.Update("set_loading", func(st State) State {
		st.Loading = loading
		return st
	})
}

func (s *Store) setError(msg string) {
	s.w.Update("set_error", func(st State) State {
		st.Error = msg
		st.Loading = false
		return st
	})
}

func (s *Store) setSearchQuery(query string) {
	s.w.Update("set_search_query", func(st State) State {
		st.SearchQuery = query
		return st
	})
}

// toggleSort flips the direction when field is already active, otherwise
// switches to field descending.
func (s *Store) toggleSort(field SortField) {
	s.w.Update("toggle_sort", func(st State) State {
		if st.SortBy == field {
			st.SortDesc = !st.SortDesc
		} else {
			st.SortBy = field
			st.SortDesc = true
		}
		return st
	})
}

func (s *Store) setSort(field SortField, desc bool) {
	s.w.Update("set_sort", func(st State) State {
		st.SortBy = field
		st.SortDesc = desc
		return st
	})
}

func (s *Store) selectToken(id string) error {
	return s.w.Commit("select_token", func(st State) (State, error) {
		for _, t := range st.Tokens {
			if t.ID == id {
				st.SelectedTokenID = &id
				return st, nil
			}
		}
		return st, apperrors.WithMetadata(apperrors.CodeActionValidation, "unknown token", map[string]string{
			"token": id,
		})
	})
}

func (s *Store) clearSelection() {
	s.w.Update("clear_selection", func(st State) State {
		st.SelectedTokenID = nil
		return st
	})
}

// Search sets the search query.
func (s *Store) Search(query string) {
	s.setSearchQuery(strings.TrimSpace(query))
}

// ToggleSort sorts by field, flipping direction when it is already active.
func (s *Store) ToggleSort(field SortField) error {
	if !field.Valid() {
		_, err := ParseSortField(string(field))
		return err
	}
	s.toggleSort(field)
	return nil
}

// SetSort sets field and direction explicitly.
func (s *Store) SetSort(field SortField, desc bool) error {
	if !field.Valid() {
		_, err := ParseSortField(string(field))
		return err
	}
	s.setSort(field, desc)
	return nil
}

// Select marks the token with id as selected. Unknown ids are rejected.
func (s *Store) Select(id string) error {
	return s.selectToken(id)
}

// ClearSelection drops the selection.
func (s *Store) ClearSelection() {
	s.clearSelection()
}

// ReplaceTokens swaps the token list and stamps LastFetched.
func (s *Store) ReplaceTokens(tokens []Token) {
	s.setTokens(tokens)
}

// ApplySnapshot replaces the whole snapshot with fresh server data.
func (s *Store) ApplySnapshot(st State) {
	s.w.Set("apply_snapshot", cloneState(st))
}

// Source fetches the current token list.
type Source interface {
	FetchTokens(ctx context.Context) ([]Token, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Token, error)

// FetchTokens implements Source.
func (f SourceFunc) FetchTokens(ctx context.Context) ([]Token, error) {
	return f(ctx)
}

// Refresh fetches tokens from src and replaces the list. On failure the
// message is recorded in the store and the error returned unchanged.
func Refresh(src Source) async.AsyncAction[*Store, int] {
	return async.Named[*Store, int]("tokens.refresh", async.AsyncFunc[*Store, int](
		func(ctx context.Context, task *async.Task, s *Store) (int, error) {
			s.setLoading(true)
			fetched, err := async.Await(ctx, task, src.FetchTokens)
			if err != nil {
				s.setError(err.Error())
				return 0, err
			}
			s.setTokens(fetched)
			return len(fetched), nil
		}))
}

// Codec is the payload codec for token snapshots.
var Codec hydration.Codec[State] = hydration.JSONCodec[State]{}

// Hydratable describes how the client rebuilds the token store.
func Hydratable(opts ...Option) hydration.Hydratable[*Store, State] {
	return hydration.Hydratable[*Store, State]{
		Key:     Key,
		Codec:   Codec,
		Default: DefaultState,
		Construct: func(st State) *Store {
			return WithState(st, opts...)
		},
	}
}
