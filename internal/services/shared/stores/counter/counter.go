// Package counter is the counter store: a single integer with derived
// getters and increment/decrement actions.
package counter

import (
	"context"
	"strconv"
	"time"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/store"
	"github.com/louisbranch/statehouse/internal/store/async"
	"github.com/louisbranch/statehouse/internal/store/hydration"
)

// Key identifies the counter store and its payload.
const Key = "counter"

// Bounds accepted by SetCount.
const (
	MinCount = -1_000_000
	MaxCount = 1_000_000
)

// State is the counter snapshot.
type State struct {
	Count int `json:"count"`
}

// Store is the counter store.
type Store struct {
	*store.Store[State]
	w *store.Writer[State]
}

// New returns a counter at zero.
func New() *Store {
	return WithState(State{})
}

// WithState returns a counter holding s.
func WithState(s State) *Store {
	st, w := store.New(Key, s)
	return &Store{Store: st, w: w}
}

// Count returns the current value.
func (s *Store) Count() int {
	return s.State().Get().Count
}

// Doubled returns twice the current value.
func (s *Store) Doubled() int {
	return store.Select(s.State(), func(st State) int { return st.Count * 2 })
}

func (s *Store) IsPositive() bool { return s.Count() > 0 }
func (s *Store) IsNegative() bool { return s.Count() < 0 }

func (s *Store) increment() {
	s.w.Update("increment", func(st State) State {
		st.Count++
		return st
	})
}

func (s *Store) decrement() {
	s.w.Update("decrement", func(st State) State {
		st.Count--
		return st
	})
}

func (s *Store) reset() {
	s.w.Set("reset", State{})
}

func (s *Store) setCount(n int) error {
	return s.w.Commit("set_count", func(st State) (State, error) {
		if n < MinCount || n > MaxCount {
			return st, apperrors.WithMetadata(apperrors.CodeActionValidation, "count out of range", map[string]string{
				"count": strconv.Itoa(n),
				"min":   strconv.Itoa(MinCount),
				"max":   strconv.Itoa(MaxCount),
			})
		}
		st.Count = n
		return st, nil
	})
}

// Increment adds one.
func (s *Store) Increment() {
	s.increment()
}

// Decrement subtracts one.
func (s *Store) Decrement() {
	s.decrement()
}

// Reset returns the counter to zero.
func (s *Store) Reset() {
	s.reset()
}

// SetCount replaces the value. Values outside [MinCount, MaxCount] are
// rejected and leave the counter unchanged.
func (s *Store) SetCount(n int) error {
	return s.setCount(n)
}

// ApplySnapshot replaces the whole snapshot with fresh server data.
func (s *Store) ApplySnapshot(st State) {
	s.w.Set("apply_snapshot", st)
}

// IncrementLater waits for delay, then increments. The increment reads the
// value current at resumption, so concurrent increments are not lost.
func IncrementLater(delay time.Duration) async.AsyncAction[*Store, int] {
	return async.Named[*Store, int]("counter.increment_later", async.AsyncFunc[*Store, int](
		func(ctx context.Context, task *async.Task, s *Store) (int, error) {
			if err := async.Sleep(ctx, task, delay); err != nil {
				return s.Count(), err
			}
			s.increment()
			return s.Count(), nil
		}))
}

// Codec is the payload codec for counter snapshots.
var Codec hydration.Codec[State] = hydration.JSONCodec[State]{}

// Hydratable describes how the client rebuilds the counter.
func Hydratable() hydration.Hydratable[*Store, State] {
	return hydration.Hydratable[*Store, State]{
		Key:       Key,
		Codec:     Codec,
		Default:   func() State { return State{} },
		Construct: WithState,
	}
}
