package counter

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/store/async"
)

func TestNewStartsAtZero(t *testing.T) {
	s := New()
	if s.Count() != 0 || s.Doubled() != 0 || s.IsPositive() || s.IsNegative() {
		t.Fatalf("unexpected default counter: %+v", s.State().Get())
	}
	if s.Identity().Key != Key {
		t.Fatalf("Key = %q, want %q", s.Identity().Key, Key)
	}
}

func TestActions(t *testing.T) {
	s := New()
	s.Increment()
	s.Increment()
	s.Decrement()
	if s.Count() != 1 || s.Doubled() != 2 || !s.IsPositive() {
		t.Fatalf("count = %d, want 1", s.Count())
	}
	s.Reset()
	s.Decrement()
	if s.Count() != -1 || !s.IsNegative() {
		t.Fatalf("count = %d, want -1", s.Count())
	}
	if s.Revision() != 5 {
		t.Fatalf("Revision() = %d, want 5", s.Revision())
	}
}

func TestSetCountRejectsOutOfRange(t *testing.T) {
	s := WithState(State{Count: 3})
	if err := s.SetCount(MaxCount + 1); !apperrors.HasCode(err, apperrors.CodeActionValidation) {
		t.Fatalf("SetCount() error = %v, want validation", err)
	}
	if s.Count() != 3 || s.Revision() != 0 {
		t.Fatalf("rejected SetCount changed state: count=%d rev=%d", s.Count(), s.Revision())
	}
	if err := s.SetCount(MinCount); err != nil {
		t.Fatalf("SetCount(min) error = %v", err)
	}
	if s.Count() != MinCount {
		t.Fatalf("count = %d, want %d", s.Count(), MinCount)
	}
}

func TestIncrementLaterInterleaves(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sched := async.NewScheduler()
	s := WithState(State{Count: 10})
	later := async.Run(ctx, sched, s, IncrementLater(20*time.Millisecond))
	if err := sched.Do(ctx, s.Increment); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	got, err := later.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got != 12 || s.Count() != 12 {
		t.Fatalf("count = %d (action saw %d), want 12", s.Count(), got)
	}
}

func TestHydratableRoundTrip(t *testing.T) {
	h := Hydratable()
	data, err := h.Codec.Encode(State{Count: 5})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if data != `{"count":5}` {
		t.Fatalf("Encode() = %s", data)
	}
	st, err := h.Codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := h.Construct(st); got.Count() != 5 || got.Revision() != 0 {
		t.Fatalf("Construct() count=%d rev=%d", got.Count(), got.Revision())
	}
	if h.Default().Count != 0 {
		t.Fatal("default snapshot must be zero")
	}
}
