package reactive

import (
	"sync"
	"testing"
)

func TestSignalReadReplace(t *testing.T) {
	s := NewSignal(1)
	if got := s.Read(); got != 1 {
		t.Fatalf("Read() = %d, want 1", got)
	}
	s.Replace(2)
	if got := s.Read(); got != 2 {
		t.Fatalf("Read() = %d, want 2", got)
	}
}

func TestSignalNotifiesInOrderWithCommittedValue(t *testing.T) {
	s := NewSignal("a")
	var seen []string
	s.Subscribe(func(v string) { seen = append(seen, "first:"+v+":"+s.Read()) })
	s.Subscribe(func(v string) { seen = append(seen, "second:"+v) })

	s.Replace("b")

	if len(seen) != 2 {
		t.Fatalf("notifications = %v, want 2", seen)
	}
	if seen[0] != "first:b:b" || seen[1] != "second:b" {
		t.Fatalf("notifications = %v", seen)
	}
}

func TestSignalUnsubscribeIsIdempotent(t *testing.T) {
	s := NewSignal(0)
	calls := 0
	unsub := s.Subscribe(func(int) { calls++ })
	other := s.Subscribe(func(int) {})

	unsub()
	unsub()
	s.Replace(1)

	if calls != 0 {
		t.Fatalf("calls = %d, want 0 after unsubscribe", calls)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	other()
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}

func TestSignalWithEqualitySkipsNoop(t *testing.T) {
	s := NewSignalWithEquality(5, func(a, b int) bool { return a == b })
	calls := 0
	s.Subscribe(func(int) { calls++ })

	s.Replace(5)
	s.Replace(6)

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestSignalNilListener(t *testing.T) {
	s := NewSignal(0)
	unsub := s.Subscribe(nil)
	unsub()
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}

func TestSignalConcurrentReadersSeeWholeValues(t *testing.T) {
	type pair struct{ a, b int }
	s := NewSignal(pair{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			s.Replace(pair{a: i, b: i})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			v := s.Read()
			if v.a != v.b {
				t.Errorf("torn read: %+v", v)
				return
			}
		}
	}()
	wg.Wait()
}
