// Package store defines the access-controlled state container contract.
//
// A store owns exactly one reactive container of immutable snapshots and
// splits its surface in two:
//
//   - *Store[S] is the public half. It exposes the read view (State), the
//     identity used for registration and Select for getters.
//   - *Writer[S] is the mutation capability. New returns it alongside the
//     store, and a domain package keeps it in an unexported field so only
//     that package's mutators can replace the snapshot.
//
// A typical domain store embeds the public half and hides the writer:
//
//	type Store struct {
//	    *store.Store[State]
//	    w *store.Writer[State]
//	}
//
//	func (s *Store) increment() error {
//	    return s.w.Commit("increment", func(st State) (State, error) {
//	        st.Count++
//	        return st, nil
//	    })
//	}
//
//	// Increment is the public action.
//	func (s *Store) Increment() { _ = s.increment() }
//
// Mutators read the snapshot current at call time, so interleaved actions
// never lose each other's updates, and a mutator that returns an error leaves
// the previous snapshot in place.
package store
