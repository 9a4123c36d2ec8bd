package benchstats

import "hash/maphash"

var seed = maphash.MakeSeed()

func lane(key string) uint32 {
	return uint32(maphash.String(seed, key))
}

// Store is a concurrent string-keyed counter table. Incr is lock-free with
// respect to other keys; Snapshot waits out any in-flight Incr before
// copying the table, so it never observes a half-applied increment.
//
// Store is built for cmd/evcbench's sample bookkeeping: many reader
// goroutines incrementing their own counter concurrently with one
// goroutine periodically snapshotting totals.
type Store struct {
	rb     roundabout
	counts map[string]int64
}

// NewStore returns a ready-to-use Store.
func NewStore() *Store {
	return &Store{counts: make(map[string]int64)}
}

// Incr adds delta to key's counter.
func (s *Store) Incr(key string, delta int64) {
	s.rb.exWriteLane(lane(key), func() {
		s.counts[key] += delta
	})
}

// Snapshot returns a copy of the current counters.
func (s *Store) Snapshot() map[string]int64 {
	var out map[string]int64
	s.rb.readAll(func() {
		out = make(map[string]int64, len(s.counts))
		for k, v := range s.counts {
			out[k] = v
		}
	})
	return out
}
