package evc

import "sync/atomic"

// bufferSlot is one of the two shared pointer cells (spec: "public" or
// "private"). It holds the address of the buffer currently playing that
// role, swapped atomically by the writer at each Refresh, plus an owner
// count used to implement TryIntoInner/IntoInner: a slot is safe to
// reclaim its value from once it has exactly one remaining owner.
//
// owners is only ever touched by handle construction, Close/IntoInner and
// TryIntoInner, and never gated behind the registry mutex; it only needs to be correct
// with respect to itself; it is not used to order buffer visibility
// (that is entirely the job of ptr plus the epoch protocol in write.go).
type bufferSlot[T any] struct {
	ptr    atomic.Pointer[T]
	owners atomic.Int32
}

func newBufferSlot[T any](v *T, owners int32) *bufferSlot[T] {
	s := &bufferSlot[T]{}
	s.ptr.Store(v)
	s.owners.Store(owners)
	return s
}
