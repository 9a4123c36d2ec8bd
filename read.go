package evc

import "sync/atomic"

// ReadHandle is the reader-side entry point. It publishes a per-handle
// epoch counter on construction and vends short-lived Guards that pin
// the current public buffer.
//
// A ReadHandle must not be used concurrently by two goroutines — clone
// it (Clone, or via a ReadHandleFactory) to hand one out per goroutine.
// Read panics with ErrHandleNotSingleThreaded if a previous Guard from
// the same handle is still open when Read is called again, which also
// catches the common case of two goroutines racing on the same handle.
type ReadHandle[T any, Op any, PT Cache[T, Op]] struct {
	slot     *bufferSlot[T]
	registry *epochRegistry

	epoch      *atomic.Uint64 // published; weakly referenced by the registry
	localEpoch uint64         // reader-private, not atomic: single-thread affine
	busy       atomic.Bool    // guards against reentrant/concurrent Read
}

func newReadHandle[T any, Op any, PT Cache[T, Op]](slot *bufferSlot[T], registry *epochRegistry) *ReadHandle[T, Op, PT] {
	ep := new(atomic.Uint64)
	registry.register(ep)
	return &ReadHandle[T, Op, PT]{slot: slot, registry: registry, epoch: ep}
}

// Guard is a short-lived reader-side pin on the public buffer, returned
// by Read. Release it as soon as you're done; holding it indefinitely
// wedges any concurrent Refresh indefinitely.
type Guard[T any, Op any, PT Cache[T, Op]] struct {
	handle   *ReadHandle[T, Op, PT]
	epoch    uint64
	ptr      *T
	released bool
}

// Read pins the current public buffer and returns a Guard over it.
//
// Protocol (spec §4.1): bump the local epoch and publish it with a
// release store, then load the public pointer with an acquire load. Go's
// atomic package already provides this ordering per-operation, so no
// separate fence instruction is needed the way the reference
// implementation uses one explicitly.
func (h *ReadHandle[T, Op, PT]) Read() *Guard[T, Op, PT] {
	if !h.busy.CompareAndSwap(false, true) {
		panic(ErrHandleNotSingleThreaded)
	}

	h.localEpoch++
	e := h.localEpoch
	h.epoch.Store(e)

	p := h.slot.ptr.Load()
	return &Guard[T, Op, PT]{handle: h, epoch: e, ptr: p}
}

// View reads the current public buffer, invokes fn with it, and releases
// the guard when fn returns (even if fn panics). It is the preferred
// entry point for callers that only need the value for the duration of
// one closure.
func (h *ReadHandle[T, Op, PT]) View(fn func(*T)) {
	g := h.Read()
	defer g.Release()
	fn(g.Value())
}

// Value returns the pinned buffer. It panics with
// ErrReaderUseAfterRelease if the guard has already been released.
func (g *Guard[T, Op, PT]) Value() *T {
	if g.released {
		panic(ErrReaderUseAfterRelease)
	}
	return g.ptr
}

// Release declares the reader idle, unblocking any writer waiting on
// this handle's epoch. A Guard must be released exactly once.
func (g *Guard[T, Op, PT]) Release() {
	if g.released {
		panic(ErrReaderUseAfterRelease)
	}
	g.released = true
	g.handle.epoch.Store(g.epoch | highBit)
	g.handle.busy.Store(false)
}

// Clone constructs a new ReadHandle over the same public buffer, with
// its own fresh epoch counter. Cloning does not disturb any existing
// reader's observations.
func (h *ReadHandle[T, Op, PT]) Clone() *ReadHandle[T, Op, PT] {
	h.slot.owners.Add(1)
	return newReadHandle[T, Op, PT](h.slot, h.registry)
}

// Close releases this handle's share of the public buffer. Call it when
// the handle is no longer needed; it does not invalidate any Guard
// already obtained (release those separately).
func (h *ReadHandle[T, Op, PT]) Close() {
	h.slot.owners.Add(-1)
}

// TryIntoInner takes ownership of the current buffer's value if this is
// the last handle (reader or writer) referencing it; otherwise it
// returns the zero value and false. On success the handle is consumed
// and must not be used again.
func (h *ReadHandle[T, Op, PT]) TryIntoInner() (T, bool) {
	if h.slot.owners.CompareAndSwap(1, 0) {
		return *h.slot.ptr.Load(), true
	}
	var zero T
	return zero, false
}

// ReadHandleFactory vends fresh ReadHandles on demand. Unlike a
// ReadHandle it carries no epoch counter, so it is freely shareable
// across goroutines.
type ReadHandleFactory[T any, Op any, PT Cache[T, Op]] struct {
	slot     *bufferSlot[T]
	registry *epochRegistry
}

// Factory returns a sharable handle-maker for this ReadHandle's buffer.
func (h *ReadHandle[T, Op, PT]) Factory() *ReadHandleFactory[T, Op, PT] {
	return &ReadHandleFactory[T, Op, PT]{slot: h.slot, registry: h.registry}
}

// IntoFactory is Factory, named to match the reference API's
// into_factory/factory split (Go has no ownership-moving variant, so the
// two behave identically here).
func (h *ReadHandle[T, Op, PT]) IntoFactory() *ReadHandleFactory[T, Op, PT] {
	return h.Factory()
}

// Handle constructs a fresh ReadHandle from the factory.
func (f *ReadHandleFactory[T, Op, PT]) Handle() *ReadHandle[T, Op, PT] {
	f.slot.owners.Add(1)
	return newReadHandle[T, Op, PT](f.slot, f.registry)
}

// IntoHandle is Handle, named to match the reference API's
// into_handle/handle split.
func (f *ReadHandleFactory[T, Op, PT]) IntoHandle() *ReadHandle[T, Op, PT] {
	return f.Handle()
}
