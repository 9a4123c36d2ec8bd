package evc

import "runtime"

// DefaultSpinLimit is how many times Refresh spins on a single slow
// reader before yielding the scheduler with runtime.Gosched. Override it
// per WriteHandle via SpinLimit.
const DefaultSpinLimit = 32

// WriteHandle is the single-writer entry point. There is exactly one per
// New call; it is not clonable, matching the single-writer invariant.
type WriteHandle[T any, Op any, PT Cache[T, Op]] struct {
	public  *bufferSlot[T]
	private *T

	registry   *epochRegistry
	lastEpochs []uint64 // scratch buffer reused across Refresh calls

	pending []Op

	// SpinLimit bounds how many busy-spins Refresh performs on a single
	// reader before calling runtime.Gosched. Zero means DefaultSpinLimit.
	SpinLimit int

	poisoned error
	closed   bool
}

func newWriteHandle[T any, Op any, PT Cache[T, Op]](public *bufferSlot[T], private *T, registry *epochRegistry) *WriteHandle[T, Op, PT] {
	return &WriteHandle[T, Op, PT]{public: public, private: private, registry: registry}
}

func (w *WriteHandle[T, Op, PT]) spinLimit() int {
	if w.SpinLimit > 0 {
		return w.SpinLimit
	}
	return DefaultSpinLimit
}

// Write queues an operation to be applied on the next Refresh. It never
// touches the public buffer and so never blocks on readers.
func (w *WriteHandle[T, Op, PT]) Write(op Op) error {
	if w.poisoned != nil {
		return w.poisoned
	}
	if w.closed {
		return ErrWriterPoisoned
	}
	w.pending = append(w.pending, op)
	return nil
}

// Refresh applies every operation queued since the last Refresh to the
// private buffer, waits for all readers to finish observing the current
// public buffer, swaps public and private, then replays the same batch
// onto the newly-private (formerly public) buffer so both copies stay in
// sync.
//
// If the user's ApplyAll panics, Refresh recovers just long enough to
// mark the handle poisoned before re-panicking with the original value;
// every later call against this handle returns ErrWriterPoisoned without
// touching the buffers again.
func (w *WriteHandle[T, Op, PT]) Refresh() (err error) {
	if w.poisoned != nil {
		return w.poisoned
	}
	if w.closed {
		return ErrWriterPoisoned
	}

	defer func() {
		if r := recover(); r != nil {
			w.poisoned = ErrWriterPoisoned
			panic(r)
		}
	}()

	ops := w.pending
	w.pending = nil

	PT(w.private).ApplyAll(ops)

	w.registry.mu.Lock()
	w.wait()
	old := w.public.ptr.Swap(w.private)
	w.registry.mu.Unlock()
	w.private = old

	PT(w.private).ApplyAll(ops)

	return nil
}

// wait blocks until every registered reader has either gone idle or
// moved on from the epoch it held when wait started. Callers must hold
// registry.mu.
func (w *WriteHandle[T, Op, PT]) wait() {
	epochs := w.registry.epochs
	if len(w.lastEpochs) < len(epochs) {
		w.lastEpochs = append(w.lastEpochs, make([]uint64, len(epochs)-len(w.lastEpochs))...)
	}
	for i := range epochs {
		if ep := epochs[i].Value(); ep != nil {
			w.lastEpochs[i] = ep.Load()
		}
	}

	i := 0
	spins := 0
	for i < len(epochs) {
		ep := epochs[i].Value()
		if ep == nil {
			// Dead reader: its entry's existence no longer matters. Compact
			// it out of both slices and restart the scan, since indices
			// after it just shifted down.
			epochs = append(epochs[:i], epochs[i+1:]...)
			w.lastEpochs = append(w.lastEpochs[:i], w.lastEpochs[i+1:]...)
			i = 0
			spins = 0
			continue
		}

		cur := ep.Load()
		if cur&highBit != 0 || cur != w.lastEpochs[i] || cur == 0 {
			// Idle, moved on since the snapshot, or never entered a guard
			// at all: none of these block the writer.
			i++
			spins = 0
			continue
		}

		spins++
		if spins > w.spinLimit() {
			runtime.Gosched()
		}
		// Stay on the same index until it resolves.
	}

	w.registry.epochs = epochs
}

// IntoInner consumes the handle and returns the writer's current private
// value, which always reflects every operation applied so far regardless
// of how many Refresh calls have happened. The writer's share of the
// public cell is released, same as Close.
func (w *WriteHandle[T, Op, PT]) IntoInner() (T, error) {
	if w.poisoned != nil {
		var zero T
		return zero, w.poisoned
	}
	w.release()
	return *w.private, nil
}

// Close marks the handle closed; Write and Refresh return
// ErrWriterPoisoned afterward. It releases the writer's share of the
// public cell, so a ReadHandle's TryIntoInner can succeed once every
// reader has also gone (the writer counts as a strong holder from New
// until Close/IntoInner, per the try_into_inner contract).
func (w *WriteHandle[T, Op, PT]) Close() error {
	if w.poisoned != nil {
		return w.poisoned
	}
	w.release()
	return nil
}

// release drops the writer's share of the public cell's owner count.
// Idempotent: only the first call after construction actually decrements.
func (w *WriteHandle[T, Op, PT]) release() {
	if w.closed {
		return
	}
	w.closed = true
	w.public.owners.Add(-1)
}
