// Package evc implements a lock-free, eventually consistent concurrent
// value: one writer, many concurrent readers, with the property that
// reads never block writes and writes never block reads.
//
// A value of user type T lives in two buffers. Readers always see a
// complete, stable snapshot through the "public" buffer; the writer
// privately accumulates operations and applies them to the "private"
// buffer. Calling Refresh swaps the two roles and replays the pending
// operations so both buffers stay convergent. Between refreshes,
// readers observe a stable prior snapshot; new writes only become
// visible at the next Refresh.
//
// # Basic usage
//
//	wh, rh := evc.New[evcexample.VecCache[int], evcexample.VecOp[int]](evcexample.VecCache[int]{})
//	wh.Write(evcexample.Push(42))
//	wh.Refresh()
//	rh.View(func(v *evcexample.VecCache[int]) {
//	    fmt.Println(v.Values)
//	})
//
// # Concurrency
//
//   - ReadHandle.Read and Guard.Release are wait-free.
//   - A single ReadHandle must not be used from two goroutines at once;
//     clone it (or use a ReadHandleFactory) to hand out one handle per
//     goroutine.
//   - WriteHandle.Refresh blocks until every reader that observed the
//     pre-swap buffer has either released its guard or moved on. A
//     reader that holds a guard forever wedges Refresh forever; this is
//     a contract violation, not a bug in the primitive.
//
// # Error handling
//
// The primitive reports no errors in ordinary operation. A panic inside
// a user Cache.ApplyAll implementation poisons the WriteHandle: the
// panic propagates out of Refresh, and every subsequent call returns
// ErrWriterPoisoned instead of touching the buffers again.
package evc
