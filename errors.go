package evc

import "errors"

// Error classification for the primitive's two documented contract
// violations (see package doc) plus writer poisoning.
var (
	// ErrReaderUseAfterRelease is panicked when a Guard is dereferenced
	// after Release has already been called on it.
	ErrReaderUseAfterRelease = errors.New("evc: guard used after release")

	// ErrHandleNotSingleThreaded is panicked when a ReadHandle's Read is
	// called while a previous guard from the same handle is still open,
	// or concurrently from two goroutines. A ReadHandle is single-thread
	// affine: clone it per goroutine instead.
	ErrHandleNotSingleThreaded = errors.New("evc: read handle used from multiple goroutines")

	// ErrWriterPoisoned is returned by Write, Refresh, and Close once a
	// panic during a user Cache.ApplyAll call has poisoned the
	// WriteHandle. The original panic is allowed to propagate out of the
	// Refresh call that caused it; only later calls see this error.
	ErrWriterPoisoned = errors.New("evc: writer poisoned by a panic during apply")
)
