package evc

// Cache is the capability a user value type must provide — this
// package's name for the OperationCache capability: a type whose pointer
// can clone the value and apply a batch of operations to it in place.
//
// Applying the same sequence of operations to two equal starting states
// must produce equal ending states (determinism). Operations must be
// side-effect-free with respect to anything observable by readers other
// than through T itself.
//
// ApplyAll takes the whole pending batch rather than one operation at a
// time; Refresh calls it once per buffer per refresh with whatever is
// queued, mirroring how the reference implementation batches operations
// rather than looping a single-op apply.
type Cache[T any, Op any] interface {
	*T

	// Clone returns an independent copy of the value.
	Clone() T

	// ApplyAll applies ops to the receiver in place, in order.
	ApplyAll(ops []Op)
}
