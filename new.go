package evc

// New constructs a fresh single-writer/multi-reader pair over a clone of
// initial. The WriteHandle is exclusive to the caller; the ReadHandle can
// be cloned (ReadHandle.Clone, or via a ReadHandleFactory) to hand one
// out per reading goroutine.
//
// T's pointer type must satisfy Cache[T, Op]; PT carries that constraint
// so callers write New[MyState, MyOp](initial) and the compiler infers
// PT as *MyState, mirroring the self-referencing pointer-receiver
// pattern used for generated protobuf message types.
func New[T any, Op any, PT Cache[T, Op]](initial T) (*WriteHandle[T, Op, PT], *ReadHandle[T, Op, PT]) {
	publicVal := PT(&initial).Clone()
	privateVal := PT(&initial).Clone()

	registry := newEpochRegistry()
	public := newBufferSlot(&publicVal, 2) // writer + first reader

	wh := newWriteHandle[T, Op, PT](public, &privateVal, registry)
	rh := newReadHandle[T, Op, PT](public, registry)

	return wh, rh
}
