package evc

import (
	"sync"
	"sync/atomic"
	"weak"
)

// highBit is the epoch counter's idle flag: 0 means the reader is busy
// inside a guard, 1 means idle. Packing it into the counter's top bit
// avoids a second atomic per reader.
const highBit uint64 = 1 << 63

// epochRegistry is the mutex-protected list of weak references to every
// live reader's epoch counter. Readers push a weak reference on
// construction and never lock again; a ReadHandle is the only thing that
// references its epoch counter strongly, so once the handle becomes
// unreachable the weak reference naturally starts reporting nil and the
// writer's next wait phase compacts it out. This is the Go analogue of
// the reference design's Weak<AtomicUsize> registry entries: detection
// of a dropped reader is lazy and costs the reader nothing.
type epochRegistry struct {
	mu     sync.Mutex
	epochs []weak.Pointer[atomic.Uint64]
}

func newEpochRegistry() *epochRegistry {
	return &epochRegistry{}
}

func (r *epochRegistry) register(ep *atomic.Uint64) {
	r.mu.Lock()
	r.epochs = append(r.epochs, weak.Make(ep))
	r.mu.Unlock()
}
