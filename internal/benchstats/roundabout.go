// Package benchstats provides a lock-free per-key counter table used by
// cmd/evcbench to collect per-reader sample counts without a plain mutex.
//
// The coordination primitive underneath is a roundabout: an in-memory
// write-ahead log of in-flight operations. Threads publish the operation
// they're about to perform, scan the log for conflicting predecessors and
// spin until those clear, then remove their own entry once done.
//
//   - Incr publishes an exclusive-write entry scoped to one key's lane, so
//     two goroutines bumping different keys never wait on each other.
//   - Snapshot publishes a read-all entry, which waits out any in-flight
//     Incr (on any lane) before it copies the table, so a snapshot never
//     observes a half-applied increment.
//
// This ring-buffer-plus-bitfield design is separate from the weak-reference
// epoch registry the evc package uses; here it serves as a small
// reader/writer lock instead of a generic container lock.
package benchstats

import (
	"math/bits"
	"sync/atomic"
)

const width = 32

// roundabout cell kind.
const (
	zeroCell    uint16 = iota // uninitialized memory, all 0
	pendingCell               // epoch set, kind pending

	readAll     // blocks on any exclusive write, ignores other reads
	exWriteLane // blocks on every predecessor sharing its lane
)

type header struct {
	epoch  uint16
	flags  uint16
	bitmap uint32
}

func (h header) pack() uint64 {
	return (uint64(h.epoch) << 48) | (uint64(h.flags) << 32) | uint64(h.bitmap)
}

func unpackHeader(h uint64) header {
	return header{
		epoch:  uint16((h >> 48) & 65535),
		flags:  uint16((h >> 32) & 65535),
		bitmap: uint32(h & 0xFFFFFFFF),
	}
}

type cell struct {
	epoch uint16
	kind  uint16
	lane  uint32
}

func (c cell) pack() uint64 {
	return (uint64(c.epoch) << 48) | (uint64(c.kind) << 32) | uint64(c.lane)
}

func unpackCell(h uint64) cell {
	return cell{
		epoch: uint16((h >> 48) & 65535),
		kind:  uint16((h >> 32) & 65535),
		lane:  uint32(h & 0xFFFFFFFF),
	}
}

// a claimed slot in the log, returned by push and consumed by wait/pop.
type rbCell struct {
	n      int
	epoch  uint16
	kind   uint16
	lane   uint32
	bitmap uint32
}

// roundabout is a ring buffer of log entries plus a header tracking the
// next free slot and a bitmap free-list.
type roundabout struct {
	hdr atomic.Uint64
	log [width]atomic.Uint64
}

// push claims the next free slot in the log for (lane, kind). It returns
// false if another goroutine won the race to claim that slot; the caller
// retries.
func (rb *roundabout) push(lane uint32, kind uint16) (rbCell, bool) {
	raw := rb.hdr.Load()
	h := unpackHeader(raw)

	n := int(h.epoch) % width
	var b uint32 = 1 << n

	if h.bitmap&b != 0 {
		return rbCell{}, false
	}

	newHeader := header{h.epoch + 1, h.flags, h.bitmap | b}.pack()
	item := cell{h.epoch, kind, lane}.pack()

	if !rb.hdr.CompareAndSwap(raw, newHeader) {
		return rbCell{}, false
	}

	rb.log[n].Store(item)
	return rbCell{n: n, epoch: h.epoch, kind: kind, lane: lane, bitmap: h.bitmap}, true
}

// wait spins until every predecessor conflicting with r has cleared.
func (rb *roundabout) wait(r rbCell) {
	if r.bitmap == 0 {
		return // nothing was in flight when r was allocated
	}

	epoch := r.epoch - uint16(width)
	bitmap := bits.RotateLeft32(r.bitmap, -r.n)

	for i := 0; i < width-1; i++ {
		epoch++
		bitmap >>= 1
		if bitmap&1 == 0 {
			continue // that slot was free at allocation time
		}

		n := int(epoch) % width
		for {
			item := unpackCell(rb.log[n].Load())
			switch {
			case item.kind == zeroCell:
				continue // uninitialized, spin
			case item.epoch != epoch:
				// predecessor has already cleared this slot
			case item.kind == pendingCell:
				continue // claimed but not yet written, spin
			case r.kind == exWriteLane:
				if item.kind == readAll {
					continue
				}
				if item.lane == r.lane {
					continue
				}
			case r.kind == readAll:
				if item.kind == exWriteLane {
					continue
				}
			}
			break
		}
	}
}

// pop releases r's slot for reuse by a future epoch.
func (rb *roundabout) pop(r rbCell) {
	rb.log[r.n].Store(cell{r.epoch + width, pendingCell, 0}.pack())
	rb.hdr.And(^(uint64(1) << r.n))
}

// exWriteLane runs fn once every other in-flight operation sharing lane has
// cleared.
func (rb *roundabout) exWriteLane(lane uint32, fn func()) {
	for {
		c, ok := rb.push(lane, exWriteLane)
		if !ok {
			continue
		}
		rb.wait(c)
		fn()
		rb.pop(c)
		return
	}
}

// readAll runs fn once every in-flight exclusive write (any lane) has
// cleared.
func (rb *roundabout) readAll(fn func()) {
	for {
		c, ok := rb.push(0, readAll)
		if !ok {
			continue
		}
		rb.wait(c)
		fn()
		rb.pop(c)
		return
	}
}
