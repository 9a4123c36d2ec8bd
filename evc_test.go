package evc_test

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"evc"
	"evc/evcexample"
)

func newIntPair(t *testing.T) (*evc.WriteHandle[evcexample.VecCache[int], evcexample.VecOp[int], *evcexample.VecCache[int]], *evc.ReadHandle[evcexample.VecCache[int], evcexample.VecOp[int], *evcexample.VecCache[int]]) {
	t.Helper()
	wh, rh := evc.New[evcexample.VecCache[int], evcexample.VecOp[int]](evcexample.VecCache[int]{})
	return wh, rh
}

func readValues(rh *evc.ReadHandle[evcexample.VecCache[int], evcexample.VecOp[int], *evcexample.VecCache[int]]) []int {
	var got []int
	rh.View(func(v *evcexample.VecCache[int]) {
		got = append(got, v.Values...)
	})
	return got
}

// scenario 1: sequential writes interleaved with refreshes become visible
// only at refresh boundaries.
func TestScenarioSequentialRefresh(t *testing.T) {
	wh, rh := newIntPair(t)

	require.NoError(t, wh.Write(evcexample.Push(57)))
	require.NoError(t, wh.Write(evcexample.Push(94)))
	require.Empty(t, readValues(rh))

	require.NoError(t, wh.Refresh())
	require.Equal(t, []int{57, 94}, readValues(rh))

	require.NoError(t, wh.Write(evcexample.Push(42)))
	require.Equal(t, []int{57, 94}, readValues(rh), "unrefreshed write must not be visible yet")

	require.NoError(t, wh.Refresh())
	require.Equal(t, []int{57, 94, 42}, readValues(rh))
}

// scenario 2: closing the writer doesn't disturb what readers already saw.
func TestScenarioWriterCloseLeavesReaderIntact(t *testing.T) {
	wh, rh := newIntPair(t)

	require.NoError(t, wh.Write(evcexample.Push(1337)))
	require.NoError(t, wh.Refresh())
	require.NoError(t, wh.Close())

	require.Equal(t, []int{1337}, readValues(rh))
}

// scenario 3: a dropped reader must not deadlock a later refresh.
func TestScenarioDroppedReaderDoesNotDeadlock(t *testing.T) {
	wh, rh := newIntPair(t)

	require.NoError(t, wh.Write(evcexample.Push(0)))
	require.NoError(t, wh.Refresh())
	require.Equal(t, []int{0}, readValues(rh))

	rh.Close()
	rh = nil

	require.NoError(t, wh.Write(evcexample.Push(1)))
	require.NoError(t, wh.Refresh(), "refresh must not hang once the only reader is gone")
}

// scenario 5: refresh blocks until an open guard is released, then the
// next read observes the refreshed state.
func TestScenarioRefreshWaitsForOpenGuard(t *testing.T) {
	wh, rh := evc.New[evcexample.VecCache[int], evcexample.VecOp[int]](evcexample.VecCache[int]{Values: []int{1, 2, 3}})

	g := rh.Read()
	require.Equal(t, []int{1, 2, 3}, g.Value().Values)

	require.NoError(t, wh.Write(evcexample.Clear[int]()))

	done := make(chan struct{})
	go func() {
		_ = wh.Refresh()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("refresh returned before the guard was released")
	default:
	}

	g.Release()
	<-done

	require.Empty(t, readValues(rh))
}

// scenario 6: a second reader clone entering after the swap sees the new
// state while the first, still inside its guard, keeps the old one.
func TestScenarioCloneSeesIndependentSnapshots(t *testing.T) {
	wh, rh := evc.New[evcexample.VecCache[int], evcexample.VecOp[int]](evcexample.VecCache[int]{})

	a := rh
	b := rh.Clone()

	ga := a.Read()
	require.Empty(t, ga.Value().Values)

	require.NoError(t, wh.Write(evcexample.Push(9)))

	done := make(chan struct{})
	go func() {
		_ = wh.Refresh()
		close(done)
	}()

	require.Empty(t, ga.Value().Values, "A must still see the pre-refresh state")

	ga.Release()
	<-done

	gb := b.Read()
	defer gb.Release()
	require.Equal(t, []int{9}, gb.Value().Values, "B, entering after the swap, must see the refreshed state")
}

// P4: New with no writes or refreshes gives every reader a clone of the
// initial value, not a shared reference to it.
func TestNewCloneIndependence(t *testing.T) {
	initial := evcexample.VecCache[int]{Values: []int{7}}
	wh, rh := evc.New[evcexample.VecCache[int], evcexample.VecOp[int]](initial)

	initial.Values[0] = 999 // mutating the caller's copy must not leak in

	require.Equal(t, []int{7}, readValues(rh))
	require.NoError(t, wh.Write(evcexample.Push(8)))
}

// P5: cloning a reader does not disturb an existing reader's observed
// snapshot.
func TestCloneDoesNotDisturbExistingReader(t *testing.T) {
	wh, rh := newIntPair(t)
	require.NoError(t, wh.Write(evcexample.Push(1)))
	require.NoError(t, wh.Refresh())

	g := rh.Read()
	defer g.Release()
	before := append([]int(nil), g.Value().Values...)

	clone := rh.Clone()
	defer clone.Close()

	require.Equal(t, before, g.Value().Values)
}

// Boundary: refresh over an empty log is a no-op for contents.
func TestEmptyRefreshIsNoOpForContents(t *testing.T) {
	wh, rh := newIntPair(t)
	require.NoError(t, wh.Write(evcexample.Push(1)))
	require.NoError(t, wh.Refresh())
	before := readValues(rh)

	require.NoError(t, wh.Refresh())
	after := readValues(rh)

	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("empty refresh changed contents (-before +after):\n%s", diff)
	}
}

// TryIntoInner only succeeds once no other reader remains.
func TestTryIntoInner(t *testing.T) {
	wh, rh := newIntPair(t)
	require.NoError(t, wh.Write(evcexample.Push(5)))
	require.NoError(t, wh.Refresh())

	clone := rh.Clone()
	_, ok := rh.TryIntoInner()
	require.False(t, ok, "a second live handle must block TryIntoInner")

	clone.Close()
	_, ok = rh.TryIntoInner()
	require.False(t, ok, "the writer is still alive and must also block TryIntoInner")

	require.NoError(t, wh.Close())
	v, ok := rh.TryIntoInner()
	require.True(t, ok)
	require.Equal(t, []int{5}, v.Values)
}

// Reusing a released guard panics with ErrReaderUseAfterRelease.
func TestGuardUseAfterReleasePanics(t *testing.T) {
	_, rh := newIntPair(t)
	g := rh.Read()
	g.Release()

	require.PanicsWithValue(t, evc.ErrReaderUseAfterRelease, func() {
		g.Value()
	})
	require.PanicsWithValue(t, evc.ErrReaderUseAfterRelease, func() {
		g.Release()
	})
}

// Calling Read on a ReadHandle whose previous Guard is still open panics
// with ErrHandleNotSingleThreaded.
func TestHandleNotSingleThreadedPanics(t *testing.T) {
	_, rh := newIntPair(t)
	_ = rh.Read() // leave it open

	require.PanicsWithValue(t, evc.ErrHandleNotSingleThreaded, func() {
		rh.Read()
	})
}

// P6: ApplyAll with batches of size 0, 1 and >1 produces the same end
// state as applying the same operations one refresh at a time.
func TestApplyAllBatchSizesAgree(t *testing.T) {
	whBatched, rhBatched := newIntPair(t)
	require.NoError(t, whBatched.Refresh()) // size-0 batch: no-op

	require.NoError(t, whBatched.Write(evcexample.Push(1)))
	require.NoError(t, whBatched.Refresh()) // size-1 batch

	require.NoError(t, whBatched.Write(evcexample.Push(2)))
	require.NoError(t, whBatched.Write(evcexample.Push(3)))
	require.NoError(t, whBatched.Refresh()) // size->1 batch

	whSequential, rhSequential := newIntPair(t)
	for _, v := range []int{1, 2, 3} {
		require.NoError(t, whSequential.Write(evcexample.Push(v)))
		require.NoError(t, whSequential.Refresh())
	}

	require.Equal(t, readValues(rhSequential), readValues(rhBatched))
}

// poisonOnce is a Cache whose ApplyAll panics the first time it sees a
// "boom" op, and is otherwise a trivial counter. It exists only to
// exercise writer poisoning (P7) without teaching evcexample.VecCache
// about failure injection.
type poisonOnce struct {
	n int
}

type poisonOp struct {
	boom bool
}

func (p *poisonOnce) Clone() poisonOnce { return poisonOnce{n: p.n} }

func (p *poisonOnce) ApplyAll(ops []poisonOp) {
	for _, op := range ops {
		if op.boom {
			panic("boom")
		}
		p.n++
	}
}

// P7: ErrWriterPoisoned is returned by Write, Refresh and Close only
// after a panic during ApplyAll, never before.
func TestWriterPoisoningAfterPanic(t *testing.T) {
	wh, _ := evc.New[poisonOnce, poisonOp](poisonOnce{})

	require.NoError(t, wh.Write(poisonOp{}))
	require.NoError(t, wh.Refresh())

	require.NoError(t, wh.Write(poisonOp{boom: true}))
	require.Panics(t, func() {
		_ = wh.Refresh()
	})

	require.ErrorIs(t, wh.Write(poisonOp{}), evc.ErrWriterPoisoned)
	require.ErrorIs(t, wh.Refresh(), evc.ErrWriterPoisoned)
	require.ErrorIs(t, wh.Close(), evc.ErrWriterPoisoned)
}

// scenario 4: many reader clones polling concurrently with a writer
// driving a sequence of indexed writes must only ever observe each index
// holding its own value, and after the last refresh a reader sees all n
// values.
func TestScenarioManyReadersConvergeWithWriter(t *testing.T) {
	const n = 500
	const readers = 10

	wh, rh := newIntPair(t)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < readers; i++ {
		clone := rh.Clone()
		wg.Add(1)
		go func(h *evc.ReadHandle[evcexample.VecCache[int], evcexample.VecOp[int], *evcexample.VecCache[int]]) {
			defer wg.Done()
			defer h.Close()
			for {
				select {
				case <-stop:
					return
				default:
				}
				h.View(func(v *evcexample.VecCache[int]) {
					for idx, val := range v.Values {
						if val != idx {
							t.Errorf("index %d holds value %d, want %d", idx, val, idx)
						}
					}
				})
			}
		}(clone)
	}

	for i := 0; i < n; i++ {
		require.NoError(t, wh.Write(evcexample.Push(i)))
		require.NoError(t, wh.Refresh())
	}

	close(stop)
	wg.Wait()

	require.Equal(t, n, len(readValues(rh)))
}
