// Package evcexample provides a minimal evc.Cache implementation used by
// this module's own tests and by cmd/evcbench. It is not meant as a
// production data structure, just a realistic, small stand-in: a slice
// with a couple of append/clear operations.
package evcexample

// VecCache holds an ordered slice of values. Values is exported so tests
// can compare two VecCaches with go-cmp without a custom Equal method.
type VecCache[V any] struct {
	Values []V
}

// VecOpKind distinguishes the two operations VecCache understands.
type VecOpKind int

const (
	OpPush VecOpKind = iota
	OpClear
)

// VecOp is a single operation queued against a VecCache.
type VecOp[V any] struct {
	Kind VecOpKind
	Arg  V
}

// Push returns an operation that appends v.
func Push[V any](v V) VecOp[V] {
	return VecOp[V]{Kind: OpPush, Arg: v}
}

// Clear returns an operation that empties the cache.
func Clear[V any]() VecOp[V] {
	return VecOp[V]{Kind: OpClear}
}

// Clone returns an independent copy; callers must not share the backing
// array between a VecCache and its clone.
func (c *VecCache[V]) Clone() VecCache[V] {
	values := make([]V, len(c.Values))
	copy(values, c.Values)
	return VecCache[V]{Values: values}
}

// ApplyAll applies ops in order.
func (c *VecCache[V]) ApplyAll(ops []VecOp[V]) {
	for _, op := range ops {
		switch op.Kind {
		case OpPush:
			c.Values = append(c.Values, op.Arg)
		case OpClear:
			c.Values = c.Values[:0]
		}
	}
}
