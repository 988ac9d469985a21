// Package dirty provides containers that remember a clean snapshot of their
// content and report whether the current content differs from it.
//
// The dirty flag is recomputed on every mutating operation and never on reads.
package dirty

// Container tracks a payload of type P against the snapshot taken by the last Clean.
// Map and List are Containers over a map-like and a sequence-like payload.
type Container[P any] struct {
	current  P
	snapshot P
	dirty    bool

	clone func(P) P
	equal func(a, b P) bool
}

func newContainer[P any](initial P, clone func(P) P, equal func(a, b P) bool) Container[P] {
	return Container[P]{
		current:  initial,
		snapshot: clone(initial),
		clone:    clone,
		equal:    equal,
	}
}

// Dirty reports whether the content changed since the last Clean.
func (c *Container[P]) Dirty() bool {
	return c.dirty
}

// Clean snapshots the current content and clears the dirty flag.
func (c *Container[P]) Clean() {
	c.snapshot = c.clone(c.current)
	c.dirty = false
}

func (c *Container[P]) mutate(fn func(P) P) {
	c.current = fn(c.current)
	c.dirty = !c.equal(c.current, c.snapshot)
}
