package query

import "viaduct/arena"

// Chain is the sql answer shape: an append-only sequence of fragments owned
// by the execution arena. Fragments are appended in arrival order and read
// back with a forward iterator; there is no random access and no removal.
type Chain struct {
	pool *arena.Pool
	refs []arena.Ref
}

func NewChain(pool *arena.Pool) *Chain {
	return &Chain{pool: pool}
}

// Append copies p into arena storage and links it as the next fragment.
// The copy is tagged with the pool's current generation, so a reclaim
// between Append and read turns the fragment into a stale view.
func (c *Chain) Append(p []byte) {
	r := c.pool.Allocate(len(p))
	copy(c.pool.Bytes(r), p)
	c.refs = append(c.refs, r)
}

func (c *Chain) Len() int {
	return len(c.refs)
}

// Size is the total payload length across fragments.
func (c *Chain) Size() int {
	var n int
	for _, r := range c.refs {
		n += r.Len()
	}
	return n
}

// Iter starts a forward pass over the fragments.
func (c *Chain) Iter() Iter {
	return Iter{c: c}
}

type Iter struct {
	c *Chain
	i int
}

// Next returns the next fragment view, or ok=false after the last one.
// A nil fragment with ok=true means the backing storage was reclaimed.
func (it *Iter) Next() ([]byte, bool) {
	if it.i >= len(it.c.refs) {
		return nil, false
	}
	r := it.c.refs[it.i]
	it.i++
	return it.c.pool.Bytes(r), true
}

// Bytes concatenates the fragments into one heap-owned slice, dropping any
// fragment whose storage was reclaimed. Useful for small answers and tests;
// large answers should iterate instead.
func (c *Chain) Bytes() []byte {
	out := make([]byte, 0, c.Size())
	it := c.Iter()
	for f, ok := it.Next(); ok; f, ok = it.Next() {
		out = append(out, f...)
	}
	return out
}
