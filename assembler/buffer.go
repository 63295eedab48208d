package assembler

import "viaduct/arena"

// Buffer accumulates an answer on arena storage. Growth allocates a fresh
// block at 2*(length+incoming)+1 and abandons the old one to the pool's
// bulk reclaim, so a fragment stream settles after a few copies.
type Buffer struct {
	pool *arena.Pool
	ref  arena.Ref
	n    int
}

func NewBuffer(pool *arena.Pool) Buffer {
	return Buffer{pool: pool}
}

func (b *Buffer) Append(p []byte) {
	need := b.n + len(p)
	if need >= b.ref.Len() {
		grown := b.pool.Allocate(need*2 + 1)
		copy(b.pool.Bytes(grown), b.pool.Bytes(b.ref)[:b.n])
		b.ref = grown
	}
	copy(b.pool.Bytes(b.ref)[b.n:], p)
	b.n += len(p)
}

func (b *Buffer) Len() int {
	return b.n
}

// Bytes views the accumulated answer. Valid until the pool reclaims.
func (b *Buffer) Bytes() []byte {
	if b.n == 0 {
		return nil
	}
	return b.pool.Bytes(b.ref)[:b.n:b.n]
}
