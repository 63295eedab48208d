package arena

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/atomic"
)

/*
	Pool is the transient memory arena backing one execution's query answers.
	Allocations are handed out by best-fit over a size-ordered free index and
	are never freed one by one -- the whole pool is reclaimed in bulk between
	executions. Reclamation bumps a monotonic generation counter; every Ref
	carries the generation it was allocated under and resolves to nil once the
	pool has moved on. That staleness check is the only defense answer
	assemblers have against writing into memory that has been recycled for a
	different request, so all Ref resolution must go through Bytes.

	Two static pages are allocated up front and live for the whole life of the
	pool; further pages are acquired on demand, subject to a page-count ceiling
	and a total-bytes ceiling. Breaching either ceiling panics with
	ErrOutOfMemory (the same convention as bytes.ErrTooLarge): exhaustion is
	fatal to the in-flight request and is recovered at the bridge boundary,
	never handled inline.

	AllocatePeek returns a best-fit block without committing it. The peeked Ref
	must be consumed before the next committing allocation; a later Allocate is
	allowed to claim and split the same block.

	Pool is not safe for concurrent use. One goroutine owns it, per the
	cooperative execution model. Stats is the exception: the owner publishes a
	mirror of the pool numbers after every mutation, so any goroutine may read
	them.
*/

const (
	// PageSize is the unit of page acquisition; requests larger than a page
	// get a dedicated page of exactly their size.
	PageSize = 1 << 22
	// MaxMem bounds the total bytes reserved across all pages.
	MaxMem = 1 << 27
	// MaxPages bounds the number of pages, static ones included.
	MaxPages = 1000

	staticPages = 2
	sprintfMax  = 5000
)

var ErrOutOfMemory = errors.New("arena: out of memory")

// Ref is an opaque handle to an arena allocation. The zero Ref is permanently
// stale and resolves to nil.
type Ref struct {
	page   int32
	off    int32
	length int32
	gen    int64
}

func (r Ref) Len() int {
	return int(r.length)
}

type block struct {
	size int32
	page int32
	off  int32
}

type Pool struct {
	pages [][]byte
	// free is ordered by size ascending, ties in registration order, so the
	// first block of sufficient size is the best fit.
	free     []block
	used     int64
	reserved int64
	gen      int64
	inited   bool

	shared counters
}

// counters mirrors the pool numbers for readers outside the owner goroutine.
// The owner stores after every mutation; reporters only load.
type counters struct {
	pages      atomic.Int64
	freeBlocks atomic.Int64
	reserved   atomic.Int64
	used       atomic.Int64
	gen        atomic.Int64
	inited     atomic.Bool
}

func NewPool() *Pool {
	p := &Pool{gen: 1}
	for i := 0; i < staticPages; i++ {
		p.pages = append(p.pages, make([]byte, PageSize))
		p.reserved += PageSize
	}
	p.publish()
	return p
}

// Init readies the pool for one execution. The pool must be in the torn-down
// state (fresh, or after HardReclaim); initializing twice is a logic error.
func (p *Pool) Init() {
	if p.inited {
		panic("arena: pool initialized twice")
	}
	if len(p.free) != 0 {
		panic("arena: free index not empty on init")
	}
	p.used = 0
	for i := range p.pages {
		p.register(block{size: int32(len(p.pages[i])), page: int32(i)})
	}
	p.inited = true
	p.publish()
}

// Allocate returns a block of exactly n bytes. Leftover capacity of the chosen
// free block is re-registered. Panics with ErrOutOfMemory when a new page
// would breach a ceiling; no prior allocation is disturbed in that case.
func (p *Pool) Allocate(n int) Ref {
	p.ensureInited()
	defer p.publish()
	switch {
	case n < 0:
		panic(fmt.Sprintf("arena: negative allocation size %d", n))
	case n == 0:
		return Ref{gen: p.gen}
	case n > MaxMem:
		panic(ErrOutOfMemory)
	}
	idx := p.bestFit(int32(n))
	if idx < 0 {
		pg := p.grow(n, n)
		p.used += int64(n)
		return Ref{page: pg, off: 0, length: int32(n), gen: p.gen}
	}
	b := p.free[idx]
	p.free = append(p.free[:idx], p.free[idx+1:]...)
	if rem := b.size - int32(n); rem > 0 {
		p.register(block{size: rem, page: b.page, off: b.off + int32(n)})
	}
	p.used += int64(n)
	return Ref{page: b.page, off: b.off, length: int32(n), gen: p.gen}
}

// AllocatePeek runs the same best-fit search as Allocate but does not remove
// or split the block and does not count the bytes as used. See the package
// comment for the retention contract.
func (p *Pool) AllocatePeek(n int) Ref {
	p.ensureInited()
	defer p.publish()
	switch {
	case n < 0:
		panic(fmt.Sprintf("arena: negative allocation size %d", n))
	case n == 0:
		return Ref{gen: p.gen}
	case n > MaxMem:
		panic(ErrOutOfMemory)
	}
	idx := p.bestFit(int32(n))
	if idx < 0 {
		pg := p.grow(n, 0)
		return Ref{page: pg, off: 0, length: int32(n), gen: p.gen}
	}
	b := p.free[idx]
	return Ref{page: b.page, off: b.off, length: int32(n), gen: p.gen}
}

// ZeroAllocate is Allocate plus zero-fill; pages are recycled across
// executions, so fresh blocks hold old bytes.
func (p *Pool) ZeroAllocate(n int) Ref {
	r := p.Allocate(n)
	b := p.Bytes(r)
	for i := range b {
		b[i] = 0
	}
	return r
}

// Bytes resolves a Ref, returning nil when the Ref's generation is stale.
func (p *Pool) Bytes(r Ref) []byte {
	if r.gen != p.gen {
		return nil
	}
	pg := p.pages[r.page]
	return pg[r.off : r.off+r.length : r.off+r.length]
}

// SoftReclaim recycles the whole pool if more than half the reserved bytes are
// in use: the free index is rebuilt from whole pages, with no page returned to
// the runtime. The generation advances whether or not a reclaim happened.
func (p *Pool) SoftReclaim() {
	if p.used*2 > p.reserved {
		p.free = p.free[:0]
		p.used = 0
		for i := range p.pages {
			p.register(block{size: int32(len(p.pages[i])), page: int32(i)})
		}
		softReclaims.Inc()
	}
	p.gen++
	p.publish()
}

// HardReclaim tears the pool down at the end of an execution: dynamic pages
// are released, the free index is cleared and the generation advances. The
// pool must be Init-ed again before further use.
func (p *Pool) HardReclaim() {
	if !p.inited {
		panic("arena: hard reclaim on torn-down pool")
	}
	p.free = p.free[:0]
	p.used = 0
	p.pages = p.pages[:staticPages]
	p.reserved = staticPages * PageSize
	p.inited = false
	p.gen++
	p.publish()
	hardReclaims.Inc()
}

// Sprintf formats into arena storage, silently truncating past sprintfMax-1
// bytes. Meant for short diagnostic descriptions attached to answers.
func (p *Pool) Sprintf(format string, args ...interface{}) Ref {
	s := fmt.Sprintf(format, args...)
	if len(s) > sprintfMax-1 {
		s = s[:sprintfMax-1]
	}
	r := p.Allocate(len(s))
	copy(p.Bytes(r), s)
	return r
}

func (p *Pool) Generation() int64 {
	return p.gen
}

type Stats struct {
	Pages         int
	FreeBlocks    int
	ReservedBytes int64
	UsedBytes     int64
	FreeBytes     int64
	Generation    int64
	Inited        bool
}

// Stats reads the published mirror, so it is safe from any goroutine. While
// the pool is initialized every byte is either used or on the free index, so
// the free figure is derived rather than summed.
func (p *Pool) Stats() Stats {
	reserved := p.shared.reserved.Load()
	used := p.shared.used.Load()
	inited := p.shared.inited.Load()
	var freeBytes int64
	if inited {
		freeBytes = reserved - used
	}
	return Stats{
		Pages:         int(p.shared.pages.Load()),
		FreeBlocks:    int(p.shared.freeBlocks.Load()),
		ReservedBytes: reserved,
		UsedBytes:     used,
		FreeBytes:     freeBytes,
		Generation:    p.shared.gen.Load(),
		Inited:        inited,
	}
}

func (p *Pool) publish() {
	p.shared.pages.Store(int64(len(p.pages)))
	p.shared.freeBlocks.Store(int64(len(p.free)))
	p.shared.reserved.Store(p.reserved)
	p.shared.used.Store(p.used)
	p.shared.gen.Store(p.gen)
	p.shared.inited.Store(p.inited)
}

func (p *Pool) ensureInited() {
	if !p.inited {
		panic("arena: pool not initialized")
	}
}

// grow acquires a new page of max(n, PageSize) bytes, registering everything
// past the first use bytes as free. Returns the page index.
func (p *Pool) grow(n, use int) int32 {
	sz := n
	if sz < PageSize {
		sz = PageSize
	}
	if len(p.pages) == MaxPages || int64(sz)+p.reserved > MaxMem {
		panic(ErrOutOfMemory)
	}
	pg := int32(len(p.pages))
	p.pages = append(p.pages, make([]byte, sz))
	p.reserved += int64(sz)
	if use < sz {
		p.register(block{size: int32(sz - use), page: pg, off: int32(use)})
	}
	return pg
}

// bestFit returns the index of the smallest free block of at least n bytes,
// or -1.
func (p *Pool) bestFit(n int32) int {
	idx := sort.Search(len(p.free), func(i int) bool {
		return p.free[i].size >= n
	})
	if idx == len(p.free) {
		return -1
	}
	return idx
}

func (p *Pool) register(b block) {
	idx := sort.Search(len(p.free), func(i int) bool {
		return p.free[i].size > b.size
	})
	p.free = append(p.free, block{})
	copy(p.free[idx+1:], p.free[idx:])
	p.free[idx] = b
}
