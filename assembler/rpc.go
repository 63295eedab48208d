package assembler

import (
	"viaduct/arena"
	"viaduct/query"
)

// RPC assembles rpc answers: the whole payload arrives in one piece.
type RPC struct {
	Base
}

func NewRPC(pool *arena.Pool, ans *query.PacketAnswer) *RPC {
	return &RPC{Base: NewBase(pool, ans)}
}

// Deliver copies the answer payload into arena storage and finalizes.
func (r *RPC) Deliver(p []byte) {
	if !r.acceptEvent() {
		return
	}
	if r.Alive() {
		ref := r.pool.Allocate(len(p))
		copy(r.pool.Bytes(ref), p)
		r.ans.OK = true
		r.ans.Res = r.pool.Bytes(ref)
	} else {
		deadDrops.Inc()
	}
	r.state = StateDone
}
