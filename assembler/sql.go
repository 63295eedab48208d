package assembler

import (
	"viaduct/arena"
	"viaduct/query"
)

type sqlState uint8

const (
	sqlInit sqlState = iota
	sqlWaitConn
	sqlWaitAnswer
)

// Writer sends the deferred outgoing query once its connection is ready.
type Writer func(conn interface{})

// SQL assembles database answers. The outgoing query is parked in a Writer
// until the connection handshake completes, then the answer arrives as a
// fragment chain closed by Done.
type SQL struct {
	Base
	sub    sqlState
	writer Writer
	chain  *query.Chain
}

func NewSQL(pool *arena.Pool, ans *query.PacketAnswer) *SQL {
	return &SQL{Base: NewBase(pool, ans), chain: query.NewChain(pool)}
}

// SetWriter parks the outgoing query until Ready.
func (s *SQL) SetWriter(w Writer) {
	if !s.acceptEvent() {
		return
	}
	if s.sub != sqlInit {
		panic("assembler: writer already set")
	}
	s.writer = w
	s.sub = sqlWaitConn
}

// Ready runs the parked writer on the now-established connection. A timed
// out query skips the send entirely; the driver owns its wire, so there is
// no half-sent exchange to keep in sync.
func (s *SQL) Ready(conn interface{}) {
	if !s.acceptEvent() {
		return
	}
	if s.sub != sqlWaitConn {
		panic("assembler: connection ready out of order")
	}
	if s.writer != nil {
		s.writer(conn)
	}
	s.sub = sqlWaitAnswer
}

// Fragment links one answer packet onto the chain.
func (s *SQL) Fragment(p []byte) {
	if !s.acceptEvent() {
		return
	}
	if s.sub != sqlWaitAnswer {
		panic("assembler: fragment before connection ready")
	}
	if s.Alive() {
		s.chain.Append(p)
	} else {
		deadDrops.Inc()
	}
}

// Done finalizes with the chain collected so far.
func (s *SQL) Done() {
	if !s.acceptEvent() {
		return
	}
	if s.sub != sqlWaitAnswer {
		panic("assembler: done before connection ready")
	}
	if s.Alive() {
		s.ans.OK = true
		s.ans.Chain = s.chain
	}
	s.state = StateDone
}
