package loopback

import (
	"context"

	"viaduct/engine"
	"viaduct/lib/ftypes"
)

/*
	Loopback is an in-process engine: submissions turn into completions on
	the caller's goroutine, with no network in between. The default behavior
	echoes the payload back as an rpc answer; a Handler scripts any other
	exchange, which is how tests drive the memcache and sql protocol flows
	deterministically.
*/

// Handler turns one submission into the completions the engine would send.
// Slot and Conn are filled in afterwards for any completion that leaves
// them zero.
type Handler func(conn *engine.Conn, sub engine.Submission) []engine.Completion

// Echo answers every submission with its own payload.
func Echo(_ *engine.Conn, sub engine.Submission) []engine.Completion {
	return []engine.Completion{{Op: engine.OpRPCAnswer, Data: sub.Payload}}
}

type Driver struct {
	protocol ftypes.Protocol
	sink     engine.Sink
	handler  Handler
}

func New(protocol ftypes.Protocol, sink engine.Sink, h Handler) *Driver {
	if h == nil {
		h = Echo
	}
	return &Driver{protocol: protocol, sink: sink, handler: h}
}

func (d *Driver) Open(_ context.Context, conn *engine.Conn) error {
	conn.State = d
	return nil
}

func (d *Driver) Submit(_ context.Context, conn *engine.Conn, sub engine.Submission) error {
	for _, c := range d.handler(conn, sub) {
		if c.Slot == 0 {
			c.Slot = sub.Slot
		}
		if c.Conn == 0 {
			c.Conn = conn.ID
		}
		d.sink.Deliver(c)
	}
	return nil
}

func (d *Driver) Protocol() ftypes.Protocol {
	return d.protocol
}

func (d *Driver) Close() error {
	return nil
}
