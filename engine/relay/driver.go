package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	grpc "google.golang.org/grpc"

	"viaduct/engine"
	"viaduct/lib/ftypes"
)

/*
	The driver side of the relay exchange. Every bridge connection gets its
	own stream over the shared channel, with a pump goroutine turning
	incoming envelopes into completions. Ghost answers simply never arrive;
	the asking query runs into its timeout, which is the expected shape of
	an overloaded engine.
*/

type Driver struct {
	client Client
	sink   engine.Sink
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type streamState struct {
	stream grpc.ClientStream
	mu     sync.Mutex
}

func NewDriver(client Client, sink engine.Sink) *Driver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{client: client, sink: sink, ctx: ctx, cancel: cancel}
}

func (d *Driver) Protocol() ftypes.Protocol {
	return ftypes.ProtocolRpc
}

func (d *Driver) Open(_ context.Context, conn *engine.Conn) error {
	stream, err := d.client.Exchange(d.ctx)
	if err != nil {
		return err
	}
	st := &streamState{stream: stream}
	conn.State = st

	d.wg.Add(1)
	go d.pump(conn, st)
	return nil
}

func (d *Driver) pump(conn *engine.Conn, st *streamState) {
	defer d.wg.Done()
	for {
		var frame []byte
		if err := st.stream.RecvMsg(&frame); err != nil {
			if d.ctx.Err() == nil && !errors.Is(err, io.EOF) {
				zap.L().Warn("relay stream closed",
					zap.Uint32("conn", uint32(conn.ID)), zap.Error(err))
			}
			return
		}
		env, err := DecodeEnvelope(frame)
		if err != nil {
			zap.L().Warn("relay frame dropped", zap.Error(err))
			continue
		}
		c := engine.Completion{Slot: ftypes.SlotID(env.QueryID), Conn: conn.ID}
		if env.Error != "" {
			c.Op = engine.OpError
			c.Err = env.Error
		} else {
			c.Op = engine.OpRPCAnswer
			c.Data = env.Payload
		}
		answers.Inc()
		d.sink.Deliver(c)
	}
}

func (d *Driver) Submit(_ context.Context, conn *engine.Conn, sub engine.Submission) error {
	st, ok := conn.State.(*streamState)
	if !ok {
		return fmt.Errorf("relay: connection has no stream")
	}
	frame := EncodeEnvelope(Envelope{
		QueryID:  ftypes.QueryID(sub.Slot),
		Function: sub.Function,
		Payload:  sub.Payload,
	})
	queries.Inc()

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.stream.SendMsg(&frame)
}

func (d *Driver) Close() error {
	d.cancel()
	err := d.client.Close()
	d.wg.Wait()
	return err
}
