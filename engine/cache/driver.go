package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"viaduct/engine"
	"viaduct/lib/ftypes"
)

/*
	The driver speaks the memcache text protocol on the bridge side and a
	cache resource on the other. Each submission is parsed, executed on its
	own goroutine and answered through the sink as the protocol events the
	assembler expects: VALUE blocks closed by END for reads, a single
	STORED/NOT_STORED word for writes.
*/

// Version is reported to version queries.
var Version = "1.0"

type Driver struct {
	client Client
	sink   engine.Sink
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDriver(client Client, sink engine.Sink) *Driver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{client: client, sink: sink, ctx: ctx, cancel: cancel}
}

func (d *Driver) Protocol() ftypes.Protocol {
	return ftypes.ProtocolMemcache
}

// Open attaches the shared cache client. The driver addresses one cache;
// the host and port on the connection are informational.
func (d *Driver) Open(_ context.Context, conn *engine.Conn) error {
	conn.State = d.client
	return nil
}

func (d *Driver) Submit(_ context.Context, conn *engine.Conn, sub engine.Submission) error {
	cmd, err := parseCommand(sub.Payload)
	if err != nil {
		return err
	}
	// data aliases the submission payload, which dies when Submit returns.
	cmd.data = append([]byte(nil), cmd.data...)

	d.wg.Add(1)
	go d.run(conn, sub.Slot, cmd, sub.Timeout)
	return nil
}

func (d *Driver) run(conn *engine.Conn, slot ftypes.SlotID, cmd command, timeout time.Duration) {
	defer d.wg.Done()
	ops.WithLabelValues(cmd.name).Inc()

	ctx := d.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	deliver := func(op engine.Op, data []byte) {
		d.sink.Deliver(engine.Completion{Slot: slot, Conn: conn.ID, Op: op, Data: data})
	}

	switch cmd.name {
	case "get", "gets":
		vals, err := d.client.MGet(ctx, cmd.keys...)
		if err != nil {
			d.fail(conn, slot, err)
			return
		}
		for i, v := range vals {
			if s, ok := v.(string); ok {
				deliver(engine.OpMCValue, renderValue(cmd.keys[i], s))
			}
		}
		deliver(engine.OpMCEnd, nil)

	case "set":
		if err := d.client.Set(ctx, cmd.keys[0], cmd.data, cmd.ttl()); err != nil {
			d.fail(conn, slot, err)
			return
		}
		if cmd.noreply {
			// The store happened, there is just nothing to say; the ask
			// still needs finalizing.
			deliver(engine.OpMCOther, nil)
		} else {
			deliver(engine.OpMCStored, nil)
		}

	case "add":
		stored, err := d.client.SetNX(ctx, cmd.keys[0], cmd.data, cmd.ttl())
		if err != nil {
			d.fail(conn, slot, err)
			return
		}
		d.xstored(deliver, stored, cmd.noreply)

	case "replace":
		stored, err := d.client.SetXX(ctx, cmd.keys[0], cmd.data, cmd.ttl())
		if err != nil {
			d.fail(conn, slot, err)
			return
		}
		d.xstored(deliver, stored, cmd.noreply)

	case "incr", "decr":
		n, err := d.client.Exists(ctx, cmd.keys[0])
		if err != nil {
			d.fail(conn, slot, err)
			return
		}
		if n == 0 {
			if cmd.noreply {
				deliver(engine.OpMCOther, nil)
			} else {
				deliver(engine.OpMCOther, []byte("NOT_FOUND\r\n"))
			}
			return
		}
		var val int64
		if cmd.name == "incr" {
			val, err = d.client.IncrBy(ctx, cmd.keys[0], int64(cmd.delta))
		} else {
			// redis decrby, which unlike a memcache decr will go below zero
			val, err = d.client.DecrBy(ctx, cmd.keys[0], int64(cmd.delta))
		}
		if err != nil {
			d.fail(conn, slot, err)
			return
		}
		if cmd.noreply {
			deliver(engine.OpMCOther, nil)
		} else {
			deliver(engine.OpMCOther, []byte(fmt.Sprintf("%d\r\n", val)))
		}

	case "delete":
		n, err := d.client.Del(ctx, cmd.keys[0])
		if err != nil {
			d.fail(conn, slot, err)
			return
		}
		if n > 0 {
			deliver(engine.OpMCOther, []byte("DELETED\r\n"))
		} else {
			deliver(engine.OpMCOther, []byte("NOT_FOUND\r\n"))
		}

	case "version":
		deliver(engine.OpMCVersion, []byte("VERSION "+Version+"\r\n"))
	}
}

func (d *Driver) xstored(deliver func(engine.Op, []byte), stored, noreply bool) {
	if noreply {
		deliver(engine.OpMCOther, nil)
		return
	}
	if stored {
		deliver(engine.OpMCStored, nil)
	} else {
		deliver(engine.OpMCNotStored, nil)
	}
}

func (d *Driver) fail(conn *engine.Conn, slot ftypes.SlotID, err error) {
	failures.Inc()
	d.sink.Deliver(engine.Completion{Slot: slot, Conn: conn.ID, Op: engine.OpError, Err: err.Error()})
}

func (d *Driver) Close() error {
	d.cancel()
	d.wg.Wait()
	return d.client.Close()
}

func (c command) ttl() time.Duration {
	if c.exptime <= 0 {
		return 0
	}
	return time.Duration(c.exptime) * time.Second
}
