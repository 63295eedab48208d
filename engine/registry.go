package engine

import (
	"context"
	"fmt"

	"github.com/samber/mo"
	"go.uber.org/zap"

	"viaduct/lib/ftypes"
)

// Registry holds the drivers for each protocol family and every connection
// opened through them. Connection ids are dense, starting at 1, so the zero
// id never resolves.
type Registry struct {
	drivers map[ftypes.Protocol]Driver
	conns   []*Conn
}

func NewRegistry() *Registry {
	return &Registry{drivers: make(map[ftypes.Protocol]Driver)}
}

// Register installs the driver for its protocol family. At most one driver
// per family.
func (r *Registry) Register(d Driver) error {
	p := d.Protocol()
	if _, ok := r.drivers[p]; ok {
		return fmt.Errorf("engine: driver for %v already registered", p)
	}
	r.drivers[p] = d
	return nil
}

func (r *Registry) Driver(p ftypes.Protocol) mo.Option[Driver] {
	d, ok := r.drivers[p]
	if !ok {
		return mo.None[Driver]()
	}
	return mo.Some(d)
}

// Open establishes a connection through the protocol's driver and registers
// it under the next dense id.
func (r *Registry) Open(ctx context.Context, p ftypes.Protocol, host string, port int) (*Conn, error) {
	d, ok := r.drivers[p]
	if !ok {
		return nil, fmt.Errorf("engine: no driver for %v", p)
	}
	conn := &Conn{
		ID:       ftypes.ConnID(len(r.conns) + 1),
		Protocol: p,
		Host:     host,
		Port:     port,
	}
	if err := d.Open(ctx, conn); err != nil {
		return nil, fmt.Errorf("engine: open %s:%d: %w", host, port, err)
	}
	r.conns = append(r.conns, conn)
	opened.WithLabelValues(p.String()).Inc()
	return conn, nil
}

func (r *Registry) Lookup(id ftypes.ConnID) mo.Option[*Conn] {
	if id < 1 || int(id) > len(r.conns) {
		return mo.None[*Conn]()
	}
	return mo.Some(r.conns[id-1])
}

func (r *Registry) ConnCount() int {
	return len(r.conns)
}

// Close shuts every driver down. Connections opened through a driver die
// with it.
func (r *Registry) Close() error {
	var firstErr error
	for p, d := range r.drivers {
		if err := d.Close(); err != nil {
			zap.L().Warn("driver close failed", zap.String("protocol", p.String()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
