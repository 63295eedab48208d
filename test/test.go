package test

import (
	"testing"

	"github.com/detailyang/fastrand-go"
	"github.com/stretchr/testify/require"

	"viaduct/bridge"
	"viaduct/engine/cache"
	"viaduct/engine/sqldb"
	"viaduct/lib/ftypes"
	"viaduct/resource"
)

// Scope returns a scope with a fresh random worker id so that concurrent
// fixtures never collide on prefixed resource names.
func Scope() resource.WorkerScope {
	return resource.NewWorkerScope(ftypes.WorkerID(fastrand.FastRand()))
}

// Context returns a bridge context with every networked engine swapped for
// a local substitute: miniredis behind the memcache driver, sqlite behind
// the sql driver and an in-process journal. Rpc tests register their own
// relay driver on top.
func Context(t *testing.T) *bridge.Context {
	scope := Scope()
	c := bridge.CreateFromResources(bridge.Resources{
		Scope:    scope,
		EventCap: 256,
		QueryCap: 256,
	})

	client, err := mockCache(scope)
	require.NoError(t, err)
	require.NoError(t, c.Engines.Register(cache.NewDriver(client, c.Sink())))

	conn, err := defaultDB(scope)
	require.NoError(t, err)
	driver, err := sqldb.NewDriver(conn, c.Sink())
	require.NoError(t, err)
	require.NoError(t, c.Engines.Register(driver))

	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}
