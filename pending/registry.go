package pending

import (
	"errors"

	"go.uber.org/zap"

	"viaduct/lib/ftypes"
)

/*
	The registry parks in-flight rpc queries between send and wait. A query
	is saved under its id when the request goes out and withdrawn exactly
	once when the script comes back for the answer. Everything here belongs
	to one execution; a hard reset between executions drops whatever the
	script never collected.
*/

var ErrUnknownPendingQuery = errors.New("pending: unknown query id")

// Fetcher decodes the raw answer payload of one parked query.
type Fetcher func(payload []byte) (interface{}, error)

// Query is one in-flight rpc query.
type Query struct {
	ID       ftypes.QueryID
	Function string
	Slot     ftypes.SlotID
	Fetcher  Fetcher
}

type Registry struct {
	queries map[ftypes.QueryID]*Query
}

func NewRegistry() *Registry {
	return &Registry{queries: make(map[ftypes.QueryID]*Query)}
}

// Save parks q under its id. Saving over an id that is already parked is a
// caller bug; the newer query wins so the script keeps limping, but the
// collision is flagged.
func (r *Registry) Save(q *Query) {
	if old, ok := r.queries[q.ID]; ok {
		overwrites.Inc()
		zap.L().Warn("pending query overwritten",
			zap.Int64("query_id", int64(q.ID)),
			zap.String("old_function", old.Function),
			zap.String("new_function", q.Function))
	}
	r.queries[q.ID] = q
}

// Withdraw removes and returns the query parked under id.
func (r *Registry) Withdraw(id ftypes.QueryID) (*Query, error) {
	q, ok := r.queries[id]
	if !ok {
		return nil, ErrUnknownPendingQuery
	}
	delete(r.queries, id)
	return q, nil
}

func (r *Registry) Count() int {
	return len(r.queries)
}

// HardReset drops every parked query. Runs between executions; anything
// still parked is an answer the script never waited for.
func (r *Registry) HardReset() {
	if n := len(r.queries); n > 0 {
		abandoned.Add(float64(n))
		zap.L().Debug("pending queries abandoned", zap.Int("count", n))
	}
	r.queries = make(map[ftypes.QueryID]*Query)
}
