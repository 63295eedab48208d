package pending

import (
	"fmt"

	"go.uber.org/zap"
)

// Processing tracks which rpc function is currently being encoded or
// decoded, so malformed-data errors can name the query they poisoned.
// Fetch and store failures land on separate channels because the script
// recovers from them differently: a store failure means nothing went out,
// a fetch failure means the answer arrived and was lost.
type Processing struct {
	function    string
	fetchingErr error
	storingErr  error
}

func (p *Processing) SetFunction(name string) {
	p.function = name
}

// FromQuery points the context at a parked query during answer decoding.
func (p *Processing) FromQuery(q *Query) {
	p.function = q.Function
}

func (p *Processing) Function() string {
	return p.function
}

// RaiseFetchingError records a failure while decoding an answer. The first
// failure is kept as the root cause; later ones are usually cascades.
func (p *Processing) RaiseFetchingError(format string, args ...interface{}) {
	err := fmt.Errorf("fetching error in %s query result: %s", p.functionName(), fmt.Sprintf(format, args...))
	zap.L().Warn("rpc fetch failed", zap.String("function", p.functionName()), zap.Error(err))
	if p.fetchingErr == nil {
		p.fetchingErr = err
	}
}

// RaiseStoringError records a failure while encoding a request.
func (p *Processing) RaiseStoringError(format string, args ...interface{}) {
	err := fmt.Errorf("storing error in %s query: %s", p.functionName(), fmt.Sprintf(format, args...))
	zap.L().Warn("rpc store failed", zap.String("function", p.functionName()), zap.Error(err))
	if p.storingErr == nil {
		p.storingErr = err
	}
}

func (p *Processing) FetchingErr() error {
	return p.fetchingErr
}

func (p *Processing) StoringErr() error {
	return p.storingErr
}

func (p *Processing) Reset() {
	p.function = ""
	p.fetchingErr = nil
	p.storingErr = nil
}

func (p *Processing) functionName() string {
	if p.function == "" {
		return "unknown"
	}
	return p.function
}
