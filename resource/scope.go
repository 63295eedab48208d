package resource

import (
	"fmt"

	"viaduct/lib/ftypes"
)

type Scope interface {
	ID() ftypes.WorkerID
	PrefixedName(string) string
}

var _ Scope = WorkerScope{}

type WorkerScope struct {
	workerID ftypes.WorkerID
}

func NewWorkerScope(workerID ftypes.WorkerID) WorkerScope {
	return WorkerScope{
		workerID: workerID,
	}
}

func (w WorkerScope) ID() ftypes.WorkerID {
	return w.workerID
}

func (w WorkerScope) PrefixedName(name string) string {
	return fmt.Sprintf("w_%d_%s", w.workerID, name)
}
