package journal

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"viaduct/lib/ftypes"
	"viaduct/resource"
)

/*
	Every query the bridge finalizes leaves one entry in the journal, an
	append-only log of what was asked, where, and how it ended. Entries are
	JSON so downstream readers (the inspector tailer, offline analysis) can
	pick single fields without a schema. The journal is advisory: produce
	failures are counted and logged but never fail the query they describe.
*/

const (
	KindQuery   = "query"
	KindSummary = "summary"

	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Entry is one journal record. Query entries describe a single finalized
// query; summary entries describe one whole script execution.
type Entry struct {
	Kind     string          `json:"kind"`
	At       int64           `json:"at"`
	Worker   ftypes.WorkerID `json:"worker"`
	Slot     ftypes.SlotID   `json:"slot,omitempty"`
	Conn     ftypes.ConnID   `json:"conn,omitempty"`
	Protocol string          `json:"protocol,omitempty"`
	Function string          `json:"function,omitempty"`
	Outcome  string          `json:"outcome,omitempty"`
	Error    string          `json:"error,omitempty"`
	Bytes    int             `json:"bytes,omitempty"`
	Micros   int64           `json:"micros,omitempty"`

	// Summary-only fields.
	Queries      int   `json:"queries,omitempty"`
	NetMicros    int64 `json:"net_micros,omitempty"`
	ScriptMicros int64 `json:"script_micros,omitempty"`
}

func (e Entry) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// PartitionKey keeps all entries of one worker on one partition so that
// per-worker order survives the broker.
func (e Entry) PartitionKey() []byte {
	return strconv.AppendUint(nil, uint64(e.Worker), 10)
}

// Producer appends entries to the journal.
type Producer interface {
	Log(ctx context.Context, value []byte, partitionKey []byte) error
	LogEntry(ctx context.Context, e Entry) error
	Flush(timeout time.Duration) error
	Close() error
	Type() resource.Type
}

// Consumer reads the journal back, tracking its own offset per group.
type Consumer interface {
	Read(ctx context.Context, timeout time.Duration) ([]byte, error)
	ReadBatch(ctx context.Context, upto int, timeout time.Duration) ([][]byte, error)
	Commit() error
	Backlog() (int, error)
	GroupID() string
	Close() error
	Type() resource.Type
}
