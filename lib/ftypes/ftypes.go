package ftypes

type WorkerID uint32

func (w WorkerID) Value() uint32 {
	return uint32(w)
}

// ConnID identifies one open engine connection within a worker.
type ConnID uint32

// SlotID identifies one outstanding asynchronous request. Valid ids are
// positive; the registry hands them out from a sliding window.
type SlotID int32

// QueryID correlates an outstanding RPC query with its answer. For queries
// issued through the bridge it equals the slot id that carried them.
type QueryID int64

type Timestamp uint64

type Protocol uint8

const (
	ProtocolMemcache Protocol = 1
	ProtocolSql      Protocol = 2
	ProtocolRpc      Protocol = 3
)

func (p Protocol) String() string {
	switch p {
	case ProtocolMemcache:
		return "memcache"
	case ProtocolSql:
		return "sql"
	case ProtocolRpc:
		return "rpc"
	}
	return "unknown"
}
