package engine

import (
	"context"
	"time"

	"viaduct/lib/ftypes"
)

/*
	An engine is anything the bridge can open a connection to and ask
	queries of. Drivers speak one protocol family each and hide the real
	transport behind two calls: Open attaches driver state to a connection,
	Submit starts one exchange. Answers never come back on the Submit path;
	the driver produces completions on its own goroutines and hands them to
	the sink, which is the single edge back into the bridge loop.
*/

// Submission phases for drivers that split connection acquisition from the
// exchange itself. Single-phase drivers ignore the field.
const (
	PhaseWhole uint8 = iota
	PhaseAcquire
	PhaseExecute
)

// Submission is one outgoing exchange. Slot correlates the completions the
// driver produces back to the asking query. Function names the remote
// operation for protocols that carry one out of band.
type Submission struct {
	Slot      ftypes.SlotID
	Function  string
	Payload   []byte
	ExtraType int
	Phase     uint8
	Timeout   time.Duration
}

// Conn is one open engine connection. State is driver-private.
type Conn struct {
	ID       ftypes.ConnID
	Protocol ftypes.Protocol
	Host     string
	Port     int
	State    interface{}
}

// Driver speaks one protocol family.
type Driver interface {
	// Open attaches driver state to conn. Drivers that dial lazily may
	// return before any network traffic happens.
	Open(ctx context.Context, conn *Conn) error
	// Submit starts one exchange on conn. The payload is only valid for
	// the duration of the call; drivers that keep it must copy.
	Submit(ctx context.Context, conn *Conn, sub Submission) error
	Protocol() ftypes.Protocol
	Close() error
}

// Op tags one completion with the protocol event it carries.
type Op uint8

const (
	OpMCValue Op = iota + 1
	OpMCEnd
	OpMCStored
	OpMCNotStored
	OpMCVersion
	OpMCOther
	OpSQLReady
	OpSQLFragment
	OpSQLDone
	OpRPCAnswer
	OpError
)

func (op Op) String() string {
	switch op {
	case OpMCValue:
		return "mc_value"
	case OpMCEnd:
		return "mc_end"
	case OpMCStored:
		return "mc_stored"
	case OpMCNotStored:
		return "mc_not_stored"
	case OpMCVersion:
		return "mc_version"
	case OpMCOther:
		return "mc_other"
	case OpSQLReady:
		return "sql_ready"
	case OpSQLFragment:
		return "sql_fragment"
	case OpSQLDone:
		return "sql_done"
	case OpRPCAnswer:
		return "rpc_answer"
	case OpError:
		return "error"
	default:
		return "unknown"
	}
}

// Completion is one protocol event produced by a driver. Data is owned by
// the driver and only valid until the receiver returns; receivers that park
// it must copy first.
type Completion struct {
	Slot ftypes.SlotID
	Conn ftypes.ConnID
	Op   Op
	Data []byte
	Err  string
}

// Sink receives completions from driver goroutines. Implementations must be
// safe for concurrent use.
type Sink interface {
	Deliver(c Completion)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(c Completion)

func (f SinkFunc) Deliver(c Completion) {
	f(c)
}
