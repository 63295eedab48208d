package query

import (
	"time"

	"viaduct/lib/ftypes"
)

/*
	Descriptors are the boundary contract between the script runtime and the
	bridge. The runtime constructs a descriptor, hands it to the bridge and
	suspends; when the bridge resumes it, the result sits in the descriptor's
	own Answer field. Answers that view arena storage (Res, Chain fragments)
	are valid until the execution's bulk reclaim and must be consumed before
	teardown.
*/

// ExtraType values hinting the expected memcache answer shape.
const (
	ExtraNone    = 0
	ExtraVersion = 1
)

// Packet asks one query over an open engine connection. Function names the
// remote handler for rpc-flavored packets; memcache and sql leave it empty.
type Packet struct {
	Conn      ftypes.ConnID
	Function  string
	Data      []byte
	Timeout   time.Duration
	Protocol  ftypes.Protocol
	ExtraType int

	Answer PacketAnswer
}

// PacketAnswer is filled in place when the packet finalizes. Memcache- and
// rpc-style answers land in Res; sql-style answers land in Chain.
type PacketAnswer struct {
	OK    bool
	Res   []byte
	Chain *Chain
	Desc  string
	Err   string
}

// Connect opens an engine connection for one of the protocol families.
type Connect struct {
	Host     string
	Port     int
	Protocol ftypes.Protocol

	Answer ConnectAnswer
}

type ConnectAnswer struct {
	OK     bool
	ConnID ftypes.ConnID
	Err    string
}

// X2 is the loopback self-test query: the engine answers with the square of
// the value, exercising the whole suspend/resume path without any network.
type X2 struct {
	Val int

	Answer X2Answer
}

type X2Answer struct {
	OK  bool
	X2  int
	Err string
}

func (q *Packet) Deadline(now time.Time) time.Time {
	if q.Timeout <= 0 {
		return time.Time{}
	}
	return now.Add(q.Timeout)
}
