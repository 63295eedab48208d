package assembler

import (
	"viaduct/arena"
	"viaduct/query"
)

// The first fragment pins a memcache assembler to one answer family; any
// fragment from another family is a protocol violation and finalizes the
// query with an error.
type mcState uint8

const (
	mcUndetermined mcState = iota
	mcGet
	mcStore
	mcVersion
	mcOther
)

var (
	trailerEnd       = []byte("END\r\n")
	trailerStored    = []byte("STORED\r\n")
	trailerNotStored = []byte("NOT_STORED\r\n")
)

// MC assembles memcache-text answers: VALUE blocks closed by an END trailer,
// a single STORED/NOT_STORED word, a VERSION line, or one free-form line.
type MC struct {
	Base
	sub mcState
	buf Buffer
}

func NewMC(pool *arena.Pool, ans *query.PacketAnswer) *MC {
	return &MC{Base: NewBase(pool, ans), buf: NewBuffer(pool)}
}

// SetQueryType pins the answer family up front from the query's extra type.
// Only the version hint is meaningful; everything else self-determines from
// the first fragment.
func (m *MC) SetQueryType(extraType int) {
	if !m.acceptEvent() {
		return
	}
	want := mcUndetermined
	if extraType == query.ExtraVersion {
		want = mcVersion
	}
	if want == mcUndetermined {
		return
	}
	if m.sub == mcUndetermined {
		m.sub = want
	}
	if m.sub != want {
		m.Error("Can't determine query type")
	}
}

// Value appends one VALUE block. The answer stays open until End.
func (m *MC) Value(p []byte) {
	if !m.acceptEvent() {
		return
	}
	if m.sub == mcUndetermined {
		m.sub = mcGet
	}
	if m.sub != mcGet {
		m.Error("Unexpected VALUE")
		return
	}
	if m.Alive() {
		m.buf.Append(p)
	} else {
		deadDrops.Inc()
	}
}

// End closes a get-family answer with the END trailer and finalizes.
func (m *MC) End() {
	if !m.acceptEvent() {
		return
	}
	if m.sub == mcUndetermined {
		m.sub = mcGet
	}
	if m.sub != mcGet {
		m.Error("Unexpected END")
		return
	}
	if m.Alive() {
		m.buf.Append(trailerEnd)
		m.finalizeOK()
	}
	m.state = StateDone
}

// XStored finalizes a store-family answer with the STORED or NOT_STORED word.
func (m *MC) XStored(stored bool) {
	if !m.acceptEvent() {
		return
	}
	if m.sub == mcUndetermined {
		m.sub = mcStore
	}
	if m.sub != mcStore {
		m.Error("Unexpected STORED")
		return
	}
	if m.Alive() {
		if stored {
			m.buf.Append(trailerStored)
		} else {
			m.buf.Append(trailerNotStored)
		}
		m.finalizeOK()
	}
	m.state = StateDone
}

// Version finalizes a version answer. A version fragment outside the version
// family is dropped without complaint; some engines volunteer one.
func (m *MC) Version(p []byte) {
	if !m.acceptEvent() {
		return
	}
	if m.sub != mcVersion {
		return
	}
	if m.Alive() {
		m.buf.Append(p)
		m.finalizeOK()
	} else {
		deadDrops.Inc()
	}
	m.state = StateDone
}

// Other finalizes a free-form single-fragment answer.
func (m *MC) Other(p []byte) {
	if !m.acceptEvent() {
		return
	}
	if m.sub == mcUndetermined {
		m.sub = mcOther
	}
	if m.sub != mcOther {
		m.Error("Unexpected \"other\" command")
		return
	}
	if m.Alive() {
		m.buf.Append(p)
		m.finalizeOK()
	} else {
		deadDrops.Inc()
	}
	m.state = StateDone
}

func (m *MC) finalizeOK() {
	m.ans.OK = true
	m.ans.Res = m.buf.Bytes()
}
