package relay

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"viaduct/lib/ftypes"
)

/*
	The relay exchange runs over one bidirectional grpc stream per
	connection, with both directions carrying the same envelope: query id
	for correlation, function name, opaque payload, and an error text on
	failed answers. The envelope is framed by hand so the wire stays proto
	compatible without generated code.

	  1: query_id  varint
	  2: function  bytes
	  3: payload   bytes
	  4: error     bytes
*/

type Envelope struct {
	QueryID  ftypes.QueryID
	Function string
	Payload  []byte
	Error    string
}

func EncodeEnvelope(e Envelope) []byte {
	out := protowire.AppendTag(nil, 1, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(e.QueryID))
	if e.Function != "" {
		out = protowire.AppendTag(out, 2, protowire.BytesType)
		out = protowire.AppendString(out, e.Function)
	}
	if len(e.Payload) > 0 {
		out = protowire.AppendTag(out, 3, protowire.BytesType)
		out = protowire.AppendBytes(out, e.Payload)
	}
	if e.Error != "" {
		out = protowire.AppendTag(out, 4, protowire.BytesType)
		out = protowire.AppendString(out, e.Error)
	}
	return out
}

// DecodeEnvelope parses an envelope. The payload is copied out of b.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, fmt.Errorf("relay: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, fmt.Errorf("relay: bad query id: %w", protowire.ParseError(n))
			}
			e.QueryID = ftypes.QueryID(v)
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, fmt.Errorf("relay: bad function: %w", protowire.ParseError(n))
			}
			e.Function = string(v)
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, fmt.Errorf("relay: bad payload: %w", protowire.ParseError(n))
			}
			e.Payload = append([]byte(nil), v...)
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, fmt.Errorf("relay: bad error: %w", protowire.ParseError(n))
			}
			e.Error = string(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return e, fmt.Errorf("relay: bad field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return e, nil
}

// rawCodec moves pre-encoded frames through grpc untouched. Values on both
// sides are *[]byte.
type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("relay: codec wants *[]byte, got %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("relay: codec wants *[]byte, got %T", v)
	}
	*b = data
	return nil
}

func (rawCodec) Name() string { return "viaduct-raw" }
