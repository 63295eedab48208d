package sqldb

import (
	"fmt"

	"viaduct/lib/utils/binary"
)

/*
	Answer framing. The first fragment of a query answer carries the column
	names, each following fragment carries one row, and exec answers carry a
	two-column summary ("rows_affected", "last_insert_id") with a single
	row. Row values are length-prefixed with the length shifted up by one,
	so zero is free to mean NULL.
*/

func EncodeHeader(cols []string) []byte {
	out := binary.AppendUvarint(nil, uint64(len(cols)))
	for _, c := range cols {
		out = binary.AppendString(out, c)
	}
	return out
}

func DecodeHeader(p []byte) ([]string, error) {
	n, sz, err := binary.ReadUvarint(p)
	if err != nil {
		return nil, fmt.Errorf("sqldb: bad header count: %w", err)
	}
	p = p[sz:]
	cols := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		c, sz, err := binary.ReadString(p)
		if err != nil {
			return nil, fmt.Errorf("sqldb: bad header column %d: %w", i, err)
		}
		p = p[sz:]
		cols = append(cols, c)
	}
	return cols, nil
}

// EncodeRow frames one row; nil values mean NULL.
func EncodeRow(vals [][]byte) []byte {
	out := binary.AppendUvarint(nil, uint64(len(vals)))
	for _, v := range vals {
		if v == nil {
			out = binary.AppendUvarint(out, 0)
		} else {
			out = binary.AppendUvarint(out, uint64(len(v))+1)
			out = append(out, v...)
		}
	}
	return out
}

// DecodeRow unframes one row. NULL comes back as a nil value. The returned
// slices view p, not a copy.
func DecodeRow(p []byte) ([][]byte, error) {
	n, sz, err := binary.ReadUvarint(p)
	if err != nil {
		return nil, fmt.Errorf("sqldb: bad row count: %w", err)
	}
	p = p[sz:]
	vals := make([][]byte, 0, n)
	for i := uint64(0); i < n; i++ {
		l, sz, err := binary.ReadUvarint(p)
		if err != nil {
			return nil, fmt.Errorf("sqldb: bad value %d: %w", i, err)
		}
		p = p[sz:]
		if l == 0 {
			vals = append(vals, nil)
			continue
		}
		size := int(l - 1)
		if len(p) < size {
			return nil, fmt.Errorf("sqldb: truncated value %d", i)
		}
		vals = append(vals, p[:size])
		p = p[size:]
	}
	return vals, nil
}
