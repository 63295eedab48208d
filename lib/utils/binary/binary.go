package binary

import (
	"encoding/binary"
	"fmt"
)

// Varint/length-prefix codec used for framing engine answer fragments. The
// append forms grow the destination; the read forms return the value and the
// number of bytes consumed.

func AppendUvarint(b []byte, n uint64) []byte {
	var lenbuf [10]byte
	sz := binary.PutUvarint(lenbuf[:], n)
	return append(b, lenbuf[:sz]...)
}

func AppendVarint(b []byte, n int64) []byte {
	var lenbuf [10]byte
	sz := binary.PutVarint(lenbuf[:], n)
	return append(b, lenbuf[:sz]...)
}

func AppendBytes(b []byte, in []byte) []byte {
	b = AppendUvarint(b, uint64(len(in)))
	return append(b, in...)
}

func AppendString(b []byte, s string) []byte {
	b = AppendUvarint(b, uint64(len(s)))
	return append(b, s...)
}

func ReadUvarint(b []byte) (uint64, int, error) {
	n, sz := binary.Uvarint(b)
	if sz <= 0 {
		return 0, 0, fmt.Errorf("invalid uvarint")
	}
	return n, sz, nil
}

func ReadVarint(b []byte) (int64, int, error) {
	n, sz := binary.Varint(b)
	if sz <= 0 {
		return 0, 0, fmt.Errorf("invalid varint")
	}
	return n, sz, nil
}

// ReadBytes doesn't copy the underlying data, but only creates the slice header.
func ReadBytes(b []byte) ([]byte, int, error) {
	len_, n, err := ReadUvarint(b)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid length prefix")
	}
	if uint64(len(b)) < uint64(n)+len_ {
		return nil, 0, fmt.Errorf("buffer too small")
	}
	return b[n : n+int(len_)], n + int(len_), nil
}

func ReadString(b []byte) (string, int, error) {
	raw, n, err := ReadBytes(b)
	if err != nil {
		return "", n, err
	}
	return string(raw), n, nil
}
