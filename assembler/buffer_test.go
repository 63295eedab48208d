package assembler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferAccumulates(t *testing.T) {
	pool := newTestPool(t)
	b := NewBuffer(pool)
	assert.Nil(t, b.Bytes())

	var want []byte
	for i := 0; i < 64; i++ {
		chunk := bytes.Repeat([]byte{byte('a' + i%26)}, i)
		b.Append(chunk)
		want = append(want, chunk...)
	}
	assert.Equal(t, len(want), b.Len())
	assert.Equal(t, want, b.Bytes())
}

func TestBufferAppendCopies(t *testing.T) {
	pool := newTestPool(t)
	b := NewBuffer(pool)

	src := []byte("fragment")
	b.Append(src)
	src[0] = 'X'
	assert.Equal(t, []byte("fragment"), b.Bytes())
}
