package sqldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderRoundTrip(t *testing.T) {
	cols := []string{"id", "name", "created_at"}
	got, err := DecodeHeader(EncodeHeader(cols))
	assert.NoError(t, err)
	assert.Equal(t, cols, got)

	got, err = DecodeHeader(EncodeHeader(nil))
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestRowRoundTrip(t *testing.T) {
	row := [][]byte{
		[]byte("42"),
		nil,
		[]byte(""),
		[]byte("hello world"),
	}
	got, err := DecodeRow(EncodeRow(row))
	assert.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, []byte("42"), got[0])
	assert.Nil(t, got[1], "NULL must round trip as nil")
	assert.NotNil(t, got[2], "empty value is not NULL")
	assert.Empty(t, got[2])
	assert.Equal(t, []byte("hello world"), got[3])
}

func TestDecodeTruncated(t *testing.T) {
	frame := EncodeRow([][]byte{[]byte("hello")})
	for i := 1; i < len(frame); i++ {
		_, err := DecodeRow(frame[:i])
		assert.Error(t, err, "cut at %d", i)
	}
}
