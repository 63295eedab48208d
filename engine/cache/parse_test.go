package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	scenarios := []struct {
		payload string
		want    command
	}{
		{
			payload: "get foo\r\n",
			want:    command{name: "get", keys: []string{"foo"}},
		},
		{
			payload: "get foo bar baz\r\n",
			want:    command{name: "get", keys: []string{"foo", "bar", "baz"}},
		},
		{
			payload: "set foo 7 30 5\r\nhello\r\n",
			want:    command{name: "set", keys: []string{"foo"}, flags: 7, exptime: 30, data: []byte("hello")},
		},
		{
			payload: "set foo 0 0 0\r\n\r\n",
			want:    command{name: "set", keys: []string{"foo"}, data: []byte{}},
		},
		{
			payload: "add foo 0 0 2 noreply\r\nhi\r\n",
			want:    command{name: "add", keys: []string{"foo"}, data: []byte("hi"), noreply: true},
		},
		{
			payload: "incr hits 3\r\n",
			want:    command{name: "incr", keys: []string{"hits"}, delta: 3},
		},
		{
			payload: "decr hits 1 noreply\r\n",
			want:    command{name: "decr", keys: []string{"hits"}, delta: 1, noreply: true},
		},
		{
			payload: "delete foo\r\n",
			want:    command{name: "delete", keys: []string{"foo"}},
		},
		{
			payload: "version\r\n",
			want:    command{name: "version"},
		},
	}
	for _, scenario := range scenarios {
		got, err := parseCommand([]byte(scenario.payload))
		assert.NoError(t, err, scenario.payload)
		assert.Equal(t, scenario.want, got, scenario.payload)
	}
}

func TestParseCommandErrors(t *testing.T) {
	payloads := []string{
		"",
		"get foo",
		"\r\n",
		"get\r\n",
		"quux foo\r\n",
		"set foo 0 0\r\n",
		"set foo x 0 5\r\nhello\r\n",
		"set foo 0 0 5\r\nhel\r\n",
		"set foo 0 0 5 yesreply\r\nhello\r\n",
		"incr hits\r\n",
		"incr hits -3\r\n",
		"incr hits 3 loudly\r\n",
		"delete\r\n",
	}
	for _, payload := range payloads {
		_, err := parseCommand([]byte(payload))
		assert.Error(t, err, "%q", payload)
	}
}

func TestRenderValue(t *testing.T) {
	assert.Equal(t, []byte("VALUE foo 0 5\r\nhello\r\n"), renderValue("foo", "hello"))
	assert.Equal(t, []byte("VALUE e 0 0\r\n\r\n"), renderValue("e", ""))
}
