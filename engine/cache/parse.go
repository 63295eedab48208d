package cache

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// command is one parsed memcache-text request.
type command struct {
	name    string
	keys    []string
	flags   uint32
	exptime int32
	delta   uint64
	data    []byte
	noreply bool
}

var crlf = []byte("\r\n")

// parseCommand splits one request payload. Storage commands carry a data
// block on the following line sized by the <bytes> field.
func parseCommand(payload []byte) (command, error) {
	i := bytes.Index(payload, crlf)
	if i < 0 {
		return command{}, fmt.Errorf("cache: unterminated command line")
	}
	fields := strings.Fields(string(payload[:i]))
	if len(fields) == 0 {
		return command{}, fmt.Errorf("cache: empty command")
	}
	rest := payload[i+2:]

	cmd := command{name: fields[0]}
	switch cmd.name {
	case "get", "gets":
		if len(fields) < 2 {
			return command{}, fmt.Errorf("cache: %s needs at least one key", cmd.name)
		}
		cmd.keys = fields[1:]
		return cmd, nil

	case "set", "add", "replace":
		if len(fields) != 5 && len(fields) != 6 {
			return command{}, fmt.Errorf("cache: malformed %s command", cmd.name)
		}
		cmd.keys = fields[1:2]
		flags, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return command{}, fmt.Errorf("cache: bad flags %q", fields[2])
		}
		cmd.flags = uint32(flags)
		exp, err := strconv.ParseInt(fields[3], 10, 32)
		if err != nil {
			return command{}, fmt.Errorf("cache: bad exptime %q", fields[3])
		}
		cmd.exptime = int32(exp)
		size, err := strconv.Atoi(fields[4])
		if err != nil || size < 0 {
			return command{}, fmt.Errorf("cache: bad bytes %q", fields[4])
		}
		if len(fields) == 6 {
			if fields[5] != "noreply" {
				return command{}, fmt.Errorf("cache: unexpected token %q", fields[5])
			}
			cmd.noreply = true
		}
		if len(rest) < size+2 || !bytes.Equal(rest[size:size+2], crlf) {
			return command{}, fmt.Errorf("cache: data block does not match %d bytes", size)
		}
		cmd.data = rest[:size]
		return cmd, nil

	case "incr", "decr":
		if len(fields) != 3 && len(fields) != 4 {
			return command{}, fmt.Errorf("cache: malformed %s command", cmd.name)
		}
		cmd.keys = fields[1:2]
		delta, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return command{}, fmt.Errorf("cache: bad delta %q", fields[2])
		}
		cmd.delta = delta
		if len(fields) == 4 {
			if fields[3] != "noreply" {
				return command{}, fmt.Errorf("cache: unexpected token %q", fields[3])
			}
			cmd.noreply = true
		}
		return cmd, nil

	case "delete":
		if len(fields) < 2 {
			return command{}, fmt.Errorf("cache: delete needs a key")
		}
		cmd.keys = fields[1:2]
		return cmd, nil

	case "version":
		return cmd, nil

	default:
		return command{}, fmt.Errorf("cache: unknown command %q", cmd.name)
	}
}

// renderValue lays out one VALUE block the way it appears on a memcache
// wire. Flags are not persisted, so they always render as zero.
func renderValue(key, val string) []byte {
	out := make([]byte, 0, len(key)+len(val)+32)
	out = append(out, fmt.Sprintf("VALUE %s 0 %d\r\n", key, len(val))...)
	out = append(out, val...)
	out = append(out, crlf...)
	return out
}
