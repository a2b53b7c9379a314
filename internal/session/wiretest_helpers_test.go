package session

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fren29/tiodb/internal/tiodata"
	"github.com/fren29/tiodb/internal/wire"
)

// recordedEvent is a decoded text-mode event frame, reconstructed from
// raw bytes for assertions in tests that exercise the slice rewrite
// rule end to end through the real wire encoding.
type recordedEvent struct {
	handle    uint64
	eventName string
	key       tiodata.Data
	value     tiodata.Data
	metadata  tiodata.Data
}

// readEvents decodes every text event frame written to raw, in order.
// `answer ...` lines (which carry no payload) are skipped; any other
// non-event line fails the test.
func readEvents(t *testing.T, raw []byte) []recordedEvent {
	t.Helper()
	lr := wire.NewLineReader(bytes.NewReader(raw))

	var out []recordedEvent
	for {
		cmd, err := lr.ReadCommandLine()
		if err != nil {
			break
		}
		if cmd.Verb == "answer" {
			continue
		}
		require.Equal(t, "event", cmd.Verb)
		require.GreaterOrEqual(t, len(cmd.Params), 2)

		handle, err := strconv.ParseUint(cmd.Params[0], 10, 64)
		require.NoError(t, err)

		ev := recordedEvent{handle: handle, eventName: cmd.Params[1]}
		rest := cmd.Params[2:]

		for len(rest) >= 3 {
			name, typeTag, lenStr := rest[0], rest[1], rest[2]
			rest = rest[3:]

			n, err := strconv.Atoi(lenStr)
			require.NoError(t, err)
			payload, err := lr.ReadPayload(n)
			require.NoError(t, err)

			d := decodeTagged(t, typeTag, payload)
			switch name {
			case "key":
				ev.key = d
			case "value":
				ev.value = d
			case "metadata":
				ev.metadata = d
			}
		}

		out = append(out, ev)
	}
	return out
}

func mustInt(d tiodata.Data) int64 {
	n, _ := d.AsInt()
	return n
}

func decodeTagged(t *testing.T, typeTag string, payload []byte) tiodata.Data {
	t.Helper()
	switch typeTag {
	case "int":
		n, err := strconv.ParseInt(string(payload), 10, 64)
		require.NoError(t, err)
		return tiodata.NewInt(n)
	case "double":
		f, err := strconv.ParseFloat(string(payload), 64)
		require.NoError(t, err)
		return tiodata.NewDouble(f)
	default:
		return tiodata.NewBytes(payload)
	}
}
