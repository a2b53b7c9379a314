// Package wire implements Tio's text and binary event/answer framing:
// the boundary-only wire awareness spec.md requires of the session
// (full command grammar is explicitly out of scope).
package wire

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	sbufio "github.com/sagernet/sing/common/bufio"

	"github.com/fren29/tiodb/internal/tiodata"
)

// MaxCommandPayload is the hard ceiling on a `more_data` payload size;
// spec.md §4.1 requires N < 256 MiB.
const MaxCommandPayload = 256 * 1024 * 1024

// Command is a parsed text-mode verb and its parameters.
type Command struct {
	Verb   string
	Params []string
}

// ParseCommandLine splits a CRLF/LF-stripped text line into a Command.
// The wire grammar beyond framing is out of this module's scope, so
// this is a plain whitespace tokenizer, matching the reference's use of
// boost::split on whitespace for its Command::Parse.
func ParseCommandLine(line string) Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}
	}
	return Command{Verb: fields[0], Params: fields[1:]}
}

// StripLineEnding removes a trailing \r\n or \n, matching
// TioTcpSession::OnReadCommand's `if(*(str.end()-1) == '\r') str.erase(...)`.
func StripLineEnding(line string) string {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line
}

// EventSegments composes a text-mode event as a sequence of distinct
// buffers — the header line, then one buffer per present key/value/
// metadata payload — instead of one pre-concatenated buffer. This is
// the shape smux.sendLoop builds for its header+payload vec before
// handing it to bufio.WriteVectorised: real scatter-gather segments,
// not a single flattened slice dressed up as one. The send pipeline
// enqueues this slice directly and writes it with a single writev(2)
// when the socket supports it, per spec.md §4.5's requirement that a
// logical event's bytes reach the wire as a contiguous unit without
// requiring them to be copied into one buffer first.
func EventSegments(handle uint64, eventName string, key, value, metadata tiodata.Data) [][]byte {
	var header bytes.Buffer
	fmt.Fprintf(&header, "event %d %s", handle, eventName)

	if !key.IsAbsent() {
		fmt.Fprintf(&header, " key %s %d", key.TypeTag(), key.Len())
	}
	if !value.IsAbsent() {
		fmt.Fprintf(&header, " value %s %d", value.TypeTag(), value.Len())
	}
	if !metadata.IsAbsent() {
		fmt.Fprintf(&header, " metadata %s %d", metadata.TypeTag(), metadata.Len())
	}
	header.WriteString("\r\n")

	segments := [][]byte{header.Bytes()}
	if !key.IsAbsent() {
		segments = append(segments, appendCRLF(key.Bytes()))
	}
	if !value.IsAbsent() {
		segments = append(segments, appendCRLF(value.Bytes()))
	}
	if !metadata.IsAbsent() {
		segments = append(segments, appendCRLF(metadata.Bytes()))
	}
	return segments
}

// appendCRLF copies b and appends a trailing CRLF, since the segments
// EventSegments returns must not alias the TioData's own backing array.
func appendCRLF(b []byte) []byte {
	out := make([]byte, len(b)+2)
	copy(out, b)
	out[len(out)-2] = '\r'
	out[len(out)-1] = '\n'
	return out
}

// WriteSegments writes a multi-buffer frame to w as a single vectorised
// write when w supports scatter-gather I/O, falling back to sequential
// Write calls otherwise — the same fallback shape smux.sendLoop uses
// via sing/common/bufio's CreateVectorisedWriter/WriteVectorised.
func WriteSegments(w io.Writer, segments [][]byte) (int, error) {
	if bw, ok := sbufio.CreateVectorisedWriter(w); ok {
		return sbufio.WriteVectorised(bw, segments)
	}
	total := 0
	for _, seg := range segments {
		n, err := w.Write(seg)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteEvent writes a text-mode event frame to w, per spec.md §6's
// header+key+value+metadata layout.
func WriteEvent(w io.Writer, handle uint64, eventName string, key, value, metadata tiodata.Data) (int, error) {
	return WriteSegments(w, EventSegments(handle, eventName, key, value, metadata))
}

// EventBytes returns the composed frame as one flattened buffer, for
// callers that need a single byte slice (tests re-decoding the wire
// format; query/answer frames with no scatter-gather benefit).
func EventBytes(handle uint64, eventName string, key, value, metadata tiodata.Data) []byte {
	segments := EventSegments(handle, eventName, key, value, metadata)
	var b bytes.Buffer
	for _, seg := range segments {
		b.Write(seg)
	}
	return b.Bytes()
}

// AnswerOK returns `answer ok\r\n`.
func AnswerOK() []byte { return []byte("answer ok\r\n") }

// AnswerOKPayload returns `answer ok <payload>\r\n`.
func AnswerOKPayload(payload string) []byte {
	return []byte(fmt.Sprintf("answer ok %s\r\n", payload))
}

// AnswerError returns `answer error <message>\r\n`.
func AnswerError(message string) []byte {
	return []byte(fmt.Sprintf("answer error %s\r\n", message))
}

// GoingBinary is the literal success reply to `protocol binary`.
func GoingBinary() []byte { return []byte("going binary\r\n") }

// QueryBegin returns `answer ok query <id>\r\n`.
func QueryBegin(queryID uint64) []byte {
	return []byte(fmt.Sprintf("answer ok query %d\r\n", queryID))
}

// QueryEnd returns `query <id> end\r\n`.
func QueryEnd(queryID uint64) []byte {
	return []byte(fmt.Sprintf("query %d end\r\n", queryID))
}

// QueryItem composes one `query <id> item ...` frame, the same
// key/value/metadata layout as an event frame.
func QueryItem(queryID uint64, key, value, metadata tiodata.Data) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "query %d item", queryID)

	if !key.IsAbsent() {
		fmt.Fprintf(&b, " key %s %d", key.TypeTag(), key.Len())
	}
	if !value.IsAbsent() {
		fmt.Fprintf(&b, " value %s %d", value.TypeTag(), value.Len())
	}
	if !metadata.IsAbsent() {
		fmt.Fprintf(&b, " metadata %s %d", metadata.TypeTag(), metadata.Len())
	}
	b.WriteString("\r\n")

	if !key.IsAbsent() {
		b.Write(key.Bytes())
		b.WriteString("\r\n")
	}
	if !value.IsAbsent() {
		b.Write(value.Bytes())
		b.WriteString("\r\n")
	}
	if !metadata.IsAbsent() {
		b.Write(metadata.Bytes())
		b.WriteString("\r\n")
	}
	return b.Bytes()
}

// LineReader wraps a bufio.Reader to implement the text-mode half of
// the protocol demultiplexer: read up to '\n', strip '\r', skip empty
// lines (they can appear at binary/text boundaries, per spec.md §4.1).
type LineReader struct {
	br *bufio.Reader
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{br: bufio.NewReader(r)}
}

// ReadCommandLine returns the next non-empty parsed command line.
func (l *LineReader) ReadCommandLine() (Command, error) {
	for {
		line, err := l.br.ReadString('\n')
		if err != nil && line == "" {
			return Command{}, err
		}
		line = StripLineEnding(line)
		if line == "" {
			if err != nil {
				return Command{}, err
			}
			continue
		}
		return ParseCommandLine(line), nil
	}
}

// ReadPayload reads exactly n raw bytes following a command whose
// dispatch reported more_data = n. Enforces MaxCommandPayload.
func (l *LineReader) ReadPayload(n int) ([]byte, error) {
	if n < 0 || n >= MaxCommandPayload {
		return nil, ErrProtocolViolation
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(l.br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Reader exposes the underlying buffered reader so the caller can
// switch to binary framing after the protocol latch without losing
// already-buffered bytes.
func (l *LineReader) Reader() *bufio.Reader { return l.br }
