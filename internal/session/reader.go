package session

import (
	"io"
	"net"

	"github.com/fren29/tiodb/internal/wire"
)

// TextHandler dispatches one parsed text command against s, returning
// the raw answer frame to send (nil for no answer) and, if non-zero,
// the number of raw payload bytes the caller must read next and
// redeliver through TextHandler.Continue before an answer is produced
// — the `more_data` mechanism spec.md §4.1 requires. Full command
// grammar is out of this package's scope (spec.md §9); Serve only
// knows how to read the payload and hand it back.
type TextHandler interface {
	Dispatch(s *Session, cmd wire.Command) (answer []byte, moreData int)
	Continue(s *Session, cmd wire.Command, payload []byte) (answer []byte)
}

// BinaryHandler dispatches one decoded binary message against s,
// returning the fields of the reply message (nil for no reply).
type BinaryHandler interface {
	Dispatch(s *Session, fields []wire.Field) []wire.Field
}

// Serve runs the protocol demultiplexer loop for one connection until
// the client disconnects or a read fails: text commands by default,
// latching permanently to length-prefixed binary framing on `protocol
// binary`, per spec.md §4.1. It owns no retry or reconnect logic —
// that belongs to whatever accepts the net.Listener.
func Serve(s *Session, conn net.Conn, text TextHandler, bin BinaryHandler) {
	lr := wire.NewLineReader(conn)

	for s.IsValid() {
		cmd, err := lr.ReadCommandLine()
		if err != nil {
			if err != io.EOF {
				s.Fail(err.Error())
			} else {
				s.Close()
			}
			return
		}

		if cmd.Verb == "protocol" && len(cmd.Params) == 1 && cmd.Params[0] == "binary" {
			s.enqueue(wire.GoingBinary())
			s.SetBinaryProtocol()
			serveBinary(s, lr.Reader(), bin)
			return
		}

		answer, moreData := text.Dispatch(s, cmd)
		if moreData > 0 {
			payload, err := lr.ReadPayload(moreData)
			if err != nil {
				s.Fail(err.Error())
				return
			}
			answer = text.Continue(s, cmd, payload)
		}

		if answer != nil {
			s.enqueue(answer)
		}
	}
}

// serveBinary runs the length-prefixed TLV half of the demultiplexer
// after the one-way protocol latch, per spec.md §6.2.
func serveBinary(s *Session, r io.Reader, bin BinaryHandler) {
	for s.IsValid() {
		bodyLen, compressed, err := wire.ReadHeader(r)
		if err != nil {
			if err != io.EOF {
				s.Fail(err.Error())
			} else {
				s.Close()
			}
			return
		}

		body, err := wire.ReadBody(r, bodyLen, compressed)
		if err != nil {
			s.Fail(err.Error())
			return
		}

		fields, err := wire.DecodeFields(body)
		if err != nil {
			s.Fail(err.Error())
			return
		}

		if reply := bin.Dispatch(s, fields); reply != nil {
			s.enqueue(wire.MessageBytes(reply))
		}
	}
}
