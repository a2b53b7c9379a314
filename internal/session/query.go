package session

import (
	"github.com/fren29/tiodb/internal/container"
	"github.com/fren29/tiodb/internal/tiodata"
	"github.com/fren29/tiodb/internal/wire"
)

// Query runs a one-shot query against handle's container and streams
// the result set over the wire in whichever protocol mode the session
// is in, per spec.md §6: text mode emits the `answer ok query <id>`
// / `query <id> item ...` / `query <id> end` triad; binary mode emits
// a QUERY_ITEM message per record followed by an empty item signaling
// end-of-stream. Grounded on TioTcpSession::SendResultSet /
// SendBinaryResultSet.
func (s *Session) Query(handle uint64, start, limit int) error {
	c, _, err := s.GetContainer(handle)
	if err != nil {
		return err
	}

	rs, err := c.Query(start, limit, tiodata.None)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.lastQueryID++
	queryID := s.lastQueryID
	s.mu.Unlock()

	if s.IsBinaryProtocol() {
		s.streamBinaryQuery(queryID, rs)
		return nil
	}
	s.streamTextQuery(queryID, rs)
	return nil
}

// streamTextQuery drains rs into the `answer ok query <id>` /
// `query <id> item ...` / `query <id> end` frame sequence.
func (s *Session) streamTextQuery(queryID uint64, rs container.ResultSet) {
	s.enqueue(wire.QueryBegin(queryID))
	for {
		key, value, metadata, ok := rs.GetRecord()
		if !ok {
			break
		}
		s.enqueue(wire.QueryItem(queryID, key, value, metadata))
		if !rs.MoveNext() {
			break
		}
	}
	s.enqueue(wire.QueryEnd(queryID))
}

// streamBinaryQuery drains rs into a QUERY_ITEM message per record,
// terminated by an empty (ok=false) item per spec.md §6.
func (s *Session) streamBinaryQuery(queryID uint64, rs container.ResultSet) {
	for {
		key, value, metadata, ok := rs.GetRecord()
		if !ok {
			break
		}
		s.enqueue(wire.MessageBytes(wire.BuildQueryItemMessage(queryID, key, value, metadata, true)))
		if !rs.MoveNext() {
			break
		}
	}
	s.enqueue(wire.MessageBytes(wire.BuildQueryItemMessage(queryID, tiodata.None, tiodata.None, tiodata.None, false)))
}
