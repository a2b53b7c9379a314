// Package session implements Tio's per-client session: handle/subscription
// bookkeeping, the slice-rewriting subscription engine, snapshot
// streaming, the backpressure-aware send pipeline, diff mirrors, the
// wait-and-pop-next popper, and teardown. See SPEC_FULL.md.
package session

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fren29/tiodb/internal/container"
	"github.com/fren29/tiodb/internal/metrics"
	"github.com/fren29/tiodb/internal/tiodata"
)

// Limits, per spec.md §4.5. Exposed as variables (not constants) so a
// server can tune them, the way the reference's
// PENDING_SEND_SIZE_*_THRESHOLD statics were tunable.
var (
	HardSendCap  int64 = 100 * 1024 * 1024
	HighWatermark int64 = 1024 * 1024
	LowWatermark  int64 = 512 * 1024

	// SnapshotBurstLimit bounds how many iterations a single pump tick
	// runs before yielding, per spec.md §4.4. Each iteration advances
	// every pending snapshot by one record.
	SnapshotBurstLimit = 10000
)

type handleEntry struct {
	container container.Container
	name      string
}

type diffEntry struct {
	destination container.Container
	cookie      uint64
}

// Session owns one client connection. All exported operations are
// safe to call from the connection's own read/write goroutines and
// from container event-callback goroutines; mu guards every piece of
// session state, emulating the single-threaded cooperative model
// spec.md §5 describes (the reference runs on one asio strand; Go has
// no equivalent single-loop guarantee, so a mutex stands in for it).
type Session struct {
	id  string
	log *logrus.Entry

	send *sendPipeline

	mu               sync.Mutex
	valid            atomic.Bool
	binaryProtocol   atomic.Bool
	pumping          atomic.Bool
	lastHandle       uint64
	lastQueryID      uint64
	handles          map[uint64]*handleEntry
	subscriptions    map[uint64]*Subscription
	pendingSnapshots map[uint64]*Subscription
	diffs            map[uint64]*diffEntry
	poppers          map[uint64]uint64
	tokens           []string

	sentBytes atomic.Int64
}

// New creates a Session bound to conn. log, if nil, defaults to an
// entry on logrus's standard logger.
func New(conn net.Conn, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	id := uuid.NewString()
	s := &Session{
		id:               id,
		handles:          make(map[uint64]*handleEntry),
		subscriptions:    make(map[uint64]*Subscription),
		pendingSnapshots: make(map[uint64]*Subscription),
		diffs:            make(map[uint64]*diffEntry),
		poppers:          make(map[uint64]uint64),
	}
	s.log = log.WithField("session_id", id)
	s.valid.Store(true)
	s.send = newSendPipeline(conn, s)

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	metrics.SessionsOpened.Inc()
	return s
}

// ID returns the session's unique identifier, used in logs.
func (s *Session) ID() string { return s.id }

// IsValid reports whether the session is still accepting work.
func (s *Session) IsValid() bool { return s.valid.Load() }

// SentBytes returns the cumulative bytes written to the socket,
// supplementing the distilled spec with the reference's sentBytes_
// counter (see SPEC_FULL.md "Supplemented Features").
func (s *Session) SentBytes() int64 { return s.sentBytes.Load() }

// SetBinaryProtocol one-way latches binary framing, called by the
// reader after the `protocol binary` handshake.
func (s *Session) SetBinaryProtocol() { s.binaryProtocol.Store(true) }

// IsBinaryProtocol reports the current framing mode.
func (s *Session) IsBinaryProtocol() bool { return s.binaryProtocol.Load() }

// AddToken records an opaque auth token for the dispatcher; spec.md
// treats auth policy as out of scope, the session only holds the
// tokens.
func (s *Session) AddToken(token string) {
	s.mu.Lock()
	s.tokens = append(s.tokens, token)
	s.mu.Unlock()
}

// Tokens returns the tokens recorded via AddToken.
func (s *Session) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// Fail marks the session invalid and tears down all resources, the
// counterpart of TioTcpSession::CheckError: called whenever a socket
// read/write reports an error.
func (s *Session) Fail(reason string) {
	if !s.valid.CompareAndSwap(true, false) {
		return
	}
	s.unsubscribeAll()
	s.log.WithField("reason", reason).Info("session failed")
	metrics.SessionsClosed.WithLabelValues(reason).Inc()
}

// Close deliberately shuts the session down (a clean disconnect), the
// counterpart of a server-initiated close in spec.md §4.6.
func (s *Session) Close() {
	if !s.valid.CompareAndSwap(true, false) {
		return
	}
	s.unsubscribeAll()
	s.send.close()
	metrics.SessionsClosed.WithLabelValues("closed").Inc()
}

// onWriteError is invoked by the send pipeline when a socket write
// fails.
func (s *Session) onWriteError(err error) {
	s.Fail("io-failure: " + err.Error())
}

// onBackpressureOverrun is invoked by the send pipeline when the hard
// send cap is exceeded. Equivalent to TioTcpSession::SendString's
// "disconnect him" branch.
func (s *Session) onBackpressureOverrun() {
	if !s.valid.CompareAndSwap(true, false) {
		return
	}
	s.unsubscribeAll()
	metrics.BackpressureTeardowns.Inc()
	metrics.SessionsClosed.WithLabelValues("backpressure").Inc()
	s.log.Warn("session exceeded send hard cap, disconnecting")
}

// onSendDrained is invoked by the send pipeline whenever the outgoing
// queue empties after a write completes — the trigger point for the
// snapshot pump, per spec.md §4.4 ("the empty-queue trigger").
func (s *Session) onSendDrained() {
	s.pumpSnapshots()
}

// enqueue hands a pre-composed single-buffer frame to the send
// pipeline. No-op once the session is invalid.
func (s *Session) enqueue(frame []byte) {
	s.enqueueSegments([][]byte{frame})
}

// enqueueSegments hands a multi-buffer frame (e.g. an event's header,
// key, value and metadata as distinct segments) to the send pipeline,
// which writes it with a single vectorised write rather than
// flattening it first. No-op once the session is invalid.
func (s *Session) enqueueSegments(segments [][]byte) {
	if !s.IsValid() {
		return
	}
	s.send.enqueue(segments)
}
