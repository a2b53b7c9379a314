package session

import (
	"container/list"
	"net"
	"sync"
	"sync/atomic"

	"github.com/fren29/tiodb/internal/metrics"
	"github.com/fren29/tiodb/internal/wire"
)

// sendPipeline is the single-writer send queue described in spec.md
// §4.5: a FIFO of frames with an accompanying pending-bytes counter, a
// hard cap that's terminal, and soft watermarks the server can poll to
// throttle publishing policy. Shaped after smux.Session's
// sendLoop/writes channel, but using an explicit FIFO (container/list)
// instead of a channel so "pending bytes" stays an exact, inspectable
// invariant rather than an implicit channel depth. Each queued frame is
// itself a slice of segments (header, key, value, metadata), written
// with a single writev(2) via wire.WriteSegments — the same
// scatter-gather shape smux.sendLoop builds for its own header+payload
// vec, rather than a pre-flattened buffer dressed up as one "vector".
type sendPipeline struct {
	conn net.Conn
	sess *Session

	mu      sync.Mutex
	queue   *list.List // of [][]byte
	writing bool
	closed  bool

	pendingBytes atomic.Int64
}

func newSendPipeline(conn net.Conn, sess *Session) *sendPipeline {
	return &sendPipeline{conn: conn, sess: sess, queue: list.New()}
}

// PendingBytes returns the current queued+inflight byte count, the
// invariant spec.md §8 requires to never exceed the hard cap while the
// session is valid.
func (p *sendPipeline) PendingBytes() int64 { return p.pendingBytes.Load() }

func segmentsLen(segments [][]byte) int64 {
	var n int64
	for _, seg := range segments {
		n += int64(len(seg))
	}
	return n
}

// enqueue appends segments — one logical event's worth of buffers — to
// the FIFO as a single unit and, if the hard cap was just breached,
// tears the session down. The segments are handed to the socket
// together via wire.WriteSegments, never copied into one buffer first,
// matching spec.md §4.5's contiguous-unit requirement without
// defeating scatter-gather I/O.
func (p *sendPipeline) enqueue(segments [][]byte) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	size := segmentsLen(segments)
	newTotal := p.pendingBytes.Add(size)
	metrics.PendingBytes.Add(float64(size))

	if newTotal > HardSendCap {
		p.mu.Unlock()
		p.sess.onBackpressureOverrun()
		return
	}

	p.queue.PushBack(segments)
	startWrite := !p.writing
	if startWrite {
		p.writing = true
	}
	p.mu.Unlock()

	if startWrite {
		p.writeNext()
	}
}

// writeNext pops the head of the queue and performs a single blocking
// vectorised write, then loops to the next queued frame or, once the
// queue drains, triggers the snapshot pump via onSendDrained — the
// "callback-driven pipeline"
// pattern spec.md §9 calls out as producing natural flow control.
func (p *sendPipeline) writeNext() {
	for {
		p.mu.Lock()
		front := p.queue.Front()
		if front == nil {
			p.writing = false
			p.mu.Unlock()
			return
		}
		p.queue.Remove(front)
		p.mu.Unlock()

		segments := front.Value.([][]byte)
		size := segmentsLen(segments)
		n, err := wire.WriteSegments(p.conn, segments)

		p.pendingBytes.Add(-size)
		metrics.PendingBytes.Add(-float64(size))
		if n > 0 {
			p.sess.sentBytes.Add(int64(n))
			metrics.SentBytesTotal.Add(float64(n))
		}

		if err != nil {
			p.mu.Lock()
			p.writing = false
			p.mu.Unlock()
			p.sess.onWriteError(err)
			return
		}

		p.mu.Lock()
		empty := p.queue.Len() == 0
		if empty {
			p.writing = false
		}
		p.mu.Unlock()

		if empty {
			p.sess.onSendDrained()
			return
		}
	}
}

// close marks the pipeline closed; further enqueue calls are no-ops.
func (p *sendPipeline) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}
