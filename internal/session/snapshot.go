package session

import (
	"github.com/fren29/tiodb/internal/metrics"
	"github.com/fren29/tiodb/internal/tiodata"
)

// pumpSnapshots drains pendingSnapshots cooperatively in a bounded
// burst, per spec.md §4.4. Triggered right after a snapshot-style
// subscribe and on every send-completion with an empty queue
// (onSendDrained). Each record is delivered through the same event
// path a live mutation would use (onEvent), so the slice rewrite rule
// naturally filters snapshot records that fall outside a subscription's
// window, exactly as the worked examples in spec.md §8 require.
func (s *Session) pumpSnapshots() {
	// Re-entrancy guard: writeNext calls onSendDrained synchronously
	// after a write completes, and a snapshot write may itself complete
	// synchronously inside this same call (the queue was empty before
	// it). Without this guard that re-enters pumpSnapshots from inside
	// its own call stack, growing one frame per record instead of
	// looping. CompareAndSwap makes a busy pump a no-op for the
	// reentrant caller; the deferred recheck below picks up any work
	// that arrived while the pump was running, by restarting on a new
	// goroutine instead of growing the stack further.
	if !s.pumping.CompareAndSwap(false, true) {
		return
	}
	defer func() {
		s.pumping.Store(false)
		s.mu.Lock()
		more := len(s.pendingSnapshots) > 0
		s.mu.Unlock()
		if more {
			go s.pumpSnapshots()
		}
	}()

	for i := 0; i < SnapshotBurstLimit; i++ {
		s.mu.Lock()
		if len(s.pendingSnapshots) == 0 {
			s.mu.Unlock()
			return
		}
		subs := make([]*Subscription, 0, len(s.pendingSnapshots))
		for _, sub := range s.pendingSnapshots {
			subs = append(subs, sub)
		}
		s.mu.Unlock()

		var done []uint64
		for _, sub := range subs {
			if s.stepSnapshot(sub) {
				done = append(done, sub.handle)
			}
		}

		if len(done) > 0 {
			s.mu.Lock()
			for _, h := range done {
				delete(s.pendingSnapshots, h)
			}
			s.mu.Unlock()
		}

		metrics.SnapshotPumpIterations.Inc()

		s.mu.Lock()
		empty := len(s.pendingSnapshots) == 0
		s.mu.Unlock()
		if empty {
			return
		}
	}
}

// stepSnapshot advances one subscription's snapshot by a single
// record. Returns true once the subscription has completed and been
// handed over to the live stream.
func (s *Session) stepSnapshot(sub *Subscription) bool {
	if sub.resultSet != nil {
		key, value, metadata, ok := sub.resultSet.GetRecord()
		if ok {
			s.onEvent(sub, sub.eventName, key, value, metadata)
			sub.nextRecord++
		}
		if !ok || !sub.resultSet.MoveNext() {
			s.attachLive(sub)
			return true
		}
		return false
	}

	recordCount := sub.container.RecordCount()
	if recordCount > 0 {
		key := tiodata.NewInt(int64(sub.nextRecord))
		value, metadata, err := sub.container.Get(key)
		if err == nil {
			s.onEvent(sub, sub.eventName, key, value, metadata)
		}
		sub.nextRecord++
	}

	if recordCount == 0 || sub.nextRecord >= recordCount {
		s.attachLive(sub)
		return true
	}
	return false
}

// attachLive hands a completed snapshot subscription over to the
// container's live callback with an empty start ("no snapshot"),
// storing the returned cookie. Because this only happens after the
// snapshot has fully drained, events that occurred mid-snapshot are
// not observed by the client — spec.md §4.4's accepted limitation.
func (s *Session) attachLive(sub *Subscription) {
	cookie, err := sub.container.Subscribe(s.eventCallback(sub), "")
	if err != nil {
		return
	}
	sub.cookie = cookie
}
