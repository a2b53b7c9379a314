package session

import (
	"github.com/fren29/tiodb/internal/container"
	"github.com/fren29/tiodb/internal/tiodata"
	"github.com/fren29/tiodb/internal/wire"
)

// Subscribe implements the text-mode subscribe command, per spec.md
// §4.3. Duplicate subscription on handle replies `answer error already
// subscribed` and is otherwise a no-op, matching
// TioTcpSession::Subscribe exactly.
func (s *Session) Subscribe(handle uint64, start string, filterEnd int, sendAnswer bool) error {
	c, _, err := s.GetContainer(handle)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.subscriptions[handle]; exists {
		s.mu.Unlock()
		s.enqueue(wire.AnswerError("already subscribed"))
		return nil
	}
	s.mu.Unlock()

	sub := &Subscription{handle: handle, container: c, filterStart: 0, filterEnd: filterEnd}

	if numericStart, ok := parseSnapshotStart(start); ok && c.Ordered() {
		s.beginIndexedSnapshot(sub, numericStart)
		if sendAnswer {
			s.enqueue(wire.AnswerOK())
		}
		s.pumpSnapshots()
		return nil
	}

	s.mu.Lock()
	s.subscriptions[handle] = sub
	s.mu.Unlock()

	cookie, err := c.Subscribe(s.eventCallback(sub), start)
	if err != nil {
		s.mu.Lock()
		delete(s.subscriptions, handle)
		s.mu.Unlock()
		s.enqueue(wire.AnswerError(err.Error()))
		return nil
	}
	sub.cookie = cookie

	if sendAnswer {
		s.enqueue(wire.AnswerOK())
	}
	return nil
}

// BinarySubscribe implements the binary-mode subscribe command.
// Duplicate subscription fails with ErrAlreadySubscribed, per
// spec.md §4.3 — unlike the text path, the binary path surfaces a
// structured error rather than answering and continuing.
//
// Unlike the original BinarySubscribe (which answered success *before*
// calling container.Subscribe, a race the source comment itself flags
// as broken — see SPEC_FULL.md "Supplemented Features" #2), this
// subscribes first and only then signals success, so a failed
// subscribe never leaves the client believing it succeeded.
func (s *Session) BinarySubscribe(handle uint64, start string, sendAnswer func()) error {
	c, _, err := s.GetContainer(handle)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.subscriptions[handle]; exists {
		s.mu.Unlock()
		return ErrAlreadySubscribed
	}
	s.mu.Unlock()

	sub := &Subscription{handle: handle, container: c, binary: true, filterStart: 0, filterEnd: -1}

	if numericStart, ok := parseSnapshotStart(start); ok && c.Ordered() {
		s.mu.Lock()
		s.subscriptions[handle] = sub
		s.mu.Unlock()
		s.beginIndexedSnapshot(sub, numericStart)
		if sendAnswer != nil {
			sendAnswer()
		}
		s.pumpSnapshots()
		return nil
	}

	s.mu.Lock()
	s.subscriptions[handle] = sub
	s.mu.Unlock()

	cookie, err := c.Subscribe(s.eventCallback(sub), start)
	if err != nil {
		s.mu.Lock()
		delete(s.subscriptions, handle)
		s.mu.Unlock()
		return err
	}
	sub.cookie = cookie

	if sendAnswer != nil {
		sendAnswer()
	}
	return nil
}

// beginIndexedSnapshot installs sub into the subscription and
// pending-snapshot tables, preferring a Query cursor over indexed Get
// calls when the container supplies one, per spec.md §4.3/§4.4.
func (s *Session) beginIndexedSnapshot(sub *Subscription, numericStart int) {
	sub.eventName = snapshotEventName(sub.container)
	sub.filterStart = numericStart
	sub.nextRecord = numericStart

	if rs, err := sub.container.Query(numericStart, 0, tiodata.None); err == nil {
		sub.resultSet = rs
	}

	s.mu.Lock()
	s.subscriptions[sub.handle] = sub
	s.pendingSnapshots[sub.handle] = sub
	s.mu.Unlock()
}

// Unsubscribe cancels a live or pending subscription on handle. A
// no-op if handle has no subscription, per spec.md §8's idempotence
// law.
func (s *Session) Unsubscribe(handle uint64) {
	s.mu.Lock()
	sub, ok := s.subscriptions[handle]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.subscriptions, handle)
	delete(s.pendingSnapshots, handle)
	s.mu.Unlock()

	if sub.cookie != 0 {
		sub.container.Unsubscribe(sub.cookie)
	}
}

// eventCallback binds sub into a container.EventCallback closure. It
// upgrades-or-drops on every invocation by checking session validity,
// the Go counterpart of the weak-reference discipline spec.md §9
// describes for avoiding a session/container ownership cycle.
func (s *Session) eventCallback(sub *Subscription) container.EventCallback {
	return func(eventName string, key, value, metadata tiodata.Data) {
		s.onEvent(sub, eventName, key, value, metadata)
	}
}

// onEvent is the container callback entry point, spec.md §4.3 "Event
// reception". Events are dropped once the session is invalid — late
// callbacks racing step 2 of teardown are safe no-ops.
func (s *Session) onEvent(sub *Subscription, eventName string, key, value, metadata tiodata.Data) {
	if !s.IsValid() {
		return
	}
	s.dispatchSliceRewrite(sub, eventName, key, value, metadata)
}

// sendEvent writes one event frame for sub, in whichever protocol mode
// it was established under.
func (s *Session) sendEvent(sub *Subscription, eventName string, key, value, metadata tiodata.Data) {
	if sub.binary {
		s.enqueue(wire.MessageBytes(wire.BuildEventMessage(sub.handle, eventName, key, value, metadata)))
		return
	}
	s.enqueueSegments(wire.EventSegments(sub.handle, eventName, key, value, metadata))
}
