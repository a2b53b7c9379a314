package session

import (
	"github.com/fren29/tiodb/internal/tiodata"
	"github.com/fren29/tiodb/internal/wire"
)

// BinaryWaitAndPopNext arms a one-shot pop on handle, per spec.md
// §4.7. Only one pop may be pending per handle at a time; a second
// call while one is armed returns ErrAlreadyPendingPop, matching
// TioTcpSession::BinaryWaitAndPopNext's "already pending" check.
func (s *Session) BinaryWaitAndPopNext(handle uint64) error {
	c, _, err := s.GetContainer(handle)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.poppers[handle]; exists {
		s.mu.Unlock()
		return ErrAlreadyPendingPop
	}
	s.mu.Unlock()

	popID, err := c.WaitAndPopNext(s.onPopEvent(handle))
	if err != nil {
		return err
	}

	// A zero popID means the pop fired synchronously and isn't
	// pending, matching the reference's "id is zero if the pop is not
	// pending" comment.
	if popID != 0 {
		s.mu.Lock()
		s.poppers[handle] = popID
		s.mu.Unlock()
	}
	return nil
}

// onPopEvent binds handle into the callback WaitAndPopNext arms. The
// popper entry is cleared before the event is sent, so a client
// re-arming from within its own response handler isn't rejected by
// the already-pending check.
func (s *Session) onPopEvent(handle uint64) func(eventName string, key, value, metadata tiodata.Data) {
	return func(eventName string, key, value, metadata tiodata.Data) {
		s.mu.Lock()
		delete(s.poppers, handle)
		s.mu.Unlock()

		if !s.IsValid() {
			return
		}

		if s.IsBinaryProtocol() {
			s.enqueue(wire.MessageBytes(wire.BuildEventMessage(handle, eventName, key, value, metadata)))
			return
		}
		s.enqueueSegments(wire.EventSegments(handle, eventName, key, value, metadata))
	}
}
