package session

import (
	"github.com/fren29/tiodb/internal/container"
	"github.com/fren29/tiodb/internal/tiodata"
)

// SetupDiff subscribes destination to mirror every future mutation of
// the container bound to handle, per spec.md §4.6. The "__none__"
// start sentinel means "updates only" — the mirror never replays a
// snapshot into destination, matching
// TioTcpSession::SetupDiffContainer's use of the same sentinel.
func (s *Session) SetupDiff(handle uint64, destination container.Container) error {
	c, _, err := s.GetContainer(handle)
	if err != nil {
		return err
	}

	cookie, err := c.Subscribe(mapContainerMirror(c, destination), "__none__")
	if err != nil {
		return err
	}

	s.mu.Lock()
	if old, exists := s.diffs[handle]; exists {
		c.Unsubscribe(old.cookie)
	}
	s.diffs[handle] = &diffEntry{destination: destination, cookie: cookie}
	s.mu.Unlock()
	return nil
}

// DiffDestination returns the mirror destination registered for
// handle, and whether one exists, matching
// TioTcpSession::GetDiffDestinationContainer.
func (s *Session) DiffDestination(handle uint64) (container.Container, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.diffs[handle]
	if !ok {
		return nil, false
	}
	return e.destination, true
}

// StopDiffs unsubscribes every diff mirror the session has set up.
func (s *Session) StopDiffs() {
	s.mu.Lock()
	diffs := s.diffs
	s.diffs = make(map[uint64]*diffEntry)
	s.mu.Unlock()

	for handle, e := range diffs {
		if c, _, err := s.GetContainer(handle); err == nil {
			c.Unsubscribe(e.cookie)
		}
	}
}

// mapContainerMirror binds source and destination into a
// container.EventCallback that replays set/insert/delete/clear
// mutations from source onto destination, grounded on the reference's
// free function MapContainerMirror. The delete/clear branch is an
// if/else if pair, not three independent ifs: an event named "delete"
// can never also run the clear branch, matching the original's
// structure exactly (not three independent conditions).
func mapContainerMirror(source, destination container.Container) container.EventCallback {
	return func(eventName string, key, value, metadata tiodata.Data) {
		if eventName == "set" || eventName == "insert" {
			destination.Set(key, value, eventName)
		}
		if eventName == "delete" {
			destination.Delete(key, eventName)
		} else if eventName == "clear" {
			rs, err := source.Query(0, 0, tiodata.None)
			if err != nil {
				return
			}
			for {
				k, _, _, ok := rs.GetRecord()
				if !ok {
					break
				}
				destination.Set(k, tiodata.None, "delete")
				if !rs.MoveNext() {
					break
				}
			}
		}
	}
}
