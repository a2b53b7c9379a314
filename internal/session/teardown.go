package session

// unsubscribeAll releases every resource a session holds across its
// containers, grounded on TioTcpSession::UnsubscribeAll. Pending
// snapshots are dropped before live subscriptions are cancelled,
// matching the reference; poppers and diffs are released before the
// handle table is cleared, since both look their containers up
// through it.
func (s *Session) unsubscribeAll() {
	s.mu.Lock()
	s.pendingSnapshots = make(map[uint64]*Subscription)

	subs := s.subscriptions
	s.subscriptions = make(map[uint64]*Subscription)

	poppers := s.poppers
	s.poppers = make(map[uint64]uint64)
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.cookie != 0 {
			sub.container.Unsubscribe(sub.cookie)
		}
	}

	for handle, popID := range poppers {
		if c, _, err := s.GetContainer(handle); err == nil {
			c.CancelWaitAndPopNext(popID)
		}
	}

	s.StopDiffs()

	s.mu.Lock()
	s.handles = make(map[uint64]*handleEntry)
	s.mu.Unlock()
}
