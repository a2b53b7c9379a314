package session

import "github.com/fren29/tiodb/internal/tiodata"

// legacyDeleteRefill, when true, reproduces the reference's
// documented quirk of using the *deleted* row's value/metadata for a
// window-refill push_back instead of refetching the new tail record.
// Defaults to false: this module fixes the quirk by default (refetching
// container[E] after the mutation), because spec.md §8's own worked
// scenario 3 requires the refetched value ("e", not the deleted "c")
// — see DESIGN.md's Open Question resolution. Flip to true to
// reproduce the original bug.
var legacyDeleteRefill = false

// dispatchSliceRewrite implements spec.md §4.3's slice rewrite rule,
// the algorithmic heart of the subscription engine. It mirrors
// TioTcpSession::ShouldSendEvent line for line: growing-window events
// (push_back/push_front refills) are sent immediately as they're
// discovered, so they always precede the shrinking-window event
// (delete/insert primary or its pop_front/pop_back companion), per the
// "never observe a transiently undersized window" ordering rule.
func (s *Session) dispatchSliceRewrite(sub *Subscription, eventName string, key, value, metadata tiodata.Data) {
	if sub.isDefaultWindow() {
		s.sendEvent(sub, eventName, key, value, metadata)
		return
	}

	recordCount := sub.container.RecordCount()

	var currentIndex int
	translated := eventName

	switch eventName {
	case "pop_front":
		currentIndex = 0
		translated = "delete"
	case "pop_back":
		currentIndex = recordCount - 1
		translated = "delete"
	case "push_front":
		currentIndex = 0
		translated = "insert"
	default:
		idx, ok := key.AsInt()
		if !ok {
			// Not an integer-keyed event (e.g. clear): forward
			// unchanged, per spec.md §4.3.
			s.sendEvent(sub, eventName, key, value, metadata)
			return
		}
		currentIndex = int(idx)
	}

	S := normalizeIndex(sub.filterStart, recordCount)
	E := normalizeIndex(sub.filterEnd, recordCount)

	switch translated {
	case "push_back":
		s.rewritePushBack(sub, currentIndex, S, E, key, value, metadata)
	case "delete":
		s.rewriteDelete(sub, currentIndex, recordCount, S, E, key, value, metadata)
	case "insert":
		s.rewriteInsert(sub, currentIndex, recordCount, S, E, key, value, metadata)
	case "set":
		s.rewriteSet(sub, currentIndex, S, E, value, metadata)
	default:
		s.sendEvent(sub, eventName, key, value, metadata)
	}
}

// rewritePushBack: spec.md §4.3 "push_back at i" rule.
func (s *Session) rewritePushBack(sub *Subscription, i, S, E int, key, value, metadata tiodata.Data) {
	if i < S || i > E {
		return // out of window: drop
	}
	if S == 0 {
		s.sendEvent(sub, "push_back", key, value, metadata)
		return
	}
	s.sendEvent(sub, "push_back", tiodata.NewInt(int64(i-S)), value, metadata)
}

// rewriteDelete: spec.md §4.3 "delete at i" rule, including the
// window-growing push_back refill and the window-shrinking pop_front
// shift, in that order.
func (s *Session) rewriteDelete(sub *Subscription, i, recordCount, S, E int, key, value, metadata tiodata.Data) {
	if i > E {
		return // out of window: drop
	}

	shouldSendPrimary := i > S

	// Growing: a new record enters from the right edge of the window.
	if recordCount > E {
		refillValue, refillMeta := value, metadata
		if !legacyDeleteRefill {
			if v, m, err := sub.container.Get(tiodata.NewInt(int64(E))); err == nil {
				refillValue, refillMeta = v, m
			}
		}
		s.sendEvent(sub, "push_back", tiodata.NewInt(int64(E+1-S)), refillValue, refillMeta)
	}

	// Shrinking: the window lost a record from its left edge.
	if i <= S {
		s.sendEvent(sub, "pop_front", tiodata.NewInt(0), tiodata.None, tiodata.None)
	}

	if !shouldSendPrimary {
		return
	}
	if S > 0 {
		s.sendEvent(sub, "delete", tiodata.NewInt(int64(i-S)), tiodata.None, tiodata.None)
		return
	}
	s.sendEvent(sub, "delete", key, value, metadata)
}

// rewriteInsert: spec.md §4.3 "insert at i" rule, including the
// window-growing push_front shift and the window-shrinking pop_back.
func (s *Session) rewriteInsert(sub *Subscription, i, recordCount, S, E int, key, value, metadata tiodata.Data) {
	shouldSendPrimary := i >= S

	// Growing: the window shifted right; the former S-1 slot is now
	// visible as the new first element, carried with the inserted
	// event's own value/metadata (matching spec.md §8 scenario 4).
	if i < S {
		s.sendEvent(sub, "push_front", tiodata.NewInt(0), value, metadata)
	}

	// Shrinking: the window's right edge pushed a record out, at the
	// window-local index E-S (spec.md §8 scenario 4: window [2,4],
	// insert(0,"z") emits pop_back key=int 2, not the absolute index 4).
	if recordCount-1 > E {
		s.sendEvent(sub, "pop_back", tiodata.NewInt(int64(E-S)), tiodata.None, tiodata.None)
	}

	if !shouldSendPrimary {
		return
	}
	if S > 0 {
		s.sendEvent(sub, "insert", tiodata.NewInt(int64(i-S)), value, metadata)
		return
	}
	s.sendEvent(sub, "insert", key, value, metadata)
}

// rewriteSet: spec.md §4.3 "set at i" rule — never forwarded as-is
// when a window is active.
func (s *Session) rewriteSet(sub *Subscription, i, S, E int, value, metadata tiodata.Data) {
	if i < S || i > E {
		return
	}
	s.sendEvent(sub, "set", tiodata.NewInt(int64(i-S)), value, metadata)
}
