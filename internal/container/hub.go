package container

import (
	"sync"

	"github.com/fren29/tiodb/internal/tiodata"
)

// hub is the shared subscriber/popper bookkeeping used by both List and
// Map. It mirrors the mutex-guarded map shape smux.Session uses for its
// streams map: mutations happen under lock, callbacks fire with the
// lock released so a callback can safely re-enter the container (e.g.
// to Query it) without deadlocking.
type hub struct {
	mu sync.Mutex

	nextCookie uint64
	subs       map[uint64]EventCallback

	nextPopID uint64
	poppers   map[uint64]EventCallback
}

func newHub() *hub {
	return &hub{
		subs:    make(map[uint64]EventCallback),
		poppers: make(map[uint64]EventCallback),
	}
}

func (h *hub) subscribe(cb EventCallback) uint64 {
	h.mu.Lock()
	h.nextCookie++
	cookie := h.nextCookie
	h.subs[cookie] = cb
	h.mu.Unlock()
	return cookie
}

func (h *hub) unsubscribe(cookie uint64) {
	if cookie == 0 {
		return
	}
	h.mu.Lock()
	delete(h.subs, cookie)
	h.mu.Unlock()
}

func (h *hub) armPop(cb EventCallback) uint64 {
	h.mu.Lock()
	h.nextPopID++
	id := h.nextPopID
	h.poppers[id] = cb
	h.mu.Unlock()
	return id
}

func (h *hub) cancelPop(popID uint64) {
	if popID == 0 {
		return
	}
	h.mu.Lock()
	delete(h.poppers, popID)
	h.mu.Unlock()
}

// snapshotSubs returns a point-in-time copy of the subscriber list to
// iterate without holding the container lock during delivery.
func (h *hub) snapshotSubs() []EventCallback {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]EventCallback, 0, len(h.subs))
	for _, cb := range h.subs {
		out = append(out, cb)
	}
	return out
}

// notify delivers an event to every current subscriber, in a
// point-in-time snapshot of the subscriber set so a callback that
// subscribes/unsubscribes mid-delivery can't corrupt the live map.
func (h *hub) notify(eventName string, key, value, meta tiodata.Data) {
	for _, cb := range h.snapshotSubs() {
		cb(eventName, key, value, meta)
	}
}

// firePoppers fires and clears every armed popper, matching the
// reference's one-shot "next pushed element" semantics: wait_and_pop_next
// fires on the next produced record regardless of key.
func (h *hub) firePoppers(eventName string, key, value, meta tiodata.Data) {
	h.mu.Lock()
	if len(h.poppers) == 0 {
		h.mu.Unlock()
		return
	}
	cbs := make([]EventCallback, 0, len(h.poppers))
	for _, cb := range h.poppers {
		cbs = append(cbs, cb)
	}
	h.poppers = make(map[uint64]EventCallback)
	h.mu.Unlock()

	for _, cb := range cbs {
		cb(eventName, key, value, meta)
	}
}
