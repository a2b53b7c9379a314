package session

import "errors"

// Error kinds, transport-independent, per spec.md §7.
var (
	ErrInvalidHandle       = errors.New("session: invalid handle")
	ErrAlreadySubscribed   = errors.New("session: already subscribed")
	ErrAlreadyPendingPop   = errors.New("session: wait_and_pop_next already pending for handle")
	ErrBadStart            = errors.New("session: bad start parameter")
	ErrBackpressureOverrun = errors.New("session: send queue exceeded hard cap")
	ErrProtocolViolation   = errors.New("session: protocol violation")
	ErrSessionClosed       = errors.New("session: closed")
)
