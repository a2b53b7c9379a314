package wire

import "errors"

// ErrProtocolViolation marks an oversized or malformed frame, per
// spec.md §7's protocol-violation error kind. Terminal.
var ErrProtocolViolation = errors.New("wire: protocol violation")

// ErrUnknownField marks a binary message referencing a field id this
// module does not understand.
var ErrUnknownField = errors.New("wire: unknown field id")
