package main

import (
	"strconv"
	"strings"

	"github.com/fren29/tiodb/internal/registry"
	"github.com/fren29/tiodb/internal/session"
	"github.com/fren29/tiodb/internal/tiodata"
	"github.com/fren29/tiodb/internal/wire"
)

// dispatcher implements session.TextHandler and session.BinaryHandler
// with the minimal command set needed to exercise every session
// operation end to end. The concrete wire grammar is explicitly out of
// scope (spec.md §1, SPEC_FULL.md Non-goals); this is a demo
// dispatcher, not a faithful reimplementation of Tio's real command
// set.
type dispatcher struct {
	reg *registry.Registry
}

func newDispatcher(reg *registry.Registry) *dispatcher {
	return &dispatcher{reg: reg}
}

func parseValue(s string) tiodata.Data {
	if s == "" {
		return tiodata.None
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return tiodata.NewInt(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && strings.ContainsAny(s, ".eE") {
		return tiodata.NewDouble(f)
	}
	return tiodata.NewString(s)
}

func parseHandle(s string) (uint64, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	return n, err == nil
}

// Dispatch implements session.TextHandler. Every command in this demo
// grammar answers immediately; none uses the more_data continuation.
func (d *dispatcher) Dispatch(s *session.Session, cmd wire.Command) ([]byte, int) {
	switch cmd.Verb {
	case "ping":
		return wire.AnswerOK(), 0

	case "open":
		if len(cmd.Params) != 2 {
			return wire.AnswerError("usage: open <list|map> <name>"), 0
		}
		kind, name := cmd.Params[0], cmd.Params[1]
		c, ok := d.reg.GetOrCreate(name, kind)
		if !ok {
			return wire.AnswerError("name already bound to a different container type"), 0
		}
		handle := s.RegisterContainer(name, c)
		return wire.AnswerOKPayload("handle "+strconv.FormatUint(handle, 10)), 0

	case "close":
		h, ok := parseHandle(firstParam(cmd))
		if !ok {
			return wire.AnswerError("bad handle"), 0
		}
		if err := s.CloseHandle(h); err != nil {
			return wire.AnswerError(err.Error()), 0
		}
		return wire.AnswerOK(), 0

	case "push_back", "push_front":
		return d.dispatchPush(s, cmd)

	case "pop_back", "pop_front":
		return d.dispatchPop(s, cmd)

	case "set":
		return d.dispatchSet(s, cmd)

	case "insert":
		return d.dispatchInsert(s, cmd)

	case "delete":
		return d.dispatchDelete(s, cmd)

	case "clear":
		return d.dispatchClear(s, cmd)

	case "subscribe":
		return d.dispatchSubscribe(s, cmd)

	case "unsubscribe":
		h, ok := parseHandle(firstParam(cmd))
		if !ok {
			return wire.AnswerError("bad handle"), 0
		}
		s.Unsubscribe(h)
		return wire.AnswerOK(), 0

	case "wait_and_pop_next":
		h, ok := parseHandle(firstParam(cmd))
		if !ok {
			return wire.AnswerError("bad handle"), 0
		}
		if err := s.BinaryWaitAndPopNext(h); err != nil {
			return wire.AnswerError(err.Error()), 0
		}
		return wire.AnswerOK(), 0

	case "setup_diff":
		return d.dispatchSetupDiff(s, cmd)

	case "query":
		return d.dispatchQuery(s, cmd)

	default:
		return wire.AnswerError("unknown command " + cmd.Verb), 0
	}
}

// Continue is never reached by this dispatcher — no command declares
// more_data.
func (d *dispatcher) Continue(s *session.Session, cmd wire.Command, payload []byte) []byte {
	return wire.AnswerError("unexpected payload")
}

func firstParam(cmd wire.Command) string {
	if len(cmd.Params) == 0 {
		return ""
	}
	return cmd.Params[0]
}

func (d *dispatcher) dispatchPush(s *session.Session, cmd wire.Command) ([]byte, int) {
	if len(cmd.Params) != 2 {
		return wire.AnswerError("usage: " + cmd.Verb + " <handle> <value>"), 0
	}
	h, ok := parseHandle(cmd.Params[0])
	if !ok {
		return wire.AnswerError("bad handle"), 0
	}
	c, _, err := s.GetContainer(h)
	if err != nil {
		return wire.AnswerError(err.Error()), 0
	}
	value := parseValue(cmd.Params[1])

	switch l := c.(type) {
	case interface {
		PushBack(value, metadata tiodata.Data)
		PushFront(value, metadata tiodata.Data)
	}:
		if cmd.Verb == "push_back" {
			l.PushBack(value, tiodata.None)
		} else {
			l.PushFront(value, tiodata.None)
		}
		return wire.AnswerOK(), 0
	default:
		return wire.AnswerError("container does not support " + cmd.Verb), 0
	}
}

func (d *dispatcher) dispatchPop(s *session.Session, cmd wire.Command) ([]byte, int) {
	if len(cmd.Params) != 1 {
		return wire.AnswerError("usage: " + cmd.Verb + " <handle>"), 0
	}
	h, ok := parseHandle(cmd.Params[0])
	if !ok {
		return wire.AnswerError("bad handle"), 0
	}
	c, _, err := s.GetContainer(h)
	if err != nil {
		return wire.AnswerError(err.Error()), 0
	}

	switch l := c.(type) {
	case interface {
		PopBack() bool
		PopFront() bool
	}:
		var popped bool
		if cmd.Verb == "pop_back" {
			popped = l.PopBack()
		} else {
			popped = l.PopFront()
		}
		if !popped {
			return wire.AnswerError("empty"), 0
		}
		return wire.AnswerOK(), 0
	default:
		return wire.AnswerError("container does not support " + cmd.Verb), 0
	}
}

func (d *dispatcher) dispatchSet(s *session.Session, cmd wire.Command) ([]byte, int) {
	if len(cmd.Params) != 3 {
		return wire.AnswerError("usage: set <handle> <key> <value>"), 0
	}
	h, ok := parseHandle(cmd.Params[0])
	if !ok {
		return wire.AnswerError("bad handle"), 0
	}
	c, _, err := s.GetContainer(h)
	if err != nil {
		return wire.AnswerError(err.Error()), 0
	}
	key := parseValue(cmd.Params[1])
	value := parseValue(cmd.Params[2])
	if err := c.Set(key, value, ""); err != nil {
		return wire.AnswerError(err.Error()), 0
	}
	return wire.AnswerOK(), 0
}

func (d *dispatcher) dispatchInsert(s *session.Session, cmd wire.Command) ([]byte, int) {
	if len(cmd.Params) != 3 {
		return wire.AnswerError("usage: insert <handle> <index> <value>"), 0
	}
	h, ok := parseHandle(cmd.Params[0])
	if !ok {
		return wire.AnswerError("bad handle"), 0
	}
	c, _, err := s.GetContainer(h)
	if err != nil {
		return wire.AnswerError(err.Error()), 0
	}
	idx, err := strconv.Atoi(cmd.Params[1])
	if err != nil {
		return wire.AnswerError("bad index"), 0
	}
	value := parseValue(cmd.Params[2])

	switch l := c.(type) {
	case interface {
		InsertAt(index int, value, metadata tiodata.Data) error
	}:
		if err := l.InsertAt(idx, value, tiodata.None); err != nil {
			return wire.AnswerError(err.Error()), 0
		}
		return wire.AnswerOK(), 0
	default:
		return wire.AnswerError("container does not support insert"), 0
	}
}

func (d *dispatcher) dispatchDelete(s *session.Session, cmd wire.Command) ([]byte, int) {
	if len(cmd.Params) != 2 {
		return wire.AnswerError("usage: delete <handle> <key>"), 0
	}
	h, ok := parseHandle(cmd.Params[0])
	if !ok {
		return wire.AnswerError("bad handle"), 0
	}
	c, _, err := s.GetContainer(h)
	if err != nil {
		return wire.AnswerError(err.Error()), 0
	}
	key := parseValue(cmd.Params[1])
	if err := c.Delete(key, ""); err != nil {
		return wire.AnswerError(err.Error()), 0
	}
	return wire.AnswerOK(), 0
}

func (d *dispatcher) dispatchClear(s *session.Session, cmd wire.Command) ([]byte, int) {
	h, ok := parseHandle(firstParam(cmd))
	if !ok {
		return wire.AnswerError("bad handle"), 0
	}
	c, _, err := s.GetContainer(h)
	if err != nil {
		return wire.AnswerError(err.Error()), 0
	}
	switch l := c.(type) {
	case interface{ Clear() }:
		l.Clear()
		return wire.AnswerOK(), 0
	default:
		return wire.AnswerError("container does not support clear"), 0
	}
}

func (d *dispatcher) dispatchSubscribe(s *session.Session, cmd wire.Command) ([]byte, int) {
	if len(cmd.Params) < 1 {
		return wire.AnswerError("usage: subscribe <handle> [start] [filter_end]"), 0
	}
	h, ok := parseHandle(cmd.Params[0])
	if !ok {
		return wire.AnswerError("bad handle"), 0
	}
	start := ""
	if len(cmd.Params) >= 2 {
		start = cmd.Params[1]
	}
	filterEnd := -1
	if len(cmd.Params) >= 3 {
		if n, err := strconv.Atoi(cmd.Params[2]); err == nil {
			filterEnd = n
		}
	}
	if err := s.Subscribe(h, start, filterEnd, true); err != nil {
		return wire.AnswerError(err.Error()), 0
	}
	return nil, 0 // Subscribe enqueues its own answer.
}

func (d *dispatcher) dispatchSetupDiff(s *session.Session, cmd wire.Command) ([]byte, int) {
	if len(cmd.Params) != 3 {
		return wire.AnswerError("usage: setup_diff <handle> <dest_type> <dest_name>"), 0
	}
	h, ok := parseHandle(cmd.Params[0])
	if !ok {
		return wire.AnswerError("bad handle"), 0
	}
	dest, ok := d.reg.GetOrCreate(cmd.Params[2], cmd.Params[1])
	if !ok {
		return wire.AnswerError("bad destination container"), 0
	}
	if err := s.SetupDiff(h, dest); err != nil {
		return wire.AnswerError(err.Error()), 0
	}
	return wire.AnswerOK(), 0
}

func (d *dispatcher) dispatchQuery(s *session.Session, cmd wire.Command) ([]byte, int) {
	if len(cmd.Params) < 1 {
		return wire.AnswerError("usage: query <handle> [start] [limit]"), 0
	}
	h, ok := parseHandle(cmd.Params[0])
	if !ok {
		return wire.AnswerError("bad handle"), 0
	}
	start := 0
	if len(cmd.Params) >= 2 {
		if n, err := strconv.Atoi(cmd.Params[1]); err == nil {
			start = n
		}
	}
	limit := 0
	if len(cmd.Params) >= 3 {
		if n, err := strconv.Atoi(cmd.Params[2]); err == nil {
			limit = n
		}
	}
	if err := s.Query(h, start, limit); err != nil {
		return wire.AnswerError(err.Error()), 0
	}
	return nil, 0 // Query enqueues its own begin/item/end sequence.
}

// binaryDispatcher implements session.BinaryHandler with two requests,
// read from the FieldCommand field instead of a text verb:
// RequestQuery runs a query, and any other message (including one
// with no FieldCommand) is a subscribe. The other text verbs have no
// binary counterpart here. Kept as a distinct type
// because Go method sets can't overload a name across two interfaces
// with different signatures.
type binaryDispatcher struct {
	*dispatcher
}

func (d *binaryDispatcher) Dispatch(s *session.Session, fields []wire.Field) []wire.Field {
	var handle uint64
	var start string
	var startIndex, limit int
	haveHandle := false
	request := wire.RequestSubscribe
	haveCommand := false

	for _, f := range fields {
		switch f.ID {
		case wire.FieldCommand:
			if len(f.Data) >= 4 {
				request = le32(f.Data)
				haveCommand = true
			}
		case wire.FieldHandle:
			if len(f.Data) >= 4 {
				handle = uint64(le32(f.Data))
				haveHandle = true
			}
		case wire.FieldKey:
			start = string(f.Data)
			if len(f.Data) >= 4 {
				startIndex = int(int32(le32(f.Data)))
			}
		case wire.FieldValue:
			if len(f.Data) >= 4 {
				limit = int(int32(le32(f.Data)))
			}
		}
	}

	if !haveHandle {
		return nil
	}

	if haveCommand && request == wire.RequestQuery {
		_ = s.Query(handle, startIndex, limit)
		return nil // Query streams its own begin/item/end messages.
	}

	sendAnswer := func() {}
	if err := s.BinarySubscribe(handle, start, sendAnswer); err != nil {
		return nil
	}
	return nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
