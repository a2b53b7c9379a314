package session

import "github.com/fren29/tiodb/internal/container"

// RegisterContainer mints a fresh handle bound to (name, container),
// per spec.md §4.2. Handles are allocated by incrementing a counter
// and are never reused within a session.
func (s *Session) RegisterContainer(name string, c container.Container) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHandle++
	h := s.lastHandle
	s.handles[h] = &handleEntry{container: c, name: name}
	return h
}

// GetContainer resolves a handle to its bound container and declared
// name. Returns ErrInvalidHandle if the handle is unknown.
func (s *Session) GetContainer(handle uint64) (container.Container, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.handles[handle]
	if !ok {
		return nil, "", ErrInvalidHandle
	}
	return e.container, e.name, nil
}

// ContainerType resolves a handle to its container's declared type
// ("list"/"map"), matching GetRegisteredContainer's optional
// containerType out-parameter.
func (s *Session) ContainerType(handle uint64) (string, error) {
	c, _, err := s.GetContainer(handle)
	if err != nil {
		return "", err
	}
	return c.Type(), nil
}

// CloseHandle unsubscribes any subscription on handle and removes it
// from the handle table. Returns ErrInvalidHandle if the handle is
// unknown.
func (s *Session) CloseHandle(handle uint64) error {
	s.mu.Lock()
	_, ok := s.handles[handle]
	s.mu.Unlock()
	if !ok {
		return ErrInvalidHandle
	}

	s.Unsubscribe(handle)

	s.mu.Lock()
	delete(s.handles, handle)
	s.mu.Unlock()
	return nil
}
