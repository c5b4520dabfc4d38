// Package memory provides an in-process store.Store backend. All state is
// lost on shutdown; it is the default backend for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/roomline/roomline-server/internal/store"
)

type userRecord struct {
	passwordHash string
	allowed      []string
	current      []store.Membership
}

// Store implements store.Store with plain maps under a single lock.
type Store struct {
	defaultRoom string

	mu    sync.RWMutex
	users map[string]*userRecord
	rooms map[string][]store.Message
}

// New builds a memory store seeded with the default room and any extra
// bootstrap rooms.
func New(defaultRoom string, extraRooms ...string) *Store {
	s := &Store{
		defaultRoom: defaultRoom,
		users:       make(map[string]*userRecord),
		rooms:       make(map[string][]store.Message),
	}
	s.rooms[defaultRoom] = nil
	for _, room := range extraRooms {
		if _, ok := s.rooms[room]; !ok {
			s.rooms[room] = nil
		}
	}
	return s
}

// Authenticate checks credentials without mutating anything.
func (s *Store) Authenticate(_ context.Context, login, password string) (store.AuthResult, error) {
	s.mu.RLock()
	user, ok := s.users[login]
	s.mu.RUnlock()
	if !ok {
		return store.AuthUnknown, nil
	}
	if !store.CheckPassword(user.passwordHash, password) {
		return store.AuthInvalid, nil
	}
	return store.AuthValid, nil
}

// Register creates a new user whose allowed rooms and current membership
// both start at the default room.
func (s *Store) Register(_ context.Context, login, password string) ([]string, error) {
	hash, err := store.HashPassword(password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[login]; ok {
		return nil, store.ErrUserExists
	}
	s.users[login] = &userRecord{
		passwordHash: hash,
		allowed:      []string{s.defaultRoom},
		current:      []store.Membership{{Room: s.defaultRoom}},
	}
	return []string{s.defaultRoom}, nil
}

// AllowedRooms returns the rooms the user is permitted to use.
func (s *Store) AllowedRooms(_ context.Context, login string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[login]
	if !ok {
		return nil, store.ErrUnknownUser
	}
	out := make([]string, len(user.allowed))
	copy(out, user.allowed)
	return out, nil
}

// CurrentRooms returns the user's memberships in join order.
func (s *Store) CurrentRooms(_ context.Context, login string) ([]store.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[login]
	if !ok {
		return nil, store.ErrUnknownUser
	}
	out := make([]store.Membership, len(user.current))
	copy(out, user.current)
	return out, nil
}

// AddCurrentRoom records a membership; adding an existing one is a no-op.
func (s *Store) AddCurrentRoom(_ context.Context, login, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[login]
	if !ok {
		return store.ErrUnknownUser
	}
	if _, ok := s.rooms[room]; !ok {
		return store.ErrUnknownRoom
	}
	for _, m := range user.current {
		if m.Room == room {
			return nil
		}
	}
	user.current = append(user.current, store.Membership{Room: room})
	return nil
}

// RemoveCurrentRoom drops a membership; removing an absent one is a no-op.
func (s *Store) RemoveCurrentRoom(_ context.Context, login, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[login]
	if !ok {
		return store.ErrUnknownUser
	}
	for i, m := range user.current {
		if m.Room == room {
			user.current = append(user.current[:i], user.current[i+1:]...)
			return nil
		}
	}
	return nil
}

// Nickname returns the nickname for the room, or "" when none was set.
func (s *Store) Nickname(_ context.Context, login, room string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[login]
	if !ok {
		return "", store.ErrUnknownUser
	}
	for _, m := range user.current {
		if m.Room == room {
			return m.Nick, nil
		}
	}
	return "", nil
}

// SetNickname records a per-room nickname for an existing membership.
func (s *Store) SetNickname(_ context.Context, login, room, nick string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[login]
	if !ok {
		return store.ErrUnknownUser
	}
	for i := range user.current {
		if user.current[i].Room == room {
			user.current[i].Nick = nick
			return nil
		}
	}
	return store.ErrNotMember
}

// CreateRoom registers a new room with empty history.
func (s *Store) CreateRoom(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[name]; ok {
		return store.ErrRoomExists
	}
	s.rooms[name] = nil
	return nil
}

// ListRooms returns every known room name.
func (s *Store) ListRooms(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.rooms))
	for name := range s.rooms {
		out = append(out, name)
	}
	return out, nil
}

// RoomHistory returns the room's retained messages, oldest first.
func (s *Store) RoomHistory(_ context.Context, room string) ([]store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history, ok := s.rooms[room]
	if !ok {
		return nil, store.ErrUnknownRoom
	}
	out := make([]store.Message, len(history))
	copy(out, history)
	return out, nil
}

// AppendMessage adds a message, evicting the oldest past the history limit.
func (s *Store) AppendMessage(_ context.Context, room string, msg store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, ok := s.rooms[room]
	if !ok {
		return store.ErrUnknownRoom
	}
	history = append(history, msg)
	if len(history) > store.HistoryLimit {
		history = history[len(history)-store.HistoryLimit:]
	}
	s.rooms[room] = history
	return nil
}

// DefaultRoom returns the well-known room every connection may use.
func (s *Store) DefaultRoom() string {
	return s.defaultRoom
}

// Close is a no-op for the memory backend.
func (s *Store) Close() error {
	return nil
}
