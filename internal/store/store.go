// Package store defines the durable-state contract consumed by the chat
// engine. Backends keep user records (password hash, allowed rooms, current
// room memberships with per-room nicknames) and per-room bounded message
// history. The engine never branches on which backend is active.
package store

import (
	"context"
	"errors"
	"time"
)

// HistoryLimit bounds the number of messages retained per room. Appending
// past the limit evicts the oldest entry.
const HistoryLimit = 10

// AuthResult is the outcome of a credential check.
type AuthResult int

const (
	// AuthUnknown means no user with that login exists.
	AuthUnknown AuthResult = iota
	// AuthValid means the login exists and the password matches.
	AuthValid
	// AuthInvalid means the login exists but the password does not match.
	AuthInvalid
)

var (
	// ErrUnknownUser is returned for login-keyed operations on a login that
	// was never registered.
	ErrUnknownUser = errors.New("unknown user")
	// ErrUserExists is returned by Register for a taken login.
	ErrUserExists = errors.New("user already exists")
	// ErrUnknownRoom is returned for operations on a room that does not exist.
	ErrUnknownRoom = errors.New("unknown room")
	// ErrRoomExists is returned by CreateRoom for a taken room name.
	ErrRoomExists = errors.New("room already exists")
	// ErrNotMember is returned by SetNickname when the login has no current
	// membership in the room.
	ErrNotMember = errors.New("not a member of room")
)

// Message is one attributed entry of a room's history.
type Message struct {
	Room      string
	Nick      string
	Text      string
	CreatedAt time.Time
}

// Membership is one (room, nickname) pair of a user's current rooms. A room
// appears at most once per user; Nick is empty until set explicitly.
type Membership struct {
	Room string
	Nick string
}

// Store is the durable-state collaborator. All operations are keyed by login
// string; the anonymous identity has no login and callers must not invoke
// login-keyed operations for it. Room names are case-sensitive keys here;
// case-insensitive matching happens in the chat layer.
type Store interface {
	// Authenticate checks credentials without mutating anything.
	Authenticate(ctx context.Context, login, password string) (AuthResult, error)

	// Register creates a new user and returns its allowed rooms. The new
	// user starts with the default room as its only current membership.
	Register(ctx context.Context, login, password string) ([]string, error)

	// AllowedRooms returns the rooms the user is permitted to use.
	AllowedRooms(ctx context.Context, login string) ([]string, error)

	// CurrentRooms returns the user's active memberships in join order.
	CurrentRooms(ctx context.Context, login string) ([]Membership, error)

	// AddCurrentRoom records a room membership. Adding a room the user is
	// already a member of is a no-op.
	AddCurrentRoom(ctx context.Context, login, room string) error

	// RemoveCurrentRoom drops a room membership along with its nickname.
	// Removing an absent membership is a no-op.
	RemoveCurrentRoom(ctx context.Context, login, room string) error

	// Nickname returns the nickname the user set for the room, or "" when
	// none was set.
	Nickname(ctx context.Context, login, room string) (string, error)

	// SetNickname records a per-room nickname for a current membership.
	SetNickname(ctx context.Context, login, room, nick string) error

	// CreateRoom registers a new room with empty history.
	CreateRoom(ctx context.Context, name string) error

	// ListRooms returns the names of every known room.
	ListRooms(ctx context.Context) ([]string, error)

	// RoomHistory returns the room's retained messages, oldest first.
	RoomHistory(ctx context.Context, room string) ([]Message, error)

	// AppendMessage adds a message to the room's history, evicting the
	// oldest entry once HistoryLimit is exceeded.
	AppendMessage(ctx context.Context, room string, msg Message) error

	// DefaultRoom returns the name of the well-known room every connection
	// may use.
	DefaultRoom() string

	// Close releases backend resources.
	Close() error
}
