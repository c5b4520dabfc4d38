// Package chat implements the real-time session/room engine: the session
// state machine, the room-subscription registry, the text command protocol,
// and message broadcast with bounded history replay.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/roomline/roomline-server/internal/store"
)

// Policy holds the configurable authorization behavior. Source revisions
// disagreed on allowed-room enforcement, so it is a switch rather than a
// hard-coded rule; anonymous sessions are always confined to the default
// room regardless.
type Policy struct {
	EnforceAllowedRooms bool
}

// Service is the subscription manager and broadcast engine. It is the only
// component that talks to both the Store and the Registry.
type Service struct {
	store    store.Store
	registry *Registry
	policy   Policy
	log      zerolog.Logger
}

// NewService wires the engine around a store backend and a registry.
func NewService(st store.Store, registry *Registry, policy Policy, logger zerolog.Logger) *Service {
	return &Service{
		store:    st,
		registry: registry,
		policy:   policy,
		log:      logger,
	}
}

// Bootstrap seeds the registry with every room the store knows about.
func (s *Service) Bootstrap(ctx context.Context) error {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	for _, room := range rooms {
		s.registry.AddRoom(room)
	}
	return nil
}

// NewSession creates the protocol state for one connection. The sink is the
// transport's send-to-self capability.
func (s *Service) NewSession(sink Sink) *Session {
	id := uuid.NewString()
	return &Session{
		id:    id,
		sink:  sink,
		svc:   s,
		log:   s.log.With().Str("session", id).Logger(),
		rooms: make(map[string]struct{}),
	}
}

// DefaultRoom exposes the store's well-known room name.
func (s *Service) DefaultRoom() string {
	return s.store.DefaultRoom()
}

// CreateRoom registers a room in the store and gives the registry an entry
// for it.
func (s *Service) CreateRoom(ctx context.Context, name string) error {
	if err := s.store.CreateRoom(ctx, name); err != nil {
		return err
	}
	s.registry.AddRoom(name)
	return nil
}

// ListRooms returns every known room name.
func (s *Service) ListRooms(ctx context.Context) ([]string, error) {
	return s.store.ListRooms(ctx)
}

// resolveRoom matches a user-typed name case-insensitively against the
// store's rooms and returns the canonical stored casing.
func (s *Service) resolveRoom(ctx context.Context, name string) (string, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return "", fmt.Errorf("list rooms: %w", err)
	}
	for _, room := range rooms {
		if strings.EqualFold(room, name) {
			return room, nil
		}
	}
	return "", store.ErrUnknownRoom
}

// connectToRoom subscribes the session to a canonical room name, persists
// the membership for authenticated identities, and replays history to the
// connecting session only. Exactly one feedback line is emitted per outcome.
func (s *Service) connectToRoom(ctx context.Context, sess *Session, room string) {
	if sess.inRoom(room) {
		sess.sendServer("You are already connected to room " + quoted(room))
		return
	}

	login := sess.Login()
	if login == "" && room != s.store.DefaultRoom() {
		sess.sendServer("You must log in to join room " + quoted(room))
		return
	}
	if login != "" && s.policy.EnforceAllowedRooms {
		allowed, err := s.store.AllowedRooms(ctx, login)
		if err != nil {
			s.log.Error().Err(err).Str("login", login).Msg("allowed rooms lookup failed")
			sess.sendServer(msgInternalError)
			return
		}
		if !containsFold(allowed, room) {
			sess.sendServer("Room " + quoted(room) + " is not allowed for you")
			return
		}
	}

	if login != "" {
		if err := s.store.AddCurrentRoom(ctx, login, room); err != nil {
			s.log.Error().Err(err).Str("login", login).Str("room", room).Msg("persist membership failed")
			sess.sendServer(msgInternalError)
			return
		}
	}

	s.registry.Subscribe(room, sess)
	sess.addRoom(room)

	sess.sendServer("You are connected to room " + quoted(room))
	s.replayHistory(ctx, sess, room)
}

// disconnectFromRoom removes the live subscription and the persisted
// membership. Leaving a room the session is not in is an error, not a
// silent no-op.
func (s *Service) disconnectFromRoom(ctx context.Context, sess *Session, room string) {
	if !sess.inRoom(room) {
		sess.sendServer("You are not in room " + quoted(room))
		return
	}

	s.registry.Unsubscribe(room, sess)
	sess.removeRoom(room)

	if login := sess.Login(); login != "" {
		if err := s.store.RemoveCurrentRoom(ctx, login, room); err != nil {
			s.log.Error().Err(err).Str("login", login).Str("room", room).Msg("remove membership failed")
			sess.sendServer(msgInternalError)
			return
		}
	}
	sess.sendServer("You left room " + quoted(room))
}

// broadcastChat fans a plain chat line out to every room the session
// currently occupies, persisting it to each room's history first.
func (s *Service) broadcastChat(ctx context.Context, sess *Session, text string) {
	rooms := sess.roomList()
	if len(rooms) == 0 {
		sess.sendServer("You are not in any room")
		return
	}

	login := sess.Login()
	for _, room := range rooms {
		nick := s.resolveNick(ctx, login, room)
		msg := store.Message{Room: room, Nick: nick, Text: text, CreatedAt: time.Now()}
		if err := s.store.AppendMessage(ctx, room, msg); err != nil {
			// Live delivery still happens: history is best-effort.
			s.log.Error().Err(err).Str("room", room).Msg("append history failed")
		}
		s.registry.Broadcast(room, RoomLine(room, nick, text))
	}
}

// resolveNick picks the attribution for a room message: the stored per-room
// nickname, falling back to the login, with a fixed label for anonymous
// sessions.
func (s *Service) resolveNick(ctx context.Context, login, room string) string {
	if login == "" {
		return AnonymousName
	}
	nick, err := s.store.Nickname(ctx, login, room)
	if err != nil {
		s.log.Warn().Err(err).Str("login", login).Str("room", room).Msg("nickname lookup failed")
		return login
	}
	if nick == "" {
		return login
	}
	return nick
}

// replayHistory sends a room's retained messages, oldest first, to the
// connecting session only.
func (s *Service) replayHistory(ctx context.Context, sess *Session, room string) {
	history, err := s.store.RoomHistory(ctx, room)
	if err != nil {
		s.log.Warn().Err(err).Str("room", room).Msg("history lookup failed")
		return
	}
	for _, msg := range history {
		if err := sess.Send(roomLineFromMessage(msg)); err != nil {
			s.log.Debug().Err(err).Str("room", room).Msg("history replay dropped")
			return
		}
	}
}

// restoreRooms subscribes an authenticated session to every persisted
// membership it does not already hold live, replaying history for each
// newly added room.
func (s *Service) restoreRooms(ctx context.Context, sess *Session) {
	login := sess.Login()
	memberships, err := s.store.CurrentRooms(ctx, login)
	if err != nil {
		s.log.Error().Err(err).Str("login", login).Msg("current rooms lookup failed")
		return
	}
	for _, m := range memberships {
		if sess.inRoom(m.Room) {
			continue
		}
		s.registry.Subscribe(m.Room, sess)
		sess.addRoom(m.Room)
		s.replayHistory(ctx, sess, m.Room)
	}
}

const msgInternalError = "Internal error, try again later"

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
