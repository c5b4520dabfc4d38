package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/roomline/roomline-server/internal/store"
)

// Sink is the transport's send-to-self capability, injected so the protocol
// logic stays transport-agnostic.
type Sink interface {
	Send(line string) error
}

// Session is one connection's live protocol state: an optional authenticated
// identity plus the set of rooms this connection currently receives
// broadcasts for. The live set is distinct from the store's persisted
// memberships; closing a connection is not the same as leaving a room.
type Session struct {
	id   string
	sink Sink
	svc  *Service
	log  zerolog.Logger

	mu    sync.Mutex
	login string
	rooms map[string]struct{}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Login returns the authenticated identity, or "" for anonymous.
func (s *Session) Login() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.login
}

// Send delivers one wire line to this session's own client. It satisfies
// the registry's Waiter contract.
func (s *Session) Send(line string) error {
	return s.sink.Send(line)
}

// OnOpen is invoked by the transport once the connection is established.
// A non-empty identity (from an external session token) is restored along
// with its persisted rooms; otherwise the session joins the default room.
func (s *Session) OnOpen(ctx context.Context, identity string) {
	if identity != "" {
		if _, err := s.svc.store.CurrentRooms(ctx, identity); err != nil {
			if !errors.Is(err, store.ErrUnknownUser) {
				s.log.Error().Err(err).Str("login", identity).Msg("identity restore failed")
			}
			identity = ""
		}
	}

	if identity == "" {
		s.subscribeDefault(ctx)
		return
	}

	s.setLogin(identity)
	s.svc.restoreRooms(ctx, s)
}

// OnMessage is invoked by the transport for every inbound text payload.
// Command lines are parsed and dispatched; everything else is chat text
// scoped to the session's current rooms.
func (s *Session) OnMessage(ctx context.Context, text string) {
	if !IsCommand(text) {
		s.svc.broadcastChat(ctx, s, text)
		return
	}

	cmd, err := ParseCommand(text)
	if err != nil {
		s.sendParseError(err)
		return
	}

	switch cmd.Kind {
	case CommandLogin:
		s.handleLogin(ctx, cmd)
	case CommandLogout:
		s.handleLogout(ctx)
	case CommandRegister:
		s.handleRegister(ctx, cmd)
	case CommandJoin:
		s.handleJoin(ctx, cmd)
	case CommandLeave:
		s.handleLeave(ctx, cmd)
	case CommandNick:
		s.handleNick(ctx, cmd)
	}
}

// OnClose is invoked by the transport when the connection goes away. It
// drains the session from every waiter set synchronously so no broadcast
// targets a dead recipient. Persisted memberships are untouched.
func (s *Session) OnClose() {
	for _, room := range s.roomList() {
		s.svc.registry.Unsubscribe(room, s)
		s.removeRoom(room)
	}
}

func (s *Session) handleLogin(ctx context.Context, cmd Command) {
	if current := s.Login(); current != "" {
		s.sendServer("You are already logged in as " + quoted(current))
		return
	}

	res, err := s.svc.store.Authenticate(ctx, cmd.User, cmd.Password)
	if err != nil {
		s.log.Error().Err(err).Str("login", cmd.User).Msg("authenticate failed")
		s.sendServer(msgInternalError)
		return
	}
	switch res {
	case store.AuthUnknown:
		s.sendServer("No such user")
	case store.AuthInvalid:
		s.sendServer("Password incorrect")
	case store.AuthValid:
		s.setLogin(cmd.User)
		s.sendServer("You are logged in as " + quoted(cmd.User))
		s.svc.restoreRooms(ctx, s)
	}
}

func (s *Session) handleLogout(ctx context.Context) {
	if s.Login() == "" {
		s.sendServer("You are not logged in")
		return
	}

	for _, room := range s.roomList() {
		s.svc.registry.Unsubscribe(room, s)
		s.removeRoom(room)
	}
	s.setLogin("")
	s.sendServer("You are logged out")
	s.subscribeDefault(ctx)
}

func (s *Session) handleRegister(ctx context.Context, cmd Command) {
	if current := s.Login(); current != "" {
		s.sendServer("You are already logged in as " + quoted(current))
		return
	}

	if _, err := s.svc.store.Register(ctx, cmd.User, cmd.Password); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			s.sendServer("Such user already exists")
			return
		}
		s.log.Error().Err(err).Str("login", cmd.User).Msg("register failed")
		s.sendServer(msgInternalError)
		return
	}

	s.setLogin(cmd.User)
	s.sendServer("You are registered as " + quoted(cmd.User))
	s.svc.restoreRooms(ctx, s)
}

func (s *Session) handleJoin(ctx context.Context, cmd Command) {
	room, err := s.svc.resolveRoom(ctx, cmd.Room)
	if err != nil {
		if errors.Is(err, store.ErrUnknownRoom) {
			s.sendServer("No such room " + quoted(cmd.Room))
			return
		}
		s.log.Error().Err(err).Str("room", cmd.Room).Msg("room lookup failed")
		s.sendServer(msgInternalError)
		return
	}
	s.svc.connectToRoom(ctx, s, room)
}

func (s *Session) handleLeave(ctx context.Context, cmd Command) {
	// Leave matches against the rooms this session currently occupies.
	room, ok := s.resolveJoined(cmd.Room)
	if !ok {
		s.sendServer("You are not in room " + quoted(cmd.Room))
		return
	}
	s.svc.disconnectFromRoom(ctx, s, room)
}

func (s *Session) handleNick(ctx context.Context, cmd Command) {
	login := s.Login()
	if login == "" {
		s.sendServer("You must log in to change your nickname")
		return
	}

	if cmd.AllRooms {
		rooms := s.roomList()
		if len(rooms) == 0 {
			s.sendServer("You are not in any room")
			return
		}
		for _, room := range rooms {
			err := s.svc.store.SetNickname(ctx, login, room, cmd.Nick)
			switch {
			case errors.Is(err, store.ErrNotMember):
				// A live subscription without a persisted membership, as
				// when a login restores rooms over an anonymous session
				// already sitting in the default room. Skip it and keep
				// going; the persisted rooms still get the nickname.
				s.log.Debug().Str("room", room).Msg("nickname skipped, no persisted membership")
			case err != nil:
				s.log.Error().Err(err).Str("room", room).Msg("set nickname failed")
				s.sendServer(msgInternalError)
				return
			}
		}
		s.sendServer("Nickname in all your rooms is now " + quoted(cmd.Nick))
		return
	}

	room, ok := s.resolveJoined(cmd.Room)
	if !ok {
		s.sendServer("You are not in room " + quoted(cmd.Room))
		return
	}
	if err := s.svc.store.SetNickname(ctx, login, room, cmd.Nick); err != nil {
		if errors.Is(err, store.ErrNotMember) {
			s.sendServer("You are not a member of room " + quoted(room))
			return
		}
		s.log.Error().Err(err).Str("room", room).Msg("set nickname failed")
		s.sendServer(msgInternalError)
		return
	}
	s.sendServer("Nickname in room " + quoted(room) + " is now " + quoted(cmd.Nick))
}

// subscribeDefault puts the session into the default room, the anonymous
// baseline subscription.
func (s *Session) subscribeDefault(ctx context.Context) {
	room := s.svc.DefaultRoom()
	if s.inRoom(room) {
		return
	}
	s.svc.registry.Subscribe(room, s)
	s.addRoom(room)
	s.svc.replayHistory(ctx, s, room)
}

func (s *Session) sendParseError(err error) {
	var unknown *UnknownCommandError
	if errors.As(err, &unknown) {
		s.sendServer("Unknown command " + quoted(CommandPrefix+unknown.Name))
		return
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		s.sendServer("Wrong usage: " + usage.Usage)
		return
	}
	s.sendServer(msgInternalError)
}

// sendServer emits a single feedback line to this session only.
func (s *Session) sendServer(text string) {
	if err := s.sink.Send(ServerLine(text)); err != nil {
		s.log.Debug().Err(err).Msg("feedback dropped")
	}
}

func (s *Session) setLogin(login string) {
	s.mu.Lock()
	s.login = login
	s.mu.Unlock()
}

func (s *Session) addRoom(room string) {
	s.mu.Lock()
	s.rooms[room] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) removeRoom(room string) {
	s.mu.Lock()
	delete(s.rooms, room)
	s.mu.Unlock()
}

func (s *Session) inRoom(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[room]
	return ok
}

// resolveJoined matches a user-typed name case-insensitively against the
// session's live subscriptions.
func (s *Session) resolveJoined(name string) (string, bool) {
	for _, room := range s.roomList() {
		if strings.EqualFold(room, name) {
			return room, true
		}
	}
	return "", false
}

// roomList snapshots the live subscription set in sorted order so fan-out
// across rooms is deterministic.
func (s *Session) roomList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}
