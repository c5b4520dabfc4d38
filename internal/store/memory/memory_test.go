package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roomline/roomline-server/internal/store"
)

const defaultRoom = "Free Chat"

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(defaultRoom, "General")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	allowed, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	require.Equal(t, []string{defaultRoom}, allowed)

	_, err = s.Register(ctx, "alice", "other")
	require.ErrorIs(t, err, store.ErrUserExists)

	res, err := s.Authenticate(ctx, "alice", "secret")
	require.NoError(t, err)
	require.Equal(t, store.AuthValid, res)

	res, err = s.Authenticate(ctx, "alice", "wrong")
	require.NoError(t, err)
	require.Equal(t, store.AuthInvalid, res)

	res, err = s.Authenticate(ctx, "ghost", "secret")
	require.NoError(t, err)
	require.Equal(t, store.AuthUnknown, res)
}

func TestRegisterSeedsDefaultMembership(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	rooms, err := s.CurrentRooms(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []store.Membership{{Room: defaultRoom}}, rooms)
}

func TestCurrentRoomMutations(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	require.NoError(t, s.AddCurrentRoom(ctx, "alice", "General"))
	// Adding an existing membership is a no-op.
	require.NoError(t, s.AddCurrentRoom(ctx, "alice", "General"))

	rooms, err := s.CurrentRooms(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	require.Equal(t, "General", rooms[1].Room)

	require.ErrorIs(t, s.AddCurrentRoom(ctx, "alice", "Nowhere"), store.ErrUnknownRoom)
	require.ErrorIs(t, s.AddCurrentRoom(ctx, "ghost", "General"), store.ErrUnknownUser)

	require.NoError(t, s.RemoveCurrentRoom(ctx, "alice", "General"))
	// Removing an absent membership is a no-op.
	require.NoError(t, s.RemoveCurrentRoom(ctx, "alice", "General"))

	rooms, err = s.CurrentRooms(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []store.Membership{{Room: defaultRoom}}, rooms)
}

func TestNicknames(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	nick, err := s.Nickname(ctx, "alice", defaultRoom)
	require.NoError(t, err)
	require.Empty(t, nick)

	require.NoError(t, s.SetNickname(ctx, "alice", defaultRoom, "Bob"))
	nick, err = s.Nickname(ctx, "alice", defaultRoom)
	require.NoError(t, err)
	require.Equal(t, "Bob", nick)

	// Nicknames attach to memberships, not rooms.
	require.ErrorIs(t, s.SetNickname(ctx, "alice", "General", "Bob"), store.ErrNotMember)
	require.ErrorIs(t, s.SetNickname(ctx, "ghost", defaultRoom, "Bob"), store.ErrUnknownUser)
}

func TestRoomLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rooms, err := s.ListRooms(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{defaultRoom, "General"}, rooms)

	require.NoError(t, s.CreateRoom(ctx, "Dev"))
	require.ErrorIs(t, s.CreateRoom(ctx, "Dev"), store.ErrRoomExists)

	rooms, err = s.ListRooms(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{defaultRoom, "General", "Dev"}, rooms)
}

func TestHistoryEviction(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for i := 1; i <= store.HistoryLimit+1; i++ {
		msg := store.Message{Room: defaultRoom, Nick: "alice", Text: fmt.Sprintf("m%d", i)}
		require.NoError(t, s.AppendMessage(ctx, defaultRoom, msg))
	}

	history, err := s.RoomHistory(ctx, defaultRoom)
	require.NoError(t, err)
	require.Len(t, history, store.HistoryLimit)
	require.Equal(t, "m2", history[0].Text)
	require.Equal(t, fmt.Sprintf("m%d", store.HistoryLimit+1), history[len(history)-1].Text)

	_, err = s.RoomHistory(ctx, "Nowhere")
	require.ErrorIs(t, err, store.ErrUnknownRoom)
	require.ErrorIs(t, s.AppendMessage(ctx, "Nowhere", store.Message{}), store.ErrUnknownRoom)
}
