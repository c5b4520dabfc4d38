// Package redis provides a store.Store backend on a Redis server, for
// deployments where chat state must outlive the process.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/roomline/roomline-server/internal/store"
)

// Key layout:
//
//	rooms                  set of room names
//	room:{name}:history    list of JSON messages, oldest first
//	user:{login}           hash with password_hash
//	user:{login}:allowed   set of allowed room names
//	user:{login}:current   list of room names in join order
//	user:{login}:nicks     hash room -> nickname

// Store implements store.Store on go-redis.
type Store struct {
	client      *redis.Client
	defaultRoom string
}

// New connects to the Redis server at addr and seeds the default room plus
// any extra bootstrap rooms.
func New(ctx context.Context, addr, defaultRoom string, extraRooms ...string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	s := &Store{client: client, defaultRoom: defaultRoom}
	rooms := append([]string{defaultRoom}, extraRooms...)
	args := make([]interface{}, len(rooms))
	for i, room := range rooms {
		args[i] = room
	}
	if err := client.SAdd(ctx, keyRooms, args...).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("seed rooms: %w", err)
	}
	return s, nil
}

const keyRooms = "rooms"

func keyUser(login string) string        { return "user:" + login }
func keyUserAllowed(login string) string { return "user:" + login + ":allowed" }
func keyUserCurrent(login string) string { return "user:" + login + ":current" }
func keyUserNicks(login string) string   { return "user:" + login + ":nicks" }
func keyHistory(room string) string      { return "room:" + room + ":history" }

// Close releases the client connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// DefaultRoom returns the well-known room every connection may use.
func (s *Store) DefaultRoom() string {
	return s.defaultRoom
}

// Authenticate checks credentials without mutating anything.
func (s *Store) Authenticate(ctx context.Context, login, password string) (store.AuthResult, error) {
	hash, err := s.client.HGet(ctx, keyUser(login), "password_hash").Result()
	if errors.Is(err, redis.Nil) {
		return store.AuthUnknown, nil
	}
	if err != nil {
		return store.AuthUnknown, fmt.Errorf("get user: %w", err)
	}
	if !store.CheckPassword(hash, password) {
		return store.AuthInvalid, nil
	}
	return store.AuthValid, nil
}

// Register creates a new user whose allowed rooms and current membership
// both start at the default room.
func (s *Store) Register(ctx context.Context, login, password string) ([]string, error) {
	hash, err := store.HashPassword(password)
	if err != nil {
		return nil, err
	}

	created, err := s.client.HSetNX(ctx, keyUser(login), "password_hash", hash).Result()
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if !created {
		return nil, store.ErrUserExists
	}

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, keyUserAllowed(login), s.defaultRoom)
	pipe.RPush(ctx, keyUserCurrent(login), s.defaultRoom)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("seed user rooms: %w", err)
	}
	return []string{s.defaultRoom}, nil
}

// AllowedRooms returns the rooms the user is permitted to use.
func (s *Store) AllowedRooms(ctx context.Context, login string) ([]string, error) {
	if err := s.userExists(ctx, login); err != nil {
		return nil, err
	}
	rooms, err := s.client.SMembers(ctx, keyUserAllowed(login)).Result()
	if err != nil {
		return nil, fmt.Errorf("get allowed rooms: %w", err)
	}
	return rooms, nil
}

// CurrentRooms returns the user's memberships in join order.
func (s *Store) CurrentRooms(ctx context.Context, login string) ([]store.Membership, error) {
	if err := s.userExists(ctx, login); err != nil {
		return nil, err
	}
	rooms, err := s.client.LRange(ctx, keyUserCurrent(login), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get current rooms: %w", err)
	}
	if len(rooms) == 0 {
		return nil, nil
	}
	nicks, err := s.client.HGetAll(ctx, keyUserNicks(login)).Result()
	if err != nil {
		return nil, fmt.Errorf("get nicknames: %w", err)
	}
	out := make([]store.Membership, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, store.Membership{Room: room, Nick: nicks[room]})
	}
	return out, nil
}

// AddCurrentRoom records a membership; adding an existing one is a no-op.
func (s *Store) AddCurrentRoom(ctx context.Context, login, room string) error {
	if err := s.userExists(ctx, login); err != nil {
		return err
	}
	if err := s.roomExists(ctx, room); err != nil {
		return err
	}
	_, err := s.client.LPos(ctx, keyUserCurrent(login), room, redis.LPosArgs{}).Result()
	if err == nil {
		return nil
	}
	if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("check membership: %w", err)
	}
	if err := s.client.RPush(ctx, keyUserCurrent(login), room).Err(); err != nil {
		return fmt.Errorf("add current room: %w", err)
	}
	return nil
}

// RemoveCurrentRoom drops a membership along with its nickname.
func (s *Store) RemoveCurrentRoom(ctx context.Context, login, room string) error {
	if err := s.userExists(ctx, login); err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.LRem(ctx, keyUserCurrent(login), 0, room)
	pipe.HDel(ctx, keyUserNicks(login), room)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove current room: %w", err)
	}
	return nil
}

// Nickname returns the nickname for the room, or "" when none was set.
func (s *Store) Nickname(ctx context.Context, login, room string) (string, error) {
	if err := s.userExists(ctx, login); err != nil {
		return "", err
	}
	nick, err := s.client.HGet(ctx, keyUserNicks(login), room).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get nickname: %w", err)
	}
	return nick, nil
}

// SetNickname records a per-room nickname for an existing membership.
func (s *Store) SetNickname(ctx context.Context, login, room, nick string) error {
	if err := s.userExists(ctx, login); err != nil {
		return err
	}
	_, err := s.client.LPos(ctx, keyUserCurrent(login), room, redis.LPosArgs{}).Result()
	if errors.Is(err, redis.Nil) {
		return store.ErrNotMember
	}
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if err := s.client.HSet(ctx, keyUserNicks(login), room, nick).Err(); err != nil {
		return fmt.Errorf("set nickname: %w", err)
	}
	return nil
}

// CreateRoom registers a new room with empty history.
func (s *Store) CreateRoom(ctx context.Context, name string) error {
	added, err := s.client.SAdd(ctx, keyRooms, name).Result()
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	if added == 0 {
		return store.ErrRoomExists
	}
	return nil
}

// ListRooms returns every known room name.
func (s *Store) ListRooms(ctx context.Context) ([]string, error) {
	rooms, err := s.client.SMembers(ctx, keyRooms).Result()
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// RoomHistory returns the room's retained messages, oldest first.
func (s *Store) RoomHistory(ctx context.Context, room string) ([]store.Message, error) {
	if err := s.roomExists(ctx, room); err != nil {
		return nil, err
	}
	raw, err := s.client.LRange(ctx, keyHistory(room), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	out := make([]store.Message, 0, len(raw))
	for _, entry := range raw {
		var m store.Message
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// AppendMessage adds a message and trims history to the limit.
func (s *Store) AppendMessage(ctx context.Context, room string, msg store.Message) error {
	if err := s.roomExists(ctx, room); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, keyHistory(room), data)
	pipe.LTrim(ctx, keyHistory(room), -int64(store.HistoryLimit), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *Store) userExists(ctx context.Context, login string) error {
	n, err := s.client.Exists(ctx, keyUser(login)).Result()
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if n == 0 {
		return store.ErrUnknownUser
	}
	return nil
}

func (s *Store) roomExists(ctx context.Context, room string) error {
	ok, err := s.client.SIsMember(ctx, keyRooms, room).Result()
	if err != nil {
		return fmt.Errorf("check room: %w", err)
	}
	if !ok {
		return store.ErrUnknownRoom
	}
	return nil
}
