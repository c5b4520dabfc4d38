// Package sqlite provides a durable store.Store backend on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roomline/roomline-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	login         TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	name       TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS allowed_rooms (
	login TEXT NOT NULL REFERENCES users(login),
	room  TEXT NOT NULL REFERENCES rooms(name),
	PRIMARY KEY (login, room)
);

CREATE TABLE IF NOT EXISTS current_rooms (
	login    TEXT NOT NULL REFERENCES users(login),
	room     TEXT NOT NULL REFERENCES rooms(name),
	nickname TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL,
	PRIMARY KEY (login, room)
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room       TEXT NOT NULL REFERENCES rooms(name),
	nick       TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room, id);
`

// Store implements store.Store for SQLite.
type Store struct {
	db          *sql.DB
	defaultRoom string
}

// New opens (or creates) the database at dbPath, applies the schema, and
// seeds the default room plus any extra bootstrap rooms.
func New(dbPath, defaultRoom string, extraRooms ...string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db, defaultRoom: defaultRoom}
	for _, room := range append([]string{defaultRoom}, extraRooms...) {
		if _, err := db.Exec(`INSERT OR IGNORE INTO rooms (name) VALUES (?)`, room); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed room %q: %w", room, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DefaultRoom returns the well-known room every connection may use.
func (s *Store) DefaultRoom() string {
	return s.defaultRoom
}

// Authenticate checks credentials without mutating anything.
func (s *Store) Authenticate(ctx context.Context, login, password string) (store.AuthResult, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE login = ?`, login).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return store.AuthUnknown, nil
	}
	if err != nil {
		return store.AuthUnknown, fmt.Errorf("select user: %w", err)
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE login = ?`, login).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if exists > 0 {
		return nil, store.ErrUserExists
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (login, password_hash) VALUES (?, ?)`, login, hash); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO allowed_rooms (login, room) VALUES (?, ?)`, login, s.defaultRoom); err != nil {
		return nil, fmt.Errorf("insert allowed room: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO current_rooms (login, room, position) VALUES (?, ?, 1)`, login, s.defaultRoom); err != nil {
		return nil, fmt.Errorf("insert current room: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return []string{s.defaultRoom}, nil
}

// AllowedRooms returns the rooms the user is permitted to use.
func (s *Store) AllowedRooms(ctx context.Context, login string) ([]string, error) {
	if err := s.userExists(ctx, login); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT room FROM allowed_rooms WHERE login = ?`, login)
	if err != nil {
		return nil, fmt.Errorf("select allowed rooms: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, fmt.Errorf("scan allowed room: %w", err)
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

// CurrentRooms returns the user's memberships in join order.
func (s *Store) CurrentRooms(ctx context.Context, login string) ([]store.Membership, error) {
	if err := s.userExists(ctx, login); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT room, nickname FROM current_rooms WHERE login = ? ORDER BY position`, login)
	if err != nil {
		return nil, fmt.Errorf("select current rooms: %w", err)
	}
	defer rows.Close()

	var out []store.Membership
	for rows.Next() {
		var m store.Membership
		if err := rows.Scan(&m.Room, &m.Nick); err != nil {
			return nil, fmt.Errorf("scan current room: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddCurrentRoom records a membership; adding an existing one is a no-op.
func (s *Store) AddCurrentRoom(ctx context.Context, login, room string) error {
	if err := s.userExists(ctx, login); err != nil {
		return err
	}
	if err := s.roomExists(ctx, room); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO current_rooms (login, room, position)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM current_rooms WHERE login = ?))`,
		login, room, login)
	if err != nil {
		return fmt.Errorf("insert current room: %w", err)
	}
	return nil
}

// RemoveCurrentRoom drops a membership; removing an absent one is a no-op.
func (s *Store) RemoveCurrentRoom(ctx context.Context, login, room string) error {
	if err := s.userExists(ctx, login); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM current_rooms WHERE login = ? AND room = ?`, login, room); err != nil {
		return fmt.Errorf("delete current room: %w", err)
	}
	return nil
}

// Nickname returns the nickname for the room, or "" when none was set.
func (s *Store) Nickname(ctx context.Context, login, room string) (string, error) {
	if err := s.userExists(ctx, login); err != nil {
		return "", err
	}
	var nick string
	err := s.db.QueryRowContext(ctx,
		`SELECT nickname FROM current_rooms WHERE login = ? AND room = ?`, login, room).Scan(&nick)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select nickname: %w", err)
	}
	return nick, nil
}

// SetNickname records a per-room nickname for an existing membership.
func (s *Store) SetNickname(ctx context.Context, login, room, nick string) error {
	if err := s.userExists(ctx, login); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE current_rooms SET nickname = ? WHERE login = ? AND room = ?`, nick, login, room)
	if err != nil {
		return fmt.Errorf("update nickname: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotMember
	}
	return nil
}

// CreateRoom registers a new room with empty history.
func (s *Store) CreateRoom(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO rooms (name) VALUES (?)`, name)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrRoomExists
	}
	return nil
}

// ListRooms returns every known room name.
func (s *Store) ListRooms(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM rooms`)
	if err != nil {
		return nil, fmt.Errorf("select rooms: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// RoomHistory returns the room's retained messages, oldest first.
func (s *Store) RoomHistory(ctx context.Context, room string) ([]store.Message, error) {
	if err := s.roomExists(ctx, room); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT nick, body, created_at FROM messages WHERE room = ? ORDER BY id`, room)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	var out []store.Message
	for rows.Next() {
		m := store.Message{Room: room}
		if err := rows.Scan(&m.Nick, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AppendMessage adds a message and prunes history past the limit.
func (s *Store) AppendMessage(ctx context.Context, room string, msg store.Message) error {
	if err := s.roomExists(ctx, room); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (room, nick, body, created_at) VALUES (?, ?, ?, ?)`,
		room, msg.Nick, msg.Text, msg.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE room = ? AND id NOT IN (
			SELECT id FROM messages WHERE room = ? ORDER BY id DESC LIMIT ?
		)`, room, room, store.HistoryLimit)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

func (s *Store) userExists(ctx context.Context, login string) error {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE login = ?`, login).Scan(&n); err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if n == 0 {
		return store.ErrUnknownUser
	}
	return nil
}

func (s *Store) roomExists(ctx context.Context, room string) error {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM rooms WHERE name = ?`, room).Scan(&n); err != nil {
		return fmt.Errorf("check room: %w", err)
	}
	if n == 0 {
		return store.ErrUnknownRoom
	}
	return nil
}
