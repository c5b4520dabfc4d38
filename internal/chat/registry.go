package chat

import (
	"sync"

	"github.com/rs/zerolog"
)

// Waiter is an opaque handle to a session currently receiving a room's
// broadcasts. The registry owns membership truth and never reaches into
// session internals.
type Waiter interface {
	// Send delivers one wire line. A non-nil error marks the recipient as
	// unreachable for that delivery only.
	Send(line string) error
}

// Registry is the process-wide mapping from room name to the set of live
// waiters. Room names are canonical (case-sensitive) keys.
type Registry struct {
	log zerolog.Logger

	mu    sync.RWMutex
	rooms map[string]map[Waiter]struct{}
}

// NewRegistry builds an empty registry. Entries are added for every room
// known at startup via AddRoom and for each room created afterwards.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		log:   logger,
		rooms: make(map[string]map[Waiter]struct{}),
	}
}

// AddRoom ensures an entry for the room exists. Idempotent.
func (r *Registry) AddRoom(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[name]; !ok {
		r.rooms[name] = make(map[Waiter]struct{})
	}
}

// Exists reports whether the registry has an entry for the room.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[name]
	return ok
}

// Subscribe adds the waiter to the room's set. A no-op if already present.
func (r *Registry) Subscribe(room string, w Waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.rooms[room]
	if !ok {
		set = make(map[Waiter]struct{})
		r.rooms[room] = set
	}
	set[w] = struct{}{}
}

// Unsubscribe removes the waiter from the room's set. A no-op if absent.
func (r *Registry) Unsubscribe(room string, w Waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.rooms[room]; ok {
		delete(set, w)
	}
}

// Broadcast delivers a line to every waiter currently in the room. Delivery
// failures are per-recipient: a broken connection never aborts delivery to
// the rest, and never surfaces to the caller.
func (r *Registry) Broadcast(room, line string) {
	r.mu.RLock()
	waiters := make([]Waiter, 0, len(r.rooms[room]))
	for w := range r.rooms[room] {
		waiters = append(waiters, w)
	}
	r.mu.RUnlock()

	for _, w := range waiters {
		if err := w.Send(line); err != nil {
			r.log.Debug().Err(err).Str("room", room).Msg("dropped delivery to stale waiter")
		}
	}
}

// Contains reports whether the waiter is currently in the room's set.
func (r *Registry) Contains(room string, w Waiter) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][w]
	return ok
}
