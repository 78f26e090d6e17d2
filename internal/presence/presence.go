// Package presence tracks which connections are live in which room.
// Presence is per connection, not per player: the same player reconnecting
// under a new connection simply adds a second entry. Player-level
// de-duplication happens in the stats projection.
package presence

import (
	"sync"
	"time"
)

// Entry records one live connection.
type Entry struct {
	Username string
	RoomCode string
	JoinedAt time.Time
}

type Tracker struct {
	mu      sync.Mutex
	entries map[string]Entry // connID -> entry
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]Entry)}
}

// Attach registers a connection in a room, overwriting any prior entry for
// the same connection id.
func (t *Tracker) Attach(connID, username, roomCode string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[connID] = Entry{
		Username: username,
		RoomCode: roomCode,
		JoinedAt: time.Now(),
	}
}

// Detach removes a connection and reports the entry it held, if any.
func (t *Tracker) Detach(connID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[connID]
	if ok {
		delete(t.entries, connID)
	}
	return e, ok
}

// Online lists usernames with a live connection in the room, one per
// connection (duplicates possible for reconnecting players).
func (t *Tracker) Online(roomCode string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var names []string
	for _, e := range t.entries {
		if e.RoomCode == roomCode {
			names = append(names, e.Username)
		}
	}
	return names
}

// OnlineSet returns the distinct usernames online in the room.
func (t *Tracker) OnlineSet(roomCode string) map[string]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := make(map[string]struct{})
	for _, e := range t.entries {
		if e.RoomCode == roomCode {
			set[e.Username] = struct{}{}
		}
	}
	return set
}

// Count returns the number of live connections across all rooms.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
