package store

import (
	"time"

	"poemgrid/internal/models"
)

// Editing marks are advisory cursors scoped per room, keyed by connection
// id. They never exclude anyone from writing; two connections may mark the
// same square. Mark changes are in-memory only: they neither persist nor
// count as room activity.

// StartEditing upserts a mark for the connection. The username must be a
// member of the room. Returns the room's marks after the change.
func (s *Store) StartEditing(code, connID, username string, pos models.Position) (map[string]models.EditingMark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok || !room.HasPlayer(username) {
		return nil, false
	}
	room.EditingUsers[connID] = models.EditingMark{
		Username:  username,
		Position:  pos,
		StartTime: time.Now().Unix(),
	}
	return cloneMarks(room.EditingUsers), true
}

// UpdateEditing moves an existing mark. A connection with no mark in the
// room is a no-op, not an upsert.
func (s *Store) UpdateEditing(code, connID string, pos models.Position) (map[string]models.EditingMark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, false
	}
	mark, exists := room.EditingUsers[connID]
	if !exists {
		return nil, false
	}
	mark.Position = pos
	room.EditingUsers[connID] = mark
	return cloneMarks(room.EditingUsers), true
}

// StopEditing removes the connection's mark if present.
func (s *Store) StopEditing(code, connID string) (map[string]models.EditingMark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, false
	}
	if _, exists := room.EditingUsers[connID]; !exists {
		return nil, false
	}
	delete(room.EditingUsers, connID)
	return cloneMarks(room.EditingUsers), true
}

// ClearEditing removes the connection's marks from every room that holds
// one. A connection holds at most one mark, but the cleanup scans all rooms
// anyway. Returns the updated marks per affected room so the caller can
// broadcast each.
func (s *Store) ClearEditing(connID string) map[string]map[string]models.EditingMark {
	s.mu.Lock()
	defer s.mu.Unlock()

	affected := make(map[string]map[string]models.EditingMark)
	for code, room := range s.rooms {
		if _, exists := room.EditingUsers[connID]; exists {
			delete(room.EditingUsers, connID)
			affected[code] = cloneMarks(room.EditingUsers)
		}
	}
	return affected
}

// Marks returns the room's current marks.
func (s *Store) Marks(code string) (map[string]models.EditingMark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, false
	}
	return cloneMarks(room.EditingUsers), true
}

func cloneMarks(marks map[string]models.EditingMark) map[string]models.EditingMark {
	out := make(map[string]models.EditingMark, len(marks))
	for id, m := range marks {
		out[id] = m
	}
	return out
}
