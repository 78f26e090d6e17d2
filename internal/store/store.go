// Package store owns every room aggregate: membership, game state, grid and
// editing marks. A single store-wide mutex guards all rooms; the durable
// write happens under the same lock (write-through, best-effort: a failed
// write leaves memory ahead of the durable copy and the error is surfaced
// to the caller).
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"poemgrid/internal/grid"
	"poemgrid/internal/models"
)

type Store struct {
	mu        sync.Mutex
	rooms     map[string]*models.Room
	legacy    models.GameState
	persister Persister
	log       *zap.Logger
	ctx       context.Context
}

// NewStore loads both durable documents and returns a ready store.
func NewStore(p Persister, log *zap.Logger) (*Store, error) {
	ctx := context.Background()
	rooms, err := p.LoadRooms(ctx)
	if err != nil {
		return nil, err
	}
	legacy, err := p.LoadLegacy(ctx)
	if err != nil {
		return nil, err
	}
	s := &Store{
		rooms:     rooms,
		legacy:    legacy,
		persister: p,
		log:       log,
		ctx:       ctx,
	}
	log.Info("room store loaded", zap.Int("rooms", len(rooms)))
	return s, nil
}

// persist writes the rooms document. Called with s.mu held.
func (s *Store) persist() error {
	if err := s.persister.SaveRooms(s.ctx, s.rooms); err != nil {
		s.log.Error("persist rooms failed", zap.Error(err))
		return err
	}
	return nil
}

// CreateRoom inserts a new room with the creator as sole player. Returns
// false if the code is already taken.
func (s *Store) CreateRoom(code, creatorName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[code]; exists {
		return false, nil
	}
	now := time.Now()
	s.rooms[code] = &models.Room{
		Code:         code,
		Creator:      creatorName,
		Players:      []string{creatorName},
		GameData:     models.NewGameState(),
		CreatedAt:    now.Format(time.RFC3339),
		LastActivity: now.Unix(),
		EditingUsers: make(map[string]models.EditingMark),
	}
	return true, s.persist()
}

// JoinRoom appends the player if the room exists. Joining a room you are
// already in is a successful no-op.
func (s *Store) JoinRoom(code, playerName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return false, nil
	}
	if room.HasPlayer(playerName) {
		return true, nil
	}
	room.Players = append(room.Players, playerName)
	room.LastActivity = time.Now().Unix()
	return true, s.persist()
}

// LeaveRoom removes the player; an emptied room is deleted outright and its
// code becomes reusable.
func (s *Store) LeaveRoom(code, playerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil
	}
	idx := -1
	for i, p := range room.Players {
		if p == playerName {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	room.Players = append(room.Players[:idx], room.Players[idx+1:]...)
	room.LastActivity = time.Now().Unix()
	if len(room.Players) == 0 {
		delete(s.rooms, code)
	}
	return s.persist()
}

// GetRoom returns a snapshot of the room.
func (s *Store) GetRoom(code string) (*models.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, false
	}
	return room.Clone(), true
}

// IsMember reports whether the username is in the room's player list.
func (s *Store) IsMember(code, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	return ok && room.HasPlayer(username)
}

// UpdateGameState replaces the room's game state wholesale. Silent no-op
// for unknown rooms; callers are expected to have checked existence.
func (s *Store) UpdateGameState(code string, state models.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil
	}
	room.GameData = state
	room.LastActivity = time.Now().Unix()
	return s.persist()
}

// AddPoem appends an immutable poem to the room and places it on the grid.
// Characters that would land outside the grid are clipped, not rejected.
func (s *Store) AddPoem(code, author string, req models.AddPoemRequest) (models.Poem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return models.Poem{}, ErrRoomNotFound
	}
	now := time.Now()
	poem := models.Poem{
		ID:            fmt.Sprintf("poem_%03d_%d", len(room.GameData.Poems)+1, now.Unix()),
		Text:          req.Text,
		Direction:     req.Direction,
		StartPosition: req.StartPosition,
		Color:         req.Color,
		ConnectedTo:   req.ConnectedTo,
		Author:        author,
		CreatedAt:     now.Format(time.RFC3339),
	}
	if poem.ConnectedTo == nil {
		poem.ConnectedTo = []string{}
	}
	room.GameData.Poems = append(room.GameData.Poems, poem)
	grid.Place(room.GameData.Grid, poem)
	room.GameData.LastUpdated = now.Format(time.RFC3339)
	room.LastActivity = now.Unix()
	return poem, s.persist()
}

// ResetGame replaces the room's poems and grid with a fresh state. Sibling
// rooms are untouched.
func (s *Store) ResetGame(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}
	room.GameData = models.NewGameState()
	room.LastActivity = time.Now().Unix()
	return s.persist()
}

// DeleteRoom removes a room and returns the player list at deletion time so
// the caller can notify them. The admin room refuses deletion.
func (s *Store) DeleteRoom(code string) ([]string, error) {
	if code == models.AdminRoomCode {
		return nil, ErrPermissionDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	players := make([]string, len(room.Players))
	copy(players, room.Players)
	delete(s.rooms, code)
	return players, s.persist()
}

// SweepInactive removes every non-admin room whose last activity is older
// than the threshold, persisting once if anything was removed. Returns the
// removed codes.
func (s *Store) SweepInactive(threshold time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-threshold).Unix()
	var removed []string
	for code, room := range s.rooms {
		if code == models.AdminRoomCode {
			continue
		}
		if room.LastActivity < cutoff {
			removed = append(removed, code)
		}
	}
	for _, code := range removed {
		delete(s.rooms, code)
	}
	if len(removed) > 0 {
		if err := s.persist(); err != nil {
			s.log.Error("persist after sweep failed", zap.Error(err))
		}
	}
	return removed
}

// EnsureAdminRoom creates the reserved admin room on first access, or makes
// sure the admin is in its player list.
func (s *Store) EnsureAdminRoom(adminName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[models.AdminRoomCode]
	if !ok {
		now := time.Now()
		s.rooms[models.AdminRoomCode] = &models.Room{
			Code:         models.AdminRoomCode,
			Creator:      adminName,
			Players:      []string{adminName},
			GameData:     models.NewGameState(),
			CreatedAt:    now.Format(time.RFC3339),
			LastActivity: now.Unix(),
			EditingUsers: make(map[string]models.EditingMark),
		}
		return s.persist()
	}
	if !room.HasPlayer(adminName) {
		room.Players = append(room.Players, adminName)
		room.LastActivity = time.Now().Unix()
		return s.persist()
	}
	return nil
}

// Touch bumps the room's last-activity clock without persisting.
func (s *Store) Touch(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room, ok := s.rooms[code]; ok {
		room.LastActivity = time.Now().Unix()
	}
}

// Summaries projects every non-admin room into its monitoring view, most
// recently active first.
func (s *Store) Summaries() []models.RoomSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.RoomSummary, 0, len(s.rooms))
	for code, room := range s.rooms {
		if code == models.AdminRoomCode {
			continue
		}
		players := make([]string, len(room.Players))
		copy(players, room.Players)
		out = append(out, models.RoomSummary{
			Code:         code,
			Creator:      room.Creator,
			PlayerCount:  len(room.Players),
			Players:      players,
			CreatedAt:    room.CreatedAt,
			LastActivity: room.LastActivity,
			PoemCount:    len(room.GameData.Poems),
			EditingCount: len(room.EditingUsers),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity > out[j].LastActivity
	})
	return out
}

// PoemCounts tallies poems per author for one room, alongside its players.
func (s *Store) PoemCounts(code string) (players []string, counts map[string]int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, found := s.rooms[code]
	if !found {
		return nil, nil, false
	}
	players = make([]string, len(room.Players))
	copy(players, room.Players)
	counts = make(map[string]int)
	for _, p := range room.GameData.Poems {
		counts[p.Author]++
	}
	return players, counts, true
}

// RoomCount reports how many rooms are live, the admin room included.
func (s *Store) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// LegacyState returns the superseded global game document, kept so the old
// persisted shape still round-trips.
func (s *Store) LegacyState() models.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.legacy.Clone()
}

// Close persists both documents one final time.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persister.SaveLegacy(s.ctx, s.legacy); err != nil {
		return err
	}
	return s.persist()
}
