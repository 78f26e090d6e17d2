package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"poemgrid/internal/models"
)

const (
	roomsKey  = "poemgrid:rooms_data"
	legacyKey = "poemgrid:game_data"
)

// Persister is the durable save/load boundary for the store. Both documents
// are written as full overwrites on every mutation; there is no append log
// and no partial update.
type Persister interface {
	SaveRooms(ctx context.Context, rooms map[string]*models.Room) error
	LoadRooms(ctx context.Context) (map[string]*models.Room, error)
	SaveLegacy(ctx context.Context, state models.GameState) error
	LoadLegacy(ctx context.Context) (models.GameState, error)
}

// RedisPersister stores each document as one JSON value.
type RedisPersister struct {
	rdb *redis.Client
}

func NewRedisPersister(rdb *redis.Client) *RedisPersister {
	return &RedisPersister{rdb: rdb}
}

func (p *RedisPersister) SaveRooms(ctx context.Context, rooms map[string]*models.Room) error {
	data, err := json.Marshal(rooms)
	if err != nil {
		return fmt.Errorf("marshal rooms: %w", err)
	}
	if err := p.rdb.Set(ctx, roomsKey, data, 0).Err(); err != nil {
		return fmt.Errorf("save rooms: %w", err)
	}
	return nil
}

func (p *RedisPersister) LoadRooms(ctx context.Context) (map[string]*models.Room, error) {
	data, err := p.rdb.Get(ctx, roomsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return make(map[string]*models.Room), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	rooms := make(map[string]*models.Room)
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	for _, r := range rooms {
		if r.EditingUsers == nil {
			r.EditingUsers = make(map[string]models.EditingMark)
		}
		if r.GameData.Grid == nil {
			r.GameData.Grid = models.NewGrid()
		}
	}
	return rooms, nil
}

func (p *RedisPersister) SaveLegacy(ctx context.Context, state models.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal game data: %w", err)
	}
	if err := p.rdb.Set(ctx, legacyKey, data, 0).Err(); err != nil {
		return fmt.Errorf("save game data: %w", err)
	}
	return nil
}

func (p *RedisPersister) LoadLegacy(ctx context.Context) (models.GameState, error) {
	data, err := p.rdb.Get(ctx, legacyKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NewGameState(), nil
	}
	if err != nil {
		return models.GameState{}, fmt.Errorf("load game data: %w", err)
	}
	var state models.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.GameState{}, fmt.Errorf("decode game data: %w", err)
	}
	if state.Grid == nil {
		state.Grid = models.NewGrid()
	}
	return state, nil
}
