package models

import "time"

// GridSize is the fixed edge length of every room's character grid.
const GridSize = 100

// AdminRoomCode is the reserved monitoring room. It is excluded from
// player-facing listings and never swept or deleted.
const AdminRoomCode = "207128"

// MaxUsernameLen bounds registered usernames.
const MaxUsernameLen = 20

type Direction string

const (
	DirHorizontal Direction = "horizontal"
	DirVertical   Direction = "vertical"
)

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Cell is one occupied grid square. Empty squares are nil.
type Cell struct {
	Char   string `json:"char"`
	PoemID string `json:"poem_id"`
	Color  string `json:"color"`
}

// Grid is indexed [y][x].
type Grid [][]*Cell

func NewGrid() Grid {
	g := make(Grid, GridSize)
	for y := range g {
		g[y] = make([]*Cell, GridSize)
	}
	return g
}

func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for y, row := range g {
		out[y] = make([]*Cell, len(row))
		for x, c := range row {
			if c != nil {
				cp := *c
				out[y][x] = &cp
			}
		}
	}
	return out
}

// Poem is immutable once created; a game reset replaces the whole list.
type Poem struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	Direction     Direction `json:"direction"`
	StartPosition Position  `json:"startPosition"`
	Color         string    `json:"color"`
	ConnectedTo   []string  `json:"connectedTo"`
	Author        string    `json:"author"`
	CreatedAt     string    `json:"created_at"`
}

// GameState is one room's poems-plus-grid snapshot, replaced wholesale on reset.
type GameState struct {
	Poems       []Poem `json:"poems"`
	Grid        Grid   `json:"grid"`
	LastUpdated string `json:"last_updated"`
}

func NewGameState() GameState {
	return GameState{
		Poems:       []Poem{},
		Grid:        NewGrid(),
		LastUpdated: time.Now().Format(time.RFC3339),
	}
}

func (gs GameState) Clone() GameState {
	out := GameState{
		Poems:       make([]Poem, len(gs.Poems)),
		Grid:        gs.Grid.Clone(),
		LastUpdated: gs.LastUpdated,
	}
	copy(out.Poems, gs.Poems)
	return out
}

// EditingMark is an advisory "editing here" cursor for one connection.
// Two connections may mark the same position; nothing excludes anyone.
type EditingMark struct {
	Username  string   `json:"username"`
	Position  Position `json:"position"`
	StartTime int64    `json:"start_time"`
}

// Room is one isolated game session. All fields are guarded by the
// store-wide lock; callers outside the store only ever see clones.
type Room struct {
	Code         string                 `json:"code"`
	Creator      string                 `json:"creator"`
	Players      []string               `json:"players"`
	GameData     GameState              `json:"game_data"`
	CreatedAt    string                 `json:"created_at"`
	LastActivity int64                  `json:"last_activity"`
	EditingUsers map[string]EditingMark `json:"editing_users"`
}

func (r *Room) Clone() *Room {
	out := &Room{
		Code:         r.Code,
		Creator:      r.Creator,
		Players:      make([]string, len(r.Players)),
		GameData:     r.GameData.Clone(),
		CreatedAt:    r.CreatedAt,
		LastActivity: r.LastActivity,
		EditingUsers: make(map[string]EditingMark, len(r.EditingUsers)),
	}
	copy(out.Players, r.Players)
	for id, m := range r.EditingUsers {
		out.EditingUsers[id] = m
	}
	return out
}

func (r *Room) HasPlayer(name string) bool {
	for _, p := range r.Players {
		if p == name {
			return true
		}
	}
	return false
}

// PlayerStat is one row of a room's per-player stats projection.
type PlayerStat struct {
	PoemCount int  `json:"poem_count"`
	IsOnline  bool `json:"is_online"`
}

// RoomSummary is the admin view of one room.
type RoomSummary struct {
	Code         string   `json:"code"`
	Creator      string   `json:"creator"`
	PlayerCount  int      `json:"player_count"`
	Players      []string `json:"players"`
	CreatedAt    string   `json:"created_at"`
	LastActivity int64    `json:"last_activity"`
	PoemCount    int      `json:"poem_count"`
	EditingCount int      `json:"editing_count"`
}
