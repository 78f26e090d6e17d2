// Package admin builds the cross-room monitoring projection. Everything
// here is read-only over the room store and gated to the one reserved
// admin identity.
package admin

import (
	"poemgrid/internal/models"
	"poemgrid/internal/presence"
	"poemgrid/internal/store"
)

type Aggregator struct {
	store     *store.Store
	presence  *presence.Tracker
	adminName string
}

func NewAggregator(s *store.Store, p *presence.Tracker, adminName string) *Aggregator {
	return &Aggregator{store: s, presence: p, adminName: adminName}
}

// Authorize reports whether the caller holds the reserved admin identity.
func (a *Aggregator) Authorize(username string) bool {
	return username == a.adminName
}

// AdminName returns the reserved identity.
func (a *Aggregator) AdminName() string {
	return a.adminName
}

// RoomsInfo lists every room except the admin room itself, most recently
// active first, with totals for the monitoring header.
func (a *Aggregator) RoomsInfo(caller string) (models.AdminRoomsPayload, error) {
	if !a.Authorize(caller) {
		return models.AdminRoomsPayload{}, store.ErrPermissionDenied
	}
	rooms := a.store.Summaries()
	totalPlayers := 0
	for _, r := range rooms {
		totalPlayers += r.PlayerCount
	}
	return models.AdminRoomsPayload{
		Rooms:        rooms,
		TotalRooms:   len(rooms),
		TotalPlayers: totalPlayers,
	}, nil
}

// PlayerStats maps each registered player of the room to their poem count
// and whether any of their connections is currently online. Unknown rooms
// yield an empty map.
func (a *Aggregator) PlayerStats(roomCode string) map[string]models.PlayerStat {
	players, counts, ok := a.store.PoemCounts(roomCode)
	if !ok {
		return map[string]models.PlayerStat{}
	}
	online := a.presence.OnlineSet(roomCode)
	stats := make(map[string]models.PlayerStat, len(players))
	for _, player := range players {
		_, isOnline := online[player]
		stats[player] = models.PlayerStat{
			PoemCount: counts[player],
			IsOnline:  isOnline,
		}
	}
	return stats
}
