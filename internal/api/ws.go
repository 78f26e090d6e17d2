package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"poemgrid/internal/hub"
	"poemgrid/internal/metrics"
	"poemgrid/internal/models"
	"poemgrid/internal/utils"
)

// connState is what the server believes about one realtime connection. The
// username always comes from a validated room token, never from a message
// field.
type connState struct {
	roomCode string
	username string
}

// RoomWS is the realtime channel endpoint. One frame envelope, typed by
// frame.Type, in both directions.
func (h *Handlers) RoomWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	client := hub.NewClient(conn)
	state := &connState{}
	defer h.teardown(client, state)

	for {
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		h.handleFrame(client, state, frame)
	}
}

// handleFrame dispatches one client frame. Split from the read loop so
// tests can drive a connection without a live socket.
func (h *Handlers) handleFrame(client *hub.Client, state *connState, frame models.WSFrame) {
	switch frame.Type {
	case models.MsgJoinRoom:
		var msg models.JoinRoomMessage
		marshal(frame.Data, &msg)
		h.handleJoin(client, state, msg)

	case models.MsgLeaveRoom:
		h.handleLeave(client, state)

	case models.MsgStartEditing:
		var msg models.EditingMessage
		marshal(frame.Data, &msg)
		if state.roomCode == "" {
			return
		}
		marks, ok := h.store.StartEditing(state.roomCode, client.ID, state.username, msg.Position)
		if ok {
			h.broadcast(state.roomCode, models.EventEditingStatusUpdate, models.EditingStatusPayload{EditingUsers: marks})
		}

	case models.MsgStopEditing:
		if state.roomCode == "" {
			return
		}
		if marks, ok := h.store.StopEditing(state.roomCode, client.ID); ok {
			h.broadcast(state.roomCode, models.EventEditingStatusUpdate, models.EditingStatusPayload{EditingUsers: marks})
		}

	case models.MsgUpdateEditingPosition:
		var msg models.EditingMessage
		marshal(frame.Data, &msg)
		if state.roomCode == "" {
			return
		}
		if marks, ok := h.store.UpdateEditing(state.roomCode, client.ID, msg.Position); ok {
			h.broadcast(state.roomCode, models.EventEditingStatusUpdate, models.EditingStatusPayload{EditingUsers: marks})
		}

	case models.MsgRequestAdminRooms:
		if state.roomCode != models.AdminRoomCode || !h.agg.Authorize(state.username) {
			return
		}
		info, err := h.agg.RoomsInfo(state.username)
		if err != nil {
			return
		}
		client.Send(models.WSFrame{Type: models.EventAdminRoomsInfo, Data: info})

	default:
		client.Send(errFrame("unknown_type"))
	}
}

func (h *Handlers) handleJoin(client *hub.Client, state *connState, msg models.JoinRoomMessage) {
	if msg.Token == "" {
		client.Send(errFrame("room token required"))
		return
	}
	claims, err := utils.ValidateRoomToken(msg.Token, h.secret)
	if err != nil {
		client.Send(errFrame("invalid room token"))
		return
	}
	code := claims.RoomCode
	if msg.RoomCode != "" && msg.RoomCode != code {
		client.Send(errFrame("token does not match room"))
		return
	}
	if !h.store.IsMember(code, claims.Username) {
		client.Send(errFrame("you are not in this room"))
		return
	}

	// Re-joining moves the connection; drop the previous channel first.
	if state.roomCode != "" && state.roomCode != code {
		h.handleLeave(client, state)
	}

	state.roomCode = code
	state.username = claims.Username
	h.hub.Join(code, client)
	h.presence.Attach(client.ID, claims.Username, code)
	metrics.SetLiveConnections(h.presence.Count())
	h.store.Touch(code)

	if code == models.AdminRoomCode && h.agg.Authorize(claims.Username) {
		info, err := h.agg.RoomsInfo(claims.Username)
		if err == nil {
			client.Send(models.WSFrame{Type: models.EventAdminRoomsInfo, Data: info})
		}
		return
	}

	h.hub.BroadcastExcept(code, client, models.WSFrame{
		Type: models.EventUserJoined,
		Data: models.UserJoinedPayload{
			Username: claims.Username,
			Message:  fmt.Sprintf("%s joined the room", claims.Username),
		},
	})
	metrics.CountEvent(models.EventUserJoined)

	room, ok := h.store.GetRoom(code)
	if !ok {
		return
	}
	stats := h.agg.PlayerStats(code)
	client.Send(models.WSFrame{
		Type: models.EventRoomStatus,
		Data: models.RoomStatusPayload{
			Players:      room.Players,
			EditingUsers: room.EditingUsers,
			PlayerStats:  stats,
		},
	})
	h.broadcast(code, models.EventPlayerStatsUpdate, models.PlayerStatsPayload{PlayerStats: stats})
}

func (h *Handlers) handleLeave(client *hub.Client, state *connState) {
	if state.roomCode == "" {
		return
	}
	code, username := state.roomCode, state.username
	state.roomCode, state.username = "", ""

	h.hub.Leave(code, client)
	h.presence.Detach(client.ID)
	metrics.SetLiveConnections(h.presence.Count())

	if marks, ok := h.store.StopEditing(code, client.ID); ok {
		h.broadcast(code, models.EventEditingStatusUpdate, models.EditingStatusPayload{EditingUsers: marks})
	}

	h.hub.Broadcast(code, models.WSFrame{
		Type: models.EventUserLeft,
		Data: models.UserLeftPayload{
			Username: username,
			Message:  fmt.Sprintf("%s left the room", username),
		},
	})
	metrics.CountEvent(models.EventUserLeft)

	if _, ok := h.store.GetRoom(code); ok {
		h.broadcast(code, models.EventPlayerStatsUpdate, models.PlayerStatsPayload{PlayerStats: h.agg.PlayerStats(code)})
	}
}

// teardown runs when the read loop ends, cleanly or not. Presence and
// editing marks are separate concerns keyed by the same connection id;
// each is cleaned up on its own.
func (h *Handlers) teardown(client *hub.Client, state *connState) {
	entry, hadPresence := h.presence.Detach(client.ID)
	metrics.SetLiveConnections(h.presence.Count())

	for code, marks := range h.store.ClearEditing(client.ID) {
		h.broadcast(code, models.EventEditingStatusUpdate, models.EditingStatusPayload{EditingUsers: marks})
	}

	if state.roomCode != "" {
		h.hub.Leave(state.roomCode, client)
	}
	if hadPresence && entry.RoomCode != "" {
		if _, ok := h.store.GetRoom(entry.RoomCode); ok {
			h.broadcast(entry.RoomCode, models.EventPlayerStatsUpdate, models.PlayerStatsPayload{PlayerStats: h.agg.PlayerStats(entry.RoomCode)})
		}
	}
	h.log.Debug("connection closed", zap.String("conn", client.ID))
}

func marshal(in interface{}, out interface{}) {
	b, _ := json.Marshal(in)
	_ = json.Unmarshal(b, out)
}

func errFrame(msg string) models.WSFrame {
	return models.WSFrame{Type: models.EventError, Data: models.ErrorPayload{Message: msg}}
}
