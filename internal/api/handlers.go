package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"poemgrid/internal/admin"
	"poemgrid/internal/hub"
	"poemgrid/internal/metrics"
	"poemgrid/internal/models"
	"poemgrid/internal/presence"
	"poemgrid/internal/store"
	"poemgrid/internal/utils"
)

// createAttempts bounds the rejection-sampling loop for room codes.
const createAttempts = 100

type Handlers struct {
	log      *zap.Logger
	store    *store.Store
	presence *presence.Tracker
	hub      *hub.Hub
	agg      *admin.Aggregator
	secret   []byte
	upgrader websocket.Upgrader

	// GenerateCode produces candidate 6-digit room codes; replaced in tests.
	GenerateCode func() string
}

func NewHandlers(log *zap.Logger, s *store.Store, p *presence.Tracker, h *hub.Hub, agg *admin.Aggregator, secret []byte) *Handlers {
	return &Handlers{
		log:      log,
		store:    s,
		presence: p,
		hub:      h,
		agg:      agg,
		secret:   secret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		GenerateCode: func() string {
			return fmt.Sprintf("%06d", rand.Intn(900000)+100000)
		},
	}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// Register validates a free-text username and hands back a user token.
// Usernames are not authenticated beyond these shape checks.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{Success: false, Message: "invalid json"})
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{Success: false, Message: "username must not be empty"})
		return
	}
	if utf8.RuneCountInString(username) > models.MaxUsernameLen {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{Success: false, Message: "username must not exceed 20 characters"})
		return
	}
	token, err := utils.GenerateUserToken(username, h.secret)
	if err != nil {
		h.log.Error("sign user token failed", zap.Error(err))
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{Success: false, Message: "registration failed"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.RegisterResponse{
		Success:  true,
		UserID:   uuid.New().String(),
		Username: username,
		Token:    token,
	})
}

// CreateRoom picks a free 6-digit code by rejection sampling and creates
// the room with the caller as sole player.
func (h *Handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	username, ok := h.authUser(w, r)
	if !ok {
		return
	}
	for i := 0; i < createAttempts; i++ {
		code := h.GenerateCode()
		created, err := h.store.CreateRoom(code, username)
		if err != nil {
			utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{Success: false, Message: "failed to save room"})
			return
		}
		if !created {
			continue
		}
		token, err := utils.GenerateRoomToken(code, username, h.secret)
		if err != nil {
			h.log.Error("sign room token failed", zap.Error(err))
			utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{Success: false, Message: "room creation failed"})
			return
		}
		h.notifyAdmins()
		utils.WriteJSON(w, http.StatusOK, models.CreateRoomResponse{
			Success:   true,
			RoomCode:  code,
			RoomToken: token,
		})
		return
	}
	utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{Success: false, Message: "room creation failed"})
}

func (h *Handlers) JoinRoom(w http.ResponseWriter, r *http.Request) {
	username, ok := h.authUser(w, r)
	if !ok {
		return
	}
	var req models.JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{Success: false, Message: "invalid json"})
		return
	}
	code := strings.TrimSpace(req.RoomCode)
	if code == "" {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{Success: false, Message: "room code must not be empty"})
		return
	}
	joined, err := h.store.JoinRoom(code, username)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{Success: false, Message: "failed to save room"})
		return
	}
	if !joined {
		utils.WriteJSON(w, http.StatusNotFound, models.Resp{Success: false, Message: "room not found"})
		return
	}
	token, err := utils.GenerateRoomToken(code, username, h.secret)
	if err != nil {
		h.log.Error("sign room token failed", zap.Error(err))
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{Success: false, Message: "join failed"})
		return
	}
	h.notifyAdmins()
	utils.WriteJSON(w, http.StatusOK, models.JoinRoomResponse{
		Success:   true,
		RoomCode:  code,
		RoomToken: token,
	})
}

func (h *Handlers) GetRoomInfo(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	room, ok := h.store.GetRoom(code)
	if !ok {
		utils.WriteJSON(w, http.StatusNotFound, models.Resp{Success: false, Message: "room not found"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.RoomInfoResponse{
		Success: true,
		Room: models.RoomInfo{
			Code:      room.Code,
			Creator:   room.Creator,
			Players:   room.Players,
			CreatedAt: room.CreatedAt,
		},
	})
}

func (h *Handlers) GetRoomStats(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if _, ok := h.authMember(w, r, code); !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.RoomStatsResponse{
		Success:     true,
		PlayerStats: h.agg.PlayerStats(code),
	})
}

func (h *Handlers) GetPoems(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	room, ok := h.store.GetRoom(code)
	if !ok {
		utils.WriteJSON(w, http.StatusNotFound, models.Resp{Success: false, Message: "room not found"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, room.GameData.Poems)
}

func (h *Handlers) GetGrid(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	room, ok := h.store.GetRoom(code)
	if !ok {
		utils.WriteJSON(w, http.StatusNotFound, models.Resp{Success: false, Message: "room not found"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, room.GameData.Grid)
}

// GetLegacyState exposes the superseded global game document. Read-only;
// per-room state replaced it, but old clients still poll this shape.
func (h *Handlers) GetLegacyState(w http.ResponseWriter, _ *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.store.LegacyState())
}

// AddPoem validates the payload up front so a malformed poem is a 400, not
// a failure deep inside grid placement.
func (h *Handlers) AddPoem(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	username, ok := h.authMember(w, r, code)
	if !ok {
		return
	}
	var req models.AddPoemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{Success: false, Message: "invalid json"})
		return
	}
	if msg, valid := validatePoem(req); !valid {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{Success: false, Message: msg})
		return
	}
	poem, err := h.store.AddPoem(code, username, req)
	if errors.Is(err, store.ErrRoomNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, models.Resp{Success: false, Message: "room not found"})
		return
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{Success: false, Message: "failed to save poem"})
		return
	}

	// Primary event first, recomputed stats second, so clients never see
	// stats stale relative to the poem list.
	h.broadcast(code, models.EventPoemAdded, models.PoemAddedPayload{Poem: poem, Author: username})
	h.broadcast(code, models.EventPlayerStatsUpdate, models.PlayerStatsPayload{PlayerStats: h.agg.PlayerStats(code)})
	h.notifyAdmins()

	utils.WriteJSON(w, http.StatusOK, models.AddPoemResponse{Success: true, Poem: poem})
}

func (h *Handlers) ResetGame(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	username, ok := h.authMember(w, r, code)
	if !ok {
		return
	}
	if err := h.store.ResetGame(code); err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, models.Resp{Success: false, Message: "room not found"})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{Success: false, Message: "failed to save room"})
		return
	}
	h.broadcast(code, models.EventGameReset, models.GameResetPayload{ResetBy: username})
	h.notifyAdmins()
	utils.WriteJSON(w, http.StatusOK, models.Resp{Success: true})
}

func (h *Handlers) AdminRooms(w http.ResponseWriter, r *http.Request) {
	username, ok := h.authUser(w, r)
	if !ok {
		return
	}
	info, err := h.agg.RoomsInfo(username)
	if err != nil {
		utils.WriteJSON(w, http.StatusForbidden, models.Resp{Success: false, Message: "permission denied"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.AdminRoomsResponse{
		Success:      true,
		Rooms:        info.Rooms,
		TotalRooms:   info.TotalRooms,
		TotalPlayers: info.TotalPlayers,
	})
}

// AdminDeleteRoom tears down a room, notifying its channel before anyone
// is disconnected.
func (h *Handlers) AdminDeleteRoom(w http.ResponseWriter, r *http.Request) {
	username, ok := h.authUser(w, r)
	if !ok {
		return
	}
	if !h.agg.Authorize(username) {
		utils.WriteJSON(w, http.StatusForbidden, models.Resp{Success: false, Message: "permission denied"})
		return
	}
	code := chi.URLParam(r, "code")
	players, err := h.store.DeleteRoom(code)
	if errors.Is(err, store.ErrPermissionDenied) {
		utils.WriteJSON(w, http.StatusForbidden, models.Resp{Success: false, Message: "cannot delete the admin room"})
		return
	}
	if errors.Is(err, store.ErrRoomNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, models.Resp{Success: false, Message: "room not found"})
		return
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{Success: false, Message: "failed to save room"})
		return
	}

	h.broadcast(code, models.EventRoomDeleted, models.RoomDeletedPayload{
		RoomCode:  code,
		Message:   fmt.Sprintf("room %s was deleted by the admin", code),
		DeletedBy: username,
	})
	h.notifyAdmins()

	utils.WriteJSON(w, http.StatusOK, models.DeleteRoomResponse{
		Success:         true,
		Message:         fmt.Sprintf("room %s deleted", code),
		AffectedPlayers: players,
	})
}

// JoinAdminRoom creates the reserved admin room on first access and issues
// a membership token for it.
func (h *Handlers) JoinAdminRoom(w http.ResponseWriter, r *http.Request) {
	username, ok := h.authUser(w, r)
	if !ok {
		return
	}
	if !h.agg.Authorize(username) {
		utils.WriteJSON(w, http.StatusForbidden, models.Resp{Success: false, Message: "permission denied"})
		return
	}
	if err := h.store.EnsureAdminRoom(username); err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{Success: false, Message: "failed to save room"})
		return
	}
	token, err := utils.GenerateRoomToken(models.AdminRoomCode, username, h.secret)
	if err != nil {
		h.log.Error("sign room token failed", zap.Error(err))
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{Success: false, Message: "join failed"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.JoinRoomResponse{
		Success:   true,
		RoomCode:  models.AdminRoomCode,
		RoomToken: token,
	})
}

/*** helpers ***/

func validatePoem(req models.AddPoemRequest) (string, bool) {
	if strings.TrimSpace(req.Text) == "" {
		return "poem text must not be empty", false
	}
	if req.Direction != models.DirHorizontal && req.Direction != models.DirVertical {
		return "direction must be horizontal or vertical", false
	}
	p := req.StartPosition
	if p.X < 0 || p.X >= models.GridSize || p.Y < 0 || p.Y >= models.GridSize {
		return "start position out of range", false
	}
	if strings.TrimSpace(req.Color) == "" {
		return "color must not be empty", false
	}
	return "", true
}

// authUser resolves the caller's username from a bearer user token.
func (h *Handlers) authUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, err := utils.ExtractTokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, models.Resp{Success: false, Message: "please register first"})
		return "", false
	}
	claims, err := utils.ValidateUserToken(token, h.secret)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, models.Resp{Success: false, Message: "invalid token"})
		return "", false
	}
	return claims.Username, true
}

// authMember requires a room token for the given room whose holder is still
// in the player list.
func (h *Handlers) authMember(w http.ResponseWriter, r *http.Request, code string) (string, bool) {
	token, err := utils.ExtractTokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, models.Resp{Success: false, Message: "please register first"})
		return "", false
	}
	claims, err := utils.ValidateRoomToken(token, h.secret)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, models.Resp{Success: false, Message: "invalid token"})
		return "", false
	}
	if claims.RoomCode != code || !h.store.IsMember(code, claims.Username) {
		utils.WriteJSON(w, http.StatusForbidden, models.Resp{Success: false, Message: "you are not in this room"})
		return "", false
	}
	return claims.Username, true
}

// broadcast fans an event out to the room's channel after the store lock
// has been released.
func (h *Handlers) broadcast(code, event string, data interface{}) {
	metrics.CountEvent(event)
	h.hub.Broadcast(code, models.WSFrame{Type: event, Data: data})
}

// notifyAdmins pushes a fresh cross-room summary to the admin channel after
// a mutation, and refreshes the room gauge while we are here.
func (h *Handlers) notifyAdmins() {
	metrics.SetLiveRooms(h.store.RoomCount())
	if h.hub.ClientCount(models.AdminRoomCode) == 0 {
		return
	}
	info, err := h.agg.RoomsInfo(h.agg.AdminName())
	if err != nil {
		return
	}
	h.broadcast(models.AdminRoomCode, models.EventAdminRoomsInfo, info)
}
