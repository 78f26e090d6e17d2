package models

/*** Realtime event protocol ***/

// WSFrame is the envelope for every realtime message in both directions.
type WSFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Server -> client event types.
const (
	EventUserJoined          = "user_joined"
	EventUserLeft            = "user_left"
	EventRoomStatus          = "room_status"
	EventPoemAdded           = "poem_added"
	EventPlayerStatsUpdate   = "player_stats_update"
	EventEditingStatusUpdate = "editing_status_update"
	EventGameReset           = "game_reset"
	EventRoomDeleted         = "room_deleted"
	EventAdminRoomsInfo      = "admin_rooms_info"
	EventError               = "error"
)

// Client -> server message types.
const (
	MsgJoinRoom              = "join_room"
	MsgLeaveRoom             = "leave_room"
	MsgStartEditing          = "start_editing"
	MsgStopEditing           = "stop_editing"
	MsgUpdateEditingPosition = "update_editing_position"
	MsgRequestAdminRooms     = "request_admin_rooms_info"
)

type UserJoinedPayload struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

type UserLeftPayload struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

type RoomStatusPayload struct {
	Players      []string               `json:"players"`
	EditingUsers map[string]EditingMark `json:"editing_users"`
	PlayerStats  map[string]PlayerStat  `json:"player_stats"`
}

type PoemAddedPayload struct {
	Poem   Poem   `json:"poem"`
	Author string `json:"author"`
}

type PlayerStatsPayload struct {
	PlayerStats map[string]PlayerStat `json:"player_stats"`
}

type EditingStatusPayload struct {
	EditingUsers map[string]EditingMark `json:"editing_users"`
}

type GameResetPayload struct {
	ResetBy string `json:"reset_by"`
}

type RoomDeletedPayload struct {
	RoomCode  string `json:"room_code"`
	Message   string `json:"message"`
	DeletedBy string `json:"deleted_by"`
}

type AdminRoomsPayload struct {
	Rooms        []RoomSummary `json:"rooms"`
	TotalRooms   int           `json:"total_rooms"`
	TotalPlayers int           `json:"total_players"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type JoinRoomMessage struct {
	RoomCode string `json:"room_code"`
	Token    string `json:"token"`
}

type LeaveRoomMessage struct {
	RoomCode string `json:"room_code"`
}

type EditingMessage struct {
	RoomCode string   `json:"room_code"`
	Position Position `json:"position"`
}
