package models

/*** HTTP request/response shapes ***/

// Resp is the common success/message envelope.
type Resp struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username"`
}

type RegisterResponse struct {
	Success  bool   `json:"success"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
	Message  string `json:"message,omitempty"`
}

type CreateRoomResponse struct {
	Success   bool   `json:"success"`
	RoomCode  string `json:"room_code"`
	RoomToken string `json:"room_token"`
	Message   string `json:"message,omitempty"`
}

type JoinRoomRequest struct {
	RoomCode string `json:"room_code"`
}

type JoinRoomResponse struct {
	Success   bool   `json:"success"`
	RoomCode  string `json:"room_code"`
	RoomToken string `json:"room_token"`
	Message   string `json:"message,omitempty"`
}

type RoomInfo struct {
	Code      string   `json:"code"`
	Creator   string   `json:"creator"`
	Players   []string `json:"players"`
	CreatedAt string   `json:"created_at"`
}

type RoomInfoResponse struct {
	Success bool     `json:"success"`
	Room    RoomInfo `json:"room"`
}

type RoomStatsResponse struct {
	Success     bool                  `json:"success"`
	PlayerStats map[string]PlayerStat `json:"player_stats"`
}

type AddPoemRequest struct {
	Text          string    `json:"text"`
	Direction     Direction `json:"direction"`
	StartPosition Position  `json:"startPosition"`
	Color         string    `json:"color"`
	ConnectedTo   []string  `json:"connectedTo,omitempty"`
}

type AddPoemResponse struct {
	Success bool   `json:"success"`
	Poem    Poem   `json:"poem"`
	Message string `json:"message,omitempty"`
}

type AdminRoomsResponse struct {
	Success      bool          `json:"success"`
	Rooms        []RoomSummary `json:"rooms"`
	TotalRooms   int           `json:"total_rooms"`
	TotalPlayers int           `json:"total_players"`
}

type DeleteRoomResponse struct {
	Success         bool     `json:"success"`
	Message         string   `json:"message"`
	AffectedPlayers []string `json:"affected_players"`
}
