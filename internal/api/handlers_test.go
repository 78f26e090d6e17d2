package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"poemgrid/internal/admin"
	"poemgrid/internal/api"
	"poemgrid/internal/hub"
	"poemgrid/internal/models"
	"poemgrid/internal/presence"
	"poemgrid/internal/routers"
	"poemgrid/internal/store"
)

var testSecret = []byte("test-secret")

type env struct {
	router   http.Handler
	handlers *api.Handlers
	store    *store.Store
	hub      *hub.Hub
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s, err := store.NewStore(store.NewRedisPersister(client), zap.NewNop())
	require.NoError(t, err)

	tr := presence.NewTracker()
	bh := hub.NewHub()
	agg := admin.NewAggregator(s, tr, "管理员")
	h := api.NewHandlers(zap.NewNop(), s, tr, bh, agg, testSecret)
	h.GenerateCode = func() string { return "123456" }

	return &env{
		router:   routers.New(h),
		handlers: h,
		store:    s,
		hub:      bh,
	}
}

func (e *env) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) register(t *testing.T, username string) string {
	t.Helper()
	w := e.do(t, "POST", "/api/v1/auth/register", "", models.RegisterRequest{Username: username})
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.RegisterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func (e *env) createRoom(t *testing.T, userToken string) models.CreateRoomResponse {
	t.Helper()
	w := e.do(t, "POST", "/api/v1/rooms", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.CreateRoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRegisterValidation(t *testing.T) {
	e := setupEnv(t)

	w := e.do(t, "POST", "/api/v1/auth/register", "", models.RegisterRequest{Username: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, "POST", "/api/v1/auth/register", "", models.RegisterRequest{Username: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	long := ""
	for i := 0; i < 21; i++ {
		long += "字"
	}
	w = e.do(t, "POST", "/api/v1/auth/register", "", models.RegisterRequest{Username: long})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Exactly twenty runes is still fine.
	w = e.do(t, "POST", "/api/v1/auth/register", "", models.RegisterRequest{Username: long[:len(long)-len("字")]})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateRoomRequiresToken(t *testing.T) {
	e := setupEnv(t)
	w := e.do(t, "POST", "/api/v1/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateRoomWithMockedGenerator(t *testing.T) {
	e := setupEnv(t)
	token := e.register(t, "Alice")

	resp := e.createRoom(t, token)
	assert.Equal(t, "123456", resp.RoomCode)
	assert.NotEmpty(t, resp.RoomToken)

	room, ok := e.store.GetRoom("123456")
	require.True(t, ok)
	assert.Equal(t, "Alice", room.Creator)
	assert.Equal(t, []string{"Alice"}, room.Players)
}

func TestDefaultCodeGenerator(t *testing.T) {
	h := api.NewHandlers(zap.NewNop(), nil, nil, nil, nil, testSecret)

	for i := 0; i < 1000; i++ {
		code := h.GenerateCode()
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestCreateRoomRetriesOnCollision(t *testing.T) {
	e := setupEnv(t)
	codes := []string{"123456", "123456", "654321"}
	e.handlers.GenerateCode = func() string {
		c := codes[0]
		if len(codes) > 1 {
			codes = codes[1:]
		}
		return c
	}

	alice := e.register(t, "Alice")
	first := e.createRoom(t, alice)
	assert.Equal(t, "123456", first.RoomCode)

	bob := e.register(t, "Bob")
	second := e.createRoom(t, bob)
	assert.Equal(t, "654321", second.RoomCode)
}

func TestJoinRoom(t *testing.T) {
	e := setupEnv(t)
	alice := e.register(t, "Alice")
	e.createRoom(t, alice)

	bob := e.register(t, "Bob")
	w := e.do(t, "POST", "/api/v1/rooms/join", bob, models.JoinRoomRequest{RoomCode: "123456"})
	require.Equal(t, http.StatusOK, w.Code)

	room, _ := e.store.GetRoom("123456")
	assert.Equal(t, []string{"Alice", "Bob"}, room.Players)
}

func TestJoinRoomNotFound(t *testing.T) {
	e := setupEnv(t)
	bob := e.register(t, "Bob")

	w := e.do(t, "POST", "/api/v1/rooms/join", bob, models.JoinRoomRequest{RoomCode: "999999"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJoinRoomEmptyCode(t *testing.T) {
	e := setupEnv(t)
	bob := e.register(t, "Bob")

	w := e.do(t, "POST", "/api/v1/rooms/join", bob, models.JoinRoomRequest{RoomCode: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRoomInfo(t *testing.T) {
	e := setupEnv(t)
	alice := e.register(t, "Alice")
	e.createRoom(t, alice)

	w := e.do(t, "GET", "/api/v1/rooms/123456", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.RoomInfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "123456", resp.Room.Code)
	assert.Equal(t, "Alice", resp.Room.Creator)

	w = e.do(t, "GET", "/api/v1/rooms/999999", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoomStatsRequiresMembership(t *testing.T) {
	e := setupEnv(t)
	alice := e.register(t, "Alice")
	created := e.createRoom(t, alice)

	// No token at all.
	w := e.do(t, "GET", "/api/v1/rooms/123456/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A user token is not a room token.
	w = e.do(t, "GET", "/api/v1/rooms/123456/stats", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The room token works.
	w = e.do(t, "GET", "/api/v1/rooms/123456/stats", created.RoomToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.RoomStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.PlayerStats["Alice"].PoemCount)
}

func TestRoomTokenIsScopedToItsRoom(t *testing.T) {
	e := setupEnv(t)
	alice := e.register(t, "Alice")
	first := e.createRoom(t, alice)

	e.handlers.GenerateCode = func() string { return "654321" }
	bob := e.register(t, "Bob")
	e.createRoom(t, bob)

	w := e.do(t, "GET", "/api/v1/rooms/654321/stats", first.RoomToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAddPoemValidation(t *testing.T) {
	e := setupEnv(t)
	alice := e.register(t, "Alice")
	created := e.createRoom(t, alice)

	cases := []models.AddPoemRequest{
		{Text: "", Direction: models.DirHorizontal, StartPosition: models.Position{X: 0, Y: 0}, Color: "#fff"},
		{Text: "诗", Direction: "diagonal", StartPosition: models.Position{X: 0, Y: 0}, Color: "#fff"},
		{Text: "诗", Direction: models.DirHorizontal, StartPosition: models.Position{X: 100, Y: 0}, Color: "#fff"},
		{Text: "诗", Direction: models.DirHorizontal, StartPosition: models.Position{X: 0, Y: -1}, Color: "#fff"},
		{Text: "诗", Direction: models.DirHorizontal, StartPosition: models.Position{X: 0, Y: 0}, Color: ""},
	}
	for i, c := range cases {
		w := e.do(t, "POST", "/api/v1/rooms/123456/poems", created.RoomToken, c)
		assert.Equalf(t, http.StatusBadRequest, w.Code, "case %d", i)
	}

	// Nothing reached the room.
	room, _ := e.store.GetRoom("123456")
	assert.Empty(t, room.GameData.Poems)
}

func fetchGrid(t *testing.T, e *env, code string) models.Grid {
	t.Helper()
	w := e.do(t, "GET", "/api/v1/rooms/"+code+"/grid", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var g models.Grid
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	return g
}

func TestAddPoemEdgePlacement(t *testing.T) {
	e := setupEnv(t)
	alice := e.register(t, "Alice")
	created := e.createRoom(t, alice)

	w := e.do(t, "POST", "/api/v1/rooms/123456/poems", created.RoomToken, models.AddPoemRequest{
		Text:          "诗",
		Direction:     models.DirHorizontal,
		StartPosition: models.Position{X: 98, Y: 0},
		Color:         "#fff",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.AddPoemResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Regexp(t, `^poem_001_\d+$`, resp.Poem.ID)
	assert.Equal(t, "Alice", resp.Poem.Author)
	assert.NotEmpty(t, resp.Poem.CreatedAt)

	g := fetchGrid(t, e, "123456")
	require.NotNil(t, g[0][98])
	assert.Equal(t, "诗", g[0][98].Char)
	assert.Nil(t, g[0][99])

	// A two-character poem starting on the last column is clipped, not
	// rejected.
	w = e.do(t, "POST", "/api/v1/rooms/123456/poems", created.RoomToken, models.AddPoemRequest{
		Text:          "诗词",
		Direction:     models.DirHorizontal,
		StartPosition: models.Position{X: 99, Y: 1},
		Color:         "#fff",
	})
	require.Equal(t, http.StatusOK, w.Code)

	g = fetchGrid(t, e, "123456")
	require.NotNil(t, g[1][99])
	assert.Equal(t, "诗", g[1][99].Char)
}

func TestAddPoemBroadcastOrdering(t *testing.T) {
	e := setupEnv(t)
	alice := e.register(t, "Alice")
	created := e.createRoom(t, alice)

	var frames []models.WSFrame
	c := hub.NewClient(nil)
	c.SetSendHook(func(f models.WSFrame) { frames = append(frames, f) })
	e.hub.Join("123456", c)

	w := e.do(t, "POST", "/api/v1/rooms/123456/poems", created.RoomToken, models.AddPoemRequest{
		Text:          "明月几时有",
		Direction:     models.DirVertical,
		StartPosition: models.Position{X: 10, Y: 10},
		Color:         "#abc",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// poem_added first, then the recomputed stats.
	require.Len(t, frames, 2)
	assert.Equal(t, models.EventPoemAdded, frames[0].Type)
	assert.Equal(t, models.EventPlayerStatsUpdate, frames[1].Type)

	stats := frames[1].Data.(models.PlayerStatsPayload).PlayerStats
	assert.Equal(t, 1, stats["Alice"].PoemCount)
}

func TestResetGame(t *testing.T) {
	e := setupEnv(t)
	alice := e.register(t, "Alice")
	created := e.createRoom(t, alice)

	_, err := e.store.AddPoem("123456", "Alice", models.AddPoemRequest{
		Text:          "诗",
		Direction:     models.DirHorizontal,
		StartPosition: models.Position{X: 5, Y: 5},
		Color:         "#fff",
	})
	require.NoError(t, err)

	var frames []models.WSFrame
	c := hub.NewClient(nil)
	c.SetSendHook(func(f models.WSFrame) { frames = append(frames, f) })
	e.hub.Join("123456", c)

	w := e.do(t, "POST", "/api/v1/rooms/123456/reset", created.RoomToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	room, _ := e.store.GetRoom("123456")
	assert.Empty(t, room.GameData.Poems)
	assert.Nil(t, room.GameData.Grid[5][5])

	require.Len(t, frames, 1)
	assert.Equal(t, models.EventGameReset, frames[0].Type)
	assert.Equal(t, "Alice", frames[0].Data.(models.GameResetPayload).ResetBy)
}

func TestAdminRoomsGating(t *testing.T) {
	e := setupEnv(t)
	alice := e.register(t, "Alice")
	e.createRoom(t, alice)

	w := e.do(t, "GET", "/api/v1/admin/rooms", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminTok := e.register(t, "管理员")
	w = e.do(t, "GET", "/api/v1/admin/rooms", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.AdminRoomsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalRooms)
	assert.Equal(t, 1, resp.TotalPlayers)
}

func TestAdminDeleteRoom(t *testing.T) {
	e := setupEnv(t)
	alice := e.register(t, "Alice")
	e.createRoom(t, alice)
	adminTok := e.register(t, "管理员")

	var frames []models.WSFrame
	c := hub.NewClient(nil)
	c.SetSendHook(func(f models.WSFrame) { frames = append(frames, f) })
	e.hub.Join("123456", c)

	w := e.do(t, "DELETE", "/api/v1/admin/rooms/123456", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.DeleteRoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Alice"}, resp.AffectedPlayers)

	_, ok := e.store.GetRoom("123456")
	assert.False(t, ok)

	// The channel heard about the teardown.
	require.NotEmpty(t, frames)
	assert.Equal(t, models.EventRoomDeleted, frames[0].Type)
	payload := frames[0].Data.(models.RoomDeletedPayload)
	assert.Equal(t, "123456", payload.RoomCode)
	assert.Equal(t, "管理员", payload.DeletedBy)
}

func TestAdminDeleteRefusesAdminRoom(t *testing.T) {
	e := setupEnv(t)
	adminTok := e.register(t, "管理员")

	w := e.do(t, "POST", "/api/v1/admin/room", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, "DELETE", fmt.Sprintf("/api/v1/admin/rooms/%s", models.AdminRoomCode), adminTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminDeleteRequiresAdmin(t *testing.T) {
	e := setupEnv(t)
	alice := e.register(t, "Alice")
	e.createRoom(t, alice)

	w := e.do(t, "DELETE", "/api/v1/admin/rooms/123456", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	_, ok := e.store.GetRoom("123456")
	assert.True(t, ok)
}

func TestJoinAdminRoom(t *testing.T) {
	e := setupEnv(t)
	adminTok := e.register(t, "管理员")

	w := e.do(t, "POST", "/api/v1/admin/room", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.JoinRoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.AdminRoomCode, resp.RoomCode)
	assert.NotEmpty(t, resp.RoomToken)

	room, ok := e.store.GetRoom(models.AdminRoomCode)
	require.True(t, ok)
	assert.Equal(t, []string{"管理员"}, room.Players)

	alice := e.register(t, "Alice")
	w = e.do(t, "POST", "/api/v1/admin/room", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminListingExcludesAdminRoom(t *testing.T) {
	e := setupEnv(t)
	adminTok := e.register(t, "管理员")
	e.do(t, "POST", "/api/v1/admin/room", adminTok, nil)

	w := e.do(t, "GET", "/api/v1/admin/rooms", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.AdminRoomsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.TotalRooms)
}

func TestGetPoemsSnapshot(t *testing.T) {
	e := setupEnv(t)
	alice := e.register(t, "Alice")
	created := e.createRoom(t, alice)

	w := e.do(t, "POST", "/api/v1/rooms/123456/poems", created.RoomToken, models.AddPoemRequest{
		Text:          "床前明月光",
		Direction:     models.DirHorizontal,
		StartPosition: models.Position{X: 0, Y: 0},
		Color:         "#fff",
		ConnectedTo:   []string{"poem_unknown_1"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, "GET", "/api/v1/rooms/123456/poems", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var poems []models.Poem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &poems))
	require.Len(t, poems, 1)
	// connectedTo is advisory metadata; unknown ids are kept verbatim.
	assert.Equal(t, []string{"poem_unknown_1"}, poems[0].ConnectedTo)
}

func TestGetLegacyState(t *testing.T) {
	e := setupEnv(t)

	w := e.do(t, "GET", "/api/v1/legacy", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var state models.GameState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Empty(t, state.Poems)
	assert.Len(t, state.Grid, models.GridSize)
	assert.NotEmpty(t, state.LastUpdated)
}

func TestHealthz(t *testing.T) {
	e := setupEnv(t)
	w := e.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
