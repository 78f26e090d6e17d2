package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"poemgrid/internal/api"
	"poemgrid/internal/metrics"
)

func New(h *api.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))
	r.Use(metrics.Middleware)

	r.Get("/healthz", h.Health)
	r.Method("GET", "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Get("/legacy", h.GetLegacyState)

		r.Post("/rooms", h.CreateRoom)
		r.Post("/rooms/join", h.JoinRoom)
		r.Get("/rooms/{code}", h.GetRoomInfo)
		r.Get("/rooms/{code}/stats", h.GetRoomStats)
		r.Get("/rooms/{code}/poems", h.GetPoems)
		r.Post("/rooms/{code}/poems", h.AddPoem)
		r.Get("/rooms/{code}/grid", h.GetGrid)
		r.Post("/rooms/{code}/reset", h.ResetGame)

		r.Get("/admin/rooms", h.AdminRooms)
		r.Delete("/admin/rooms/{code}", h.AdminDeleteRoom)
		r.Post("/admin/room", h.JoinAdminRoom)
	})

	r.Get("/ws", h.RoomWS)

	return r
}
