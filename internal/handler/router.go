package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"socialnet/internal/auth"
	"socialnet/internal/handler/api"
	"socialnet/internal/handler/ws"
	middlewarePkg "socialnet/internal/middleware"
	"socialnet/internal/service/hub"
	"socialnet/internal/store"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(st *store.Store, signer *auth.Signer, chatHub *hub.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	apiHandler := api.New(st, signer)
	wsHandler := ws.New(chatHub)

	r.Post("/api", apiHandler.Handle)
	r.Get("/ws", wsHandler.Handle)

	return r
}
