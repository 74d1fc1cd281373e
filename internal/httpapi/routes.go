package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/toptrumps-live/match-backend/internal/deck"
	"github.com/toptrumps-live/match-backend/internal/hub"
	"github.com/toptrumps-live/match-backend/internal/store"
	"github.com/toptrumps-live/match-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, st store.MatchStore, decks deck.Source, log *zap.Logger) http.Handler {
	a := &api{hub: h, store: st, decks: decks, log: log.Named("httpapi")}

	r := chi.NewRouter()

	// Public routes
	r.Post("/matches", a.CreateMatch)
	r.Post("/matches/{code}/join", a.JoinMatch)
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, log))
	return r
}
