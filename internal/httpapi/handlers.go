package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toptrumps-live/match-backend/internal/deck"
	"github.com/toptrumps-live/match-backend/internal/engine"
	"github.com/toptrumps-live/match-backend/internal/hub"
	"github.com/toptrumps-live/match-backend/internal/match"
	"github.com/toptrumps-live/match-backend/internal/store"
)

// GenerateCode mints a 6-character shareable join code.
func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type api struct {
	hub   *hub.Hub
	store store.MatchStore
	decks deck.Source
	log   *zap.Logger
}

type createMatchRequest struct {
	DeckID   string `json:"deck_id"`
	HostName string `json:"host_name"`
}

type createMatchResponse struct {
	Code     string `json:"code"`
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
}

// CreateMatch creates a lobby document with the caller seated as host.
func (a *api) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.DeckID == "" || req.HostName == "" {
		http.Error(w, "deck_id and host_name are required", http.StatusBadRequest)
		return
	}

	// The deck must exist before a match can reference it.
	if _, err := a.decks.GetDeck(r.Context(), req.DeckID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "deck not found", http.StatusNotFound)
			return
		}
		a.log.Error("loading deck failed", zap.String("deck_id", req.DeckID), zap.Error(err))
		http.Error(w, "deck unavailable", http.StatusInternalServerError)
		return
	}

	matchID := uuid.NewString()
	hostID := uuid.NewString()
	doc := engine.NewLobby(req.DeckID, hostID, req.HostName)

	var code string
	for {
		c, err := GenerateCode()
		if err != nil {
			http.Error(w, "failed to generate code", http.StatusInternalServerError)
			return
		}
		err = a.store.CreateMatch(r.Context(), matchID, c, doc)
		if errors.Is(err, store.ErrCodeTaken) {
			continue // collision on code, regenerate
		}
		if err != nil {
			a.log.Error("creating match failed", zap.Error(err))
			http.Error(w, "failed to create match", http.StatusInternalServerError)
			return
		}
		code = c
		break
	}

	if _, err := a.hub.Ensure(r.Context(), code); err != nil {
		a.log.Error("starting match actor failed", zap.String("code", code), zap.Error(err))
		http.Error(w, "failed to create match", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, createMatchResponse{
		Code:     code,
		MatchID:  matchID,
		PlayerID: hostID,
	})
}

type joinMatchRequest struct {
	Name string `json:"name"`
}

type joinMatchResponse struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
}

// JoinMatch seats a new player through the match actor, so concurrent joins
// serialize instead of overwriting each other.
func (a *api) JoinMatch(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req joinMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	actor, err := a.hub.Ensure(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}
		a.log.Error("resolving match failed", zap.String("code", code), zap.Error(err))
		http.Error(w, "match unavailable", http.StatusInternalServerError)
		return
	}

	playerID := uuid.NewString()
	reply := make(chan error, 1)
	actor.Inbox() <- match.FromClient{
		Cmd:   engine.Command{Type: engine.CmdJoin, PlayerID: playerID, Name: req.Name},
		Reply: reply,
	}

	select {
	case err = <-reply:
	case <-time.After(5 * time.Second):
		http.Error(w, "timed out, try again", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, joinMatchResponse{MatchID: actor.ID(), PlayerID: playerID})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrLobbyFull),
		errors.Is(err, engine.ErrAlreadyStarted),
		errors.Is(err, engine.ErrAlreadyJoined):
		return http.StatusConflict
	case errors.Is(err, match.ErrStaleState):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
