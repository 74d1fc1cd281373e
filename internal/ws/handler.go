package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toptrumps-live/match-backend/internal/engine"
	"github.com/toptrumps-live/match-backend/internal/hub"
	"github.com/toptrumps-live/match-backend/internal/match"
	"github.com/toptrumps-live/match-backend/internal/store"
	"github.com/toptrumps-live/match-backend/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	pingInterval = 30 * time.Second
	replyTimeout = 5 * time.Second
)

// Handler upgrades a client connection and bridges it to the match actor:
// snapshots flow out on every committed version, commands flow in stamped
// with the player identity from the query string.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	log = log.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		playerID := r.URL.Query().Get("player")
		if code == "" || playerID == "" {
			http.Error(w, "missing code or player", http.StatusBadRequest)
			return
		}

		a, err := h.Ensure(r.Context(), code)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "match not found", http.StatusNotFound)
				return
			}
			log.Error("resolving match failed", zap.String("code", code), zap.Error(err))
			http.Error(w, "match unavailable", http.StatusInternalServerError)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan match.Snapshot, 8)
		clientID := uuid.NewString()

		a.Inbox() <- match.Subscribe{ClientID: clientID, Outbox: out}
		defer func() { a.Inbox() <- match.Unsubscribe{ClientID: clientID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				msg := types.ServerMessage{Type: "StateSnapshot", Version: snap.Version, State: &snap.State}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Keepalive. Spectators may never send a command, so liveness comes
		// from pings, not a read deadline; a dead peer fails the ping, which
		// closes the connection and unblocks the reader.
		go func() {
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-writeCtx.Done():
					return
				case <-ticker.C:
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					err := conn.Ping(ctx)
					cancel()
					if err != nil {
						conn.Close(websocket.StatusPolicyViolation, "ping failed")
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			cmd, ok := toEngineCommand(cm, playerID)
			if !ok {
				writeError(r.Context(), conn, "unknown type")
				continue
			}

			reply := make(chan error, 1)
			a.Inbox() <- match.FromClient{Cmd: cmd, Reply: reply}
			select {
			case err := <-reply:
				if err != nil {
					writeError(r.Context(), conn, err.Error())
				}
			case <-time.After(replyTimeout):
				writeError(r.Context(), conn, "timed out, try again")
			}
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(types.ServerMessage{Type: "Error", Error: msg})
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

func toEngineCommand(m types.ClientMessage, playerID string) (engine.Command, bool) {
	switch m.Type {
	case "Start":
		return engine.Command{Type: engine.CmdStart, PlayerID: playerID}, true
	case "ChooseCategory":
		return engine.Command{Type: engine.CmdChooseCategory, PlayerID: playerID, Category: m.Category}, true
	case "Concede":
		return engine.Command{Type: engine.CmdConcede, PlayerID: playerID}, true
	case "Chat":
		return engine.Command{Type: engine.CmdChat, PlayerID: playerID, Text: m.Text}, true
	default:
		return engine.Command{}, false
	}
}
