package types

import "github.com/toptrumps-live/match-backend/internal/engine"

type ClientMessage struct {
	Type     string `json:"type"` // "Start" | "ChooseCategory" | "Concede" | "Chat"
	Category string `json:"category,omitempty"`
	Text     string `json:"text,omitempty"`
}

type ServerMessage struct {
	Type    string        `json:"type"` // "StateSnapshot" | "Error"
	Version int64         `json:"version,omitempty"`
	State   *engine.Match `json:"state,omitempty"`
	Error   string        `json:"error,omitempty"`
}
