package engine

import (
	"slices"

	"github.com/toptrumps-live/match-backend/internal/deck"
)

type Status string

const (
	StatusLobby     Status = "lobby"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// MaxPlayers is the lobby capacity.
const MaxPlayers = 4

// DrawName is the winner name recorded when every remaining player runs out
// of cards at once. The odd phrasing is kept for client compatibility.
const DrawName = "No One (Draw)"

type Player struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Hand       []deck.Card `json:"hand"`
	Eliminated bool        `json:"eliminated"`
}

// PlayedCard is one card exposed during a round, with the value it compared
// at. Kept for display/replay only.
type PlayedCard struct {
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Card       deck.Card `json:"card"`
	Value      float64   `json:"value"`
}

// WarRound is one comparison iteration inside a round. WinnerID is empty
// while the iteration ended in a tie.
type WarRound struct {
	WinnerID string       `json:"winnerId,omitempty"`
	Plays    []PlayedCard `json:"plays"`
}

// RoundRecord describes the most recently completed round, including the
// full war history. It never drives engine logic.
type RoundRecord struct {
	Category    string       `json:"category"`
	WinnerID    string       `json:"winnerId,omitempty"`
	WinnerName  string       `json:"winnerName,omitempty"`
	WarHistory  []WarRound   `json:"warHistory"`
	CardsPlayed []PlayedCard `json:"cardsPlayed"`
}

type ChatMessage struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Text       string `json:"text"`
}

// Match is the shared authoritative document. Player index 0 is the host.
type Match struct {
	DeckID       string        `json:"deckId"`
	Players      []Player      `json:"players"`
	Pot          []deck.Card   `json:"pot"`
	TurnPlayerID string        `json:"turnPlayerId,omitempty"`
	WarMode      bool          `json:"warMode"`
	LastRound    *RoundRecord  `json:"lastRound,omitempty"`
	Winner       *Player       `json:"winner,omitempty"`
	Status       Status        `json:"status"`
	Chat         []ChatMessage `json:"chat"`
}

// NewLobby creates a fresh match document with the host seated.
func NewLobby(deckID, hostID, hostName string) Match {
	return Match{
		DeckID: deckID,
		Players: []Player{
			{ID: hostID, Name: hostName, Hand: []deck.Card{}},
		},
		Pot:    []deck.Card{},
		Status: StatusLobby,
		Chat:   []ChatMessage{},
	}
}

// Clone deep-copies the mutable parts of a match so Apply can stay pure.
// LastRound and Winner are write-once records and share backing storage.
func (m Match) Clone() Match {
	next := m
	next.Players = make([]Player, len(m.Players))
	for i, p := range m.Players {
		p.Hand = slices.Clone(p.Hand)
		next.Players[i] = p
	}
	next.Pot = slices.Clone(m.Pot)
	next.Chat = slices.Clone(m.Chat)
	return next
}

// Player returns a pointer into m.Players, or nil if the id is unknown.
func (m *Match) Player(id string) *Player {
	for i := range m.Players {
		if m.Players[i].ID == id {
			return &m.Players[i]
		}
	}
	return nil
}

// HostID returns the identity of the host (first joiner), or "" before any
// player is seated.
func (m *Match) HostID() string {
	if len(m.Players) == 0 {
		return ""
	}
	return m.Players[0].ID
}

// Remaining returns the non-eliminated players in join order.
func (m *Match) Remaining() []*Player {
	var out []*Player
	for i := range m.Players {
		if !m.Players[i].Eliminated {
			out = append(out, &m.Players[i])
		}
	}
	return out
}

// finish applies the end-of-round completion check shared by round
// resolution and concession: mark empty hands eliminated, complete the
// match when at most one player remains, and keep the turn on a live
// player.
func (m *Match) finish() []Event {
	var events []Event
	for i := range m.Players {
		p := &m.Players[i]
		if len(p.Hand) == 0 && !p.Eliminated {
			p.Eliminated = true
			events = append(events, Event{Type: EvtPlayerEliminated, PlayerID: p.ID})
		}
	}

	remaining := m.Remaining()
	switch len(remaining) {
	case 1:
		w := *remaining[0]
		m.Winner = &w
		m.Status = StatusCompleted
		events = append(events, Event{Type: EvtMatchCompleted, PlayerID: w.ID})
	case 0:
		m.Winner = &Player{Name: DrawName}
		m.Status = StatusCompleted
		events = append(events, Event{Type: EvtMatchCompleted})
	}

	if m.Status != StatusCompleted {
		cur := m.Player(m.TurnPlayerID)
		if cur == nil || cur.Eliminated {
			// Deterministic fallback: first remaining player in join
			// order, not a round-robin successor.
			m.TurnPlayerID = remaining[0].ID
		}
	}
	return events
}
