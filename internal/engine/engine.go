package engine

import (
	"errors"
	"strings"

	"github.com/toptrumps-live/match-backend/internal/deck"
)

var ErrLobbyFull = errors.New("lobby is full")
var ErrAlreadyJoined = errors.New("player already joined")
var ErrAlreadyStarted = errors.New("match already started")
var ErrNotHost = errors.New("only the host may do that")
var ErrNotEnoughPlayers = errors.New("need at least two players")
var ErrNoPlayers = errors.New("cannot deal to an empty player list")
var ErrNotStarted = errors.New("match not started")
var ErrMatchCompleted = errors.New("match already completed")
var ErrNotYourTurn = errors.New("not your turn")
var ErrUnknownPlayer = errors.New("player is not in this match")
var ErrEmptyChat = errors.New("empty chat message")
var ErrUnsupportedCommand = errors.New("unsupported command")

type CommandType string

const (
	CmdJoin           CommandType = "Join"
	CmdStart          CommandType = "Start"
	CmdChooseCategory CommandType = "ChooseCategory"
	CmdConcede        CommandType = "Concede"
	CmdChat           CommandType = "Chat"
)

type Command struct {
	Type     CommandType
	PlayerID string
	Name     string // Join only
	Category string // ChooseCategory only
	Text     string // Chat only
}

type EventType string

const (
	EvtPlayerJoined     EventType = "PlayerJoined"
	EvtHandsDealt       EventType = "HandsDealt"
	EvtRoundResolved    EventType = "RoundResolved"
	EvtWarTriggered     EventType = "WarTriggered"
	EvtPlayerEliminated EventType = "PlayerEliminated"
	EvtPlayerConceded   EventType = "PlayerConceded"
	EvtMatchCompleted   EventType = "MatchCompleted"
	EvtChatPosted       EventType = "ChatPosted"
)

type Event struct {
	Type     EventType
	PlayerID string
	Category string
	Wars     int // war iterations in a resolved round
}

// Apply runs one command against a match document and returns the events it
// produced plus the successor document. It never mutates its input: on any
// error the original match comes back unchanged. The deck is read-only
// context (card pool and category directions).
func Apply(m Match, d *deck.Deck, cmd Command) ([]Event, Match, error) {
	switch cmd.Type {
	case CmdJoin:
		return applyJoin(m, cmd)
	case CmdStart:
		return applyStart(m, d, cmd)
	case CmdChooseCategory:
		return applyChooseCategory(m, d, cmd)
	case CmdConcede:
		return applyConcede(m, cmd)
	case CmdChat:
		return applyChat(m, cmd)
	default:
		return nil, m, ErrUnsupportedCommand
	}
}

func applyJoin(m Match, cmd Command) ([]Event, Match, error) {
	if m.Status != StatusLobby {
		return nil, m, ErrAlreadyStarted
	}
	if len(m.Players) >= MaxPlayers {
		return nil, m, ErrLobbyFull
	}
	if m.Player(cmd.PlayerID) != nil {
		return nil, m, ErrAlreadyJoined
	}

	next := m.Clone()
	next.Players = append(next.Players, Player{
		ID:   cmd.PlayerID,
		Name: cmd.Name,
		Hand: []deck.Card{},
	})
	events := []Event{{Type: EvtPlayerJoined, PlayerID: cmd.PlayerID}}
	return events, next, nil
}

func applyStart(m Match, d *deck.Deck, cmd Command) ([]Event, Match, error) {
	if m.Status != StatusLobby {
		return nil, m, ErrAlreadyStarted
	}
	if cmd.PlayerID != m.HostID() {
		return nil, m, ErrNotHost
	}
	if len(m.Players) < 2 {
		return nil, m, ErrNotEnoughPlayers
	}

	next, err := Deal(m, d.Cards)
	if err != nil {
		return nil, m, err
	}
	events := []Event{{Type: EvtHandsDealt, PlayerID: cmd.PlayerID}}
	return events, next, nil
}

func applyChooseCategory(m Match, d *deck.Deck, cmd Command) ([]Event, Match, error) {
	switch m.Status {
	case StatusLobby:
		return nil, m, ErrNotStarted
	case StatusCompleted:
		return nil, m, ErrMatchCompleted
	}
	if m.Player(cmd.PlayerID) == nil {
		return nil, m, ErrUnknownPlayer
	}
	if cmd.PlayerID != m.TurnPlayerID {
		return nil, m, ErrNotYourTurn
	}
	return resolveRound(m, d, cmd.Category)
}

func applyConcede(m Match, cmd Command) ([]Event, Match, error) {
	switch m.Status {
	case StatusLobby:
		return nil, m, ErrNotStarted
	case StatusCompleted:
		return nil, m, ErrMatchCompleted
	}
	if m.Player(cmd.PlayerID) == nil {
		return nil, m, ErrUnknownPlayer
	}

	next := m.Clone()
	p := next.Player(cmd.PlayerID)

	// The conceded hand goes into the pot so the survivors fight over it.
	next.Pot = append(next.Pot, p.Hand...)
	p.Hand = []deck.Card{}
	p.Eliminated = true

	events := []Event{{Type: EvtPlayerConceded, PlayerID: cmd.PlayerID}}
	events = append(events, next.finish()...)
	return events, next, nil
}

func applyChat(m Match, cmd Command) ([]Event, Match, error) {
	if m.Status == StatusCompleted {
		return nil, m, ErrMatchCompleted
	}
	p := m.Player(cmd.PlayerID)
	if p == nil {
		return nil, m, ErrUnknownPlayer
	}
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return nil, m, ErrEmptyChat
	}

	next := m.Clone()
	next.Chat = append(next.Chat, ChatMessage{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Text:       text,
	})
	events := []Event{{Type: EvtChatPosted, PlayerID: p.ID}}
	return events, next, nil
}
