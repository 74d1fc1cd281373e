package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/toptrumps-live/match-backend/internal/deck"
	"github.com/toptrumps-live/match-backend/internal/engine"
)

// Memory is an in-process MatchStore and deck.Source with the same
// compare-and-swap contract as the Postgres store. It backs tests and lets
// the server run without a database for local play.
type Memory struct {
	mu      sync.Mutex
	matches map[string]*memEntry
	codes   map[string]string
	decks   map[string]*deck.Deck
}

type memEntry struct {
	doc     []byte // stored serialized, like the real store
	version int64
}

func NewMemory() *Memory {
	return &Memory{
		matches: make(map[string]*memEntry),
		codes:   make(map[string]string),
		decks:   make(map[string]*deck.Deck),
	}
}

// AddDeck seeds deck content.
func (s *Memory) AddDeck(d *deck.Deck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decks[d.ID] = d
}

func (s *Memory) CreateMatch(_ context.Context, id, code string, doc engine.Match) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding match %s: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[code]; ok {
		return ErrCodeTaken
	}
	s.matches[id] = &memEntry{doc: raw, version: 1}
	s.codes[code] = id
	return nil
}

func (s *Memory) GetMatch(_ context.Context, id string) (engine.Match, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.matches[id]
	if !ok {
		return engine.Match{}, 0, ErrNotFound
	}
	var doc engine.Match
	if err := json.Unmarshal(entry.doc, &doc); err != nil {
		return engine.Match{}, 0, fmt.Errorf("decoding match %s: %w", id, err)
	}
	return doc, entry.version, nil
}

func (s *Memory) PutMatch(_ context.Context, id string, doc engine.Match, expectedVersion int64) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding match %s: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.matches[id]
	if !ok {
		return ErrVersionConflict
	}
	if entry.version != expectedVersion {
		return ErrVersionConflict
	}
	entry.doc = raw
	entry.version++
	return nil
}

func (s *Memory) FindIDByCode(_ context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codes[code]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *Memory) GetDeck(_ context.Context, id string) (*deck.Deck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decks[id]
	if !ok {
		return nil, fmt.Errorf("deck %s: %w", id, ErrNotFound)
	}
	return d, nil
}

var _ MatchStore = (*Memory)(nil)
var _ deck.Source = (*Memory)(nil)
