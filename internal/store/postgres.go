package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/toptrumps-live/match-backend/internal/deck"
	"github.com/toptrumps-live/match-backend/internal/engine"
)

type matchRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Code      string `gorm:"uniqueIndex;size:8"`
	DeckID    string `gorm:"size:36"`
	Status    string `gorm:"size:16"`
	Document  []byte `gorm:"type:jsonb"`
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (matchRow) TableName() string { return "matches" }

type deckRow struct {
	ID         string `gorm:"primaryKey;size:36"`
	Name       string
	Categories []byte `gorm:"type:jsonb"`
	Cards      []byte `gorm:"type:jsonb"`
}

func (deckRow) TableName() string { return "decks" }

// Postgres backs MatchStore and deck.Source with a Postgres database.
type Postgres struct {
	db  *gorm.DB
	log *zap.Logger
}

// OpenPostgres connects, migrates the matches table, and returns the store.
// The decks table belongs to the deck-authoring service and is only read.
func OpenPostgres(dsn string, log *zap.Logger) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := db.AutoMigrate(&matchRow{}); err != nil {
		return nil, fmt.Errorf("migrating matches table: %w", err)
	}
	log.Info("connected to postgres")
	return &Postgres{db: db, log: log}, nil
}

func (s *Postgres) CreateMatch(ctx context.Context, id, code string, doc engine.Match) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding match %s: %w", id, err)
	}
	row := matchRow{
		ID:       id,
		Code:     code,
		DeckID:   doc.DeckID,
		Status:   string(doc.Status),
		Document: raw,
		Version:  1,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrCodeTaken
		}
		return fmt.Errorf("inserting match %s: %w", id, err)
	}
	return nil
}

func (s *Postgres) GetMatch(ctx context.Context, id string) (engine.Match, int64, error) {
	var row matchRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.Match{}, 0, ErrNotFound
	}
	if err != nil {
		return engine.Match{}, 0, fmt.Errorf("loading match %s: %w", id, err)
	}
	var doc engine.Match
	if err := json.Unmarshal(row.Document, &doc); err != nil {
		return engine.Match{}, 0, fmt.Errorf("decoding match %s: %w", id, err)
	}
	return doc, row.Version, nil
}

func (s *Postgres) PutMatch(ctx context.Context, id string, doc engine.Match, expectedVersion int64) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding match %s: %w", id, err)
	}
	res := s.db.WithContext(ctx).
		Model(&matchRow{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"document": raw,
			"status":   string(doc.Status),
			"version":  expectedVersion + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("updating match %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the row is gone or someone committed in between. The
		// caller refetches and finds out which.
		return ErrVersionConflict
	}
	return nil
}

func (s *Postgres) FindIDByCode(ctx context.Context, code string) (string, error) {
	var row matchRow
	err := s.db.WithContext(ctx).Select("id").First(&row, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolving code %s: %w", code, err)
	}
	return row.ID, nil
}

// GetDeck implements deck.Source against the decks table.
func (s *Postgres) GetDeck(ctx context.Context, id string) (*deck.Deck, error) {
	var row deckRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("deck %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading deck %s: %w", id, err)
	}

	d := deck.Deck{ID: row.ID, Name: row.Name}
	if err := json.Unmarshal(row.Categories, &d.Categories); err != nil {
		return nil, fmt.Errorf("decoding deck %s categories: %w", id, err)
	}
	if err := json.Unmarshal(row.Cards, &d.Cards); err != nil {
		return nil, fmt.Errorf("decoding deck %s cards: %w", id, err)
	}
	return &d, nil
}

var _ MatchStore = (*Postgres)(nil)
var _ deck.Source = (*Postgres)(nil)
