// Package store persists match documents and read-only deck content.
//
// Matches are stored as whole documents next to an explicit version counter.
// Every write names the version it was computed from; a write against any
// other version is rejected with ErrVersionConflict and nothing changes.
package store

import (
	"context"
	"errors"

	"github.com/toptrumps-live/match-backend/internal/engine"
)

var ErrNotFound = errors.New("match not found")
var ErrVersionConflict = errors.New("match version conflict")
var ErrCodeTaken = errors.New("join code already in use")

// MatchStore is the persistence collaborator for match documents.
type MatchStore interface {
	// CreateMatch inserts a new document at version 1 under a fresh id and
	// join code.
	CreateMatch(ctx context.Context, id, code string, doc engine.Match) error
	// GetMatch returns the current document and its version.
	GetMatch(ctx context.Context, id string) (engine.Match, int64, error)
	// PutMatch replaces the whole document iff the stored version still
	// equals expectedVersion, bumping it to expectedVersion+1.
	PutMatch(ctx context.Context, id string, doc engine.Match, expectedVersion int64) error
	// FindIDByCode resolves a shareable join code to a match id.
	FindIDByCode(ctx context.Context, code string) (string, error)
}
