// Package pubsub fans committed match documents out across server
// instances. Every commit is published whole; subscribers treat whatever
// arrives as the latest state and never assume ordered or exactly-once
// delivery.
package pubsub

import (
	"context"

	"github.com/toptrumps-live/match-backend/internal/engine"
)

// Envelope is one committed document on the wire.
type Envelope struct {
	Version  int64        `json:"version"`
	Document engine.Match `json:"document"`
}

// Publisher pushes a committed document to every interested instance.
type Publisher interface {
	PublishMatch(ctx context.Context, matchID string, env Envelope) error
}

// Noop drops every publish. Used when Redis is not configured and in tests.
type Noop struct{}

func (Noop) PublishMatch(context.Context, string, Envelope) error { return nil }
