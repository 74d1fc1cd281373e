// Package hub routes clients to the match actor that owns their match. One
// hub goroutine guards the registry; actor creation is deduplicated there so
// a match never has two writers in the same process.
package hub

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/toptrumps-live/match-backend/internal/deck"
	"github.com/toptrumps-live/match-backend/internal/engine"
	"github.com/toptrumps-live/match-backend/internal/match"
	"github.com/toptrumps-live/match-backend/internal/pubsub"
	"github.com/toptrumps-live/match-backend/internal/store"
)

// reapDelay is how long a completed match's actor stays resident so late
// clients can still fetch the final state. Tests shorten it.
var reapDelay = time.Minute

type HubMsg interface{ isHubMsg() }

type RegisterMatch struct {
	Code    string
	ID      string
	Deck    *deck.Deck
	State   engine.Match
	Version int64
	Reply   chan *match.Actor
}

type GetMatch struct {
	Code  string
	Reply chan *match.Actor
}

type RemoveMatch struct {
	Code string
}

type ShutdownHub struct{}

func (RegisterMatch) isHubMsg() {}
func (GetMatch) isHubMsg()      {}
func (RemoveMatch) isHubMsg()   {}
func (ShutdownHub) isHubMsg()   {}

// RemoteSubscriber is the optional cross-instance feed; satisfied by
// pubsub.Redis.
type RemoteSubscriber interface {
	SubscribeMatch(ctx context.Context, matchID string) (<-chan pubsub.Envelope, func())
}

type Hub struct {
	inbox   chan HubMsg
	matches map[string]*match.Actor
	store   store.MatchStore
	decks   deck.Source
	pub     pubsub.Publisher
	remote  RemoteSubscriber // may be nil
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, st store.MatchStore, decks deck.Source,
	pub pubsub.Publisher, remote RemoteSubscriber, log *zap.Logger) *Hub {

	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		matches: make(map[string]*match.Actor),
		store:   st,
		decks:   decks,
		pub:     pub,
		remote:  remote,
		log:     log.Named("hub"),
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case RegisterMatch:
				if a := h.matches[msg.Code]; a != nil {
					msg.Reply <- a
					break
				}
				a := match.New(h.ctx, msg.ID, msg.Deck, msg.State, msg.Version, h.store, h.pub, h.log)
				h.matches[msg.Code] = a
				h.attachRemote(a)
				h.watchCompletion(a, msg.Code)
				msg.Reply <- a

			case GetMatch:
				msg.Reply <- h.matches[msg.Code] // May be nil

			case RemoveMatch:
				if a := h.matches[msg.Code]; a != nil {
					a.Inbox() <- match.Shutdown{}
					delete(h.matches, msg.Code)
				}

			case ShutdownHub:
				for _, a := range h.matches {
					a.Inbox() <- match.Shutdown{}
				}
				clear(h.matches)
				h.cancel()
			}
		}
	}
}

// attachRemote forwards cross-instance commits into the actor's inbox.
func (h *Hub) attachRemote(a *match.Actor) {
	if h.remote == nil {
		return
	}
	feed, stop := h.remote.SubscribeMatch(h.ctx, a.ID())
	go func() {
		defer stop()
		for {
			select {
			case <-h.ctx.Done():
				return
			case env, ok := <-feed:
				if !ok {
					return
				}
				a.Inbox() <- match.RemoteUpdate{Version: env.Version, State: env.Document}
			}
		}
	}()
}

// watchCompletion reaps the actor once its match finishes, after a grace
// period. The watcher rides the normal snapshot feed; the actor closes it on
// shutdown.
func (h *Hub) watchCompletion(a *match.Actor, code string) {
	out := make(chan match.Snapshot, 16)
	a.Inbox() <- match.Subscribe{ClientID: "hub:" + code, Outbox: out}
	go func() {
		for {
			select {
			case <-h.ctx.Done():
				return
			case snap, ok := <-out:
				if !ok {
					return
				}
				if snap.State.Status != engine.StatusCompleted {
					continue
				}
				select {
				case <-h.ctx.Done():
				case <-time.After(reapDelay):
					h.log.Info("reaping completed match", zap.String("code", code))
					h.inbox <- RemoveMatch{Code: code}
				}
				return
			}
		}
	}()
}

// Ensure returns the live actor for a join code, reviving it from the store
// when this instance is not yet hosting it. Store and deck reads happen on
// the caller's goroutine; only registration goes through the hub loop.
func (h *Hub) Ensure(ctx context.Context, code string) (*match.Actor, error) {
	reply := make(chan *match.Actor, 1)
	h.inbox <- GetMatch{Code: code, Reply: reply}
	if a := <-reply; a != nil {
		return a, nil
	}

	id, err := h.store.FindIDByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	doc, version, err := h.store.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := h.decks.GetDeck(ctx, doc.DeckID)
	if err != nil {
		return nil, fmt.Errorf("loading deck for match %s: %w", id, err)
	}

	h.inbox <- RegisterMatch{Code: code, ID: id, Deck: d, State: doc, Version: version, Reply: reply}
	return <-reply, nil
}
