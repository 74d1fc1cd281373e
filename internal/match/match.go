// Package match runs one goroutine per live match. The actor is the single
// writer for its document: every command — gameplay and lobby joins alike —
// goes through its inbox, so two clients can never clobber each other's
// read-modify-write. Persistence still carries a version check as a backstop
// against another instance writing the same document.
package match

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/toptrumps-live/match-backend/internal/deck"
	"github.com/toptrumps-live/match-backend/internal/engine"
	"github.com/toptrumps-live/match-backend/internal/pubsub"
	"github.com/toptrumps-live/match-backend/internal/store"
)

// ErrStaleState reports that a command lost a version race with another
// writer. The actor has already adopted the latest document; the caller just
// retries against it.
var ErrStaleState = errors.New("match state was stale, retry")

const persistTimeout = 3 * time.Second

type Msg interface{ isMatchMsg() }

// FromClient carries one engine command. Reply (optional, buffered) receives
// the outcome; state changes travel separately as snapshots.
type FromClient struct {
	Cmd   engine.Command
	Reply chan error
}

// Subscribe registers an outbox for state snapshots. The current state is
// delivered immediately.
type Subscribe struct {
	ClientID string
	Outbox   chan Snapshot
}

type Unsubscribe struct{ ClientID string }

// RemoteUpdate is a document committed by another instance, delivered over
// the push channel. Whatever arrives newest wins; older versions are noise.
type RemoteUpdate struct {
	Version int64
	State   engine.Match
}

// GetState reflects internal state without data races; tests only.
type GetState struct {
	Reply chan View
}

type Shutdown struct{}

func (FromClient) isMatchMsg()   {}
func (Subscribe) isMatchMsg()    {}
func (Unsubscribe) isMatchMsg()  {}
func (RemoteUpdate) isMatchMsg() {}
func (GetState) isMatchMsg()     {}
func (Shutdown) isMatchMsg()     {}

type Snapshot struct {
	Version int64
	State   engine.Match
}

type View struct {
	Version    int64
	NumClients int
	State      engine.Match
}

// Actor owns one match document.
type Actor struct {
	id      string
	inbox   chan Msg
	state   engine.Match
	version int64
	deck    *deck.Deck
	clients map[string]chan Snapshot
	store   store.MatchStore
	pub     pubsub.Publisher
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// New starts the actor goroutine for a match already present in the store at
// the given version.
func New(parent context.Context, id string, d *deck.Deck, initial engine.Match, version int64,
	st store.MatchStore, pub pubsub.Publisher, log *zap.Logger) *Actor {

	ctx, cancel := context.WithCancel(parent)
	a := &Actor{
		id:      id,
		inbox:   make(chan Msg, 64),
		state:   initial,
		version: version,
		deck:    d,
		clients: make(map[string]chan Snapshot),
		store:   st,
		pub:     pub,
		log:     log.With(zap.String("match_id", id)),
		ctx:     ctx,
		cancel:  cancel,
	}
	go a.loop()
	return a
}

// Inbox exposes the actor's mailbox to the transport layer and tests.
func (a *Actor) Inbox() chan<- Msg { return a.inbox }

// ID returns the match identity the actor owns.
func (a *Actor) ID() string { return a.id }

func (a *Actor) loop() {
	for {
		select {
		case <-a.ctx.Done():
			a.shutdown()
			return

		case m := <-a.inbox:
			switch msg := m.(type) {
			case Subscribe:
				a.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- Snapshot{Version: a.version, State: a.state}

			case Unsubscribe:
				// Close so the subscriber's writer goroutine can exit its
				// range loop.
				if ch, ok := a.clients[msg.ClientID]; ok {
					close(ch)
					delete(a.clients, msg.ClientID)
				}

			case FromClient:
				a.handleCommand(msg)

			case RemoteUpdate:
				if msg.Version <= a.version {
					break
				}
				a.state = msg.State
				a.version = msg.Version
				a.broadcast(Snapshot{Version: a.version, State: a.state})

			case GetState:
				msg.Reply <- View{
					Version:    a.version,
					NumClients: len(a.clients),
					State:      a.state,
				}

			case Shutdown:
				a.shutdown()
				return
			}
		}
	}
}

// handleCommand runs the full transition: apply, persist with the observed
// version, then commit locally, broadcast, and publish. On a version
// conflict the actor adopts the committed document instead of its own.
func (a *Actor) handleCommand(msg FromClient) {
	events, next, err := engine.Apply(a.state, a.deck, msg.Cmd)
	if err != nil {
		a.reply(msg, err)
		return
	}

	ctx, cancel := context.WithTimeout(a.ctx, persistTimeout)
	defer cancel()

	if err := a.store.PutMatch(ctx, a.id, next, a.version); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			a.refresh(ctx)
			a.reply(msg, ErrStaleState)
			return
		}
		a.log.Error("persisting match failed", zap.Error(err))
		a.reply(msg, err)
		return
	}

	a.state = next
	a.version++
	a.logEvents(events)
	a.broadcast(Snapshot{Version: a.version, State: a.state})

	if err := a.pub.PublishMatch(ctx, a.id, pubsub.Envelope{Version: a.version, Document: a.state}); err != nil {
		// Local clients already got the snapshot; remote instances catch
		// up from the store on their next conflict.
		a.log.Warn("publishing match failed", zap.Error(err))
	}
	a.reply(msg, nil)
}

// refresh adopts the latest committed document after losing a write race.
func (a *Actor) refresh(ctx context.Context) {
	doc, version, err := a.store.GetMatch(ctx, a.id)
	if err != nil {
		a.log.Error("refetching match after conflict failed", zap.Error(err))
		return
	}
	if version <= a.version {
		return
	}
	a.state = doc
	a.version = version
	a.broadcast(Snapshot{Version: a.version, State: a.state})
}

func (a *Actor) reply(msg FromClient, err error) {
	if msg.Reply == nil {
		return
	}
	select {
	case msg.Reply <- err:
	default:
	}
}

func (a *Actor) broadcast(snap Snapshot) {
	for id, ch := range a.clients {
		select {
		case ch <- snap:
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(a.clients, id)
		}
	}
}

func (a *Actor) logEvents(events []engine.Event) {
	for _, e := range events {
		a.log.Info("match event",
			zap.String("type", string(e.Type)),
			zap.String("player_id", e.PlayerID),
			zap.String("category", e.Category),
			zap.Int64("version", a.version),
		)
	}
}

func (a *Actor) shutdown() {
	for id, ch := range a.clients {
		close(ch)
		delete(a.clients, id)
	}
	a.cancel()
}
