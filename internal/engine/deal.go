package engine

import (
	"math/rand"
	"slices"

	"github.com/toptrumps-live/match-backend/internal/deck"
)

// shuffle is a package var so tests can pin the permutation.
var shuffle = func(cards []deck.Card) {
	// Fisher-Yates, every permutation equally likely.
	rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// Deal shuffles the card pool and splits it into equal hands in join order.
// floor(N/playerCount) cards each; the remainder seeds the initial pot and
// is swept into the first round's stakes. The first player gets the opening
// turn.
func Deal(m Match, pool []deck.Card) (Match, error) {
	if len(m.Players) == 0 {
		return m, ErrNoPlayers
	}

	cards := slices.Clone(pool)
	shuffle(cards)

	next := m.Clone()
	handSize := len(cards) / len(next.Players)
	for i := range next.Players {
		p := &next.Players[i]
		p.Hand = slices.Clone(cards[i*handSize : (i+1)*handSize])
		p.Eliminated = false
	}
	next.Pot = slices.Clone(cards[len(next.Players)*handSize:])

	next.TurnPlayerID = next.Players[0].ID
	next.WarMode = false
	next.LastRound = nil
	next.Winner = nil
	next.Status = StatusActive
	return next, nil
}
