package engine

import (
	"github.com/toptrumps-live/match-backend/internal/deck"
)

// resolveRound is the core state transition: every capable player exposes
// the head card of their hand, the extremal category value wins the pot, and
// exact ties loop into a war among the tied players only. It runs to
// completion in one call; WarMode never survives a return.
//
// Stalemate (every candidate out of cards mid-war) discards the pot. That
// mirrors the original ruleset and is covered by an explicit test; do not
// "fix" it without a product decision.
func resolveRound(m Match, d *deck.Deck, category string) ([]Event, Match, error) {
	next := m.Clone()

	// Stakes start with whatever the document's pot already holds (the
	// dealer's remainder before the first round).
	pot := next.Pot
	next.Pot = []deck.Card{}

	higherWins := d.Category(category).HigherWins

	candidates := next.Remaining()

	var winner *Player
	var warHistory []WarRound
	var finalPlays []PlayedCard

	for winner == nil {
		capable := candidates[:0:0]
		for _, p := range candidates {
			if len(p.Hand) > 0 {
				capable = append(capable, p)
			}
		}
		if len(capable) == 0 {
			// Everyone ran out of cards during the war: stalemate.
			break
		}
		if len(capable) == 1 {
			// Last player holding cards wins by default.
			winner = capable[0]
			break
		}
		candidates = capable

		plays := make([]PlayedCard, 0, len(candidates))
		for _, p := range candidates {
			card := p.Hand[0]
			p.Hand = p.Hand[1:]
			pot = append(pot, card)
			plays = append(plays, PlayedCard{
				PlayerID:   p.ID,
				PlayerName: p.Name,
				Card:       card,
				Value:      card.Value(category),
			})
		}
		finalPlays = plays

		best := plays[0].Value
		for _, rp := range plays[1:] {
			if (higherWins && rp.Value > best) || (!higherWins && rp.Value < best) {
				best = rp.Value
			}
		}

		// Ties are exact float64 equality; no epsilon.
		var tied []*Player
		for i, rp := range plays {
			if rp.Value == best {
				tied = append(tied, candidates[i])
			}
		}

		war := WarRound{Plays: plays}
		if len(tied) == 1 {
			war.WinnerID = tied[0].ID
		}
		warHistory = append(warHistory, war)

		if len(tied) == 1 {
			winner = tied[0]
		} else {
			candidates = tied
		}
	}

	record := &RoundRecord{
		Category:    category,
		WarHistory:  warHistory,
		CardsPlayed: finalPlays,
	}

	events := []Event{{Type: EvtRoundResolved, Category: category, Wars: len(warHistory)}}
	if len(warHistory) > 1 {
		events = append(events, Event{Type: EvtWarTriggered, Category: category, Wars: len(warHistory)})
	}

	if winner != nil {
		// Winner claims the whole pot onto the back of their hand and
		// keeps the turn.
		winner.Hand = append(winner.Hand, pot...)
		next.TurnPlayerID = winner.ID
		record.WinnerID = winner.ID
		record.WinnerName = winner.Name
		events[0].PlayerID = winner.ID
	} else {
		// Stalemate: the pot is dropped on the floor, nobody gets those
		// cards back.
		next.TurnPlayerID = ""
	}

	next.WarMode = false
	next.LastRound = record
	events = append(events, next.finish()...)
	return events, next, nil
}
