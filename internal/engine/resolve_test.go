package engine

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/toptrumps-live/match-backend/internal/deck"
)

var testDeck = &deck.Deck{
	ID: "deck-1",
	Categories: []deck.Category{
		{Name: "Speed", HigherWins: true},
		{Name: "Weight", HigherWins: false},
	},
}

func card(name, category, value string) deck.Card {
	return deck.Card{
		Name:       name,
		Attributes: map[string]deck.Value{category: deck.Value(value)},
	}
}

func activeMatch(players ...Player) Match {
	return Match{
		DeckID:       "deck-1",
		Players:      players,
		Pot:          []deck.Card{},
		TurnPlayerID: players[0].ID,
		Status:       StatusActive,
		Chat:         []ChatMessage{},
	}
}

func cardCount(m Match) int {
	n := len(m.Pot)
	for _, p := range m.Players {
		n += len(p.Hand)
	}
	return n
}

func containsEvent(events []Event, t EventType) bool {
	for _, e := range events {
		if e.Type == t {
			return true
		}
	}
	return false
}

func resolve(t *testing.T, m Match, category string) ([]Event, Match) {
	t.Helper()
	events, next, err := Apply(m, testDeck, Command{
		Type:     CmdChooseCategory,
		PlayerID: m.TurnPlayerID,
		Category: category,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return events, next
}

func TestResolve_HigherValueWinsAndEliminates(t *testing.T) {
	// Scenario: two single-card hands, 100 vs 80 on Speed.
	m := activeMatch(
		Player{ID: "p1", Name: "Ana", Hand: []deck.Card{card("a", "Speed", "100")}},
		Player{ID: "p2", Name: "Ben", Hand: []deck.Card{card("b", "Speed", "80")}},
	)

	events, next := resolve(t, m, "Speed")

	if next.LastRound == nil || next.LastRound.WinnerID != "p1" {
		t.Fatalf("want round winner p1, got %+v", next.LastRound)
	}
	if got := len(next.Players[0].Hand); got != 2 {
		t.Fatalf("want pot moved to p1 hand (2 cards), got %d", got)
	}
	if !next.Players[1].Eliminated {
		t.Fatalf("p2 with empty hand must be eliminated")
	}
	if next.Status != StatusCompleted || next.Winner == nil || next.Winner.ID != "p1" {
		t.Fatalf("want completed with winner p1, got status=%v winner=%+v", next.Status, next.Winner)
	}
	if !containsEvent(events, EvtMatchCompleted) {
		t.Fatalf("expected EvtMatchCompleted")
	}
	if containsEvent(events, EvtWarTriggered) {
		t.Fatalf("no war expected")
	}
}

func TestResolve_LowerWinsCategoryNoWarOnPartialTie(t *testing.T) {
	// Weight 50/50/30 with lowest-wins: the 30 wins outright, the tied
	// 50s are irrelevant.
	m := activeMatch(
		Player{ID: "p1", Name: "Ana", Hand: []deck.Card{card("a", "Weight", "50")}},
		Player{ID: "p2", Name: "Ben", Hand: []deck.Card{card("b", "Weight", "50")}},
		Player{ID: "p3", Name: "Cy", Hand: []deck.Card{card("c", "Weight", "30")}},
	)

	events, next := resolve(t, m, "Weight")

	if next.LastRound.WinnerID != "p3" {
		t.Fatalf("want p3 to win, got %q", next.LastRound.WinnerID)
	}
	if got := len(next.LastRound.WarHistory); got != 1 {
		t.Fatalf("want a single comparison iteration, got %d", got)
	}
	if containsEvent(events, EvtWarTriggered) {
		t.Fatalf("no war may trigger on a decisive round")
	}
	if got := len(next.Players[2].Hand); got != 3 {
		t.Fatalf("want p3 holding all 3 played cards, got %d", got)
	}
}

func TestResolve_TiedLeadersTriggerExactlyOneWar(t *testing.T) {
	// 10/10/7: the tied leaders fight one war round; the 7 sits out.
	m := activeMatch(
		Player{ID: "p1", Name: "Ana", Hand: []deck.Card{card("a1", "Speed", "10"), card("a2", "Speed", "5")}},
		Player{ID: "p2", Name: "Ben", Hand: []deck.Card{card("b1", "Speed", "10"), card("b2", "Speed", "3")}},
		Player{ID: "p3", Name: "Cy", Hand: []deck.Card{card("c1", "Speed", "7"), card("c2", "Speed", "9")}},
	)

	events, next := resolve(t, m, "Speed")

	if got := len(next.LastRound.WarHistory); got != 2 {
		t.Fatalf("want 2 iterations (initial + one war), got %d", got)
	}
	if !containsEvent(events, EvtWarTriggered) {
		t.Fatalf("expected EvtWarTriggered")
	}
	for _, rp := range next.LastRound.WarHistory[1].Plays {
		if rp.PlayerID == "p3" {
			t.Fatalf("p3 must not play in the war iteration")
		}
	}
	if next.LastRound.WinnerID != "p1" {
		t.Fatalf("want p1 to win the war (5 beats 3), got %q", next.LastRound.WinnerID)
	}
	// 5 cards were played in total (p3 kept its second card).
	if got := len(next.Players[0].Hand); got != 5 {
		t.Fatalf("want p1 holding the 5-card pot, got %d", got)
	}
	if next.TurnPlayerID != "p1" {
		t.Fatalf("round winner keeps the turn, got %q", next.TurnPlayerID)
	}
}

func TestResolve_RepeatedWarThenDivergence(t *testing.T) {
	// Two players tie twice, then 12 vs 9 decides it. Three iterations,
	// winner holds all six cards.
	m := activeMatch(
		Player{ID: "p1", Name: "Ana", Hand: []deck.Card{
			card("a1", "Speed", "10"), card("a2", "Speed", "10"), card("a3", "Speed", "12"),
		}},
		Player{ID: "p2", Name: "Ben", Hand: []deck.Card{
			card("b1", "Speed", "10"), card("b2", "Speed", "10"), card("b3", "Speed", "9"),
		}},
	)

	_, next := resolve(t, m, "Speed")

	if got := len(next.LastRound.WarHistory); got != 3 {
		t.Fatalf("want warHistory length 3, got %d", got)
	}
	if got := len(next.Players[0].Hand); got != 6 {
		t.Fatalf("want winner holding all 6 played cards, got %d", got)
	}
	if next.Status != StatusCompleted || next.Winner.ID != "p1" {
		t.Fatalf("want completed with winner p1, got %v / %+v", next.Status, next.Winner)
	}
}

func TestResolve_StalemateDiscardsPot(t *testing.T) {
	// Both play their last card and tie exactly: the pot vanishes and the
	// match is a draw. Intentional original behavior, locked in here.
	m := activeMatch(
		Player{ID: "p1", Name: "Ana", Hand: []deck.Card{card("a", "Speed", "10")}},
		Player{ID: "p2", Name: "Ben", Hand: []deck.Card{card("b", "Speed", "10")}},
	)

	_, next := resolve(t, m, "Speed")

	if got := cardCount(next); got != 0 {
		t.Fatalf("stalemate must discard the pot, %d cards survived", got)
	}
	for _, p := range next.Players {
		if !p.Eliminated {
			t.Fatalf("player %s must be eliminated", p.ID)
		}
	}
	if next.Status != StatusCompleted {
		t.Fatalf("want completed, got %v", next.Status)
	}
	if next.Winner == nil || next.Winner.ID != "" || next.Winner.Name != DrawName {
		t.Fatalf("want draw sentinel winner, got %+v", next.Winner)
	}
}

func TestResolve_ConservationOnDecisiveRound(t *testing.T) {
	m := activeMatch(
		Player{ID: "p1", Name: "Ana", Hand: []deck.Card{card("a1", "Speed", "4"), card("a2", "Speed", "8")}},
		Player{ID: "p2", Name: "Ben", Hand: []deck.Card{card("b1", "Speed", "6"), card("b2", "Speed", "2")}},
	)
	// Dealer remainder sitting in the pot must be swept into the round.
	m.Pot = []deck.Card{card("r", "Speed", "1")}
	before := cardCount(m)

	_, next := resolve(t, m, "Speed")

	if after := cardCount(next); after != before {
		t.Fatalf("conservation violated: %d -> %d", before, after)
	}
	if len(next.Pot) != 0 {
		t.Fatalf("pot must be empty after a decisive round, got %d", len(next.Pot))
	}
	// p2 won the first comparison (6 beats 4) and claimed the remainder.
	if got := len(next.Players[1].Hand); got != 4 {
		t.Fatalf("want p2 holding 4 cards, got %d", got)
	}
	if next.TurnPlayerID != "p2" {
		t.Fatalf("want turn handed to p2, got %q", next.TurnPlayerID)
	}
}

func TestResolve_EliminationMatchesHandLength(t *testing.T) {
	m := activeMatch(
		Player{ID: "p1", Name: "Ana", Hand: []deck.Card{card("a1", "Speed", "9"), card("a2", "Speed", "1")}},
		Player{ID: "p2", Name: "Ben", Hand: []deck.Card{card("b1", "Speed", "5")}},
		Player{ID: "p3", Name: "Cy", Hand: []deck.Card{card("c1", "Speed", "3"), card("c2", "Speed", "2")}},
	)

	_, next := resolve(t, m, "Speed")

	for _, p := range next.Players {
		if p.Eliminated != (len(p.Hand) == 0) {
			t.Fatalf("player %s: eliminated=%v but hand length %d", p.ID, p.Eliminated, len(p.Hand))
		}
	}
	if next.Status == StatusCompleted {
		t.Fatalf("two players still hold cards, match must continue")
	}
}

func TestResolve_UnknownCategoryPlaysHigherWins(t *testing.T) {
	m := activeMatch(
		Player{ID: "p1", Name: "Ana", Hand: []deck.Card{card("a", "Altitude", "3")}},
		Player{ID: "p2", Name: "Ben", Hand: []deck.Card{card("b", "Altitude", "7")}},
	)

	_, next := resolve(t, m, "Altitude")

	if next.LastRound.WinnerID != "p2" {
		t.Fatalf("unknown category must compare higher-wins, got winner %q", next.LastRound.WinnerID)
	}
}

func TestResolve_MalformedValuesCompareAsZero(t *testing.T) {
	m := activeMatch(
		Player{ID: "p1", Name: "Ana", Hand: []deck.Card{card("a", "Speed", "n/a")}},
		Player{ID: "p2", Name: "Ben", Hand: []deck.Card{card("b", "Speed", "0.5")}},
	)

	_, next := resolve(t, m, "Speed")

	if next.LastRound.WinnerID != "p2" {
		t.Fatalf("unparseable value must lose as 0, got winner %q", next.LastRound.WinnerID)
	}
	if got := next.LastRound.WarHistory[0].Plays[0].Value; got != 0 {
		t.Fatalf("want recorded value 0, got %v", got)
	}
}

func TestResolve_InputMatchUntouched(t *testing.T) {
	m := activeMatch(
		Player{ID: "p1", Name: "Ana", Hand: []deck.Card{card("a", "Speed", "9")}},
		Player{ID: "p2", Name: "Ben", Hand: []deck.Card{card("b", "Speed", "4")}},
	)

	_, _ = resolve(t, m, "Speed")

	if len(m.Players[0].Hand) != 1 || len(m.Players[1].Hand) != 1 {
		t.Fatalf("Apply mutated its input: %+v", m.Players)
	}
	if m.Status != StatusActive {
		t.Fatalf("Apply mutated input status: %v", m.Status)
	}
}

func TestMatch_SerializationRoundTrip(t *testing.T) {
	m := activeMatch(
		Player{ID: "p1", Name: "Ana", Hand: []deck.Card{card("a1", "Speed", "10"), card("a2", "Speed", "6")}},
		Player{ID: "p2", Name: "Ben", Hand: []deck.Card{card("b1", "Speed", "10"), card("b2", "Speed", "3")}},
	)
	_, resolved := resolve(t, m, "Speed")

	for name, state := range map[string]Match{
		"lobby":    NewLobby("deck-1", "host", "Ana"),
		"active":   m,
		"resolved": resolved,
	} {
		t.Run(name, func(t *testing.T) {
			raw, err := json.Marshal(state)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var back Match
			if err := json.Unmarshal(raw, &back); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !reflect.DeepEqual(state, back) {
				t.Fatalf("round trip diverged:\n have %+v\n want %+v", back, state)
			}
		})
	}
}
