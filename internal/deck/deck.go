package deck

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// Category describes one comparable attribute of a deck. Name may carry a
// display unit ("Top Speed [km/h]"); stripping that is the client's job.
type Category struct {
	Name       string `json:"name"`
	HigherWins bool   `json:"higherWins"`
}

// Value is a raw attribute value as it arrived from the deck source.
// Deck data is generated upstream and unvalidated, so a value can be a JSON
// number, a numeric string, or junk. It only becomes a number at comparison
// time via Float.
type Value string

func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Value(s)
		return nil
	}
	// Numbers, bools, null: keep the raw token text.
	*v = Value(bytes.TrimSpace(data))
	return nil
}

// Float converts the value for comparison. Unparseable values count as 0;
// that is game behavior, not an error. Like parseFloat, a leading numeric
// prefix is enough ("350 km/h" -> 350).
func (v Value) Float() float64 {
	s := strings.TrimSpace(string(v))
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if f, ok := leadingFloat(s); ok {
		return f
	}
	return 0
}

// leadingFloat parses the longest numeric prefix of s.
func leadingFloat(s string) (float64, bool) {
	end := 0
	seenDigit := false
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
		seenDigit = true
	}
	if end < len(s) && s[end] == '.' {
		end++
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
			seenDigit = true
		}
	}
	if !seenDigit {
		return 0, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Card is one playing card. Attributes is the single canonical value map;
// the legacy "values" field name is folded into it on decode.
type Card struct {
	Name       string           `json:"name"`
	Attributes map[string]Value `json:"attributes"`
	ImageURL   string           `json:"imageUrl,omitempty"`
}

func (c *Card) UnmarshalJSON(data []byte) error {
	type alias Card
	aux := struct {
		*alias
		Values map[string]Value `json:"values"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.Attributes == nil {
		c.Attributes = aux.Values
	}
	return nil
}

// Value returns the card's comparison value for a category. Missing
// attributes compare as 0.
func (c Card) Value(category string) float64 {
	return c.Attributes[category].Float()
}

// Deck is the full card pool for a match. The engine never mutates it.
type Deck struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Categories []Category `json:"categories"`
	Cards      []Card     `json:"cards"`
}

// Category looks up a category's configuration by name. An unknown category
// plays higher-wins; the original system behaves the same way.
func (d *Deck) Category(name string) Category {
	for _, c := range d.Categories {
		if c.Name == name {
			return c
		}
	}
	return Category{Name: name, HigherWins: true}
}

// Source supplies read-only deck content to the engine.
type Source interface {
	GetDeck(ctx context.Context, id string) (*Deck, error)
}
