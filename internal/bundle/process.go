package bundle

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Parse decodes, validates and normalizes a raw payload.
// Nothing is returned unless the whole payload is valid.
func Parse(raw []byte) (*Bundle, error) {
	v, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := Validate(v); err != nil {
		return nil, err
	}
	return Process(v)
}

// Process normalizes a validated payload: timestamps are parsed, missing
// colors get DefaultColor and numbers are coerced.
func Process(v any) (*Bundle, error) {
	data := v.(map[string]any)
	b := &Bundle{Version: fmt.Sprint(data["version"])}
	if s, ok := data["exportDate"].(string); ok {
		if t, err := parseTime(s); err == nil {
			b.ExportDate = t
		}
	}

	for i, raw := range data["decks"].([]any) {
		m := raw.(map[string]any)
		createdAt, err := timeField(m, "createdAt")
		if err != nil {
			return nil, &ValidationError{Scope: "deck", Index: i + 1, Field: "createdAt", Message: err.Error()}
		}
		deck := domain.Deck{
			ID:          m["id"].(string),
			Name:        m["name"].(string),
			Description: stringField(m, "description"),
			Color:       stringField(m, "color"),
			CreatedAt:   createdAt,
		}
		if deck.Color == "" {
			deck.Color = DefaultColor
		}
		b.Decks = append(b.Decks, deck)
	}

	for i, raw := range data["flashcards"].([]any) {
		m := raw.(map[string]any)
		card, err := processCard(m)
		if err != nil {
			err.Index = i + 1
			return nil, err
		}
		b.Cards = append(b.Cards, card)
	}
	return b, nil
}

func processCard(m map[string]any) (domain.Card, *ValidationError) {
	fail := func(field string, err error) *ValidationError {
		return &ValidationError{Scope: "card", Field: field, Message: err.Error()}
	}
	createdAt, err := timeField(m, "createdAt")
	if err != nil {
		return domain.Card{}, fail("createdAt", err)
	}
	nextReview, err := timeField(m, "nextReview")
	if err != nil {
		return domain.Card{}, fail("nextReview", err)
	}
	card := domain.Card{
		ID:            m["id"].(string),
		DeckID:        m["deckId"].(string),
		Front:         m["front"].(string),
		Back:          m["back"].(string),
		FrontLanguage: stringField(m, "frontLanguage"),
		BackLanguage:  stringField(m, "backLanguage"),
		CreatedAt:     createdAt,
		NextReview:    nextReview,
		Interval:      m["interval"].(float64),
		Repetition:    int(math.Round(m["repetition"].(float64))),
		EFactor:       m["efactor"].(float64),
	}
	if truthy(m["lastReviewed"]) {
		lr, err := timeField(m, "lastReviewed")
		if err != nil {
			return domain.Card{}, fail("lastReviewed", err)
		}
		card.LastReviewed = &lr
	}
	return card, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// timeField accepts ISO-8601 strings and epoch milliseconds.
func timeField(m map[string]any, key string) (time.Time, error) {
	switch v := m[key].(type) {
	case string:
		t, err := parseTime(v)
		if err != nil {
			return time.Time{}, fmt.Errorf("Invalid %s %q", key, v)
		}
		return t, nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("Invalid %s", key)
	}
}

func parseTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
