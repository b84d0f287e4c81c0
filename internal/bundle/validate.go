package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// ErrInvalidJSON is returned when the payload cannot be parsed at all.
var ErrInvalidJSON = errors.New("invalid JSON")

// ValidationError pinpoints the first problem found in an import payload.
type ValidationError struct {
	Scope   string // "deck", "card" or "" for the top level
	Index   int    // 1-based position within decks or flashcards
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	switch e.Scope {
	case "deck":
		return fmt.Sprintf("Deck %d: %s", e.Index, e.Message)
	case "card":
		return fmt.Sprintf("Card %d: %s", e.Index, e.Message)
	default:
		return e.Message
	}
}

func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

// Decode parses raw JSON into generic values.
func Decode(raw []byte) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return v, nil
}

// Validate checks a decoded payload and reports the first problem.
// Cards must reference a deck contained in the same payload.
func Validate(v any) error {
	data, ok := v.(map[string]any)
	if !ok {
		return &ValidationError{Message: "Invalid file format - not a valid JSON object"}
	}
	if !truthy(data["version"]) {
		return &ValidationError{Field: "version", Message: "Missing version field"}
	}
	decks, ok := data["decks"].([]any)
	if !ok {
		return &ValidationError{Field: "decks", Message: "Missing or invalid decks array"}
	}
	cards, ok := data["flashcards"].([]any)
	if !ok {
		return &ValidationError{Field: "flashcards", Message: "Missing or invalid flashcards array"}
	}

	deckIDs := make(map[string]bool, len(decks))
	var order []string
	for i, raw := range decks {
		deck, _ := raw.(map[string]any)
		if err := validateDeck(deck, i+1); err != nil {
			return err
		}
		id := deck["id"].(string)
		if !deckIDs[id] {
			order = append(order, id)
		}
		deckIDs[id] = true
	}

	for i, raw := range cards {
		card, _ := raw.(map[string]any)
		if err := validateCard(card, i+1, deckIDs, order); err != nil {
			return err
		}
	}
	return nil
}

func validateDeck(deck map[string]any, n int) error {
	fail := func(field, format string, args ...any) error {
		return &ValidationError{Scope: "deck", Index: n, Field: field, Message: fmt.Sprintf(format, args...)}
	}
	if err := requireString(deck, "id"); err != "" {
		return fail("id", "Missing or invalid id %s", err)
	}
	if err := requireString(deck, "name"); err != "" {
		return fail("name", "Missing or invalid name %s", err)
	}
	if !truthy(deck["createdAt"]) {
		return fail("createdAt", "Missing createdAt")
	}
	if c := deck["color"]; truthy(c) {
		if _, ok := c.(string); !ok {
			return fail("color", "Invalid color field")
		}
	}
	return nil
}

func validateCard(card map[string]any, n int, deckIDs map[string]bool, order []string) error {
	fail := func(field, format string, args ...any) error {
		return &ValidationError{Scope: "card", Index: n, Field: field, Message: fmt.Sprintf(format, args...)}
	}
	if err := requireString(card, "id"); err != "" {
		return fail("id", "Missing or invalid id %s", err)
	}

	rawDeckID := card["deckId"]
	if !truthy(rawDeckID) {
		return fail("deckId", "Missing deckId (value: %s)", jsonValue(rawDeckID))
	}
	deckID, ok := rawDeckID.(string)
	if !ok {
		return fail("deckId", "Invalid deckId type (got: %s, value: %s)", typeName(rawDeckID), jsonValue(rawDeckID))
	}
	if strings.TrimSpace(deckID) == "" {
		return fail("deckId", "Empty deckId string")
	}
	if !deckIDs[deckID] {
		return fail("deckId", "References non-existent deck ID %q. Available deck IDs: %s", deckID, strings.Join(order, ", "))
	}

	if v, ok := card["front"].(string); !ok || v == "" {
		return fail("front", "Missing or invalid front content (got: %s)", typeName(card["front"]))
	}
	if v, ok := card["back"].(string); !ok || v == "" {
		return fail("back", "Missing or invalid back content (got: %s)", typeName(card["back"]))
	}
	if !truthy(card["createdAt"]) {
		return fail("createdAt", "Missing createdAt")
	}
	if !truthy(card["nextReview"]) {
		return fail("nextReview", "Missing nextReview")
	}

	for _, field := range []string{"interval", "repetition", "efactor"} {
		v, present := card[field]
		if !present || v == nil {
			return fail(field, "Missing %s field", field)
		}
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) {
			return fail(field, "Invalid %s (must be a number, got %s, value: %s)", field, typeName(v), jsonValue(v))
		}
	}
	if v := card["interval"].(float64); v <= 0 {
		return fail("interval", "Invalid interval (must be positive, value: %s)", jsonValue(v))
	}
	if v := card["repetition"].(float64); v < 0 {
		return fail("repetition", "Invalid repetition (must not be negative, value: %s)", jsonValue(v))
	}
	if v := card["efactor"].(float64); v < domain.MinEFactor {
		return fail("efactor", "Invalid efactor (must be at least %g, value: %s)", domain.MinEFactor, jsonValue(v))
	}

	for _, field := range []string{"frontLanguage", "backLanguage"} {
		if v := card[field]; truthy(v) {
			if _, ok := v.(string); !ok {
				return fail(field, "Invalid %s (must be string)", field)
			}
		}
	}
	return nil
}

// requireString returns a non-empty diagnostic when m[key] is not a non-empty string.
func requireString(m map[string]any, key string) string {
	v := m[key]
	if s, ok := v.(string); ok && s != "" {
		return ""
	}
	return fmt.Sprintf("(got: %s, value: %s)", typeName(v), jsonValue(v))
}

// truthy treats nil, false, "", 0 and NaN as missing.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	default:
		return true
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "undefined"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return "object"
	}
}

func jsonValue(v any) string {
	if v == nil {
		return "undefined"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
