package collection

import (
	"fmt"
	"slices"
	"strings"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// NewDeck is the input for CreateDeck.
type NewDeck struct {
	Name        string `validate:"required,max=200"`
	Description string `validate:"max=2000"`
}

// DeckUpdate changes deck metadata. Nil fields are left alone.
type DeckUpdate struct {
	Name        *string
	Description *string
	Color       *string
}

// CreateDeck adds a deck with a fresh id and a color from the palette.
// The first deck created becomes the selected one.
func (c *Collection) CreateDeck(in NewDeck) (domain.Deck, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := c.validate.Struct(in); err != nil {
		return domain.Deck{}, validationError(err)
	}

	deck := domain.Deck{
		ID:          c.newID(),
		Name:        in.Name,
		Description: in.Description,
		Color:       c.pickColor(),
		CreatedAt:   c.now(),
	}

	c.mu.Lock()
	c.decks = append(c.decks, deck)
	if c.selected == "" {
		c.selected = deck.ID
	}
	c.record(func(l Listener) { l.DeckSaved(deck) })
	c.mu.Unlock()

	c.deliver()
	return deck, nil
}

// UpdateDeck edits name, description or color of a deck.
func (c *Collection) UpdateDeck(id string, upd DeckUpdate) (domain.Deck, error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return domain.Deck{}, domain.NewValidationError("name", "must not be empty")
	}

	c.mu.Lock()
	i := c.deckIndex(id)
	if i < 0 {
		c.mu.Unlock()
		return domain.Deck{}, fmt.Errorf("deck %s: %w", id, domain.ErrNotFound)
	}
	deck := c.decks[i]
	if upd.Name != nil {
		deck.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Description != nil {
		deck.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Color != nil {
		deck.Color = *upd.Color
	}
	c.decks[i] = deck
	c.record(func(l Listener) { l.DeckSaved(deck) })
	c.mu.Unlock()

	c.deliver()
	return deck, nil
}

// DeleteDeck removes a deck and every card in it. When the deleted deck
// was selected, selection moves to the first remaining deck or to none.
func (c *Collection) DeleteDeck(id string) error {
	c.mu.Lock()
	i := c.deckIndex(id)
	if i < 0 {
		c.mu.Unlock()
		return fmt.Errorf("deck %s: %w", id, domain.ErrNotFound)
	}
	c.decks = slices.Delete(c.decks, i, i+1)
	c.cards = slices.DeleteFunc(c.cards, func(card domain.Card) bool { return card.DeckID == id })
	if c.selected == id {
		c.selected = c.firstDeckID()
	}
	c.record(func(l Listener) { l.DeckDeleted(id) })
	c.mu.Unlock()

	c.deliver()
	return nil
}
