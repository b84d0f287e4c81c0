package collection

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// freshCardLead puts a new card's due date slightly in the past so it is due at once.
const freshCardLead = time.Minute

// NewCard is the input for CreateCard. An empty DeckID means the selected deck.
type NewCard struct {
	Front         string `validate:"required"`
	Back          string `validate:"required"`
	DeckID        string
	FrontLanguage string `validate:"max=50"`
	BackLanguage  string `validate:"max=50"`
}

// CardEdit replaces the content fields of a card.
type CardEdit struct {
	Front         string `validate:"required"`
	Back          string `validate:"required"`
	FrontLanguage string `validate:"max=50"`
	BackLanguage  string `validate:"max=50"`
}

// CreateCard adds a never-reviewed card to a deck.
func (c *Collection) CreateCard(in NewCard) (domain.Card, error) {
	in.Front = strings.TrimSpace(in.Front)
	in.Back = strings.TrimSpace(in.Back)
	if err := c.validate.Struct(in); err != nil {
		return domain.Card{}, validationError(err)
	}

	now := c.now()
	card := domain.Card{
		ID:            c.newID(),
		Front:         in.Front,
		Back:          in.Back,
		FrontLanguage: in.FrontLanguage,
		BackLanguage:  in.BackLanguage,
		CreatedAt:     now,
		NextReview:    now.Add(-freshCardLead),
		Interval:      domain.DefaultInterval,
		Repetition:    0,
		EFactor:       domain.DefaultEFactor,
	}

	c.mu.Lock()
	deckID := in.DeckID
	if deckID == "" {
		deckID = c.selected
	}
	if deckID == "" {
		c.mu.Unlock()
		return domain.Card{}, domain.ErrNoDeck
	}
	if c.deckIndex(deckID) < 0 {
		c.mu.Unlock()
		return domain.Card{}, fmt.Errorf("deck %s: %w", deckID, domain.ErrNotFound)
	}
	card.DeckID = deckID
	c.cards = append(c.cards, card)
	c.record(func(l Listener) { l.CardSaved(card.Clone()) })
	c.mu.Unlock()

	c.deliver()
	return card, nil
}

// EditCard updates content and language hints. Scheduling fields are untouched.
func (c *Collection) EditCard(id string, in CardEdit) (domain.Card, error) {
	in.Front = strings.TrimSpace(in.Front)
	in.Back = strings.TrimSpace(in.Back)
	if err := c.validate.Struct(in); err != nil {
		return domain.Card{}, validationError(err)
	}

	c.mu.Lock()
	i := c.cardIndex(id)
	if i < 0 {
		c.mu.Unlock()
		return domain.Card{}, fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
	}
	card := c.cards[i]
	card.Front = in.Front
	card.Back = in.Back
	card.FrontLanguage = in.FrontLanguage
	card.BackLanguage = in.BackLanguage
	c.cards[i] = card
	out := card.Clone()
	c.record(func(l Listener) { l.CardSaved(out.Clone()) })
	c.mu.Unlock()

	c.deliver()
	return out, nil
}

// DeleteCard removes a single card.
func (c *Collection) DeleteCard(id string) error {
	c.mu.Lock()
	i := c.cardIndex(id)
	if i < 0 {
		c.mu.Unlock()
		return fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
	}
	c.cards = slices.Delete(c.cards, i, i+1)
	c.record(func(l Listener) { l.CardDeleted(id) })
	c.mu.Unlock()

	c.deliver()
	return nil
}
