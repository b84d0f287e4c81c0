// Package collection owns the in-memory decks and cards of one user.
package collection

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/sm2"
)

// Palette is the fixed set of colors new decks are drawn from.
var Palette = []string{
	"bg-blue-500",
	"bg-green-500",
	"bg-purple-500",
	"bg-red-500",
	"bg-yellow-500",
	"bg-indigo-500",
}

// Listener is told about every committed change, in commit order.
// Implementations must not block or mutate the collection.
type Listener interface {
	DeckSaved(d domain.Deck)
	DeckDeleted(id string)
	CardSaved(c domain.Card)
	CardDeleted(id string)
	Replaced(decks []domain.Deck, cards []domain.Card)
}

// Collection is the single owner of a user's decks and cards.
// All methods are safe for concurrent use; mutations never interleave.
type Collection struct {
	mu       sync.Mutex
	decks    []domain.Deck
	cards    []domain.Card
	selected string

	listeners []Listener
	events    []func(Listener) // committed, not yet delivered
	deliverMu sync.Mutex       // serializes delivery

	validate  *validator.Validate
	now       func() time.Time
	newID     func() string
	pickColor func() string
}

// Option configures a Collection.
type Option func(*Collection)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Collection) { c.now = now }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(newID func() string) Option {
	return func(c *Collection) { c.newID = newID }
}

// WithColorPicker overrides the deck color choice.
func WithColorPicker(pick func() string) Option {
	return func(c *Collection) { c.pickColor = pick }
}

// New creates an empty collection.
func New(opts ...Option) *Collection {
	c := &Collection{
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
		newID:     uuid.NewString,
		pickColor: func() string { return Palette[rand.IntN(len(Palette))] },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers a listener for committed changes.
func (c *Collection) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Load replaces the contents without notifying listeners.
// It is meant for restoring state that came from the store.
func (c *Collection) Load(decks []domain.Deck, cards []domain.Card, selected string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decks = slices.Clone(decks)
	c.cards = cloneCards(cards)
	c.selected = selected
	if c.deckIndex(selected) < 0 {
		c.selected = c.firstDeckID()
	}
}

// Replace swaps the whole collection in one step and notifies listeners.
func (c *Collection) Replace(decks []domain.Deck, cards []domain.Card) {
	c.Apply(func([]domain.Deck, []domain.Card) ([]domain.Deck, []domain.Card) {
		return decks, cards
	})
}

// Apply computes a new collection from the current one and swaps it in
// without letting other mutations run in between. fn works on copies.
func (c *Collection) Apply(fn func(decks []domain.Deck, cards []domain.Card) ([]domain.Deck, []domain.Card)) {
	c.mu.Lock()
	decks, cards := fn(slices.Clone(c.decks), cloneCards(c.cards))
	c.decks = slices.Clone(decks)
	c.cards = cloneCards(cards)
	if c.deckIndex(c.selected) < 0 {
		c.selected = c.firstDeckID()
	}
	ds, cs := slices.Clone(c.decks), cloneCards(c.cards)
	c.record(func(l Listener) { l.Replaced(ds, cs) })
	c.mu.Unlock()

	c.deliver()
}

// Snapshot returns copies of the decks, the cards and the selected deck id
// taken under one lock.
func (c *Collection) Snapshot() ([]domain.Deck, []domain.Card, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.decks), cloneCards(c.cards), c.selected
}

// Decks returns a copy of all decks in insertion order.
func (c *Collection) Decks() []domain.Deck {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.decks)
}

// Cards returns a copy of all cards in insertion order.
func (c *Collection) Cards() []domain.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneCards(c.cards)
}

// CardsInDeck returns the cards that belong to deckID.
func (c *Collection) CardsInDeck(deckID string) []domain.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Card
	for _, card := range c.cards {
		if card.DeckID == deckID {
			out = append(out, card.Clone())
		}
	}
	return out
}

// Deck looks up a deck by id.
func (c *Collection) Deck(id string) (domain.Deck, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.deckIndex(id)
	if i < 0 {
		return domain.Deck{}, fmt.Errorf("deck %s: %w", id, domain.ErrNotFound)
	}
	return c.decks[i], nil
}

// DeckByName returns the first deck with exactly this name.
func (c *Collection) DeckByName(name string) (domain.Deck, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.decks {
		if d.Name == name {
			return d, nil
		}
	}
	return domain.Deck{}, fmt.Errorf("deck %q: %w", name, domain.ErrNotFound)
}

// Card looks up a card by id.
func (c *Collection) Card(id string) (domain.Card, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.cardIndex(id)
	if i < 0 {
		return domain.Card{}, fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
	}
	return c.cards[i].Clone(), nil
}

// Selected returns the selected deck id, or "" when none is selected.
func (c *Collection) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// SelectDeck marks a deck as selected.
func (c *Collection) SelectDeck(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deckIndex(id) < 0 {
		return fmt.Errorf("deck %s: %w", id, domain.ErrNotFound)
	}
	c.selected = id
	return nil
}

func (c *Collection) deckIndex(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(c.decks, func(d domain.Deck) bool { return d.ID == id })
}

func (c *Collection) cardIndex(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(c.cards, func(card domain.Card) bool { return card.ID == id })
}

func (c *Collection) firstDeckID() string {
	if len(c.decks) == 0 {
		return ""
	}
	return c.decks[0].ID
}

// record queues a notification for the change being committed. Callers hold mu.
func (c *Collection) record(fn func(Listener)) {
	c.events = append(c.events, fn)
}

// deliver hands queued notifications to the listeners in commit order.
// It runs without mu, so listeners may read the collection.
func (c *Collection) deliver() {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	events := c.events
	c.events = nil
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, fn := range events {
		for _, l := range listeners {
			fn(l)
		}
	}
}

func cloneCards(cards []domain.Card) []domain.Card {
	out := make([]domain.Card, len(cards))
	for i, card := range cards {
		out[i] = card.Clone()
	}
	return out
}

// validationError converts validator output into a domain error.
func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &domain.ValidationError{}
	for _, fe := range verrs {
		out.Errors = append(out.Errors, domain.FieldError{
			Field:   strings.ToLower(fe.Field()),
			Message: fmt.Sprintf("failed %q check", fe.Tag()),
		})
	}
	return out
}

// Review grades a card with the SM-2 scheduler and stores the result.
func (c *Collection) Review(id string, g sm2.Grade, now time.Time) (domain.Card, error) {
	c.mu.Lock()
	i := c.cardIndex(id)
	if i < 0 {
		c.mu.Unlock()
		return domain.Card{}, fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
	}
	reviewed, err := sm2.Review(c.cards[i], g, now)
	if err != nil {
		c.mu.Unlock()
		return domain.Card{}, err
	}
	c.cards[i] = reviewed
	out := reviewed.Clone()
	c.record(func(l Listener) { l.CardSaved(out.Clone()) })
	c.mu.Unlock()

	c.deliver()
	return out, nil
}
