package store

import (
	"context"
	"sync"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// Memory is an in-process Store. It keeps insertion order per owner.
type Memory struct {
	mu       sync.Mutex
	decks    map[string][]domain.Deck
	cards    map[string][]domain.Card
	sessions map[string][]SessionRecord
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		decks:    make(map[string][]domain.Deck),
		cards:    make(map[string][]domain.Card),
		sessions: make(map[string][]SessionRecord),
	}
}

func (m *Memory) GetDecks(ctx context.Context, ownerID string) ([]domain.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Deck(nil), m.decks[ownerID]...), nil
}

func (m *Memory) GetCards(ctx context.Context, ownerID, deckID string) ([]domain.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Card
	for _, c := range m.cards[ownerID] {
		if deckID == "" || c.DeckID == deckID {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (m *Memory) UpsertDeck(ctx context.Context, ownerID string, deck domain.Deck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	decks := m.decks[ownerID]
	for i := range decks {
		if decks[i].ID == deck.ID {
			decks[i] = deck
			return nil
		}
	}
	m.decks[ownerID] = append(decks, deck)
	return nil
}

func (m *Memory) UpsertCard(ctx context.Context, ownerID string, card domain.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cards := m.cards[ownerID]
	for i := range cards {
		if cards[i].ID == card.ID {
			cards[i] = card.Clone()
			return nil
		}
	}
	m.cards[ownerID] = append(cards, card.Clone())
	return nil
}

func (m *Memory) DeleteDeck(ctx context.Context, ownerID, deckID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var decks []domain.Deck
	for _, d := range m.decks[ownerID] {
		if d.ID != deckID {
			decks = append(decks, d)
		}
	}
	m.decks[ownerID] = decks
	var cards []domain.Card
	for _, c := range m.cards[ownerID] {
		if c.DeckID != deckID {
			cards = append(cards, c)
		}
	}
	m.cards[ownerID] = cards
	return nil
}

func (m *Memory) DeleteCard(ctx context.Context, ownerID, cardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cards []domain.Card
	for _, c := range m.cards[ownerID] {
		if c.ID != cardID {
			cards = append(cards, c)
		}
	}
	m.cards[ownerID] = cards
	return nil
}

func (m *Memory) SyncAll(ctx context.Context, ownerID string, decks []domain.Deck, cards []domain.Card) error {
	for _, d := range decks {
		if err := m.UpsertDeck(ctx, ownerID, d); err != nil {
			return err
		}
	}
	for _, c := range cards {
		if err := m.UpsertCard(ctx, ownerID, c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) RecordSession(ctx context.Context, ownerID string, rec SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[ownerID] = append(m.sessions[ownerID], rec)
	return nil
}

// Sessions returns the recorded sessions of an owner.
func (m *Memory) Sessions(ownerID string) []SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SessionRecord(nil), m.sessions[ownerID]...)
}
