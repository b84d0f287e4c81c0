// Package store defines the record store the collection is persisted to.
package store

import (
	"context"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// Store is an eventually-consistent key-value record store keyed by deck and card id.
// Every call may fail on its own; callers treat writes as fire-and-forget.
type Store interface {
	// GetDecks returns all decks of the owner.
	GetDecks(ctx context.Context, ownerID string) ([]domain.Deck, error)
	// GetCards returns the owner's cards, limited to deckID when it is non-empty.
	GetCards(ctx context.Context, ownerID, deckID string) ([]domain.Card, error)
	// UpsertDeck writes the whole deck record, last writer wins.
	UpsertDeck(ctx context.Context, ownerID string, deck domain.Deck) error
	// UpsertCard writes the whole card record, last writer wins.
	UpsertCard(ctx context.Context, ownerID string, card domain.Card) error
	// DeleteDeck removes a deck and its cards.
	DeleteDeck(ctx context.Context, ownerID, deckID string) error
	// DeleteCard removes one card.
	DeleteCard(ctx context.Context, ownerID, cardID string) error
	// SyncAll upserts every given deck and card.
	SyncAll(ctx context.Context, ownerID string, decks []domain.Deck, cards []domain.Card) error
}

// SessionType tells spaced-repetition sessions from cram sessions.
type SessionType string

const (
	SessionSpacedRepetition SessionType = "spaced_repetition"
	SessionCram             SessionType = "cram"
)

// SessionRecord summarizes a finished review session.
type SessionRecord struct {
	DeckID         string
	Type           SessionType
	CardsReviewed  int
	CorrectAnswers int
	StartedAt      time.Time
	EndedAt        time.Time
}

// SessionRecorder is implemented by stores that keep review session history.
type SessionRecorder interface {
	RecordSession(ctx context.Context, ownerID string, rec SessionRecord) error
}
