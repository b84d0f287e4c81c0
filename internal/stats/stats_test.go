package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/conorfennell/flashdeck/internal/domain"
)

func ptr(t time.Time) *time.Time { return &t }

func TestForDeck(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2024, 7, 10, 9, 0, 0, 0, loc)
	midnight := time.Date(2024, 7, 10, 0, 0, 0, 0, loc)

	deck := domain.Deck{ID: "d", Name: "Go"}
	cards := []domain.Card{
		{ID: "1", DeckID: "d", EFactor: 2.5, NextReview: now.Add(-time.Hour), LastReviewed: ptr(midnight)},
		{ID: "2", DeckID: "d", EFactor: 1.3, NextReview: now.Add(time.Hour), LastReviewed: ptr(midnight.Add(-time.Second))},
		{ID: "3", DeckID: "d", EFactor: 2.36, NextReview: now},
		{ID: "4", DeckID: "other", EFactor: 2.0, NextReview: now.Add(-time.Hour), LastReviewed: ptr(now)},
	}

	got := ForDeck(cards, deck, now)
	assert.Equal(t, "d", got.DeckID)
	assert.Equal(t, "Go", got.DeckName)
	assert.Equal(t, 3, got.TotalCards)
	assert.Equal(t, 2, got.DueCards)
	assert.Equal(t, 1, got.ReviewedToday)
	assert.Equal(t, 2.05, got.AverageEFactor)

	overall := Overall(cards, now)
	assert.Equal(t, 4, overall.TotalCards)
	assert.Equal(t, 3, overall.DueCards)
	assert.Equal(t, 2, overall.ReviewedToday)
	assert.Equal(t, 2.04, overall.AverageEFactor)
}

func TestEmptyDeckAverageIsNeutral(t *testing.T) {
	now := time.Now()
	got := ForDeck(nil, domain.Deck{ID: "empty"}, now)
	assert.Equal(t, 0, got.TotalCards)
	assert.Equal(t, 2.5, got.AverageEFactor)
	assert.Equal(t, 2.5, Overall(nil, now).AverageEFactor)
}

func TestForDecks(t *testing.T) {
	now := time.Now()
	decks := []domain.Deck{{ID: "a"}, {ID: "b"}}
	cards := []domain.Card{{ID: "1", DeckID: "b", EFactor: 2, NextReview: now}}
	got := ForDecks(cards, decks, now)
	assert.Len(t, got, 2)
	assert.Equal(t, 0, got[0].TotalCards)
	assert.Equal(t, 1, got[1].TotalCards)
}
