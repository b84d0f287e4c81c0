// Package stats derives summary numbers from a card collection.
package stats

import (
	"math"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// Summary is the aggregate view over a set of cards.
type Summary struct {
	TotalCards     int     `json:"totalCards"`
	DueCards       int     `json:"dueCards"`
	ReviewedToday  int     `json:"reviewedToday"`
	AverageEFactor float64 `json:"averageEfactor"`
}

// DeckSummary is a Summary for one deck.
type DeckSummary struct {
	Summary
	DeckID   string `json:"deckId"`
	DeckName string `json:"deckName"`
}

// Overall aggregates every card regardless of deck.
func Overall(cards []domain.Card, now time.Time) Summary {
	return summarize(cards, now)
}

// ForDeck aggregates the cards that belong to deck.
func ForDeck(cards []domain.Card, deck domain.Deck, now time.Time) DeckSummary {
	var deckCards []domain.Card
	for _, c := range cards {
		if c.DeckID == deck.ID {
			deckCards = append(deckCards, c)
		}
	}
	return DeckSummary{
		Summary:  summarize(deckCards, now),
		DeckID:   deck.ID,
		DeckName: deck.Name,
	}
}

// ForDecks returns one summary per deck, in deck order.
func ForDecks(cards []domain.Card, decks []domain.Deck, now time.Time) []DeckSummary {
	out := make([]DeckSummary, 0, len(decks))
	for _, d := range decks {
		out = append(out, ForDeck(cards, d, now))
	}
	return out
}

// StartOfDay is local midnight of the day containing now, in now's location.
func StartOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

func summarize(cards []domain.Card, now time.Time) Summary {
	today := StartOfDay(now)
	s := Summary{
		TotalCards:     len(cards),
		AverageEFactor: domain.DefaultEFactor,
	}
	var sum float64
	for _, c := range cards {
		if c.IsDue(now) {
			s.DueCards++
		}
		if c.LastReviewed != nil && !c.LastReviewed.Before(today) {
			s.ReviewedToday++
		}
		sum += c.EFactor
	}
	if len(cards) > 0 {
		s.AverageEFactor = math.Round(sum/float64(len(cards))*100) / 100
	}
	return s
}
