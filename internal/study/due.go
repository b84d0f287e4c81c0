// Package study selects cards for review and tracks review sessions.
package study

import (
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// DueCards returns the cards of deckID whose next review is at or before now.
func DueCards(cards []domain.Card, deckID string, now time.Time) []domain.Card {
	var out []domain.Card
	for _, c := range cards {
		if c.DeckID == deckID && c.IsDue(now) {
			out = append(out, c)
		}
	}
	return out
}

// AllCards returns every card of deckID regardless of due date.
func AllCards(cards []domain.Card, deckID string) []domain.Card {
	var out []domain.Card
	for _, c := range cards {
		if c.DeckID == deckID {
			out = append(out, c)
		}
	}
	return out
}

// ReviewSet is the set a session walks through: all cards in cram mode,
// otherwise only the due ones.
func ReviewSet(cards []domain.Card, deckID string, cram bool, now time.Time) []domain.Card {
	if deckID == "" {
		return nil
	}
	if cram {
		return AllCards(cards, deckID)
	}
	return DueCards(cards, deckID, now)
}

// CurrentCard picks the element at a cyclic index. It returns false for an empty set.
func CurrentCard(set []domain.Card, index int) (domain.Card, bool) {
	if len(set) == 0 {
		return domain.Card{}, false
	}
	i := index % len(set)
	if i < 0 {
		i += len(set)
	}
	return set[i], true
}
