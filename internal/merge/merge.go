// Package merge reconciles imported decks and cards with an existing collection.
package merge

import (
	"fmt"
	"slices"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// Strategy decides what happens when an imported record clashes with an existing one.
type Strategy string

const (
	Skip    Strategy = "skip"
	Rename  Strategy = "rename"
	Replace Strategy = "replace"
)

// ImportedSuffix is appended to renamed decks.
const ImportedSuffix = " (Imported)"

const conflictNameLimit = 50

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case Skip, Rename, Replace:
		return st, nil
	}
	return "", fmt.Errorf("unknown import strategy %q: %w", s, domain.ErrValidation)
}

// Result is the merged collection plus what happened along the way.
type Result struct {
	Decks     []domain.Deck
	Cards     []domain.Card
	Conflicts []domain.Conflict
	Imported  int // cards added or replaced
	Skipped   int // cards dropped because their deck had no mapping
}

// Resolve merges decks first, matched by exact name, then cards, matched by
// front text within the remapped deck. Imported records keep their ids unless
// the id is already in use; newID supplies ids for those and for renamed
// records. The inputs are not modified.
func Resolve(existingDecks []domain.Deck, existingCards []domain.Card, importDecks []domain.Deck, importCards []domain.Card, strategy Strategy, newID func() string) Result {
	res := Result{
		Decks: slices.Clone(existingDecks),
		Cards: make([]domain.Card, len(existingCards)),
	}
	takenDecks := make(ids, len(existingDecks))
	for _, d := range existingDecks {
		takenDecks[d.ID] = struct{}{}
	}
	takenCards := make(ids, len(existingCards))
	for i, c := range existingCards {
		res.Cards[i] = c.Clone()
		takenCards[c.ID] = struct{}{}
	}
	deckIDs := make(map[string]string, len(importDecks))

	for _, in := range importDecks {
		i := slices.IndexFunc(existingDecks, func(d domain.Deck) bool { return d.Name == in.Name })
		if i < 0 {
			added := in
			added.ID = takenDecks.claim(in.ID, newID)
			res.Decks = append(res.Decks, added)
			deckIDs[in.ID] = added.ID
			continue
		}
		existing := existingDecks[i]

		switch strategy {
		case Skip:
			deckIDs[in.ID] = existing.ID
			res.conflict(domain.ConflictDeck, in.Name, "skipped")
		case Rename:
			renamed := in
			renamed.ID = takenDecks.claim("", newID)
			renamed.Name = in.Name + ImportedSuffix
			res.Decks = append(res.Decks, renamed)
			deckIDs[in.ID] = renamed.ID
			res.conflict(domain.ConflictDeck, in.Name, fmt.Sprintf("renamed to %q", renamed.Name))
		case Replace:
			replaced := in
			replaced.ID = existing.ID
			j := slices.IndexFunc(res.Decks, func(d domain.Deck) bool { return d.ID == existing.ID })
			res.Decks[j] = replaced
			deckIDs[in.ID] = existing.ID
			res.conflict(domain.ConflictDeck, in.Name, "replaced")
		}
	}

	for _, in := range importCards {
		deckID, ok := deckIDs[in.DeckID]
		if !ok {
			res.Skipped++
			res.conflict(domain.ConflictCard, in.Front, "skipped (deck not imported)")
			continue
		}
		card := in.Clone()
		card.DeckID = deckID

		i := slices.IndexFunc(existingCards, func(c domain.Card) bool {
			return c.Front == card.Front && c.DeckID == deckID
		})
		if i < 0 {
			card.ID = takenCards.claim(in.ID, newID)
			res.Cards = append(res.Cards, card)
			res.Imported++
			continue
		}
		existing := existingCards[i]

		switch strategy {
		case Skip:
			res.conflict(domain.ConflictCard, in.Front, "skipped")
		case Rename:
			card.ID = takenCards.claim("", newID)
			res.Cards = append(res.Cards, card)
			res.Imported++
			res.conflict(domain.ConflictCard, in.Front, "imported as duplicate")
		case Replace:
			card.ID = existing.ID
			j := slices.IndexFunc(res.Cards, func(c domain.Card) bool { return c.ID == existing.ID })
			res.Cards[j] = card
			res.Imported++
			res.conflict(domain.ConflictCard, in.Front, "replaced")
		}
	}
	return res
}

// ids is the set of record ids in use in the merged collection.
type ids map[string]struct{}

// claim reserves id, or a fresh one from newID when id is empty or taken.
func (s ids) claim(id string, newID func() string) string {
	for {
		if _, taken := s[id]; id != "" && !taken {
			s[id] = struct{}{}
			return id
		}
		id = newID()
	}
}

func (r *Result) conflict(typ domain.ConflictType, name, action string) {
	r.Conflicts = append(r.Conflicts, domain.Conflict{
		Type:   typ,
		Name:   truncate(name, conflictNameLimit),
		Action: action,
	})
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
