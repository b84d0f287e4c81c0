package merge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/flashdeck/internal/domain"
)

func idGen() func() string {
	n := 0
	return func() string { n++; return fmt.Sprintf("new-%d", n) }
}

func existing() ([]domain.Deck, []domain.Card) {
	decks := []domain.Deck{{ID: "g", Name: "General", Color: "bg-red-500"}}
	cards := []domain.Card{
		{ID: "e1", DeckID: "g", Front: "Capital of France?", Back: "Paris", Repetition: 4},
		{ID: "e2", DeckID: "g", Front: "2+2", Back: "4"},
	}
	return decks, cards
}

func incoming() ([]domain.Deck, []domain.Card) {
	decks := []domain.Deck{
		{ID: "x", Name: "General", Color: "bg-blue-500", Description: "imported"},
		{ID: "y", Name: "Fresh"},
	}
	cards := []domain.Card{
		{ID: "i1", DeckID: "x", Front: "Capital of France?", Back: "Paris!"},
		{ID: "i2", DeckID: "x", Front: "New question", Back: "b"},
		{ID: "i3", DeckID: "y", Front: "Fresh card", Back: "b"},
	}
	return decks, cards
}

func TestResolve_Rename(t *testing.T) {
	ed, ec := existing()
	id, ic := incoming()

	res := Resolve(ed, ec, id, ic, Rename, idGen())

	require.Len(t, res.Decks, 3)
	assert.Equal(t, ed[0], res.Decks[0], "existing deck untouched")
	assert.Equal(t, "new-1", res.Decks[1].ID)
	assert.Equal(t, "General (Imported)", res.Decks[1].Name)
	assert.Equal(t, "y", res.Decks[2].ID)

	require.Len(t, res.Cards, 5, "no existing card is lost")
	assert.Equal(t, ec[0], res.Cards[0])
	assert.Equal(t, ec[1], res.Cards[1])
	for _, c := range res.Cards[2:4] {
		assert.Equal(t, "new-1", c.DeckID)
	}
	assert.Equal(t, "y", res.Cards[4].DeckID)
	assert.Equal(t, 3, res.Imported)
	assert.Zero(t, res.Skipped)

	assert.Equal(t, []domain.Conflict{
		{Type: domain.ConflictDeck, Name: "General", Action: `renamed to "General (Imported)"`},
	}, res.Conflicts)
}

func TestResolve_Skip(t *testing.T) {
	ed, ec := existing()
	id, ic := incoming()

	res := Resolve(ed, ec, id, ic, Skip, idGen())

	require.Len(t, res.Decks, 2)
	assert.Equal(t, ed[0], res.Decks[0])
	require.Len(t, res.Cards, 4)
	assert.Equal(t, "i2", res.Cards[2].ID)
	assert.Equal(t, "g", res.Cards[2].DeckID, "redirected to the existing deck")
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, []domain.Conflict{
		{Type: domain.ConflictDeck, Name: "General", Action: "skipped"},
		{Type: domain.ConflictCard, Name: "Capital of France?", Action: "skipped"},
	}, res.Conflicts)
}

func TestResolve_Replace(t *testing.T) {
	ed, ec := existing()
	id, ic := incoming()

	res := Resolve(ed, ec, id, ic, Replace, idGen())

	require.Len(t, res.Decks, 2)
	assert.Equal(t, "g", res.Decks[0].ID, "existing id kept")
	assert.Equal(t, "imported", res.Decks[0].Description)
	assert.Equal(t, "bg-blue-500", res.Decks[0].Color)

	require.Len(t, res.Cards, 4)
	assert.Equal(t, "e1", res.Cards[0].ID)
	assert.Equal(t, "Paris!", res.Cards[0].Back)
	assert.Equal(t, 0, res.Cards[0].Repetition)
	assert.Equal(t, "g", res.Cards[0].DeckID)
	assert.Equal(t, 3, res.Imported)
	assert.Len(t, res.Conflicts, 2)
	assert.Equal(t, "replaced", res.Conflicts[1].Action)

	assert.Equal(t, "Paris", ec[0].Back, "inputs are not modified")
}

func TestResolve_DuplicateCardRename(t *testing.T) {
	ed, ec := existing()
	res := Resolve(ed, ec,
		[]domain.Deck{{ID: "x", Name: "Other"}},
		[]domain.Card{{ID: "e1", DeckID: "x", Front: "Capital of France?"}},
		Rename, idGen())
	assert.Empty(t, res.Conflicts, "same front in another deck is not a clash")
	require.Len(t, res.Cards, 3)
	assert.Equal(t, "new-1", res.Cards[2].ID, "id already in use is replaced")
	assert.Equal(t, "e1", res.Cards[0].ID)
}

func TestResolve_ReimportKeepsIDsUnique(t *testing.T) {
	ed, ec := existing()
	for _, strategy := range []Strategy{Skip, Rename, Replace} {
		t.Run(string(strategy), func(t *testing.T) {
			res := Resolve(ed, ec, ed, ec, strategy, idGen())

			deckIDs := map[string]bool{}
			for _, d := range res.Decks {
				assert.False(t, deckIDs[d.ID], "duplicate deck id %s", d.ID)
				deckIDs[d.ID] = true
			}
			cardIDs := map[string]bool{}
			for _, c := range res.Cards {
				assert.False(t, cardIDs[c.ID], "duplicate card id %s", c.ID)
				cardIDs[c.ID] = true
				assert.True(t, deckIDs[c.DeckID], "card %s points at a missing deck", c.ID)
			}
			assert.Equal(t, ec[0], res.Cards[0], "existing cards survive")
			if strategy != Replace {
				assert.Equal(t, ec[1], res.Cards[1])
			}
		})
	}
}

func TestResolve_DeckIDInUseUnderAnotherName(t *testing.T) {
	ed, ec := existing()
	res := Resolve(ed, ec,
		[]domain.Deck{{ID: "g", Name: "Renamed elsewhere"}},
		[]domain.Card{{ID: "e2", DeckID: "g", Front: "q", Back: "a"}},
		Rename, idGen())

	require.Len(t, res.Decks, 2)
	assert.Equal(t, "new-1", res.Decks[1].ID)
	require.Len(t, res.Cards, 3)
	assert.Equal(t, "new-2", res.Cards[2].ID)
	assert.Equal(t, "new-1", res.Cards[2].DeckID)
	assert.Equal(t, "g", res.Cards[1].DeckID, "existing deck keeps its cards")
}

func TestResolve_UnmappedDeckIsCounted(t *testing.T) {
	res := Resolve(nil, nil,
		[]domain.Deck{{ID: "a", Name: "A"}},
		[]domain.Card{
			{ID: "1", DeckID: "a", Front: "ok"},
			{ID: "2", DeckID: "gone", Front: strings.Repeat("x", 80)},
		},
		Rename, idGen())
	assert.Len(t, res.Cards, 1)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Conflicts, 1)
	assert.Len(t, res.Conflicts[0].Name, 50)
	assert.Equal(t, domain.ConflictCard, res.Conflicts[0].Type)
}

func TestResolve_NoConflictsKeepsIDs(t *testing.T) {
	id, ic := incoming()
	res := Resolve(nil, nil, id, ic, Rename, idGen())
	assert.Equal(t, id, res.Decks)
	assert.Equal(t, ic, res.Cards)
	assert.Empty(t, res.Conflicts)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("replace")
	require.NoError(t, err)
	assert.Equal(t, Replace, s)
	_, err = ParseStrategy("merge")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
