package collection

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/sm2"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	events []string
}

func (r *recorder) DeckSaved(d domain.Deck)  { r.events = append(r.events, "deck+"+d.ID) }
func (r *recorder) DeckDeleted(id string)    { r.events = append(r.events, "deck-"+id) }
func (r *recorder) CardSaved(c domain.Card)  { r.events = append(r.events, "card+"+c.ID) }
func (r *recorder) CardDeleted(id string)    { r.events = append(r.events, "card-"+id) }
func (r *recorder) Replaced([]domain.Deck, []domain.Card) { r.events = append(r.events, "replace") }

func newTestCollection() (*Collection, *recorder) {
	n := 0
	col := New(
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
		WithColorPicker(func() string { return Palette[0] }),
	)
	rec := &recorder{}
	col.Subscribe(rec)
	return col, rec
}

func TestCreateDeck(t *testing.T) {
	col, rec := newTestCollection()

	deck, err := col.CreateDeck(NewDeck{Name: "  Go  ", Description: "Concurrency"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", deck.ID)
	assert.Equal(t, "Go", deck.Name)
	assert.Equal(t, "bg-blue-500", deck.Color)
	assert.Equal(t, testNow, deck.CreatedAt)
	assert.Equal(t, deck.ID, col.Selected(), "first deck is selected")
	assert.Equal(t, []string{"deck+id-1"}, rec.events)

	_, err = col.CreateDeck(NewDeck{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateDeck_RandomColorFromPalette(t *testing.T) {
	col := New()
	for i := 0; i < 20; i++ {
		deck, err := col.CreateDeck(NewDeck{Name: fmt.Sprintf("d%d", i)})
		require.NoError(t, err)
		assert.Contains(t, Palette, deck.Color)
		assert.NotEmpty(t, deck.ID)
	}
}

func TestCreateCard(t *testing.T) {
	col, _ := newTestCollection()

	_, err := col.CreateCard(NewCard{Front: "Q", Back: "A"})
	assert.ErrorIs(t, err, domain.ErrNoDeck)

	deck, err := col.CreateDeck(NewDeck{Name: "Go"})
	require.NoError(t, err)

	_, err = col.CreateCard(NewCard{Front: "Q", Back: "A", DeckID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	card, err := col.CreateCard(NewCard{Front: " What is a goroutine? ", Back: "A lightweight thread", FrontLanguage: "go"})
	require.NoError(t, err)
	assert.Equal(t, deck.ID, card.DeckID, "falls back to the selected deck")
	assert.Equal(t, "What is a goroutine?", card.Front)
	assert.Equal(t, "go", card.FrontLanguage)
	assert.Nil(t, card.LastReviewed)
	assert.True(t, card.NextReview.Before(testNow))
	assert.True(t, card.IsDue(testNow))
	assert.Equal(t, 1.0, card.Interval)
	assert.Equal(t, 0, card.Repetition)
	assert.Equal(t, 2.5, card.EFactor)

	_, err = col.CreateCard(NewCard{Front: "Q", Back: "  "})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEditCard_KeepsScheduling(t *testing.T) {
	col, _ := newTestCollection()
	_, err := col.CreateDeck(NewDeck{Name: "Go"})
	require.NoError(t, err)
	card, err := col.CreateCard(NewCard{Front: "Q", Back: "A"})
	require.NoError(t, err)
	reviewed, err := col.Review(card.ID, sm2.Perfect, testNow)
	require.NoError(t, err)

	edited, err := col.EditCard(card.ID, CardEdit{Front: "  Q2 ", Back: " A2\n", BackLanguage: "sql"})
	require.NoError(t, err)
	assert.Equal(t, "Q2", edited.Front)
	assert.Equal(t, "A2", edited.Back)
	assert.Equal(t, "sql", edited.BackLanguage)
	assert.Equal(t, reviewed.Interval, edited.Interval)
	assert.Equal(t, reviewed.Repetition, edited.Repetition)
	assert.Equal(t, reviewed.EFactor, edited.EFactor)
	assert.Equal(t, reviewed.NextReview, edited.NextReview)

	_, err = col.EditCard("nope", CardEdit{Front: "x", Back: "y"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteDeck_Cascades(t *testing.T) {
	col, rec := newTestCollection()
	a, err := col.CreateDeck(NewDeck{Name: "A"})
	require.NoError(t, err)
	b, err := col.CreateDeck(NewDeck{Name: "B"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = col.CreateCard(NewCard{Front: fmt.Sprintf("a%d", i), Back: "x", DeckID: a.ID})
		require.NoError(t, err)
		_, err = col.CreateCard(NewCard{Front: fmt.Sprintf("b%d", i), Back: "x", DeckID: b.ID})
		require.NoError(t, err)
	}
	require.Equal(t, a.ID, col.Selected())

	require.NoError(t, col.DeleteDeck(a.ID))

	assert.Len(t, col.Decks(), 1)
	cards := col.Cards()
	assert.Len(t, cards, 3)
	for _, c := range cards {
		assert.Equal(t, b.ID, c.DeckID)
	}
	assert.Equal(t, b.ID, col.Selected(), "selection falls back to the first remaining deck")
	assert.Equal(t, "deck-"+a.ID, rec.events[len(rec.events)-1])

	require.NoError(t, col.DeleteDeck(b.ID))
	assert.Equal(t, "", col.Selected())
	assert.Empty(t, col.Cards())

	assert.ErrorIs(t, col.DeleteDeck(b.ID), domain.ErrNotFound)
}

func TestDeleteCard(t *testing.T) {
	col, _ := newTestCollection()
	_, err := col.CreateDeck(NewDeck{Name: "A"})
	require.NoError(t, err)
	c1, err := col.CreateCard(NewCard{Front: "1", Back: "x"})
	require.NoError(t, err)
	c2, err := col.CreateCard(NewCard{Front: "2", Back: "x"})
	require.NoError(t, err)

	require.NoError(t, col.DeleteCard(c1.ID))
	cards := col.Cards()
	require.Len(t, cards, 1)
	assert.Equal(t, c2.ID, cards[0].ID)
	assert.ErrorIs(t, col.DeleteCard(c1.ID), domain.ErrNotFound)
}

func TestUpdateDeck(t *testing.T) {
	col, _ := newTestCollection()
	d, err := col.CreateDeck(NewDeck{Name: "A"})
	require.NoError(t, err)

	name, color := "Renamed", "bg-red-500"
	got, err := col.UpdateDeck(d.ID, DeckUpdate{Name: &name, Color: &color})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "bg-red-500", got.Color)
	assert.Equal(t, d.CreatedAt, got.CreatedAt)

	empty := " "
	_, err = col.UpdateDeck(d.ID, DeckUpdate{Name: &empty})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = col.UpdateDeck("x", DeckUpdate{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReview(t *testing.T) {
	col, rec := newTestCollection()
	_, err := col.CreateDeck(NewDeck{Name: "A"})
	require.NoError(t, err)
	card, err := col.CreateCard(NewCard{Front: "1", Back: "x"})
	require.NoError(t, err)

	got, err := col.Review(card.ID, sm2.Good, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Repetition)
	assert.Equal(t, testNow.Add(24*time.Hour), got.NextReview)

	stored, err := col.Card(card.ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
	assert.Equal(t, "card+"+card.ID, rec.events[len(rec.events)-1])

	_, err = col.Review(card.ID, 7, testNow)
	assert.ErrorIs(t, err, sm2.ErrInvalidGrade)
	_, err = col.Review("missing", sm2.Good, testNow)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReplace(t *testing.T) {
	col, rec := newTestCollection()
	_, err := col.CreateDeck(NewDeck{Name: "A"})
	require.NoError(t, err)

	decks := []domain.Deck{{ID: "x", Name: "X"}, {ID: "y", Name: "Y"}}
	cards := []domain.Card{{ID: "c", DeckID: "y", Front: "f", Back: "b"}}
	col.Replace(decks, cards)

	assert.Equal(t, decks, col.Decks())
	assert.Equal(t, cards, col.Cards())
	assert.Equal(t, "x", col.Selected())
	assert.Equal(t, "replace", rec.events[len(rec.events)-1])
}

func TestApply(t *testing.T) {
	col, rec := newTestCollection()
	deck, err := col.CreateDeck(NewDeck{Name: "A"})
	require.NoError(t, err)
	_, err = col.CreateCard(NewCard{Front: "f", Back: "b"})
	require.NoError(t, err)

	col.Apply(func(decks []domain.Deck, cards []domain.Card) ([]domain.Deck, []domain.Card) {
		require.Len(t, decks, 1)
		require.Len(t, cards, 1)
		decks[0].Name = "changed in copy"
		return append(decks, domain.Deck{ID: "z", Name: "Z"}), cards
	})

	decks, cards, selected := col.Snapshot()
	require.Len(t, decks, 2)
	assert.Equal(t, "changed in copy", decks[0].Name)
	assert.Len(t, cards, 1)
	assert.Equal(t, deck.ID, selected)
	assert.Equal(t, "replace", rec.events[len(rec.events)-1])
}

// lastEvent remembers the latest card notification per id.
type lastEvent struct {
	mu   sync.Mutex
	last map[string]string
}

func (r *lastEvent) set(id, ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[id] = ev
}

func (r *lastEvent) DeckSaved(domain.Deck)                  {}
func (r *lastEvent) DeckDeleted(string)                     {}
func (r *lastEvent) CardSaved(c domain.Card)                { r.set(c.ID, "saved") }
func (r *lastEvent) CardDeleted(id string)                  { r.set(id, "deleted") }
func (r *lastEvent) Replaced([]domain.Deck, []domain.Card) {}

func TestNotificationsFollowCommitOrder(t *testing.T) {
	col, _ := newTestCollection()
	_, err := col.CreateDeck(NewDeck{Name: "A"})
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 200; i++ {
		c, err := col.CreateCard(NewCard{Front: fmt.Sprintf("f%d", i), Back: "b"})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}

	rec := &lastEvent{last: map[string]string{}}
	col.Subscribe(rec)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(2)
		go func() {
			defer wg.Done()
			// Fails with ErrNotFound when the delete won the race.
			_, _ = col.EditCard(id, CardEdit{Front: "edited", Back: "b"})
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, col.DeleteCard(id))
		}()
	}
	wg.Wait()

	assert.Empty(t, col.Cards())
	for _, id := range ids {
		assert.Equal(t, "deleted", rec.last[id], "card %s", id)
	}
}
