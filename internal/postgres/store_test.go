package postgres

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/store"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestUpsertDeckSQL(t *testing.T) {
	query, args, err := upsertDeckSQL("u1", domain.Deck{ID: "d1", Name: "Spanish", CreatedAt: testNow})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(query, "INSERT INTO decks (owner_id,id,name,description,color,created_at) VALUES ($1,$2,$3,$4,$5,$6)"), query)
	assert.Contains(t, query, "ON CONFLICT (owner_id, id) DO UPDATE SET")
	assert.Equal(t, []any{"u1", "d1", "Spanish", "", "", testNow}, args)
}

func TestUpsertCardSQL(t *testing.T) {
	card := domain.Card{ID: "c1", DeckID: "d1", Front: "f", Back: "b", CreatedAt: testNow, NextReview: testNow, Interval: 1, EFactor: 2.5}
	query, args, err := upsertCardSQL("u1", card)
	require.NoError(t, err)
	assert.Contains(t, query, "$13")
	assert.Contains(t, query, "e_factor = EXCLUDED.e_factor")
	require.Len(t, args, 13)
	assert.Nil(t, args[8], "never reviewed is NULL")
}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return New(mock), mock
}

func TestGetDecks_Mock(t *testing.T) {
	st, mock := newMockStore(t)
	rows := pgxmock.NewRows([]string{"id", "name", "description", "color", "created_at"}).
		AddRow("d1", "Spanish", "basics", "bg-blue-500", testNow).
		AddRow("d2", "French", "", "", testNow.Add(time.Second))
	mock.ExpectQuery(`SELECT id, name, description, color, created_at FROM decks WHERE owner_id = \$1`).
		WithArgs("u1").
		WillReturnRows(rows)

	decks, err := st.GetDecks(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, decks, 2)
	assert.Equal(t, domain.Deck{ID: "d1", Name: "Spanish", Description: "basics", Color: "bg-blue-500", CreatedAt: testNow}, decks[0])
	assert.Equal(t, "French", decks[1].Name)
}

func TestGetCards_Mock(t *testing.T) {
	st, mock := newMockStore(t)
	reviewed := testNow.Add(time.Hour)
	rows := pgxmock.NewRows(cardColumns).
		AddRow("c1", "d1", "hola", "hello", "es", "en", testNow, &reviewed, testNow.Add(24*time.Hour), 1.0, 1, 2.6)
	mock.ExpectQuery(`SELECT .* FROM cards WHERE deck_id = \$1 AND owner_id = \$2`).
		WithArgs("d1", "u1").
		WillReturnRows(rows)

	cards, err := st.GetCards(context.Background(), "u1", "d1")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	c := cards[0]
	assert.Equal(t, "hola", c.Front)
	assert.Equal(t, "es", c.FrontLanguage)
	require.NotNil(t, c.LastReviewed)
	assert.Equal(t, reviewed, *c.LastReviewed)
	assert.Equal(t, 1.0, c.Interval)
	assert.Equal(t, 2.6, c.EFactor)
}

func TestDeleteDeck_Mock(t *testing.T) {
	t.Run("commits cards and deck together", func(t *testing.T) {
		st, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM cards`).WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 3))
		mock.ExpectExec(`DELETE FROM decks`).WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		require.NoError(t, st.DeleteDeck(context.Background(), "u1", "d1"))
	})

	t.Run("rolls back when the deck delete fails", func(t *testing.T) {
		st, mock := newMockStore(t)
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM cards`).WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 3))
		mock.ExpectExec(`DELETE FROM decks`).WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(boom)
		mock.ExpectRollback()

		err := st.DeleteDeck(context.Background(), "u1", "d1")
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "delete deck d1")
	})
}

func TestUpsertCard_MockError(t *testing.T) {
	st, mock := newMockStore(t)
	boom := errors.New("connection reset")
	mock.ExpectExec(`INSERT INTO cards`).WillReturnError(boom)

	err := st.UpsertCard(context.Background(), "u1", domain.Card{ID: "c9", NextReview: testNow, CreatedAt: testNow})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "upsert card c9")
}

// openTestStore connects to the database named by FLASHDECK_TEST_PG_DSN.
// Each test uses its own owner id, so runs do not see each other's rows.
func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dsn := os.Getenv("FLASHDECK_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("FLASHDECK_TEST_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st, "test-" + uuid.NewString()
}

func TestStore_RoundTrip(t *testing.T) {
	st, owner := openTestStore(t)
	ctx := context.Background()

	reviewed := testNow.Add(time.Hour)
	decks := []domain.Deck{
		{ID: "d1", Name: "Spanish", Color: "bg-blue-500", CreatedAt: testNow},
		{ID: "d2", Name: "French", CreatedAt: testNow.Add(time.Second)},
	}
	cards := []domain.Card{
		{ID: "c1", DeckID: "d1", Front: "hola", Back: "hello", CreatedAt: testNow, LastReviewed: &reviewed,
			NextReview: testNow.Add(24 * time.Hour), Interval: 1, Repetition: 1, EFactor: 2.6},
		{ID: "c2", DeckID: "d2", Front: "bonjour", Back: "hello", CreatedAt: testNow.Add(time.Second),
			NextReview: testNow, Interval: 1, EFactor: 2.5},
	}
	require.NoError(t, st.SyncAll(ctx, owner, decks, cards))

	gotDecks, err := st.GetDecks(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, decks, gotDecks)

	gotCards, err := st.GetCards(ctx, owner, "")
	require.NoError(t, err)
	assert.Equal(t, cards, gotCards)

	inDeck, err := st.GetCards(ctx, owner, "d2")
	require.NoError(t, err)
	require.Len(t, inDeck, 1)
	assert.Equal(t, "c2", inDeck[0].ID)

	decks[0].Name = "Español"
	require.NoError(t, st.UpsertDeck(ctx, owner, decks[0]))
	require.NoError(t, st.DeleteDeck(ctx, owner, "d2"))
	require.NoError(t, st.DeleteCard(ctx, owner, "c1"))

	gotDecks, err = st.GetDecks(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, decks[:1], gotDecks)
	gotCards, err = st.GetCards(ctx, owner, "")
	require.NoError(t, err)
	assert.Empty(t, gotCards)

	require.NoError(t, st.RecordSession(ctx, owner, store.SessionRecord{
		DeckID: "d1", Type: store.SessionSpacedRepetition, CardsReviewed: 2, CorrectAnswers: 1,
		StartedAt: testNow, EndedAt: testNow.Add(time.Minute),
	}))
}
