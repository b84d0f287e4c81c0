// Package postgres implements the remote record store on PostgreSQL.
// Queries are built with squirrel and scanned with scany.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var (
	deckColumns = []string{"id", "name", "description", "color", "created_at"}
	cardColumns = []string{
		"id", "deck_id", "front", "back", "front_language", "back_language",
		"created_at", "last_reviewed", "next_review", "interval_days", "repetition", "e_factor",
	}
)

// DB is the part of a pgx pool the store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store provides deck and card persistence backed by PostgreSQL.
type Store struct {
	db DB
}

var (
	_ store.Store           = (*Store)(nil)
	_ store.SessionRecorder = (*Store)(nil)
)

// New wraps an open pool or connection.
func New(db DB) *Store {
	return &Store{db: db}
}

// Open migrates the database and connects a pool to it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if err := Migrate(ctx, dsn); err != nil {
		return nil, err
	}
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return New(pool), nil
}

// NewPool parses the DSN, connects and pings for fail-fast validation.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}
	poolCfg.MaxConns = 4
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded goose migrations. goose needs a *sql.DB, so
// this opens a short-lived connection through the pgx stdlib driver.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	defer db.Close()

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("goose new provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Close releases the pool when the underlying DB can be closed.
func (s *Store) Close() {
	if c, ok := s.db.(interface{ Close() }); ok {
		c.Close()
	}
}

type deckRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Color       string    `db:"color"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r deckRow) toDomain() domain.Deck {
	return domain.Deck{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Color:       r.Color,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type cardRow struct {
	ID            string     `db:"id"`
	DeckID        string     `db:"deck_id"`
	Front         string     `db:"front"`
	Back          string     `db:"back"`
	FrontLanguage string     `db:"front_language"`
	BackLanguage  string     `db:"back_language"`
	CreatedAt     time.Time  `db:"created_at"`
	LastReviewed  *time.Time `db:"last_reviewed"`
	NextReview    time.Time  `db:"next_review"`
	IntervalDays  float64    `db:"interval_days"`
	Repetition    int        `db:"repetition"`
	EFactor       float64    `db:"e_factor"`
}

func (r cardRow) toDomain() domain.Card {
	c := domain.Card{
		ID:            r.ID,
		DeckID:        r.DeckID,
		Front:         r.Front,
		Back:          r.Back,
		FrontLanguage: r.FrontLanguage,
		BackLanguage:  r.BackLanguage,
		CreatedAt:     r.CreatedAt.UTC(),
		NextReview:    r.NextReview.UTC(),
		Interval:      r.IntervalDays,
		Repetition:    r.Repetition,
		EFactor:       r.EFactor,
	}
	if r.LastReviewed != nil {
		t := r.LastReviewed.UTC()
		c.LastReviewed = &t
	}
	return c
}

// GetDecks returns the owner's decks, oldest first.
func (s *Store) GetDecks(ctx context.Context, ownerID string) ([]domain.Deck, error) {
	query, args, err := psql.Select(deckColumns...).
		From("decks").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get decks: %w", err)
	}

	var rows []deckRow
	if err := pgxscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get decks: %w", err)
	}
	decks := make([]domain.Deck, len(rows))
	for i, r := range rows {
		decks[i] = r.toDomain()
	}
	return decks, nil
}

// GetCards returns the owner's cards, only those of deckID when it is set.
func (s *Store) GetCards(ctx context.Context, ownerID, deckID string) ([]domain.Card, error) {
	where := squirrel.Eq{"owner_id": ownerID}
	if deckID != "" {
		where["deck_id"] = deckID
	}
	query, args, err := psql.Select(cardColumns...).
		From("cards").
		Where(where).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get cards: %w", err)
	}

	var rows []cardRow
	if err := pgxscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get cards: %w", err)
	}
	cards := make([]domain.Card, len(rows))
	for i, r := range rows {
		cards[i] = r.toDomain()
	}
	return cards, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertDeckSQL(ownerID string, d domain.Deck) (string, []any, error) {
	return psql.Insert("decks").
		Columns(append([]string{"owner_id"}, deckColumns...)...).
		Values(ownerID, d.ID, d.Name, d.Description, d.Color, d.CreatedAt).
		Suffix(`ON CONFLICT (owner_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			color = EXCLUDED.color,
			created_at = EXCLUDED.created_at,
			updated_at = now()`).
		ToSql()
}

func upsertCardSQL(ownerID string, c domain.Card) (string, []any, error) {
	return psql.Insert("cards").
		Columns(append([]string{"owner_id"}, cardColumns...)...).
		Values(
			ownerID, c.ID, c.DeckID, c.Front, c.Back, c.FrontLanguage, c.BackLanguage,
			c.CreatedAt, c.LastReviewed, c.NextReview, c.Interval, c.Repetition, c.EFactor,
		).
		Suffix(`ON CONFLICT (owner_id, id) DO UPDATE SET
			deck_id = EXCLUDED.deck_id,
			front = EXCLUDED.front,
			back = EXCLUDED.back,
			front_language = EXCLUDED.front_language,
			back_language = EXCLUDED.back_language,
			created_at = EXCLUDED.created_at,
			last_reviewed = EXCLUDED.last_reviewed,
			next_review = EXCLUDED.next_review,
			interval_days = EXCLUDED.interval_days,
			repetition = EXCLUDED.repetition,
			e_factor = EXCLUDED.e_factor,
			updated_at = now()`).
		ToSql()
}

func exec(ctx context.Context, ex execer, what string, query string, args []any, err error) error {
	if err != nil {
		return fmt.Errorf("build %s: %w", what, err)
	}
	if _, err := ex.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// UpsertDeck writes the whole deck record, last writer wins.
func (s *Store) UpsertDeck(ctx context.Context, ownerID string, deck domain.Deck) error {
	query, args, err := upsertDeckSQL(ownerID, deck)
	return exec(ctx, s.db, "upsert deck "+deck.ID, query, args, err)
}

// UpsertCard writes the whole card record, last writer wins.
func (s *Store) UpsertCard(ctx context.Context, ownerID string, card domain.Card) error {
	query, args, err := upsertCardSQL(ownerID, card)
	return exec(ctx, s.db, "upsert card "+card.ID, query, args, err)
}

// DeleteDeck removes a deck and its cards in one transaction.
func (s *Store) DeleteDeck(ctx context.Context, ownerID, deckID string) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		query, args, err := psql.Delete("cards").
			Where(squirrel.Eq{"owner_id": ownerID, "deck_id": deckID}).
			ToSql()
		if err := exec(ctx, tx, "delete cards of deck "+deckID, query, args, err); err != nil {
			return err
		}
		query, args, err = psql.Delete("decks").
			Where(squirrel.Eq{"owner_id": ownerID, "id": deckID}).
			ToSql()
		return exec(ctx, tx, "delete deck "+deckID, query, args, err)
	})
}

// DeleteCard removes one card.
func (s *Store) DeleteCard(ctx context.Context, ownerID, cardID string) error {
	query, args, err := psql.Delete("cards").
		Where(squirrel.Eq{"owner_id": ownerID, "id": cardID}).
		ToSql()
	return exec(ctx, s.db, "delete card "+cardID, query, args, err)
}

// SyncAll upserts every deck and card in one transaction.
func (s *Store) SyncAll(ctx context.Context, ownerID string, decks []domain.Deck, cards []domain.Card) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		for _, d := range decks {
			query, args, err := upsertDeckSQL(ownerID, d)
			if err := exec(ctx, tx, "upsert deck "+d.ID, query, args, err); err != nil {
				return err
			}
		}
		for _, c := range cards {
			query, args, err := upsertCardSQL(ownerID, c)
			if err := exec(ctx, tx, "upsert card "+c.ID, query, args, err); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordSession appends a finished review session.
func (s *Store) RecordSession(ctx context.Context, ownerID string, rec store.SessionRecord) error {
	query, args, err := psql.Insert("review_sessions").
		Columns("owner_id", "deck_id", "session_type", "cards_reviewed", "correct_answers", "started_at", "ended_at").
		Values(ownerID, rec.DeckID, string(rec.Type), rec.CardsReviewed, rec.CorrectAnswers, rec.StartedAt, rec.EndedAt).
		ToSql()
	return exec(ctx, s.db, "record session", query, args, err)
}
