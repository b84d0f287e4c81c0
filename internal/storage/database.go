// Package storage keeps the collection in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

var (
	_ store.Store           = (*DB)(nil)
	_ store.SessionRecorder = (*DB)(nil)
)

// Open creates a new database connection and migrates the schema to the latest version.
func Open(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; in-memory databases are per connection.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

func migrate(ctx context.Context, conn *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// GetDecks returns the owner's decks in the order they were first written.
func (db *DB) GetDecks(ctx context.Context, ownerID string) ([]domain.Deck, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, description, color, created_at
		FROM decks WHERE owner_id = ?
		ORDER BY rowid
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get decks: %w", err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		var d domain.Deck
		var created int64
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Color, &created); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		d.CreatedAt = fromMillis(created)
		decks = append(decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read deck rows: %w", err)
	}
	return decks, nil
}

// GetCards returns the owner's cards, only those of deckID when it is set.
func (db *DB) GetCards(ctx context.Context, ownerID, deckID string) ([]domain.Card, error) {
	query := `
		SELECT id, deck_id, front, back, front_language, back_language,
		       created_at, last_reviewed, next_review, interval_days, repetition, e_factor
		FROM cards WHERE owner_id = ?`
	args := []any{ownerID}
	if deckID != "" {
		query += ` AND deck_id = ?`
		args = append(args, deckID)
	}
	query += ` ORDER BY rowid`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		var created, next int64
		var last sql.NullInt64
		if err := rows.Scan(
			&c.ID,
			&c.DeckID,
			&c.Front,
			&c.Back,
			&c.FrontLanguage,
			&c.BackLanguage,
			&created,
			&last,
			&next,
			&c.Interval,
			&c.Repetition,
			&c.EFactor,
		); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		c.CreatedAt = fromMillis(created)
		c.NextReview = fromMillis(next)
		if last.Valid {
			t := fromMillis(last.Int64)
			c.LastReviewed = &t
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read card rows: %w", err)
	}
	return cards, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpsertDeck inserts the deck or overwrites the stored record with the same id.
func (db *DB) UpsertDeck(ctx context.Context, ownerID string, deck domain.Deck) error {
	return upsertDeck(ctx, db.conn, ownerID, deck)
}

func upsertDeck(ctx context.Context, ex execer, ownerID string, deck domain.Deck) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO decks (owner_id, id, name, description, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			color = excluded.color,
			created_at = excluded.created_at
	`,
		ownerID,
		deck.ID,
		deck.Name,
		deck.Description,
		deck.Color,
		deck.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert deck %s: %w", deck.ID, err)
	}
	return nil
}

// UpsertCard inserts the card or overwrites the stored record with the same id.
func (db *DB) UpsertCard(ctx context.Context, ownerID string, card domain.Card) error {
	return upsertCard(ctx, db.conn, ownerID, card)
}

func upsertCard(ctx context.Context, ex execer, ownerID string, card domain.Card) error {
	var last sql.NullInt64
	if card.LastReviewed != nil {
		last = sql.NullInt64{Int64: card.LastReviewed.UnixMilli(), Valid: true}
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO cards (owner_id, id, deck_id, front, back, front_language, back_language,
		                   created_at, last_reviewed, next_review, interval_days, repetition, e_factor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, id) DO UPDATE SET
			deck_id = excluded.deck_id,
			front = excluded.front,
			back = excluded.back,
			front_language = excluded.front_language,
			back_language = excluded.back_language,
			created_at = excluded.created_at,
			last_reviewed = excluded.last_reviewed,
			next_review = excluded.next_review,
			interval_days = excluded.interval_days,
			repetition = excluded.repetition,
			e_factor = excluded.e_factor
	`,
		ownerID,
		card.ID,
		card.DeckID,
		card.Front,
		card.Back,
		card.FrontLanguage,
		card.BackLanguage,
		card.CreatedAt.UnixMilli(),
		last,
		card.NextReview.UnixMilli(),
		card.Interval,
		card.Repetition,
		card.EFactor,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert card %s: %w", card.ID, err)
	}
	return nil
}

// DeleteDeck removes a deck and every card in it.
func (db *DB) DeleteDeck(ctx context.Context, ownerID, deckID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin deck delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE owner_id = ? AND deck_id = ?`, ownerID, deckID); err != nil {
		return fmt.Errorf("failed to delete cards of deck %s: %w", deckID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM decks WHERE owner_id = ? AND id = ?`, ownerID, deckID); err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", deckID, err)
	}
	return tx.Commit()
}

// DeleteCard removes a card from the database by its id.
func (db *DB) DeleteCard(ctx context.Context, ownerID, cardID string) error {
	_, err := db.conn.ExecContext(ctx, `
		DELETE FROM cards
		WHERE owner_id = ? AND id = ?
	`, ownerID, cardID)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", cardID, err)
	}
	return nil
}

// SyncAll upserts every deck and card in a single transaction.
func (db *DB) SyncAll(ctx context.Context, ownerID string, decks []domain.Deck, cards []domain.Card) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin sync: %w", err)
	}
	defer tx.Rollback()

	for _, d := range decks {
		if err := upsertDeck(ctx, tx, ownerID, d); err != nil {
			return err
		}
	}
	for _, c := range cards {
		if err := upsertCard(ctx, tx, ownerID, c); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync: %w", err)
	}
	return nil
}

// RecordSession appends a finished review session to the history.
func (db *DB) RecordSession(ctx context.Context, ownerID string, rec store.SessionRecord) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO review_sessions (owner_id, deck_id, session_type, cards_reviewed, correct_answers, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ownerID,
		rec.DeckID,
		string(rec.Type),
		rec.CardsReviewed,
		rec.CorrectAnswers,
		rec.StartedAt.UnixMilli(),
		rec.EndedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// Sessions returns the owner's recorded sessions, oldest first.
func (db *DB) Sessions(ctx context.Context, ownerID string) ([]store.SessionRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT deck_id, session_type, cards_reviewed, correct_answers, started_at, ended_at
		FROM review_sessions WHERE owner_id = ?
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	defer rows.Close()

	var out []store.SessionRecord
	for rows.Next() {
		var rec store.SessionRecord
		var typ string
		var started, ended int64
		if err := rows.Scan(&rec.DeckID, &typ, &rec.CardsReviewed, &rec.CorrectAnswers, &started, &ended); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		rec.Type = store.SessionType(typ)
		rec.StartedAt = fromMillis(started)
		rec.EndedAt = fromMillis(ended)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
