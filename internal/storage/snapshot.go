package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/conorfennell/flashdeck/internal/study"
)

const (
	keySelectedDeck = "selected_deck_id"
	keySession      = "study_session"
)

// Snapshot is the local UI state kept between runs.
type Snapshot struct {
	SelectedDeckID string
	// Session is nil when no session was saved.
	Session *study.Session
}

// SaveSnapshot stores the selected deck and the study session.
func (db *DB) SaveSnapshot(ctx context.Context, ownerID string, snap Snapshot) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot save: %w", err)
	}
	defer tx.Rollback()

	if err := putSetting(ctx, tx, ownerID, keySelectedDeck, snap.SelectedDeckID); err != nil {
		return err
	}
	if snap.Session != nil {
		raw, err := json.Marshal(snap.Session)
		if err != nil {
			return fmt.Errorf("failed to encode study session: %w", err)
		}
		if err := putSetting(ctx, tx, ownerID, keySession, string(raw)); err != nil {
			return err
		}
	} else if _, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE owner_id = ? AND key = ?`, ownerID, keySession); err != nil {
		return fmt.Errorf("failed to clear study session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the saved snapshot, or a zero Snapshot when nothing was saved.
func (db *DB) LoadSnapshot(ctx context.Context, ownerID string) (Snapshot, error) {
	var snap Snapshot

	selected, err := db.getSetting(ctx, ownerID, keySelectedDeck)
	if err != nil {
		return snap, err
	}
	snap.SelectedDeckID = selected

	raw, err := db.getSetting(ctx, ownerID, keySession)
	if err != nil {
		return snap, err
	}
	if raw != "" {
		var s study.Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return snap, fmt.Errorf("failed to decode study session: %w", err)
		}
		snap.Session = &s
	}
	return snap, nil
}

func putSetting(ctx context.Context, ex execer, ownerID, key, value string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO settings (owner_id, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT (owner_id, key) DO UPDATE SET value = excluded.value
	`, ownerID, key, value)
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

func (db *DB) getSetting(ctx context.Context, ownerID, key string) (string, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, `
		SELECT value FROM settings WHERE owner_id = ? AND key = ?
	`, ownerID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load setting %s: %w", key, err)
	}
	return value, nil
}
