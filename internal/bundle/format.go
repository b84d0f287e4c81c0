// Package bundle reads and writes the JSON import/export file.
package bundle

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// Version is written into every exported file.
const Version = "1.0"

// DefaultColor is used for imported decks without a color.
const DefaultColor = "bg-blue-500"

// timeLayout matches JavaScript's Date.prototype.toISOString.
const timeLayout = "2006-01-02T15:04:05.000Z"

// File is the on-disk shape of an export.
type File struct {
	Version    string       `json:"version"`
	ExportDate string       `json:"exportDate"`
	Decks      []DeckRecord `json:"decks"`
	Flashcards []CardRecord `json:"flashcards"`
}

// DeckRecord is a deck as it appears in the file.
type DeckRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

// CardRecord is a card as it appears in the file.
type CardRecord struct {
	ID            string  `json:"id"`
	DeckID        string  `json:"deckId"`
	Front         string  `json:"front"`
	Back          string  `json:"back"`
	FrontLanguage string  `json:"frontLanguage,omitempty"`
	BackLanguage  string  `json:"backLanguage,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	LastReviewed  string  `json:"lastReviewed,omitempty"`
	NextReview    string  `json:"nextReview"`
	Interval      float64 `json:"interval"`
	Repetition    int     `json:"repetition"`
	EFactor       float64 `json:"efactor"`
}

// Bundle is a validated and normalized import.
type Bundle struct {
	Version    string
	ExportDate time.Time
	Decks      []domain.Deck
	Cards      []domain.Card
}

// FormatTime renders t the way exported files store timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Export builds a file from the collection. A non-empty deckID limits
// the export to that deck and its cards.
func Export(decks []domain.Deck, cards []domain.Card, deckID string, now time.Time) File {
	f := File{
		Version:    Version,
		ExportDate: FormatTime(now),
		Decks:      []DeckRecord{},
		Flashcards: []CardRecord{},
	}
	for _, d := range decks {
		if deckID != "" && d.ID != deckID {
			continue
		}
		f.Decks = append(f.Decks, DeckRecord{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Color:       d.Color,
			CreatedAt:   FormatTime(d.CreatedAt),
		})
	}
	for _, c := range cards {
		if deckID != "" && c.DeckID != deckID {
			continue
		}
		rec := CardRecord{
			ID:            c.ID,
			DeckID:        c.DeckID,
			Front:         c.Front,
			Back:          c.Back,
			FrontLanguage: c.FrontLanguage,
			BackLanguage:  c.BackLanguage,
			CreatedAt:     FormatTime(c.CreatedAt),
			NextReview:    FormatTime(c.NextReview),
			Interval:      c.Interval,
			Repetition:    c.Repetition,
			EFactor:       c.EFactor,
		}
		if c.LastReviewed != nil {
			rec.LastReviewed = FormatTime(*c.LastReviewed)
		}
		f.Flashcards = append(f.Flashcards, rec)
	}
	return f
}

// Encode writes f as indented JSON.
func Encode(w io.Writer, f File) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}
