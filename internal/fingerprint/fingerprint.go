// Package fingerprint derives stable hashes of decks and cards.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// Normalize concatenates the card's text after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each field
// before joining them.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return strings.TrimSpace(p)
	}
	return strings.Join([]string{normalizePart(card.Front), normalizePart(card.Back)}, "\n")
}

// Content hashes the normalized text of a card. Cards that differ only in
// case or surrounding whitespace share a content hash.
func Content(card domain.Card) string {
	return sum(Normalize(card))
}

// Card hashes every field of the card record, so any edit or review changes it.
func Card(c domain.Card) string {
	last := ""
	if c.LastReviewed != nil {
		last = stamp(*c.LastReviewed)
	}
	return sum(strings.Join([]string{
		c.ID,
		c.DeckID,
		c.Front,
		c.Back,
		c.FrontLanguage,
		c.BackLanguage,
		stamp(c.CreatedAt),
		last,
		stamp(c.NextReview),
		strconv.FormatFloat(c.Interval, 'g', -1, 64),
		strconv.Itoa(c.Repetition),
		strconv.FormatFloat(c.EFactor, 'g', -1, 64),
	}, "\x00"))
}

// Deck hashes every field of the deck record.
func Deck(d domain.Deck) string {
	return sum(strings.Join([]string{
		d.ID,
		d.Name,
		d.Description,
		d.Color,
		stamp(d.CreatedAt),
	}, "\x00"))
}

func stamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func sum(s string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s)))
}
