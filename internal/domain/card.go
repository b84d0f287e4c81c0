package domain

import "time"

// Default scheduling values for a card that has never been reviewed.
const (
	DefaultInterval = 1.0
	DefaultEFactor  = 2.5
	MinEFactor      = 1.3
)

// Card is a single front/back flashcard together with its SM-2 memory state.
type Card struct {
	ID            string
	DeckID        string
	Front         string
	Back          string
	FrontLanguage string // presentation hint only
	BackLanguage  string // presentation hint only
	CreatedAt     time.Time
	LastReviewed  *time.Time // nil until the first review
	NextReview    time.Time
	Interval      float64 // days
	Repetition    int
	EFactor       float64
}

// Reviewed reports whether the card has been reviewed at least once.
func (c Card) Reviewed() bool {
	return c.LastReviewed != nil
}

// IsDue reports whether the card should be shown at the given instant.
func (c Card) IsDue(now time.Time) bool {
	return !c.NextReview.After(now)
}

// Clone returns a copy that does not share the LastReviewed pointer.
func (c Card) Clone() Card {
	if c.LastReviewed != nil {
		t := *c.LastReviewed
		c.LastReviewed = &t
	}
	return c
}

// Deck groups cards. Deleting a deck deletes its cards.
type Deck struct {
	ID          string
	Name        string
	Description string
	Color       string
	CreatedAt   time.Time
}
