package study

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/sm2"
)

// ErrNoCard is returned when there is nothing to review.
var ErrNoCard = errors.New("no card to review")

// Reviewer is the part of the collection a session needs.
type Reviewer interface {
	Cards() []domain.Card
	Review(id string, g sm2.Grade, now time.Time) (domain.Card, error)
}

// CramStats counts practice in cram mode. They never touch scheduling.
type CramStats struct {
	CardsReviewed  int       `json:"cardsReviewed"`
	CorrectAnswers int       `json:"correctAnswers"`
	StartedAt      time.Time `json:"sessionStartTime"`
	TotalCards     int       `json:"totalCards"`
}

// Session is the navigation and cram state of one study session.
type Session struct {
	DeckID string
	Cram   bool
	Index  int
	Stats  CramStats

	reviewed map[string]struct{}
}

// NewSession starts a session on a deck.
func NewSession(deckID string, now time.Time) *Session {
	return &Session{
		DeckID:   deckID,
		Stats:    CramStats{StartedAt: now},
		reviewed: make(map[string]struct{}),
	}
}

// Set returns the current review set.
func (s *Session) Set(cards []domain.Card, now time.Time) []domain.Card {
	return ReviewSet(cards, s.DeckID, s.Cram, now)
}

// Current returns the card under the cursor.
func (s *Session) Current(cards []domain.Card, now time.Time) (domain.Card, bool) {
	return CurrentCard(s.Set(cards, now), s.Index)
}

// Next advances the cursor, wrapping past the last card.
func (s *Session) Next(cards []domain.Card, now time.Time) {
	n := len(s.Set(cards, now))
	if n == 0 {
		return
	}
	s.Index = (s.Index + 1) % n
}

// Previous moves the cursor back, wrapping before the first card.
func (s *Session) Previous(cards []domain.Card, now time.Time) {
	n := len(s.Set(cards, now))
	if n == 0 {
		return
	}
	if s.Index <= 0 {
		s.Index = n - 1
		return
	}
	s.Index = (s.Index - 1) % n
}

// SelectDeck switches deck. In cram mode a fresh cram session starts.
func (s *Session) SelectDeck(deckID string, cards []domain.Card, now time.Time) {
	s.DeckID = deckID
	s.Index = 0
	if s.Cram {
		s.resetCram(cards, now)
	}
}

// ToggleCram switches cram mode on or off.
func (s *Session) ToggleCram(cards []domain.Card, now time.Time) {
	s.Cram = !s.Cram
	s.Index = 0
	if s.Cram && s.DeckID != "" {
		s.resetCram(cards, now)
	}
}

// ResetCram clears cram counters for the current deck.
func (s *Session) ResetCram(cards []domain.Card, now time.Time) {
	if s.DeckID == "" {
		return
	}
	s.resetCram(cards, now)
	s.Index = 0
}

func (s *Session) resetCram(cards []domain.Card, now time.Time) {
	s.Stats = CramStats{
		StartedAt:  now,
		TotalCards: len(AllCards(cards, s.DeckID)),
	}
	s.reviewed = make(map[string]struct{})
}

// RecordCram counts a practice answer without scheduling the card.
func (s *Session) RecordCram(cardID string, g sm2.Grade) error {
	if !g.Valid() {
		return fmt.Errorf("%w: %d", sm2.ErrInvalidGrade, int(g))
	}
	if s.reviewed == nil {
		s.reviewed = make(map[string]struct{})
	}
	s.reviewed[cardID] = struct{}{}
	s.Stats.CardsReviewed++
	if g.Passed() {
		s.Stats.CorrectAnswers++
	}
	return nil
}

// Answer grades the current card. Outside cram mode the card is scheduled
// through r; in cram mode only the session counters change.
func (s *Session) Answer(r Reviewer, g sm2.Grade, now time.Time) (domain.Card, error) {
	card, ok := s.Current(r.Cards(), now)
	if !ok {
		return domain.Card{}, ErrNoCard
	}
	if s.Cram {
		if err := s.RecordCram(card.ID, g); err != nil {
			return domain.Card{}, err
		}
		return card, nil
	}
	return r.Review(card.ID, g, now)
}

// Reviewed reports whether a card was practiced in this cram session.
func (s *Session) Reviewed(cardID string) bool {
	_, ok := s.reviewed[cardID]
	return ok
}

// UniqueReviewed is the number of distinct cards practiced.
func (s *Session) UniqueReviewed() int {
	return len(s.reviewed)
}

// Accuracy is the percentage of correct cram answers, rounded.
func (s *Session) Accuracy() int {
	if s.Stats.CardsReviewed == 0 {
		return 0
	}
	return roundPercent(s.Stats.CorrectAnswers, s.Stats.CardsReviewed)
}

// Completion is the percentage of the deck practiced at least once, rounded.
func (s *Session) Completion() int {
	if s.Stats.TotalCards == 0 {
		return 0
	}
	return roundPercent(len(s.reviewed), s.Stats.TotalCards)
}

// Complete reports whether every card of the deck was practiced.
func (s *Session) Complete() bool {
	return s.Stats.TotalCards > 0 && len(s.reviewed) >= s.Stats.TotalCards
}

func roundPercent(part, whole int) int {
	return (part*200 + whole) / (whole * 2)
}

type sessionJSON struct {
	DeckID   string    `json:"selectedDeckId"`
	Cram     bool      `json:"cramMode"`
	Index    int       `json:"currentCardIndex"`
	Stats    CramStats `json:"cramSessionStats"`
	Reviewed []string  `json:"reviewedCardIds"`
}

// MarshalJSON writes the reviewed set as a sorted array.
func (s *Session) MarshalJSON() ([]byte, error) {
	ids := make([]string, 0, len(s.reviewed))
	for id := range s.reviewed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return json.Marshal(sessionJSON{
		DeckID:   s.DeckID,
		Cram:     s.Cram,
		Index:    s.Index,
		Stats:    s.Stats,
		Reviewed: ids,
	})
}

// UnmarshalJSON restores a session written by MarshalJSON.
func (s *Session) UnmarshalJSON(data []byte) error {
	var raw sessionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.DeckID = raw.DeckID
	s.Cram = raw.Cram
	s.Index = raw.Index
	s.Stats = raw.Stats
	s.reviewed = make(map[string]struct{}, len(raw.Reviewed))
	for _, id := range raw.Reviewed {
		s.reviewed[id] = struct{}{}
	}
	return nil
}
