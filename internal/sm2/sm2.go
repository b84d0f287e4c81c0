package sm2

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
)

const day = 24 * time.Hour

// State holds the memory parameters of a card.
type State struct {
	Interval   float64 // days until the next review
	Repetition int     // consecutive passing reviews
	EFactor    float64
}

// InitialState is the state of a card that has never been reviewed.
func InitialState() State {
	return State{
		Interval:   domain.DefaultInterval,
		Repetition: 0,
		EFactor:    domain.DefaultEFactor,
	}
}

// StateOf extracts the scheduling fields of a card.
func StateOf(c domain.Card) State {
	return State{Interval: c.Interval, Repetition: c.Repetition, EFactor: c.EFactor}
}

// Schedule applies one SuperMemo-2 step. It has no side effects.
func Schedule(s State, g Grade) (State, error) {
	if !g.Valid() {
		return s, fmt.Errorf("%w: %d", ErrInvalidGrade, int(g))
	}

	var next State
	if g.Passed() {
		switch s.Repetition {
		case 0:
			next.Interval = 1
		case 1:
			next.Interval = 6
		default:
			// Uses the ease factor from before this review.
			next.Interval = math.Round(s.Interval * s.EFactor)
			if next.Interval < s.Interval {
				next.Interval = s.Interval
			}
		}
		next.Repetition = s.Repetition + 1
	} else {
		next.Interval = 1
		next.Repetition = 0
	}

	next.EFactor = nextEFactor(s.EFactor, g)
	return next, nil
}

func nextEFactor(ef float64, g Grade) float64 {
	q := float64(5 - g)
	ef += 0.1 - q*(0.08+q*0.02)
	if ef < domain.MinEFactor {
		ef = domain.MinEFactor
	}
	return ef
}

// NextReview is the instant a card with the given interval is due again.
func NextReview(now time.Time, interval float64) time.Time {
	return now.Add(time.Duration(interval * float64(day)))
}

// Review grades a card at now and returns the updated copy.
func Review(c domain.Card, g Grade, now time.Time) (domain.Card, error) {
	next, err := Schedule(StateOf(c), g)
	if err != nil {
		return c, err
	}
	c = c.Clone()
	reviewed := now
	c.LastReviewed = &reviewed
	c.Interval = next.Interval
	c.Repetition = next.Repetition
	c.EFactor = next.EFactor
	c.NextReview = NextReview(now, next.Interval)
	return c, nil
}
