package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/conorfennell/flashdeck/internal/sm2"
	"github.com/conorfennell/flashdeck/internal/store"
	"github.com/conorfennell/flashdeck/internal/study"
	"github.com/conorfennell/flashdeck/internal/syncer"
)

const gradeHelp = "grade 1 again, 2 hard, 3 good, 4 easy, 5 perfect (0 blackout, s skip, q quit): "

// review runs the interactive study loop on one deck.
func (a *app) review(args []string) error {
	fs := newFlags("review")
	deckRef := fs.String("deck", "", "deck name or id (default: selected deck)")
	cram := fs.Bool("cram", false, "practice every card without rescheduling")
	if err := fs.Parse(args); err != nil {
		return err
	}
	d, err := a.resolveDeck(*deckRef)
	if err != nil {
		return err
	}
	if err := a.col.SelectDeck(d.ID); err != nil {
		return err
	}

	started := a.now()
	if a.session == nil || a.session.DeckID != d.ID {
		a.session = study.NewSession(d.ID, started)
	}
	if a.session.Cram != *cram {
		a.session.ToggleCram(a.col.Cards(), started)
	}
	s := a.session

	mode := "Review"
	if s.Cram {
		mode = "Cram"
	}
	a.printf("%s: %s\n", mode, d.Name)

	reviewed, correct := 0, 0
	for {
		now := a.now()
		card, ok := s.Current(a.col.Cards(), now)
		if !ok {
			a.printf("No cards due. Nice work!\n")
			break
		}
		if s.Cram && s.Complete() {
			a.printf("Every card practiced.\n")
			break
		}

		a.printf("\n[%d/%d] %s\n", s.Index+1, len(s.Set(a.col.Cards(), now)), card.Front)
		if _, err := a.prompt("(enter to show answer) "); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		a.printf("%s\n", card.Back)

		g, quit, err := a.readGrade()
		if err != nil {
			return err
		}
		if quit {
			break
		}
		if g < 0 {
			s.Next(a.col.Cards(), now)
			continue
		}

		updated, err := s.Answer(a.col, g, now)
		if err != nil {
			return err
		}
		reviewed++
		if g.Passed() {
			correct++
		}
		if s.Cram {
			s.Next(a.col.Cards(), now)
		} else {
			a.printf("Next review in %s (%s)\n", days(updated.Interval), g)
		}
	}

	a.printf("\nReviewed %d cards, %d correct.\n", reviewed, correct)
	if s.Cram {
		a.printf("Cram: %d%% accuracy, %d%% of the deck practiced.\n", s.Accuracy(), s.Completion())
	}
	if reviewed == 0 {
		return nil
	}

	typ := store.SessionSpacedRepetition
	if s.Cram {
		typ = store.SessionCram
	}
	a.recordSession(store.SessionRecord{
		DeckID:         d.ID,
		Type:           typ,
		CardsReviewed:  reviewed,
		CorrectAnswers: correct,
		StartedAt:      started,
		EndedAt:        a.now(),
	})
	return nil
}

// readGrade asks until it gets a grade. A negative grade means skip.
func (a *app) readGrade() (sm2.Grade, bool, error) {
	for {
		line, err := a.prompt(gradeHelp)
		if errors.Is(err, io.EOF) {
			return 0, true, nil
		}
		if err != nil {
			return 0, false, err
		}
		switch strings.ToLower(line) {
		case "q", "quit":
			return 0, true, nil
		case "s", "skip":
			return -1, false, nil
		}
		g, err := sm2.ParseGrade(line)
		if err == nil {
			return g, false, nil
		}
		a.printf("%v\n", err)
	}
}

func days(interval float64) string {
	if interval == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%g days", interval)
}

func syncLine(st syncer.Status, remote bool) string {
	where := "local database"
	if remote {
		where = "remote store"
	}
	var b strings.Builder
	switch {
	case st.Err != nil:
		fmt.Fprintf(&b, "Sync to %s failing: %v", where, st.Err)
	case st.Syncing:
		fmt.Fprintf(&b, "Syncing to %s", where)
	case st.LastSync.IsZero():
		fmt.Fprintf(&b, "Nothing synced to %s yet", where)
	default:
		fmt.Fprintf(&b, "Synced to %s at %s", where, st.LastSync.Local().Format("15:04:05"))
	}
	if st.Pending > 0 {
		fmt.Fprintf(&b, ", %d pending", st.Pending)
	}
	return b.String()
}
