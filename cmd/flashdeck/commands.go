package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/conorfennell/flashdeck/internal/bundle"
	"github.com/conorfennell/flashdeck/internal/collection"
	"github.com/conorfennell/flashdeck/internal/fingerprint"
	"github.com/conorfennell/flashdeck/internal/markdown"
	"github.com/conorfennell/flashdeck/internal/merge"
	"github.com/conorfennell/flashdeck/internal/stats"
)

var errUsage = errors.New("invalid arguments, run flashdeck --help")

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "deck":
		return a.deckCmd(args)
	case "card":
		return a.cardCmd(args)
	case "add-md":
		return a.addMarkdown(args)
	case "review":
		return a.review(args)
	case "stats":
		return a.stats()
	case "export":
		return a.export(args)
	case "import":
		return a.importCmd(ctx, args)
	case "sync":
		return a.sync(ctx)
	}
	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

func newFlags(name string) *pflag.FlagSet {
	return pflag.NewFlagSet(name, pflag.ContinueOnError)
}

func (a *app) deckCmd(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	fs := newFlags("deck " + args[0])
	switch args[0] {
	case "add":
		desc := fs.String("description", "", "deck description")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errUsage
		}
		d, err := a.col.CreateDeck(collection.NewDeck{Name: fs.Arg(0), Description: *desc})
		if err != nil {
			return err
		}
		a.printf("Created deck %q (%s)\n", d.Name, d.ID)
		return nil

	case "list":
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tNAME\tCARDS\tCOLOR")
		selected := a.col.Selected()
		for _, d := range a.col.Decks() {
			mark := ""
			if d.ID == selected {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", mark, d.ID, d.Name, len(a.col.CardsInDeck(d.ID)), d.Color)
		}
		return w.Flush()

	case "select":
		if len(args) != 2 {
			return errUsage
		}
		d, err := a.resolveDeck(args[1])
		if err != nil {
			return err
		}
		if err := a.col.SelectDeck(d.ID); err != nil {
			return err
		}
		if a.session != nil {
			a.session.SelectDeck(d.ID, a.col.Cards(), a.now())
		}
		a.printf("Selected deck %q\n", d.Name)
		return nil

	case "edit":
		name := fs.String("name", "", "new name")
		desc := fs.String("description", "", "new description")
		color := fs.String("color", "", "new color class")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errUsage
		}
		d, err := a.resolveDeck(fs.Arg(0))
		if err != nil {
			return err
		}
		var upd collection.DeckUpdate
		if fs.Changed("name") {
			upd.Name = name
		}
		if fs.Changed("description") {
			upd.Description = desc
		}
		if fs.Changed("color") {
			upd.Color = color
		}
		d, err = a.col.UpdateDeck(d.ID, upd)
		if err != nil {
			return err
		}
		a.printf("Updated deck %q\n", d.Name)
		return nil

	case "rm":
		if len(args) != 2 {
			return errUsage
		}
		d, err := a.resolveDeck(args[1])
		if err != nil {
			return err
		}
		n := len(a.col.CardsInDeck(d.ID))
		if err := a.col.DeleteDeck(d.ID); err != nil {
			return err
		}
		a.printf("Deleted deck %q and %d cards\n", d.Name, n)
		return nil
	}
	return errUsage
}

func (a *app) cardCmd(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	fs := newFlags("card " + args[0])
	deckRef := fs.String("deck", "", "deck name or id (default: selected deck)")
	frontLang := fs.String("front-lang", "", "language of the front")
	backLang := fs.String("back-lang", "", "language of the back")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	switch args[0] {
	case "add":
		if fs.NArg() != 2 {
			return errUsage
		}
		d, err := a.resolveDeck(*deckRef)
		if err != nil {
			return err
		}
		c, err := a.col.CreateCard(collection.NewCard{
			Front:         fs.Arg(0),
			Back:          fs.Arg(1),
			DeckID:        d.ID,
			FrontLanguage: *frontLang,
			BackLanguage:  *backLang,
		})
		if err != nil {
			return err
		}
		a.printf("Added card %s to %q\n", c.ID, d.Name)
		return nil

	case "edit":
		if fs.NArg() != 3 {
			return errUsage
		}
		c, err := a.col.EditCard(fs.Arg(0), collection.CardEdit{
			Front:         fs.Arg(1),
			Back:          fs.Arg(2),
			FrontLanguage: *frontLang,
			BackLanguage:  *backLang,
		})
		if err != nil {
			return err
		}
		a.printf("Updated card %s\n", c.ID)
		return nil

	case "rm":
		if fs.NArg() != 1 {
			return errUsage
		}
		if err := a.col.DeleteCard(fs.Arg(0)); err != nil {
			return err
		}
		a.printf("Deleted card %s\n", fs.Arg(0))
		return nil

	case "list":
		d, err := a.resolveDeck(*deckRef)
		if err != nil {
			return err
		}
		now := a.now()
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFRONT\tBACK\tDUE\tINTERVAL\tEF")
		for _, c := range a.col.CardsInDeck(d.ID) {
			due := c.NextReview.Local().Format("2006-01-02 15:04")
			if c.IsDue(now) {
				due = "now"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%gd\t%.2f\n", c.ID, oneLine(c.Front), oneLine(c.Back), due, c.Interval, c.EFactor)
		}
		return w.Flush()
	}
	return errUsage
}

func (a *app) addMarkdown(args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	d, err := a.resolveDeck(args[0])
	if err != nil {
		return err
	}
	drafts, err := markdown.ParseFile(args[1])
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, c := range a.col.CardsInDeck(d.ID) {
		seen[fingerprint.Content(c)] = true
	}

	added, skipped := 0, 0
	for _, draft := range drafts {
		draft.DeckID = d.ID
		c, err := a.col.CreateCard(draft)
		if err != nil {
			return err
		}
		fp := fingerprint.Content(c)
		if seen[fp] {
			// Already in the deck; undo the insert.
			if err := a.col.DeleteCard(c.ID); err != nil {
				return err
			}
			skipped++
			continue
		}
		seen[fp] = true
		added++
	}
	a.printf("Added %d cards to %q, skipped %d duplicates\n", added, d.Name, skipped)
	return nil
}

func (a *app) stats() error {
	now := a.now()
	all := a.col.Cards()
	overall := stats.Overall(all, now)

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DECK\tCARDS\tDUE\tTODAY\tAVG EF")
	for _, s := range stats.ForDecks(all, a.col.Decks(), now) {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.2f\n", s.DeckName, s.TotalCards, s.DueCards, s.ReviewedToday, s.AverageEFactor)
	}
	fmt.Fprintf(w, "All decks\t%d\t%d\t%d\t%.2f\n", overall.TotalCards, overall.DueCards, overall.ReviewedToday, overall.AverageEFactor)
	if err := w.Flush(); err != nil {
		return err
	}

	st := a.local.Status()
	if a.mirror != nil {
		st = a.mirror.Status()
	}
	a.printf("\n%s\n", syncLine(st, a.mirror != nil))
	return nil
}

func (a *app) export(args []string) error {
	fs := newFlags("export")
	deckRef := fs.String("deck", "", "export only this deck")
	out := fs.String("out", "", "output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	deckID := ""
	if *deckRef != "" {
		d, err := a.resolveDeck(*deckRef)
		if err != nil {
			return err
		}
		deckID = d.ID
	}
	f := bundle.Export(a.col.Decks(), a.col.Cards(), deckID, a.now())

	if *out == "" {
		return bundle.Encode(a.out, f)
	}
	file, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := bundle.Encode(file, f); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	a.printf("Exported %d decks and %d cards to %s\n", len(f.Decks), len(f.Flashcards), *out)
	return nil
}

func (a *app) importCmd(ctx context.Context, args []string) error {
	fs := newFlags("import")
	strategyFlag := fs.String("strategy", a.cfg.Import.Strategy, "conflict strategy: skip, rename or replace")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	strategy, err := merge.ParseStrategy(*strategyFlag)
	if err != nil {
		return err
	}

	res, err := a.imp.ImportSource(ctx, fs.Arg(0), strategy)
	if err != nil {
		a.printf("%s\n", a.imp.Status().Message)
		return err
	}
	a.printf("%s\n", a.imp.Status().Message)
	a.printf("Imported %d cards, skipped %d\n", res.Imported, res.Skipped)
	for _, c := range res.Conflicts {
		a.printf("  %s %q: %s\n", c.Type, c.Name, c.Action)
	}
	return nil
}

func (a *app) sync(ctx context.Context) error {
	if a.mirror == nil {
		return errors.New("no remote store configured, set remote.dsn or --remote")
	}
	res, err := a.mirror.Pull(ctx, a.col)
	if err != nil {
		return err
	}
	if err := a.mirror.Flush(ctx); err != nil {
		return err
	}
	a.printf("Pulled %d decks and %d cards\n", res.Decks, res.Cards)
	a.printf("%s\n", syncLine(a.mirror.Status(), true))
	return nil
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > 40 {
		return string(r[:39]) + "…"
	}
	return s
}

func trimLine(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\r\n"))
}
