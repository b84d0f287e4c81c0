package syncer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/fingerprint"
)

// Target receives the merged result of a pull.
type Target interface {
	Apply(fn func(decks []domain.Deck, cards []domain.Card) ([]domain.Deck, []domain.Card))
}

// PullResult counts what a pull changed locally.
type PullResult struct {
	Decks int // remote decks added or overwritten locally
	Cards int // remote cards added or overwritten locally
}

// Pull loads every deck and card from the store and merges them into target
// by id, remote records winning. Local records the store lacks are kept and
// pushed back through the queue.
func (s *Syncer) Pull(ctx context.Context, target Target) (PullResult, error) {
	var (
		decks []domain.Deck
		cards []domain.Card
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		decks, err = s.store.GetDecks(gctx, s.owner)
		return err
	})
	g.Go(func() error {
		var err error
		cards, err = s.store.GetCards(gctx, s.owner, "")
		return err
	})
	if err := g.Wait(); err != nil {
		s.failed(err)
		return PullResult{}, fmt.Errorf("pull from store: %w", err)
	}

	s.mu.Lock()
	for _, d := range decks {
		s.pushed[deckKey(d.ID)] = fingerprint.Deck(d)
	}
	for _, c := range cards {
		s.pushed[cardKey(c.ID)] = fingerprint.Card(c)
	}
	s.mu.Unlock()

	var res PullResult
	target.Apply(func(localDecks []domain.Deck, localCards []domain.Card) ([]domain.Deck, []domain.Card) {
		var changedDecks, changedCards int
		localDecks, changedDecks = mergeByID(localDecks, decks, func(d domain.Deck) string { return d.ID }, fingerprint.Deck)
		localCards, changedCards = mergeByID(localCards, cards, func(c domain.Card) string { return c.ID }, fingerprint.Card)
		res = PullResult{Decks: changedDecks, Cards: changedCards}
		return localDecks, localCards
	})

	s.logger.Info("pulled from store",
		"remote_decks", len(decks),
		"remote_cards", len(cards),
		"changed_decks", res.Decks,
		"changed_cards", res.Cards,
	)
	return res, nil
}

// mergeByID overwrites local records with remote ones of the same id and
// appends remote records missing locally. It returns how many records changed.
func mergeByID[T any](local, remote []T, id func(T) string, fp func(T) string) ([]T, int) {
	index := make(map[string]int, len(local))
	for i, r := range local {
		index[id(r)] = i
	}
	changed := 0
	for _, r := range remote {
		i, ok := index[id(r)]
		if !ok {
			index[id(r)] = len(local)
			local = append(local, r)
			changed++
			continue
		}
		if fp(local[i]) != fp(r) {
			local[i] = r
			changed++
		}
	}
	return local, changed
}
