package syncer

import (
	"context"
	"fmt"

	"github.com/conorfennell/flashdeck/internal/collection"
	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/fingerprint"
	"github.com/conorfennell/flashdeck/internal/store"
)

type opKind int

const (
	upsertDeck opKind = iota
	upsertCard
	deleteDeck
	deleteCard
	syncAll
	recordSession
)

// op is one queued store call. key identifies the record it overwrites.
type op struct {
	kind    opKind
	key     string
	id      string
	deck    domain.Deck
	card    domain.Card
	decks   []domain.Deck
	cards   []domain.Card
	session store.SessionRecord
}

func deckKey(id string) string { return "deck:" + id }
func cardKey(id string) string { return "card:" + id }

func (o op) String() string {
	switch o.kind {
	case upsertDeck:
		return "upsert deck " + o.deck.ID
	case upsertCard:
		return "upsert card " + o.card.ID
	case deleteDeck:
		return "delete deck " + o.id
	case deleteCard:
		return "delete card " + o.id
	case syncAll:
		return fmt.Sprintf("sync %d decks, %d cards", len(o.decks), len(o.cards))
	case recordSession:
		return "record session for deck " + o.session.DeckID
	}
	return "unknown"
}

func (o op) apply(ctx context.Context, st store.Store, owner string) error {
	switch o.kind {
	case upsertDeck:
		return st.UpsertDeck(ctx, owner, o.deck)
	case upsertCard:
		return st.UpsertCard(ctx, owner, o.card)
	case deleteDeck:
		return st.DeleteDeck(ctx, owner, o.id)
	case deleteCard:
		return st.DeleteCard(ctx, owner, o.id)
	case syncAll:
		return st.SyncAll(ctx, owner, o.decks, o.cards)
	case recordSession:
		rec, ok := st.(store.SessionRecorder)
		if !ok {
			return nil
		}
		return rec.RecordSession(ctx, owner, o.session)
	}
	return fmt.Errorf("unknown sync operation %d", o.kind)
}

// fingerprints lists what the store holds once the op succeeded.
// An empty fingerprint means the record is gone.
func (o op) fingerprints() map[string]string {
	out := make(map[string]string)
	switch o.kind {
	case upsertDeck:
		out[deckKey(o.deck.ID)] = fingerprint.Deck(o.deck)
	case upsertCard:
		out[cardKey(o.card.ID)] = fingerprint.Card(o.card)
	case deleteDeck:
		out[deckKey(o.id)] = ""
	case deleteCard:
		out[cardKey(o.id)] = ""
	case syncAll:
		for _, d := range o.decks {
			out[deckKey(d.ID)] = fingerprint.Deck(d)
		}
		for _, c := range o.cards {
			out[cardKey(c.ID)] = fingerprint.Card(c)
		}
	}
	return out
}

var _ collection.Listener = (*Syncer)(nil)

// DeckSaved queues a deck upsert unless the store already has this version.
func (s *Syncer) DeckSaved(d domain.Deck) {
	key := deckKey(d.ID)
	if s.unchanged(key, fingerprint.Deck(d)) {
		return
	}
	s.enqueue(op{kind: upsertDeck, key: key, deck: d})
}

// DeckDeleted queues a deck delete.
func (s *Syncer) DeckDeleted(id string) {
	s.enqueue(op{kind: deleteDeck, key: deckKey(id), id: id})
}

// CardSaved queues a card upsert unless the store already has this version.
func (s *Syncer) CardSaved(c domain.Card) {
	key := cardKey(c.ID)
	if s.unchanged(key, fingerprint.Card(c)) {
		return
	}
	s.enqueue(op{kind: upsertCard, key: key, card: c.Clone()})
}

// CardDeleted queues a card delete.
func (s *Syncer) CardDeleted(id string) {
	s.enqueue(op{kind: deleteCard, key: cardKey(id), id: id})
}

// Replaced queues one bulk sync of the records that differ from the store.
func (s *Syncer) Replaced(decks []domain.Deck, cards []domain.Card) {
	o := op{kind: syncAll, key: "all"}
	for _, d := range decks {
		if !s.unchanged(deckKey(d.ID), fingerprint.Deck(d)) {
			o.decks = append(o.decks, d)
		}
	}
	for _, c := range cards {
		if !s.unchanged(cardKey(c.ID), fingerprint.Card(c)) {
			o.cards = append(o.cards, c.Clone())
		}
	}
	if len(o.decks) == 0 && len(o.cards) == 0 {
		return
	}
	s.enqueue(o)
}

// RecordSession queues a session summary for stores that keep history.
func (s *Syncer) RecordSession(rec store.SessionRecord) {
	if _, ok := s.store.(store.SessionRecorder); !ok {
		return
	}
	s.mu.Lock()
	s.seq++
	key := fmt.Sprintf("session:%d", s.seq)
	s.mu.Unlock()
	s.enqueue(op{kind: recordSession, key: key, session: rec})
}
