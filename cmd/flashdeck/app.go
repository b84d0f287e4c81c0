package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/conorfennell/flashdeck/internal/collection"
	"github.com/conorfennell/flashdeck/internal/config"
	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/importer"
	"github.com/conorfennell/flashdeck/internal/postgres"
	"github.com/conorfennell/flashdeck/internal/storage"
	"github.com/conorfennell/flashdeck/internal/store"
	"github.com/conorfennell/flashdeck/internal/study"
	"github.com/conorfennell/flashdeck/internal/syncer"
)

// closeTimeout bounds how long pending store writes may take on exit.
const closeTimeout = 15 * time.Second

type app struct {
	cfg    config.Config
	logger *slog.Logger
	in     *bufio.Reader
	out    io.Writer
	now    func() time.Time

	db      *storage.DB
	remote  *postgres.Store
	col     *collection.Collection
	local   *syncer.Syncer
	mirror  *syncer.Syncer // nil without a remote store
	session *study.Session
	imp     *importer.Importer
}

func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger, stdin io.Reader, stdout io.Writer) (*app, error) {
	db, err := storage.Open(ctx, cfg.Data.DBPath)
	if err != nil {
		return nil, err
	}

	decks, err := db.GetDecks(ctx, cfg.Owner)
	if err != nil {
		db.Close()
		return nil, err
	}
	cards, err := db.GetCards(ctx, cfg.Owner, "")
	if err != nil {
		db.Close()
		return nil, err
	}
	snap, err := db.LoadSnapshot(ctx, cfg.Owner)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		in:      bufio.NewReader(stdin),
		out:     stdout,
		now:     time.Now,
		db:      db,
		col:     collection.New(),
		session: snap.Session,
	}
	a.col.Load(decks, cards, snap.SelectedDeckID)

	syncCfg := syncer.Config{
		RetryBase:   cfg.Sync.RetryBase,
		RetryMax:    cfg.Sync.RetryMax,
		MaxAttempts: cfg.Sync.MaxAttempts,
		OpTimeout:   cfg.Sync.OpTimeout,
	}
	a.local = syncer.New(db, cfg.Owner, logger.With("store", "local"), syncCfg)
	a.col.Subscribe(a.local)

	if cfg.Remote.DSN != "" {
		openCtx, cancel := context.WithTimeout(ctx, cfg.Sync.OpTimeout)
		remote, err := postgres.Open(openCtx, cfg.Remote.DSN)
		cancel()
		if err != nil {
			// Local work goes on; the next run retries the connection.
			logger.Warn("remote store unavailable, working offline", "error", err)
		} else {
			a.remote = remote
			a.mirror = syncer.New(remote, cfg.Owner, logger.With("store", "remote"), syncCfg)
			a.col.Subscribe(a.mirror)
		}
	}

	a.imp = importer.New(a.col, logger,
		importer.WithTimeout(cfg.Import.Timeout),
		importer.WithRepos(cfg.Import.ReposDir, cfg.Import.BundlePath),
	)
	return a, nil
}

// close flushes both sync queues, saves the snapshot and releases connections.
func (a *app) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()

	var errs []error
	if a.mirror != nil {
		if err := a.mirror.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		a.remote.Close()
	}
	if err := a.local.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.local.Status().Err; err != nil {
		errs = append(errs, fmt.Errorf("local store: %w", err))
	}

	snap := storage.Snapshot{SelectedDeckID: a.col.Selected(), Session: a.session}
	if err := a.db.SaveSnapshot(ctx, a.cfg.Owner, snap); err != nil {
		errs = append(errs, err)
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *app) recordSession(rec store.SessionRecord) {
	a.local.RecordSession(rec)
	if a.mirror != nil {
		a.mirror.RecordSession(rec)
	}
}

// resolveDeck finds a deck by id, then by name. An empty ref means the selected deck.
func (a *app) resolveDeck(ref string) (domain.Deck, error) {
	if ref == "" {
		ref = a.col.Selected()
		if ref == "" {
			return domain.Deck{}, domain.ErrNoDeck
		}
	}
	if d, err := a.col.Deck(ref); err == nil {
		return d, nil
	}
	return a.col.DeckByName(ref)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// prompt prints a question and reads one line. io.EOF ends interactive loops.
func (a *app) prompt(q string) (string, error) {
	a.printf("%s", q)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return trimLine(line), nil
}
