// Package importer fetches deck bundles and merges them into a collection.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/flashdeck/internal/bundle"
	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/gitsource"
	"github.com/conorfennell/flashdeck/internal/merge"
)

// ErrFetch is returned when a remote bundle cannot be retrieved.
var ErrFetch = errors.New("fetch failed")

// ErrBusy is returned when an import is already running.
var ErrBusy = errors.New("import already in progress")

// maxBundleSize bounds how much of a remote response is read.
const maxBundleSize = 32 << 20

// State is the import lifecycle.
type State int

const (
	Idle State = iota
	Processing
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case Success:
		return "success"
	case Failed:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is what the importer reports about the last import.
type Status struct {
	State   State
	Message string
	Result  *merge.Result
}

// Target is the collection an import is applied to.
type Target interface {
	Apply(fn func(decks []domain.Deck, cards []domain.Card) ([]domain.Deck, []domain.Card))
}

// Importer runs one import at a time against a Target.
type Importer struct {
	target Target
	logger *slog.Logger
	client *http.Client
	newID  func() string

	timeout    time.Duration
	reposDir   string
	bundlePath string

	mu     sync.Mutex
	status Status
}

// Option configures an Importer.
type Option func(*Importer)

// WithHTTPClient sets the client used for URL imports.
func WithHTTPClient(c *http.Client) Option {
	return func(im *Importer) { im.client = c }
}

// WithIDGenerator overrides id generation for renamed and duplicated records.
func WithIDGenerator(newID func() string) Option {
	return func(im *Importer) { im.newID = newID }
}

// WithTimeout bounds remote fetches.
func WithTimeout(d time.Duration) Option {
	return func(im *Importer) { im.timeout = d }
}

// WithRepos sets where git sources are cloned and the bundle path inside them.
func WithRepos(dir, bundlePath string) Option {
	return func(im *Importer) {
		im.reposDir = dir
		im.bundlePath = bundlePath
	}
}

// New creates an idle importer.
func New(target Target, logger *slog.Logger, opts ...Option) *Importer {
	im := &Importer{
		target:     target,
		logger:     logger,
		client:     http.DefaultClient,
		newID:      uuid.NewString,
		timeout:    30 * time.Second,
		reposDir:   "repos",
		bundlePath: "flashcards.json",
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Status returns the current state and message.
func (im *Importer) Status() Status {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.status
}

// Reset returns a finished importer to Idle.
func (im *Importer) Reset() {
	im.mu.Lock()
	defer im.mu.Unlock()
	if im.status.State != Processing {
		im.status = Status{}
	}
}

// Import validates raw bundle JSON and merges it into the target.
// The target is left untouched when anything fails.
func (im *Importer) Import(raw []byte, strategy merge.Strategy) (merge.Result, error) {
	if err := im.begin(); err != nil {
		return merge.Result{}, err
	}
	return im.finish(im.apply(raw, strategy))
}

// ImportFile imports a bundle from a local file.
func (im *Importer) ImportFile(path string, strategy merge.Strategy) (merge.Result, error) {
	if err := im.begin(); err != nil {
		return merge.Result{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return im.finish(applied{}, fmt.Errorf("failed to read %s: %w", path, err))
	}
	return im.finish(im.apply(raw, strategy))
}

// ImportURL downloads a bundle over HTTP and imports it.
func (im *Importer) ImportURL(ctx context.Context, url string, strategy merge.Strategy) (merge.Result, error) {
	if err := im.begin(); err != nil {
		return merge.Result{}, err
	}
	raw, err := im.fetch(ctx, url)
	if err != nil {
		return im.finish(applied{}, err)
	}
	return im.finish(im.apply(raw, strategy))
}

// ImportRepo clones or pulls a git repository and imports the bundle it holds.
func (im *Importer) ImportRepo(ctx context.Context, repoURL string, strategy merge.Strategy) (merge.Result, error) {
	if err := im.begin(); err != nil {
		return merge.Result{}, err
	}
	localPath, err := gitsource.LocalPath(im.reposDir, repoURL)
	if err != nil {
		return im.finish(applied{}, err)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return im.finish(applied{}, fmt.Errorf("failed to create repos directory: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, im.timeout)
	defer cancel()
	if err := gitsource.Sync(ctx, im.logger, repoURL, localPath); err != nil {
		return im.finish(applied{}, fmt.Errorf("%w: %w", ErrFetch, err))
	}

	raw, err := os.ReadFile(filepath.Join(localPath, im.bundlePath))
	if err != nil {
		return im.finish(applied{}, fmt.Errorf("failed to read bundle from %s: %w", repoURL, err))
	}
	return im.finish(im.apply(raw, strategy))
}

// ImportSource picks the source kind from src: a git repository, an HTTP URL or a file path.
func (im *Importer) ImportSource(ctx context.Context, src string, strategy merge.Strategy) (merge.Result, error) {
	switch {
	case gitsource.IsRepoURL(src):
		return im.ImportRepo(ctx, src, strategy)
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		return im.ImportURL(ctx, src, strategy)
	default:
		return im.ImportFile(src, strategy)
	}
}

func (im *Importer) fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, im.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := im.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrFetch, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBundleSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return raw, nil
}

type applied struct {
	result merge.Result
	decks  int
	cards  int
}

func (im *Importer) apply(raw []byte, strategy merge.Strategy) (applied, error) {
	strategy, err := merge.ParseStrategy(string(strategy))
	if err != nil {
		return applied{}, err
	}
	b, err := bundle.Parse(raw)
	if err != nil {
		return applied{}, err
	}

	out := applied{decks: len(b.Decks), cards: len(b.Cards)}
	im.target.Apply(func(decks []domain.Deck, cards []domain.Card) ([]domain.Deck, []domain.Card) {
		out.result = merge.Resolve(decks, cards, b.Decks, b.Cards, strategy, im.newID)
		return out.result.Decks, out.result.Cards
	})
	return out, nil
}

func (im *Importer) begin() error {
	im.mu.Lock()
	defer im.mu.Unlock()
	if im.status.State == Processing {
		return ErrBusy
	}
	im.status = Status{State: Processing, Message: "Processing import..."}
	return nil
}

func (im *Importer) finish(a applied, err error) (merge.Result, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if err != nil {
		im.status = Status{State: Failed, Message: failureMessage(err)}
		im.logger.Error("import failed", "error", err)
		return merge.Result{}, err
	}
	res := a.result
	im.status = Status{
		State:   Success,
		Message: fmt.Sprintf("Import completed! Added %d decks and %d cards.", a.decks, a.cards),
		Result:  &res,
	}
	im.logger.Info("import complete",
		"decks", a.decks,
		"cards", a.cards,
		"imported", res.Imported,
		"skipped", res.Skipped,
		"conflicts", len(res.Conflicts),
	)
	return res, nil
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "Validation failed: " + err.Error()
	case errors.Is(err, ErrFetch):
		return "Failed to fetch from URL: " + err.Error()
	default:
		return "Import failed: " + err.Error()
	}
}
