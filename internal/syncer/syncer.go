// Package syncer mirrors collection changes into a Store in the background.
//
// Changes are queued without blocking the caller. One worker goroutine pushes
// them in order and retries failures with exponential backoff. Failures never
// roll back local state; they are logged and reported through Status.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/conorfennell/flashdeck/internal/store"
)

// Config tunes retries and store calls.
type Config struct {
	RetryBase   time.Duration
	RetryMax    time.Duration
	MaxAttempts int
	OpTimeout   time.Duration
}

// DefaultConfig is used for zero fields of the Config passed to New.
var DefaultConfig = Config{
	RetryBase:   time.Second,
	RetryMax:    time.Minute,
	MaxAttempts: 5,
	OpTimeout:   10 * time.Second,
}

// Status reports the health of the sync pipeline.
type Status struct {
	Online   bool
	Syncing  bool
	LastSync time.Time
	Err      error
	Pending  int
}

// Syncer pushes queued operations to a store for one owner.
type Syncer struct {
	store  store.Store
	owner  string
	logger *slog.Logger
	cfg    Config
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	pending []op
	pushed  map[string]string // record key -> fingerprint last written to the store
	busy    bool
	closing bool
	idle    chan struct{}
	status  Status
	seq     int
}

// New starts a syncer worker. Call Close to stop it.
func New(st store.Store, owner string, logger *slog.Logger, cfg Config) *Syncer {
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultConfig.RetryBase
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = DefaultConfig.RetryMax
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultConfig.OpTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Syncer{
		store:  st,
		owner:  owner,
		logger: logger.With("owner", owner),
		cfg:    cfg,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		pushed: make(map[string]string),
		idle:   closedChan(),
		status: Status{Online: true},
	}
	go s.run()
	return s
}

// Status returns a copy of the current sync status.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Syncing = s.busy || len(s.pending) > 0
	st.Pending = len(s.pending)
	return st
}

// Flush waits until every queued operation has been attempted.
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush sync queue: %w", ctx.Err())
	}
}

// Close drains the queue and stops the worker. When ctx ends first the
// remaining operations are abandoned.
func (s *Syncer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.signal()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.cancel()
		<-s.done
		s.mu.Lock()
		left := len(s.pending)
		s.mu.Unlock()
		s.logger.Warn("sync queue abandoned", "pending", left)
		return fmt.Errorf("close syncer with %d pending: %w", left, ctx.Err())
	}
}

// enqueue adds an operation, replacing a pending one for the same record.
func (s *Syncer) enqueue(o op) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		s.logger.Warn("sync operation after close dropped", "op", o.String())
		return
	}
	if o.key != "" {
		s.pending = slices.DeleteFunc(s.pending, func(p op) bool { return p.key == o.key })
	}
	s.pending = append(s.pending, o)
	s.markBusy()
	s.mu.Unlock()
	s.signal()
}

// markBusy resets the idle channel. Callers hold mu.
func (s *Syncer) markBusy() {
	select {
	case <-s.idle:
		s.idle = make(chan struct{})
	default:
	}
}

func (s *Syncer) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Syncer) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.busy = false
			select {
			case <-s.idle:
			default:
				close(s.idle)
			}
			if s.closing {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()

			select {
			case <-s.wake:
				continue
			case <-s.ctx.Done():
				return
			}
		}
		o := s.pending[0]
		s.pending = s.pending[1:]
		s.busy = true
		s.mu.Unlock()

		if !s.push(o) {
			return
		}
	}
}

// push runs one operation with retries. It reports false when the worker must stop.
func (s *Syncer) push(o op) bool {
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.OpTimeout)
		err := o.apply(ctx, s.store, s.owner)
		cancel()

		if err == nil {
			s.succeeded(o)
			return true
		}
		if s.ctx.Err() != nil {
			return false
		}

		s.failed(err)
		if attempt >= s.cfg.MaxAttempts {
			s.logger.Error("sync operation failed, giving up",
				"op", o.String(),
				"attempts", attempt,
				"error", err,
			)
			return true
		}

		wait := s.backoff(attempt)
		s.logger.Warn("sync operation failed, retrying",
			"op", o.String(),
			"attempt", attempt,
			"retry_in", wait,
			"error", err,
		)
		select {
		case <-time.After(wait):
		case <-s.ctx.Done():
			return false
		}
	}
}

// backoff doubles from RetryBase for each attempt and is capped at RetryMax.
func (s *Syncer) backoff(attempt int) time.Duration {
	d := float64(s.cfg.RetryBase) * math.Pow(2, float64(attempt-1))
	return time.Duration(math.Min(d, float64(s.cfg.RetryMax)))
}

func (s *Syncer) succeeded(o op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, fp := range o.fingerprints() {
		if fp == "" {
			delete(s.pushed, key)
			continue
		}
		s.pushed[key] = fp
	}
	s.status.Online = true
	s.status.Err = nil
	s.status.LastSync = s.now()
}

func (s *Syncer) failed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Online = false
	s.status.Err = err
}

// unchanged reports whether key was last pushed with fingerprint fp.
func (s *Syncer) unchanged(key, fp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushed[key] == fp
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
