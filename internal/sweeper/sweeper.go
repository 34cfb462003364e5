// Package sweeper applies time-based auction transitions in the background, so
// auctions start and end on schedule even when nobody is reading or bidding.
package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"auction-house/internal/broadcast"
	"auction-house/internal/clock"
	"auction-house/internal/lifecycle"
	model "auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/utils"
)

// DefaultInterval is how often a sweep runs when no interval is configured
const DefaultInterval = 10 * time.Second

// Sweeper periodically scans for due auctions and transitions them. It shares
// the conditional-write discipline of the request path, so a transition that
// was already applied lazily is skipped and never announced twice.
type Sweeper struct {
	repo         repository.AuctionDB
	transitioner *lifecycle.Transitioner
	clock        clock.Clock
	interval     time.Duration
	batchSize    int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Options tune a Sweeper. Zero values fall back to defaults.
type Options struct {
	Interval  time.Duration
	BatchSize int
}

// TickResult summarizes one sweep
type TickResult struct {
	Started int
	Ended   int
	Skipped int
	Failed  int
}

// New creates a Sweeper
func New(repo repository.AuctionDB, users repository.UserDirectory, publisher broadcast.OrderedPublisher, clk clock.Clock, opts Options) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Sweeper{
		repo:         repo,
		transitioner: lifecycle.NewTransitioner(repo, users, publisher),
		clock:        clk,
		interval:     opts.Interval,
		batchSize:    opts.BatchSize,
	}
}

// ErrAlreadyRunning is returned by Start when the sweeper is running
var ErrAlreadyRunning = errors.New("sweeper already running")

// Start runs a sweep immediately and then every interval until Stop is called
// or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)

	utils.Info("sweeper started", map[string]any{"interval": s.interval.String()})
	return nil
}

// Stop halts the sweeper and waits for an in-progress sweep to finish or abandon.
// Calling Stop on a stopped sweeper is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	utils.Info("sweeper stopped", nil)
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick performs one sweep: due pending auctions are started, then due active
// auctions are ended. A failure on one auction is logged and the rest of the
// batch is still processed; the next tick retries whatever was left behind.
func (s *Sweeper) Tick(ctx context.Context) TickResult {
	var result TickResult
	now := s.clock.Now()

	s.sweep(ctx, model.StatusPending, model.StatusActive, now, &result.Started, &result)
	s.sweep(ctx, model.StatusActive, model.StatusEnded, now, &result.Ended, &result)

	if result != (TickResult{}) {
		utils.Info("sweep finished", map[string]any{
			"started": result.Started,
			"ended":   result.Ended,
			"skipped": result.Skipped,
			"failed":  result.Failed,
		})
	}
	return result
}

func (s *Sweeper) sweep(ctx context.Context, from, to model.AuctionStatus, now time.Time, applied *int, result *TickResult) {
	due, err := s.repo.ListDueAuctions(ctx, from, now, s.batchSize)
	if err != nil {
		result.Failed++
		utils.Error("sweeper: scan failed", map[string]any{
			"status": from,
			"error":  err.Error(),
		})
		return
	}

	for _, auction := range due {
		if ctx.Err() != nil {
			return
		}

		_, ok, err := s.transitioner.Transition(ctx, auction, to, now)
		switch {
		case err != nil:
			result.Failed++
			utils.Error("sweeper: transition failed", map[string]any{
				"auction_id": auction.AuctionID,
				"from":       from,
				"to":         to,
				"error":      err.Error(),
			})
		case ok:
			*applied++
		default:
			result.Skipped++
			utils.Debug("sweeper: transition already applied", map[string]any{"auction_id": auction.AuctionID, "to": to})
		}
	}
}
