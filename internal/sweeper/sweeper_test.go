package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auction-house/internal/broadcast"
	"auction-house/internal/clock"
	model "auction-house/internal/models"
	"auction-house/internal/repository"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC)

// eventLog records every event published on the auctions it is subscribed to
type eventLog struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (l *eventLog) ID() string { return "log" }

func (l *eventLog) Deliver(e broadcast.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) snapshot() []broadcast.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]broadcast.Event(nil), l.events...)
}

func auction(id string, status model.AuctionStatus, start, end time.Time) model.Auction {
	return model.Auction{
		AuctionID:  id,
		ProductID:  "product-" + id,
		SellerID:   "seller",
		StartTime:  start,
		EndTime:    end,
		Status:     status,
		CurrentBid: decimal.NewFromInt(75),
	}
}

func setup(auctions ...model.Auction) (*repository.MemoryRepo, *broadcast.Broadcaster, *eventLog, *clock.FakeClock) {
	repo := repository.NewMemoryRepo()
	repo.AddUser(model.User{UserID: "u1", Name: "Alice", Email: "alice@example.com"})
	b := broadcast.NewBroadcaster()
	log := &eventLog{}
	for _, a := range auctions {
		repo.PutAuction(a)
		b.Subscribe(log, a.AuctionID)
	}
	return repo, b, log, clock.Fake(now)
}

func TestSweeper_Tick(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bidder := "u1"
	withBid := auction("ending-with-bid", model.StatusActive, now.Add(-2*time.Hour), now.Add(-time.Second))
	withBid.CurrentBid = decimal.NewFromInt(180)
	withBid.CurrentBidder = &bidder

	repo, b, log, clk := setup(
		auction("starting", model.StatusPending, now.Add(-time.Second), now.Add(time.Hour)),
		auction("not-yet", model.StatusPending, now.Add(time.Minute), now.Add(time.Hour)),
		withBid,
		auction("ending-no-bids", model.StatusActive, now.Add(-2*time.Hour), now),
		auction("running", model.StatusActive, now.Add(-time.Hour), now.Add(time.Hour)),
	)
	s := New(repo, repo, b, clk, Options{})

	result := s.Tick(ctx)
	require.Equal(t, TickResult{Started: 1, Ended: 2}, result)

	statuses := map[string]model.AuctionStatus{
		"starting":        model.StatusActive,
		"not-yet":         model.StatusPending,
		"ending-with-bid": model.StatusEnded,
		"ending-no-bids":  model.StatusEnded,
		"running":         model.StatusActive,
	}
	for id, want := range statuses {
		got, err := repo.GetAuction(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want, got.Status, id)
	}

	ended := map[string]broadcast.AuctionEndedPayload{}
	started := 0
	for _, e := range log.snapshot() {
		switch e.Type {
		case broadcast.EventAuctionEnded:
			ended[e.AuctionID] = e.Payload.(broadcast.AuctionEndedPayload)
		case broadcast.EventAuctionStarted:
			started++
			require.Equal(t, "starting", e.AuctionID)
		}
	}
	require.Equal(t, 1, started)
	require.Len(t, ended, 2)

	require.NotNil(t, ended["ending-with-bid"].Winner)
	require.Equal(t, "Alice", ended["ending-with-bid"].Winner.Name)
	require.Equal(t, 180.0, ended["ending-with-bid"].FinalBid)

	require.Nil(t, ended["ending-no-bids"].Winner, "no bids means no winner")
	require.Equal(t, 75.0, ended["ending-no-bids"].FinalBid, "final bid is the starting price")
}

func TestSweeper_TickTwiceAnnouncesOnce(t *testing.T) {
	t.Parallel()

	repo, b, log, clk := setup(auction("due", model.StatusActive, now.Add(-time.Hour), now.Add(-time.Minute)))
	s := New(repo, repo, b, clk, Options{})

	first := s.Tick(context.Background())
	second := s.Tick(context.Background())

	require.Equal(t, 1, first.Ended)
	require.Equal(t, TickResult{}, second)
	require.Len(t, log.snapshot(), 1)
	require.Equal(t, broadcast.EventAuctionEnded, log.snapshot()[0].Type)
}

func TestSweeper_ConcurrentSweepersAnnounceOnce(t *testing.T) {
	t.Parallel()

	repo, b, log, clk := setup(
		auction("x", model.StatusActive, now.Add(-time.Hour), now.Add(-time.Minute)),
		auction("y", model.StatusPending, now.Add(-time.Minute), now.Add(time.Hour)),
	)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			New(repo, repo, b, clk, Options{}).Tick(context.Background())
		}()
	}
	wg.Wait()

	require.Len(t, log.snapshot(), 2, "one ended for x and one started for y")
}

func TestSweeper_PendingPastEndEndsInOneTick(t *testing.T) {
	t.Parallel()

	repo, b, log, clk := setup(auction("late", model.StatusPending, now.Add(-2*time.Hour), now.Add(-time.Hour)))
	s := New(repo, repo, b, clk, Options{})

	result := s.Tick(context.Background())
	require.Equal(t, TickResult{Started: 1, Ended: 1}, result)

	events := log.snapshot()
	require.Len(t, events, 2)
	require.Equal(t, broadcast.EventAuctionStarted, events[0].Type)
	require.Equal(t, broadcast.EventAuctionEnded, events[1].Type)
}

func TestSweeper_BatchSize(t *testing.T) {
	t.Parallel()

	repo, b, _, clk := setup(
		auction("a", model.StatusActive, now.Add(-time.Hour), now.Add(-3*time.Minute)),
		auction("b", model.StatusActive, now.Add(-time.Hour), now.Add(-2*time.Minute)),
		auction("c", model.StatusActive, now.Add(-time.Hour), now.Add(-time.Minute)),
	)
	s := New(repo, repo, b, clk, Options{BatchSize: 2})

	require.Equal(t, 2, s.Tick(context.Background()).Ended)
	require.Equal(t, 1, s.Tick(context.Background()).Ended, "the rest is picked up next tick")
}

func TestSweeper_PartialFailureContinuesBatch(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := repository.NewMockAuctionDB(ctrl)
	mockUsers := repository.NewMockUserDirectory(ctrl)
	b := broadcast.NewBroadcaster()
	log := &eventLog{}
	b.Subscribe(log, "ok")

	broken := auction("broken", model.StatusActive, now.Add(-time.Hour), now.Add(-time.Minute))
	healthy := auction("ok", model.StatusActive, now.Add(-time.Hour), now.Add(-time.Minute))
	ended := healthy
	ended.Status = model.StatusEnded

	gomock.InOrder(
		mockRepo.EXPECT().ListDueAuctions(gomock.Any(), model.StatusPending, now, 0).Return(nil, errors.New("scan timeout")),
		mockRepo.EXPECT().ListDueAuctions(gomock.Any(), model.StatusActive, now, 0).Return([]model.Auction{broken, healthy}, nil),
	)
	mockRepo.EXPECT().
		TransitionAuction(gomock.Any(), "broken", model.StatusActive, model.StatusEnded, now).
		Return(model.Auction{}, false, errors.New("deadlock detected"))
	mockRepo.EXPECT().
		TransitionAuction(gomock.Any(), "ok", model.StatusActive, model.StatusEnded, now).
		Return(ended, true, nil)

	s := New(mockRepo, mockUsers, b, clock.Fake(now), Options{})
	result := s.Tick(context.Background())

	require.Equal(t, TickResult{Ended: 1, Failed: 2}, result)
	require.Len(t, log.snapshot(), 1)
}

func TestSweeper_StartStop(t *testing.T) {
	t.Parallel()

	repo, b, log, clk := setup(auction("due", model.StatusPending, now.Add(-time.Second), now.Add(time.Hour)))
	s := New(repo, repo, b, clk, Options{Interval: 10 * time.Millisecond})

	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	require.Eventually(t, func() bool { return len(log.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)

	// later ticks see the auction due to end
	clk.Advance(2 * time.Hour)
	require.Eventually(t, func() bool { return len(log.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()

	// restartable after stop
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	require.Len(t, log.snapshot(), 2)
}

func TestSweeper_StopsWithContext(t *testing.T) {
	t.Parallel()

	repo, b, _, clk := setup()
	s := New(repo, repo, b, clk, Options{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	// Stop must still return promptly once the loop has exited on its own
	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestNew_DefaultInterval(t *testing.T) {
	t.Parallel()

	repo, b, _, clk := setup()
	s := New(repo, repo, b, clk, Options{})
	require.Equal(t, DefaultInterval, s.interval)
}
