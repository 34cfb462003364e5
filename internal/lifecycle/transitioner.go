package lifecycle

import (
	"context"
	"fmt"
	"time"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/broadcast"
	model "auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/utils"
)

// Transitioner persists due status transitions with conditional writes and
// announces the ones it wins. A transition someone else already applied is
// skipped silently, so each transition is announced exactly once.
//
// The write and its announcement run under the auction's publication
// sequence, so they interleave with bids on the same publisher in commit order.
type Transitioner struct {
	repo      repository.AuctionDB
	users     repository.UserDirectory
	publisher broadcast.OrderedPublisher
}

// NewTransitioner creates a Transitioner
func NewTransitioner(repo repository.AuctionDB, users repository.UserDirectory, publisher broadcast.OrderedPublisher) *Transitioner {
	return &Transitioner{repo: repo, users: users, publisher: publisher}
}

// Transition moves auction from its current status to `to`. It returns the
// stored auction afterwards and whether this call applied the change.
func (t *Transitioner) Transition(ctx context.Context, auction model.Auction, to model.AuctionStatus, now time.Time) (model.Auction, bool, error) {
	release := t.publisher.Sequence(auction.AuctionID)
	defer release()

	updated, applied, err := t.repo.TransitionAuction(ctx, auction.AuctionID, auction.Status, to, now)
	if err != nil {
		return auction, false, fmt.Errorf("transition %s -> %s: %w", auction.Status, to, err)
	}
	if applied {
		utils.Info("auction transitioned", map[string]any{
			"auction_id": updated.AuctionID,
			"from":       auction.Status,
			"to":         updated.Status,
		})
		t.announce(ctx, updated)
	}
	return updated, applied, nil
}

// Refresh brings auction up to date with now, applying every due step in order.
func (t *Transitioner) Refresh(ctx context.Context, auction model.Auction, now time.Time) (model.Auction, error) {
	for {
		next, due := Next(auction, now)
		if !due {
			return auction, nil
		}

		previous := auction.Status
		updated, _, err := t.Transition(ctx, auction, next, now)
		if err != nil {
			return auction, fmt.Errorf("refresh auction %s: %w", auction.AuctionID, err)
		}
		if updated.Status == previous {
			return updated, fmt.Errorf("refresh auction %s: %w - status stuck at %s", auction.AuctionID, biddingerrors.ErrConflict, previous)
		}
		auction = updated
	}
}

// announce publishes the event for the status auction just entered.
// Delivery failures are logged and never undo the transition.
func (t *Transitioner) announce(ctx context.Context, auction model.Auction) {
	var event broadcast.Event
	switch auction.Status {
	case model.StatusActive:
		event = broadcast.NewAuctionStarted(auction)
	case model.StatusEnded:
		var winner *model.User
		if auction.Winner != nil {
			w := repository.DisplayUser(ctx, t.users, *auction.Winner)
			winner = &w
		}
		event = broadcast.NewAuctionEnded(auction, winner)
	default:
		return
	}

	if err := t.publisher.Publish(auction.AuctionID, event); err != nil {
		utils.Warn("event delivery failed", map[string]any{
			"auction_id": auction.AuctionID,
			"event":      event.Type,
			"error":      err.Error(),
		})
	}
}
