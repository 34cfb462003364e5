// Package lifecycle owns the auction status progression pending -> active -> ended.
//
// Advance and Next are pure: they look at an auction snapshot and a point in
// time and say where the auction should be. Transitioner turns a due step into
// a conditional write and announces it, and is shared by the request path and
// the sweeper so both apply transitions the same way.
package lifecycle

import (
	"time"

	model "auction-house/internal/models"
)

// Next returns the single status step that is due for a at now.
// due is false when the auction is already where it should be.
func Next(a model.Auction, now time.Time) (next model.AuctionStatus, due bool) {
	switch a.Status {
	case model.StatusPending:
		if !now.Before(a.StartTime) {
			return model.StatusActive, true
		}
	case model.StatusActive:
		if !now.Before(a.EndTime) {
			return model.StatusEnded, true
		}
	}
	return a.Status, false
}

// Advance returns the status a should have at now and the winner that goes with it.
// The winner is only set for ended auctions and is whoever held the current bid
// when the auction ended (nil if nobody bid). Ended is terminal.
func Advance(a model.Auction, now time.Time) (model.AuctionStatus, *string) {
	status := a.Status
	winner := a.Winner
	for {
		snapshot := a
		snapshot.Status = status
		next, due := Next(snapshot, now)
		if !due {
			return status, winner
		}
		if next == model.StatusEnded {
			winner = copyID(a.CurrentBidder)
		}
		status = next
	}
}

// Apply returns a copy of a with Advance applied and whether anything changed.
// Applying it to an up-to-date auction returns the auction unchanged.
func Apply(a model.Auction, now time.Time) (model.Auction, bool) {
	status, winner := Advance(a, now)
	if status == a.Status {
		return a, false
	}
	a.Status = status
	a.Winner = winner
	return a, true
}

// AcceptsBids reports whether the auction is open for bidding at now
func AcceptsBids(a model.Auction, now time.Time) bool {
	status, _ := Advance(a, now)
	return status == model.StatusActive
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
