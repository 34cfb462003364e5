package broadcast

import (
	"time"

	model "auction-house/internal/models"
)

// EventType names one of the three auction events
type EventType string

const (
	EventBidPlaced      EventType = "bid:placed"
	EventAuctionStarted EventType = "auction:started"
	EventAuctionEnded   EventType = "auction:ended"
)

// Event is a single state change announced to the subscribers of one auction
type Event struct {
	Type      EventType `json:"type"`
	AuctionID string    `json:"auctionId"`
	Payload   any       `json:"payload"`
}

// BidderView is the public identity of a bidder
type BidderView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WinnerView is the public identity of an auction winner
type WinnerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BidView is the bid record carried by a bid:placed event
type BidView struct {
	ID        string     `json:"id"`
	Amount    float64    `json:"amount"`
	Bidder    BidderView `json:"bidder"`
	CreatedAt time.Time  `json:"createdAt"`
}

type BidPlacedPayload struct {
	AuctionID  string  `json:"auctionId"`
	Bid        BidView `json:"bid"`
	CurrentBid float64 `json:"currentBid"`
}

type AuctionStartedPayload struct {
	AuctionID string              `json:"auctionId"`
	Status    model.AuctionStatus `json:"status"`
}

type AuctionEndedPayload struct {
	AuctionID string              `json:"auctionId"`
	Status    model.AuctionStatus `json:"status"`
	Winner    *WinnerView         `json:"winner"`
	FinalBid  float64             `json:"finalBid"`
}

// NewBidPlaced builds the event for an accepted bid. auction must be the
// state written by the same conditional update that accepted bid.
func NewBidPlaced(auction model.Auction, bid model.Bid, bidder model.User) Event {
	return Event{
		Type:      EventBidPlaced,
		AuctionID: auction.AuctionID,
		Payload: BidPlacedPayload{
			AuctionID: auction.AuctionID,
			Bid: BidView{
				ID:        bid.BidID,
				Amount:    bid.Amount.InexactFloat64(),
				Bidder:    BidderView{ID: bidder.UserID, Name: bidder.Name},
				CreatedAt: bid.CreatedAt.UTC(),
			},
			CurrentBid: auction.CurrentBid.InexactFloat64(),
		},
	}
}

// NewAuctionStarted builds the event for a pending -> active transition
func NewAuctionStarted(auction model.Auction) Event {
	return Event{
		Type:      EventAuctionStarted,
		AuctionID: auction.AuctionID,
		Payload: AuctionStartedPayload{
			AuctionID: auction.AuctionID,
			Status:    model.StatusActive,
		},
	}
}

// NewAuctionEnded builds the event for an active -> ended transition.
// winner is nil when the auction closed without bids.
func NewAuctionEnded(auction model.Auction, winner *model.User) Event {
	payload := AuctionEndedPayload{
		AuctionID: auction.AuctionID,
		Status:    model.StatusEnded,
		FinalBid:  auction.CurrentBid.InexactFloat64(),
	}
	if winner != nil {
		payload.Winner = &WinnerView{ID: winner.UserID, Name: winner.Name, Email: winner.Email}
	}
	return Event{Type: EventAuctionEnded, AuctionID: auction.AuctionID, Payload: payload}
}
