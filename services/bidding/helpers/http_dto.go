package helpers

import (
	"time"

	model "auction-house/internal/models"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type CreateAuctionRequest struct {
	ProductID string    `json:"product_id" binding:"required"`
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
}

type AuctionResponse struct {
	AuctionID     string  `json:"auction_id"`
	ProductID     string  `json:"product_id"`
	SellerID      string  `json:"seller_id"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	Status        string  `json:"status"`
	CurrentBid    float64 `json:"current_bid"`
	CurrentBidder *string `json:"current_bidder"`
	Winner        *string `json:"winner"`

	ProductTitle      string `json:"product_title,omitempty"`
	SellerName        string `json:"seller_name,omitempty"`
	CurrentBidderName string `json:"current_bidder_name,omitempty"`
	WinnerName        string `json:"winner_name,omitempty"`
}

type BidResponse struct {
	BidID     string  `json:"bid_id"`
	AuctionID string  `json:"auction_id"`
	BidderID  string  `json:"bidder_id"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

// NewAuctionResponse converts an auction to its wire form
func NewAuctionResponse(a model.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:     a.AuctionID,
		ProductID:     a.ProductID,
		SellerID:      a.SellerID,
		StartTime:     a.StartTime.UTC().Format(time.RFC3339),
		EndTime:       a.EndTime.UTC().Format(time.RFC3339),
		Status:        string(a.Status),
		CurrentBid:    a.CurrentBid.InexactFloat64(),
		CurrentBidder: a.CurrentBidder,
		Winner:        a.Winner,
	}
}

// NewAuctionDetailsResponse converts an auction and its display names to wire form
func NewAuctionDetailsResponse(d model.AuctionDetails) AuctionResponse {
	resp := NewAuctionResponse(d.Auction)
	resp.ProductTitle = d.ProductTitle
	resp.SellerName = d.SellerName
	resp.CurrentBidderName = d.CurrentBidderName
	resp.WinnerName = d.WinnerName
	return resp
}

// NewBidResponse converts a bid to its wire form
func NewBidResponse(b model.Bid) BidResponse {
	return BidResponse{
		BidID:     b.BidID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount.InexactFloat64(),
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func NewAuctionDetailsResponses(details []model.AuctionDetails) []AuctionResponse {
	out := make([]AuctionResponse, 0, len(details))
	for _, d := range details {
		out = append(out, NewAuctionDetailsResponse(d))
	}
	return out
}

func NewBidResponses(bids []model.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, NewBidResponse(b))
	}
	return out
}
