package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle stage of an auction
type AuctionStatus string

const (
	StatusPending AuctionStatus = "pending"
	StatusActive  AuctionStatus = "active"
	StatusEnded   AuctionStatus = "ended"
)

// Valid reports whether s is one of the known statuses
func (s AuctionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusEnded:
		return true
	}
	return false
}

// User represents a participant in the auction
type User struct {
	UserID string `json:"user_id" db:"id"`
	Name   string `json:"name" db:"name"`
	Email  string `json:"email" db:"email"`
}

// Product represents a catalog item that can be put up for auction
type Product struct {
	ProductID     string          `json:"product_id" db:"id"`
	Title         string          `json:"title" db:"title"`
	Description   string          `json:"description" db:"description"`
	StartingPrice decimal.Decimal `json:"starting_price" db:"starting_price"`
	OwnerID       string          `json:"owner_id" db:"owner_id"`
	HasAuction    bool            `json:"has_auction" db:"has_auction"`
}

// Auction is a timed sale of exactly one product
type Auction struct {
	AuctionID     string          `json:"auction_id" db:"id"`
	ProductID     string          `json:"product_id" db:"product_id"`
	SellerID      string          `json:"seller_id" db:"seller_id"`
	StartTime     time.Time       `json:"start_time" db:"start_time"`
	EndTime       time.Time       `json:"end_time" db:"end_time"`
	Status        AuctionStatus   `json:"status" db:"status"`
	CurrentBid    decimal.Decimal `json:"current_bid" db:"current_bid"`
	CurrentBidder *string         `json:"current_bidder,omitempty" db:"current_bidder_id"`
	Winner        *string         `json:"winner,omitempty" db:"winner_id"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// AuctionDetails is an auction together with the display names its ids
// resolve to. A name that could not be resolved is left empty.
type AuctionDetails struct {
	Auction
	ProductTitle      string
	SellerName        string
	CurrentBidderName string
	WinnerName        string
}

// Bid is an accepted, immutable entry in an auction's bid ledger
type Bid struct {
	BidID     string          `json:"bid_id" db:"id"`
	AuctionID string          `json:"auction_id" db:"auction_id"`
	BidderID  string          `json:"bidder_id" db:"bidder_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// AuctionFilter narrows an auction listing. Zero values match everything.
type AuctionFilter struct {
	Status   AuctionStatus
	SellerID string
}
