package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-house/internal/biddingerrors"
	model "auction-house/internal/models"
)

// AuctionDB defines the auction and bid storage the bidding engine relies on.
// Every method that changes an auction is a conditional write: it applies only
// if the stored row still matches the expected predicate and reports whether it did.
type AuctionDB interface {
	// CreateAuction claims the auction's product and stores the auction in one step.
	// It fails with ErrProductHasAuction if the product is already claimed.
	CreateAuction(ctx context.Context, auction model.Auction) error
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	ListAuctions(ctx context.Context, filter model.AuctionFilter) ([]model.Auction, error)
	// ListDueAuctions returns auctions in status whose transition time is at or
	// before the given bound: start time for pending, end time for active.
	ListDueAuctions(ctx context.Context, status model.AuctionStatus, before time.Time, limit int) ([]model.Auction, error)
	// TransitionAuction moves the auction from one status to the next only if it
	// is still in from. Ending an auction copies the current bidder into winner.
	TransitionAuction(ctx context.Context, auctionID string, from, to model.AuctionStatus, at time.Time) (model.Auction, bool, error)
	// ApplyBid raises the current bid to bid.Amount and appends bid to the ledger
	// only if the auction is active, open at bid.CreatedAt and its current bid is
	// strictly lower than bid.Amount.
	ApplyBid(ctx context.Context, bid model.Bid) (model.Auction, bool, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
}

// Catalog is the read side of the product catalog used at auction creation
type Catalog interface {
	GetProduct(ctx context.Context, productID string) (model.Product, error)
}

// UserDirectory resolves user ids to display identities for events
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (model.User, error)
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB,
// Catalog and UserDirectory. Conditional writes are atomic under mu.
type MemoryRepo struct {
	mu        sync.RWMutex
	auctions  map[string]model.Auction // key: auctionID -> value: auction
	bids      map[string][]model.Bid   // key: auctionID -> value: bids in acceptance order
	products  map[string]model.Product // key: productID -> value: product
	users     map[string]model.User    // key: userID -> value: user
	byProduct map[string]string        // key: productID -> value: auctionID
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:  make(map[string]model.Auction),
		bids:      make(map[string][]model.Bid),
		products:  make(map[string]model.Product),
		users:     make(map[string]model.User),
		byProduct: make(map[string]string),
	}
}

// CreateAuction claims the product and stores a new auction
func (r *MemoryRepo) CreateAuction(_ context.Context, auction model.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[auction.ProductID]
	if !ok {
		return fmt.Errorf("create auction for product %s: %w", auction.ProductID, biddingerrors.ErrProductNotFound)
	}
	if _, taken := r.byProduct[auction.ProductID]; taken || product.HasAuction {
		return fmt.Errorf("create auction for product %s: %w", auction.ProductID, biddingerrors.ErrProductHasAuction)
	}
	if _, exists := r.auctions[auction.AuctionID]; exists {
		return fmt.Errorf("create auction %s: duplicate id", auction.AuctionID)
	}

	product.HasAuction = true
	r.products[auction.ProductID] = product
	r.byProduct[auction.ProductID] = auction.AuctionID
	r.auctions[auction.AuctionID] = auction
	return nil
}

// GetAuction returns a single auction by id
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return auction, nil
}

// ListAuctions returns auctions matching filter, newest first
func (r *MemoryRepo) ListAuctions(_ context.Context, filter model.AuctionFilter) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auctions := make([]model.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.SellerID != "" && a.SellerID != filter.SellerID {
			continue
		}
		auctions = append(auctions, a)
	}
	sort.Slice(auctions, func(i, j int) bool {
		if auctions[i].CreatedAt.Equal(auctions[j].CreatedAt) {
			return auctions[i].AuctionID < auctions[j].AuctionID
		}
		return auctions[i].CreatedAt.After(auctions[j].CreatedAt)
	})
	return auctions, nil
}

// ListDueAuctions returns auctions in status whose next transition is due at before
func (r *MemoryRepo) ListDueAuctions(_ context.Context, status model.AuctionStatus, before time.Time, limit int) ([]model.Auction, error) {
	dueAt, err := transitionTime(status)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []model.Auction
	for _, a := range r.auctions {
		if a.Status == status && !dueAt(a).After(before) {
			due = append(due, a)
		}
	}
	sort.Slice(due, func(i, j int) bool { return dueAt(due[i]).Before(dueAt(due[j])) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// TransitionAuction moves an auction from -> to if it is still in from
func (r *MemoryRepo) TransitionAuction(_ context.Context, auctionID string, from, to model.AuctionStatus, at time.Time) (model.Auction, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, false, fmt.Errorf("transition auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if auction.Status != from {
		return auction, false, nil
	}

	auction.Status = to
	if to == model.StatusEnded {
		auction.Winner = auction.CurrentBidder
	}
	auction.UpdatedAt = at
	r.auctions[auctionID] = auction
	return auction, true, nil
}

// ApplyBid raises the auction's current bid and records bid if it still outbids it
func (r *MemoryRepo) ApplyBid(_ context.Context, bid model.Bid) (model.Auction, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auction, ok := r.auctions[bid.AuctionID]
	if !ok {
		return model.Auction{}, false, fmt.Errorf("apply bid to auction %s: %w", bid.AuctionID, biddingerrors.ErrAuctionNotFound)
	}
	if auction.Status != model.StatusActive ||
		!bid.CreatedAt.Before(auction.EndTime) ||
		!auction.CurrentBid.LessThan(bid.Amount) {
		return auction, false, nil
	}

	bidder := bid.BidderID
	auction.CurrentBid = bid.Amount
	auction.CurrentBidder = &bidder
	auction.UpdatedAt = bid.CreatedAt
	r.auctions[bid.AuctionID] = auction
	r.bids[bid.AuctionID] = append(r.bids[bid.AuctionID], bid)
	return auction, true, nil
}

// GetBidsByAuction returns the bid ledger of an auction, newest first
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	ledger := r.bids[auctionID]
	bids := make([]model.Bid, len(ledger))
	for i, b := range ledger {
		bids[len(ledger)-1-i] = b
	}
	return bids, nil
}

// GetProduct returns a product from the catalog
func (r *MemoryRepo) GetProduct(_ context.Context, productID string) (model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[productID]
	if !ok {
		return model.Product{}, fmt.Errorf("get product %s: %w", productID, biddingerrors.ErrProductNotFound)
	}
	return product, nil
}

// GetUser returns a user by id
func (r *MemoryRepo) GetUser(_ context.Context, userID string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return user, nil
}

// AddProduct adds a product to the catalog. Used for seeding and tests.
func (r *MemoryRepo) AddProduct(product model.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ProductID] = product
}

// AddUser adds a user to the directory. Used for seeding and tests.
func (r *MemoryRepo) AddUser(user model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.UserID] = user
}

// PutAuction stores an auction as-is, bypassing the product claim. Tests only.
func (r *MemoryRepo) PutAuction(auction model.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[auction.AuctionID] = auction
	r.byProduct[auction.ProductID] = auction.AuctionID
}

func transitionTime(status model.AuctionStatus) (func(model.Auction) time.Time, error) {
	switch status {
	case model.StatusPending:
		return func(a model.Auction) time.Time { return a.StartTime }, nil
	case model.StatusActive:
		return func(a model.Auction) time.Time { return a.EndTime }, nil
	default:
		return nil, fmt.Errorf("list due auctions: no transition out of status %q", status)
	}
}
