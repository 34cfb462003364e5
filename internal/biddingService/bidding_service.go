package bidding

import (
	"context"
	"fmt"
	"time"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/broadcast"
	"auction-house/internal/clock"
	"auction-house/internal/lifecycle"
	model "auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/utils"

	"github.com/shopspring/decimal"
)

// amounts are stored with cent precision
const amountScale = 2

// BiddingService admits bids, creates auctions and serves the auction read model
type BiddingService struct {
	repo         repository.AuctionDB
	catalog      repository.Catalog
	users        repository.UserDirectory
	publisher    broadcast.OrderedPublisher
	transitioner *lifecycle.Transitioner
	clock        clock.Clock
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(
	repo repository.AuctionDB,
	catalog repository.Catalog,
	users repository.UserDirectory,
	publisher broadcast.OrderedPublisher,
	clk clock.Clock,
) *BiddingService {
	return &BiddingService{
		repo:         repo,
		catalog:      catalog,
		users:        users,
		publisher:    publisher,
		transitioner: lifecycle.NewTransitioner(repo, users, publisher),
		clock:        clk,
	}
}

// PlaceBid admits a bid of amount by bidderID on auctionID.
//
// Checks run in a fixed order and the first failure wins: the auction must
// exist, be active once any due transition has been applied, not belong to the
// bidder, and amount must beat the current bid. Admission itself is a single
// conditional write; losing that race yields ErrConflict and is never retried here.
// A bid stamped at or after the end time yields ErrAuctionClosed and the end is
// persisted. The write and the bid:placed publish run under the auction's
// publication sequence.
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (model.Bid, error) {
	if bidderID == "" {
		return model.Bid{}, fmt.Errorf("service: %w - missing bidder identity", biddingerrors.ErrUnauthorized)
	}

	auction, err := s.loadCurrent(ctx, auctionID)
	if err != nil {
		return model.Bid{}, err
	}

	if err := checkOpen(auction); err != nil {
		return model.Bid{}, err
	}
	if bidderID == auction.SellerID {
		return model.Bid{}, fmt.Errorf("service: %w - sellers cannot bid on their own auction", biddingerrors.ErrForbidden)
	}
	if err := validateAmount(amount, auction.CurrentBid); err != nil {
		return model.Bid{}, err
	}

	// resolved up front so nothing but the publish runs between commit and delivery
	bidder := repository.DisplayUser(ctx, s.users, bidderID)

	release := s.publisher.Sequence(auction.AuctionID)
	bid := model.Bid{
		BidID:     utils.GenerateID(),
		AuctionID: auction.AuctionID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: s.clock.Now(),
	}
	updated, accepted, err := s.repo.ApplyBid(ctx, bid)
	if err == nil && accepted {
		s.announceBid(updated, bid, bidder)
	}
	release()

	if err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to record bid on auction %s by user %s: %w", auctionID, bidderID, err)
	}
	if !accepted {
		if updated.Status != model.StatusActive || !bid.CreatedAt.Before(updated.EndTime) {
			s.settleClosed(ctx, updated)
			return model.Bid{}, fmt.Errorf("service: %w - auction closed while the bid was in flight", biddingerrors.ErrAuctionClosed)
		}
		return model.Bid{}, fmt.Errorf("service: %w - bid was outbid by another request, retry with a higher amount than %s",
			biddingerrors.ErrConflict, updated.CurrentBid.StringFixed(amountScale))
	}
	return bid, nil
}

// settleClosed persists and announces the end of an auction whose deadline
// passed while a bid was in flight. Failures are left to the sweeper.
func (s *BiddingService) settleClosed(ctx context.Context, auction model.Auction) {
	if _, err := s.transitioner.Refresh(ctx, auction, s.clock.Now()); err != nil {
		utils.Warn("failed to settle closed auction", map[string]any{
			"auction_id": auction.AuctionID,
			"error":      err.Error(),
		})
	}
}

// CreateAuction puts productID up for auction between startTime and endTime.
// Only the product's owner may do this, once per product.
func (s *BiddingService) CreateAuction(ctx context.Context, sellerID, productID string, startTime, endTime time.Time) (model.Auction, error) {
	if sellerID == "" {
		return model.Auction{}, fmt.Errorf("service: %w - missing seller identity", biddingerrors.ErrUnauthorized)
	}
	if productID == "" {
		return model.Auction{}, fmt.Errorf("service: %w - missing product id", biddingerrors.ErrInvalidAuction)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to load product %s: %w", productID, err)
	}
	if product.OwnerID != sellerID {
		return model.Auction{}, fmt.Errorf("service: %w - you can only create auctions for your own products", biddingerrors.ErrForbidden)
	}
	if product.HasAuction {
		return model.Auction{}, fmt.Errorf("service: %w - product %s", biddingerrors.ErrProductHasAuction, productID)
	}

	now := s.clock.Now()
	if !startTime.After(now) {
		return model.Auction{}, fmt.Errorf("service: %w - start time must be in the future", biddingerrors.ErrInvalidAuction)
	}
	if !endTime.After(startTime) {
		return model.Auction{}, fmt.Errorf("service: %w - end time must be after start time", biddingerrors.ErrInvalidAuction)
	}

	auction := model.Auction{
		AuctionID:  utils.GenerateID(),
		ProductID:  product.ProductID,
		SellerID:   sellerID,
		StartTime:  startTime.UTC(),
		EndTime:    endTime.UTC(),
		Status:     model.StatusPending,
		CurrentBid: product.StartingPrice,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateAuction(ctx, auction); err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to create auction for product %s: %w", productID, err)
	}

	utils.Info("auction created", map[string]any{
		"auction_id": auction.AuctionID,
		"product_id": productID,
		"seller_id":  sellerID,
		"start_time": auction.StartTime,
		"end_time":   auction.EndTime,
	})
	return auction, nil
}

// GetAuction returns an auction with any due transition applied and persisted
func (s *BiddingService) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	return s.loadCurrent(ctx, auctionID)
}

// ListAuctions returns auctions newest first with their effective status.
// Listing reports due transitions without persisting them; the sweeper or a
// point read does that.
func (s *BiddingService) ListAuctions(ctx context.Context, filter model.AuctionFilter) ([]model.Auction, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("service: %w - unknown status %q", biddingerrors.ErrInvalidAuction, filter.Status)
	}

	stored, err := s.repo.ListAuctions(ctx, model.AuctionFilter{SellerID: filter.SellerID})
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}

	now := s.clock.Now()
	auctions := make([]model.Auction, 0, len(stored))
	for _, a := range stored {
		current, _ := lifecycle.Apply(a, now)
		if filter.Status != "" && current.Status != filter.Status {
			continue
		}
		auctions = append(auctions, current)
	}
	return auctions, nil
}

// DescribeAuctions attaches product titles and user names to auctions for
// display. Lookups are best-effort: a failed one leaves its name empty.
func (s *BiddingService) DescribeAuctions(ctx context.Context, auctions []model.Auction) []model.AuctionDetails {
	titles := make(map[string]string)
	names := make(map[string]string)

	title := func(productID string) string {
		if t, ok := titles[productID]; ok {
			return t
		}
		product, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			utils.Warn("product lookup failed, title left empty", map[string]any{
				"product_id": productID,
				"error":      err.Error(),
			})
		}
		titles[productID] = product.Title
		return product.Title
	}
	name := func(userID *string) string {
		if userID == nil {
			return ""
		}
		if n, ok := names[*userID]; ok {
			return n
		}
		n := repository.DisplayUser(ctx, s.users, *userID).Name
		names[*userID] = n
		return n
	}

	details := make([]model.AuctionDetails, 0, len(auctions))
	for _, a := range auctions {
		details = append(details, model.AuctionDetails{
			Auction:           a,
			ProductTitle:      title(a.ProductID),
			SellerName:        name(&a.SellerID),
			CurrentBidderName: name(a.CurrentBidder),
			WinnerName:        name(a.Winner),
		})
	}
	return details
}

// GetBidsForAuction returns all bids for an auction, newest first
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrAuctionNotFound)
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// loadCurrent fetches an auction and lazily applies any due transition
func (s *BiddingService) loadCurrent(ctx context.Context, auctionID string) (model.Auction, error) {
	if auctionID == "" {
		return model.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrAuctionNotFound)
	}

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}

	auction, err = s.transitioner.Refresh(ctx, auction, s.clock.Now())
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to refresh auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// announceBid publishes bid:placed. The bid is already durable, so a delivery
// failure is only logged.
func (s *BiddingService) announceBid(auction model.Auction, bid model.Bid, bidder model.User) {
	event := broadcast.NewBidPlaced(auction, bid, bidder)
	if err := s.publisher.Publish(auction.AuctionID, event); err != nil {
		utils.Warn("event delivery failed", map[string]any{
			"auction_id": auction.AuctionID,
			"bid_id":     bid.BidID,
			"event":      event.Type,
			"error":      err.Error(),
		})
	}
}

func checkOpen(auction model.Auction) error {
	switch auction.Status {
	case model.StatusActive:
		return nil
	case model.StatusPending:
		return fmt.Errorf("service: %w - auction has not started yet", biddingerrors.ErrAuctionClosed)
	default:
		return fmt.Errorf("service: %w - auction has ended", biddingerrors.ErrAuctionClosed)
	}
}

// validateAmount checks amount against the auction's current bid
func validateAmount(amount, currentBid decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	if !amount.Equal(amount.Round(amountScale)) {
		return fmt.Errorf("service: %w - bid amount has more than %d decimal places", biddingerrors.ErrInvalidBid, amountScale)
	}
	if !amount.GreaterThan(currentBid) {
		return fmt.Errorf("service: %w - bid must be higher than current bid of %s",
			biddingerrors.ErrInvalidBid, currentBid.StringFixed(amountScale))
	}
	return nil
}
