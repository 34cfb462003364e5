package handler

import (
	"context"
	"net/http"
	"time"

	"auction-house/internal/broadcast"
	"auction-house/internal/identity"
	model "auction-house/internal/models"
	"auction-house/services/bidding/helpers"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// DefaultStreamBuffer is how many events a slow event stream may fall behind by
const DefaultStreamBuffer = 16

type AuctionServiceInterface interface {
	CreateAuction(ctx context.Context, sellerID, productID string, startTime, endTime time.Time) (model.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	ListAuctions(ctx context.Context, filter model.AuctionFilter) ([]model.Auction, error)
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (model.Bid, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	DescribeAuctions(ctx context.Context, auctions []model.Auction) []model.AuctionDetails
}

// EventHub lets a stream follow one auction's events
type EventHub interface {
	Subscribe(observer broadcast.Observer, auctionID string)
	Unsubscribe(observer broadcast.Observer, auctionID string)
}

type BiddingHandler struct {
	service      AuctionServiceInterface
	hub          EventHub
	streamBuffer int
}

func NewBiddingHandler(service AuctionServiceInterface, hub EventHub, streamBuffer int) *BiddingHandler {
	if streamBuffer <= 0 {
		streamBuffer = DefaultStreamBuffer
	}
	return &BiddingHandler{service: service, hub: hub, streamBuffer: streamBuffer}
}

// CreateAuctionHandler handles POST /auctions
func (h *BiddingHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	sellerID := identity.UserID(c)
	auction, err := h.service.CreateAuction(c.Request.Context(), sellerID, req.ProductID, req.StartTime, req.EndTime)
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", err, map[string]any{
			"product_id": req.ProductID,
			"seller_id":  sellerID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewAuctionResponse(auction), "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"product_id": auction.ProductID,
		"seller_id":  sellerID,
	})
}

// ListAuctionsHandler handles GET /auctions?status=&seller=
func (h *BiddingHandler) ListAuctionsHandler(c *gin.Context) {
	filter := model.AuctionFilter{
		Status:   model.AuctionStatus(c.Query("status")),
		SellerID: c.Query("seller"),
	}

	auctions, err := h.service.ListAuctions(c.Request.Context(), filter)
	if err != nil {
		helpers.RespondError(c, "ListAuctionsHandler", err, map[string]any{
			"status": filter.Status,
			"seller": filter.SellerID,
		})
		return
	}

	details := h.service.DescribeAuctions(c.Request.Context(), auctions)
	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionDetailsResponses(details), "auctions retrieved successfully")
	helpers.LogSuccess("ListAuctionsHandler", "auctions retrieved successfully", map[string]any{
		"status": filter.Status,
		"seller": filter.SellerID,
		"count":  len(auctions),
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *BiddingHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	details := h.service.DescribeAuctions(c.Request.Context(), []model.Auction{auction})
	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionDetailsResponse(details[0]), "auction retrieved successfully")
	helpers.LogSuccess("GetAuctionHandler", "auction retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"status":     auction.Status,
	})
}

// PlaceBidHandler handles POST /auctions/:auction_id/bids
func (h *BiddingHandler) PlaceBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	auctionID := c.Param("auction_id")
	bidderID := identity.UserID(c)
	amount := decimal.NewFromFloat(req.Amount)

	bid, err := h.service.PlaceBid(c.Request.Context(), auctionID, bidderID, amount)
	if err != nil {
		helpers.RespondError(c, "PlaceBidHandler", err, map[string]any{
			"auction_id": auctionID,
			"bidder_id":  bidderID,
			"amount":     amount.String(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": auctionID,
		"bidder_id":  bidderID,
		"amount":     bid.Amount.String(),
	})
}

// GetBidsHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) GetBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetBidsHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetBidsHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// StreamEventsHandler handles GET /auctions/:auction_id/events.
//
// The stream opens with a "snapshot" event holding the auction's current state,
// then relays bid:placed, auction:started and auction:ended as server-sent
// events. It closes after auction:ended or when the client goes away.
func (h *BiddingHandler) StreamEventsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	ctx := c.Request.Context()

	// Subscribe before reading so nothing published after the snapshot is lost.
	observer := broadcast.NewChannelObserver(utils.GenerateID(), h.streamBuffer)
	h.hub.Subscribe(observer, auctionID)
	defer func() {
		h.hub.Unsubscribe(observer, auctionID)
		observer.Close()
	}()

	auction, err := h.service.GetAuction(ctx, auctionID)
	if err != nil {
		helpers.RespondError(c, "StreamEventsHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent("snapshot", helpers.NewAuctionResponse(auction))
	c.Writer.Flush()

	utils.Info("StreamEventsHandler: stream opened", map[string]any{
		"auction_id":  auctionID,
		"observer_id": observer.ID(),
	})
	if auction.Status == model.StatusEnded {
		return
	}

	for {
		select {
		case <-ctx.Done():
			utils.Info("StreamEventsHandler: client disconnected", map[string]any{
				"auction_id":  auctionID,
				"observer_id": observer.ID(),
			})
			return
		case event, ok := <-observer.Events():
			if !ok {
				return
			}
			c.SSEvent(string(event.Type), event.Payload)
			c.Writer.Flush()
			if event.Type == broadcast.EventAuctionEnded {
				return
			}
		}
	}
}
