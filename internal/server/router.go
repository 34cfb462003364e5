package server

import (
	"net/http"

	"auction-house/internal/identity"
	handler "auction-house/services/bidding/handler"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
)

// RouterOptions carries the collaborators the HTTP routes need
type RouterOptions struct {
	Service      handler.AuctionServiceInterface
	Hub          handler.EventHub
	Identity     identity.Provider
	StreamBuffer int
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(opts RouterOptions) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery()) // recover from panics
	router.Use(IdentityMiddleware(opts.Identity))
	router.Use(RequestLoggerMiddleware) // custom request logging

	router.GET("/ping", func(c *gin.Context) {
		utils.JSONResponse(c, http.StatusOK, gin.H{"pong": true}, "ok")
	})

	biddingHandler := handler.NewBiddingHandler(opts.Service, opts.Hub, opts.StreamBuffer)

	auctions := router.Group("/auctions")
	{
		auctions.GET("", biddingHandler.ListAuctionsHandler)
		auctions.POST("", RequireIdentity, biddingHandler.CreateAuctionHandler)
		auctions.GET("/:auction_id", biddingHandler.GetAuctionHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsHandler)
		auctions.POST("/:auction_id/bids", RequireIdentity, biddingHandler.PlaceBidHandler)
		auctions.GET("/:auction_id/events", biddingHandler.StreamEventsHandler)
	}

	return router
}
