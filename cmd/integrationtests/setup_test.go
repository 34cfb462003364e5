package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	bidding "auction-house/internal/biddingService"
	"auction-house/internal/broadcast"
	"auction-house/internal/clock"
	"auction-house/internal/identity"
	model "auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/internal/server"
	"auction-house/internal/sweeper"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var startOfTest = time.Date(2026, 7, 1, 15, 0, 0, 0, time.UTC)

// TestEnv is a fully wired server on the in-memory repository with a controllable clock
type TestEnv struct {
	Router  *gin.Engine
	Repo    *repository.MemoryRepo
	Clock   *clock.FakeClock
	Hub     *broadcast.Broadcaster
	Sweeper *sweeper.Sweeper
}

// SetupTestEnv initializes the router and seeds users and products for integration testing.
//
// Users: seller, user1 (Alice), user2 (Bob). Products item1 (starting 50) and
// item2 (starting 30), both owned by seller.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryRepo()
	repo.AddUser(model.User{UserID: "seller", Name: "Sam Seller", Email: "sam@example.com"})
	repo.AddUser(model.User{UserID: "user1", Name: "Alice", Email: "alice@example.com"})
	repo.AddUser(model.User{UserID: "user2", Name: "Bob", Email: "bob@example.com"})
	repo.AddProduct(model.Product{ProductID: "item1", Title: "title1", Description: "description1", StartingPrice: decimal.NewFromInt(50), OwnerID: "seller"})
	repo.AddProduct(model.Product{ProductID: "item2", Title: "title2", Description: "description2", StartingPrice: decimal.NewFromInt(30), OwnerID: "seller"})

	clk := clock.Fake(startOfTest)
	hub := broadcast.NewBroadcaster()
	service := bidding.NewBiddingService(repo, repo, repo, hub, clk)

	router := server.SetupRouter(server.RouterOptions{
		Service:      service,
		Hub:          hub,
		Identity:     identity.NewHeaderProvider(),
		StreamBuffer: 8,
	})

	return &TestEnv{
		Router:  router,
		Repo:    repo,
		Clock:   clk,
		Hub:     hub,
		Sweeper: sweeper.New(repo, repo, hub, clk, sweeper.Options{Interval: time.Hour}),
	}
}

// ExecuteRequestAndParse executes an HTTP request as userID ("" for anonymous) and parses the response envelope
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url, userID string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err, "failed to marshal body")
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(identity.DefaultHeader, userID)
	}
	router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "failed to unmarshal response")
	}
	return resp, w
}

// CreateAuction creates an auction on productID starting in `in` and running for `runs`
func (e *TestEnv) CreateAuction(t *testing.T, productID string, in, runs time.Duration) string {
	t.Helper()

	start := e.Clock.Now().Add(in)
	resp, w := ExecuteRequestAndParse(t, e.Router, "POST", "/auctions", "seller", map[string]any{
		"product_id": productID,
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Add(runs).Format(time.RFC3339),
	})
	require.Equal(t, 201, w.Code, w.Body.String())
	return resp["data"].(map[string]any)["auction_id"].(string)
}
