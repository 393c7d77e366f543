package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/auction-api/internal/auction"
	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/internal/bidding"
	"github.com/ksred/auction-api/internal/closing"
	"github.com/ksred/auction-api/internal/database"
	"github.com/ksred/auction-api/internal/email"
	"github.com/ksred/auction-api/internal/locks"
	"github.com/ksred/auction-api/internal/notification"
	"github.com/ksred/auction-api/internal/users"
	"github.com/ksred/auction-api/pkg/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	numSellers    = 3
	numBidders    = 8
	numAuctions   = 6
	bidsPerBidder = 10
	jwtSecret     = "auction-secret-key"
	serverAddress = "http://localhost:8080"
)

var itemNames = []string{
	"Vintage Camera", "Mountain Bike", "Acoustic Guitar",
	"Antique Clock", "Gaming Console", "Espresso Machine",
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	mu         sync.Mutex
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// addFailure records a failed call for the route
func (rs *routeStats) addFailure() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.failures++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the auction API
type simulationClient struct {
	baseURL string
	client  *http.Client
	stats   map[string]*routeStats
}

func newSimulationClient() *simulationClient {
	return &simulationClient{
		baseURL: serverAddress,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		stats: map[string]*routeStats{
			"auth":     {name: "Authentication"},
			"register": {name: "Register User"},
			"create":   {name: "Create Auction"},
			"bid":      {name: "Place Bid"},
			"bids":     {name: "List Bids"},
			"award":    {name: "Manual Award"},
			"sweep":    {name: "Expiry Sweep"},
		},
	}
}

// call performs one JSON request against the API, recording route statistics
func (sc *simulationClient) call(stat, method, path, token string, payload interface{}, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[stat].addDuration(time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[stat].addFailure()
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		sc.stats[stat].addFailure()
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats[stat].addFailure()
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
		}
	}
	return nil
}

// registerUser creates a directory entry and returns the new user ID
func (sc *simulationClient) registerUser(displayName string) (string, error) {
	var result struct {
		Data struct {
			UserID string `json:"user_id"`
		} `json:"data"`
	}
	err := sc.call("register", "POST", "/api/v1/users", "", map[string]string{
		"display_name": displayName,
		"email":        strings.ToLower(strings.ReplaceAll(displayName, " ", ".")) + "@example.com",
	}, &result)
	if err != nil {
		return "", err
	}
	return result.Data.UserID, nil
}

// authenticate exchanges API credentials for a JWT token
func (sc *simulationClient) authenticate(apiKey, apiSecret string) (string, error) {
	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	err := sc.call("auth", "POST", "/api/v1/auth/token", "", auth.Credentials{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}, &result)
	if err != nil {
		return "", err
	}
	return result.Data.Token, nil
}

// createAuction creates a listing and returns the new auction ID
func (sc *simulationClient) createAuction(token, name string, startingPrice float64, closesAt *time.Time) (string, error) {
	payload := map[string]interface{}{
		"name":           name,
		"description":    "Simulated listing for " + name,
		"category":       "simulation",
		"starting_price": startingPrice,
	}
	if closesAt != nil {
		payload["closes_at"] = closesAt.Format(time.RFC3339Nano)
	}

	var result struct {
		Data struct {
			AuctionID string `json:"auction_id"`
		} `json:"data"`
	}
	if err := sc.call("create", "POST", "/api/v1/auctions", token, payload, &result); err != nil {
		return "", err
	}
	return result.Data.AuctionID, nil
}

// placeBid submits a bid; a too-low rejection is reported as an error
func (sc *simulationClient) placeBid(token, auctionID string, amount float64) error {
	return sc.call("bid", "POST", fmt.Sprintf("/api/v1/auctions/%s/bids", auctionID), token,
		map[string]float64{"amount": amount}, nil)
}

// listBidders returns the distinct bidder IDs on an auction, highest bid first
func (sc *simulationClient) listBidders(token, auctionID string) ([]string, error) {
	var result struct {
		Data []struct {
			BidderID string `json:"bidder_id"`
		} `json:"data"`
	}
	if err := sc.call("bids", "GET", fmt.Sprintf("/api/v1/auctions/%s/bids", auctionID), token, nil, &result); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var bidders []string
	for _, b := range result.Data {
		if !seen[b.BidderID] {
			seen[b.BidderID] = true
			bidders = append(bidders, b.BidderID)
		}
	}
	return bidders, nil
}

// award closes an auction with a seller-chosen winner
func (sc *simulationClient) award(token, auctionID, winnerID string) error {
	return sc.call("award", "POST", fmt.Sprintf("/api/v1/auctions/%s/award", auctionID), token,
		map[string]string{
			"winner_id":       winnerID,
			"payment_method":  "bank transfer",
			"payment_details": "account 12345678, reference " + auctionID,
		}, nil)
}

// sweep runs one expiry sweep and returns the freshly closed auction IDs
func (sc *simulationClient) sweep(token string) ([]string, error) {
	var result struct {
		Data struct {
			ClosedAuctionIDs []string `json:"closed_auction_ids"`
		} `json:"data"`
	}
	if err := sc.call("sweep", "POST", "/api/v1/internal/sweep", token, nil, &result); err != nil {
		return nil, err
	}
	return result.Data.ClosedAuctionIDs, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

type simulatedUser struct {
	userID string
	token  string
}

// main runs the auction simulation: it starts a local API server, registers
// sellers and bidders, creates listings, races concurrent bids against them,
// and finishes with manual awards and an expiry sweep.
func main() {
	authService := auth.NewService(jwtSecret)

	// Start the server in a goroutine
	go func() {
		if err := startServer(authService); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	simClient := newSimulationClient()

	// Register sellers and bidders and collect a token for each
	sellers := setupUsers(simClient, authService, "Seller", numSellers)
	bidders := setupUsers(simClient, authService, "Bidder", numBidders)

	// Sellers create listings; half expire shortly so the sweep has work
	expiry := time.Now().Add(5 * time.Second)
	var auctionIDs []string
	var sweepAuctions int
	for i := 0; i < numAuctions; i++ {
		seller := sellers[i%len(sellers)]
		startingPrice := float64(rand.Intn(900) + 100)

		var closesAt *time.Time
		if i%2 == 0 {
			closesAt = &expiry
			sweepAuctions++
		}

		auctionID, err := simClient.createAuction(seller.token, itemNames[i%len(itemNames)], startingPrice, closesAt)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create auction")
			continue
		}
		auctionIDs = append(auctionIDs, auctionID)
		log.Info().
			Str("auction_id", auctionID).
			Str("seller_id", seller.userID).
			Float64("starting_price", startingPrice).
			Bool("expires", closesAt != nil).
			Msg("Auction created")
	}

	// Bidders race concurrent bids; rejections on a stale floor are expected
	var accepted, rejected int
	var statsMu sync.Mutex
	var wg sync.WaitGroup
	for _, bidder := range bidders {
		wg.Add(1)
		go func(b simulatedUser) {
			defer wg.Done()
			for i := 0; i < bidsPerBidder; i++ {
				auctionID := auctionIDs[rand.Intn(len(auctionIDs))]
				amount := float64(rand.Intn(5000) + 100)

				err := simClient.placeBid(b.token, auctionID, amount)
				statsMu.Lock()
				if err != nil {
					rejected++
				} else {
					accepted++
				}
				statsMu.Unlock()

				time.Sleep(time.Duration(rand.Intn(100)) * time.Millisecond)
			}
		}(bidder)
	}
	wg.Wait()

	log.Info().Int("accepted", accepted).Int("rejected", rejected).Msg("Bidding phase complete")

	// Sellers manually award their manual-close auctions to a random bidder
	var awards int
	for i, auctionID := range auctionIDs {
		if i%2 == 0 {
			continue // expiring auctions are left to the sweep
		}
		seller := sellers[i%len(sellers)]

		auctionBidders, err := simClient.listBidders(seller.token, auctionID)
		if err != nil || len(auctionBidders) == 0 {
			continue
		}

		winnerID := auctionBidders[rand.Intn(len(auctionBidders))]
		if err := simClient.award(seller.token, auctionID, winnerID); err != nil {
			log.Error().Err(err).Str("auction_id", auctionID).Msg("Failed to award auction")
			continue
		}
		awards++
		log.Info().Str("auction_id", auctionID).Str("winner_id", winnerID).Msg("Auction awarded")
	}

	// Wait for the expiring auctions to pass their closing time, then sweep
	time.Sleep(time.Until(expiry) + time.Second)
	closed, err := simClient.sweep(sellers[0].token)
	if err != nil {
		log.Error().Err(err).Msg("Expiry sweep failed")
	}

	// Print summary
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("AUCTION SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
Auctions Created:   %d
Bids Accepted:      %d
Bids Rejected:      %d
Manual Awards:      %d
Swept (expired):    %d of %d
`, len(auctionIDs), accepted, rejected, awards, len(closed), sweepAuctions)
	fmt.Println(strings.Repeat("=", 80))

	simClient.printPerformanceStats()
}

// setupUsers registers a batch of users and authenticates each of them
func setupUsers(simClient *simulationClient, authService *auth.Service, role string, count int) []simulatedUser {
	result := make([]simulatedUser, 0, count)
	for i := 0; i < count; i++ {
		displayName := fmt.Sprintf("%s %d", role, i+1)

		userID, err := simClient.registerUser(displayName)
		if err != nil {
			log.Fatal().Err(err).Str("display_name", displayName).Msg("Failed to register user")
		}

		apiKey := fmt.Sprintf("%s-key-%d", strings.ToLower(role), i)
		apiSecret := fmt.Sprintf("%s-secret-%d", strings.ToLower(role), i)
		authService.RegisterAPICredentials(apiKey, apiSecret, userID)

		token, err := simClient.authenticate(apiKey, apiSecret)
		if err != nil {
			log.Fatal().Err(err).Str("user_id", userID).Msg("Failed to authenticate user")
		}

		result = append(result, simulatedUser{userID: userID, token: token})
	}
	return result
}

// startServer initializes and starts the auction API server
// Sets up all required services, handlers and routes
func startServer(authService *auth.Service) error {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	auctionLocks := locks.NewKeyedMutex()
	notifier := notification.NewService(db, email.LogSender{})

	// Initialize services
	userService := users.NewService(db)
	auctionService := auction.NewService(db)
	biddingService := bidding.NewService(db, notifier, auctionLocks)
	closer := closing.NewCloser(db, notifier, auctionLocks)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	userHandlers := users.NewGinHandlers(userService)
	auctionHandlers := auction.NewGinHandlers(auctionService)
	biddingHandlers := bidding.NewGinHandlers(biddingService)
	closingHandlers := closing.NewGinHandlers(closer)

	// Setup routes
	setupRoutes(router, []byte(jwtSecret), authHandlers, userHandlers, auctionHandlers, biddingHandlers, closingHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
func setupRoutes(
	router *gin.Engine,
	secret []byte,
	authHandlers *auth.GinHandlers,
	userHandlers *users.GinHandlers,
	auctionHandlers *auction.GinHandlers,
	biddingHandlers *bidding.GinHandlers,
	closingHandlers *closing.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Public registration
		v1.POST("/users", userHandlers.RegisterUserHandler())

		// Auction and bidding routes
		auctions := v1.Group("/auctions")
		auctions.Use(middleware.JWTAuth(secret))
		{
			auctions.POST("", auctionHandlers.CreateAuctionHandler())
			auctions.POST("/:auction_id/bids", biddingHandlers.PlaceBidHandler())
			auctions.GET("/:auction_id/bids", biddingHandlers.ListBidsHandler())
			auctions.POST("/:auction_id/award", closingHandlers.AwardHandler())
		}

		// Internal routes
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(secret))
		{
			internal.POST("/sweep", closingHandlers.SweepHandler())
		}
	}
}
