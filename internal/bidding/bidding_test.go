package bidding

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ksred/auction-api/internal/auction"
	"github.com/ksred/auction-api/internal/locks"
	"github.com/ksred/auction-api/internal/notification"
	"github.com/ksred/auction-api/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) Send(to, subject, textBody, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	return nil
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&types.Auction{}, &types.Bid{}, &types.Notification{}, &types.User{}))
	return db
}

func testService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testDB(t)
	notifier := notification.NewService(db, &fakeSender{})
	return NewService(db, notifier, locks.NewKeyedMutex()), db
}

func seedAuction(t *testing.T, db *gorm.DB, auctionID, sellerID string, startingPrice int64) {
	t.Helper()
	require.NoError(t, db.Create(&types.Auction{
		AuctionID:     auctionID,
		SellerID:      sellerID,
		Name:          "Test Item",
		StartingPrice: decimal.NewFromInt(startingPrice),
		Status:        types.StatusOpen,
		CreatedAt:     time.Now(),
	}).Error)
}

func seedUser(t *testing.T, db *gorm.DB, userID, name string) {
	t.Helper()
	require.NoError(t, db.Create(&types.User{
		UserID:      userID,
		DisplayName: name,
		Email:       userID + "@example.com",
	}).Error)
}

func countNotifications(t *testing.T, db *gorm.DB, recipientID, category string) int {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&types.Notification{}).
		Where("recipient_id = ? AND category = ?", recipientID, category).
		Count(&count).Error)
	return int(count)
}

func TestPlaceBid_FloorProgression(t *testing.T) {
	service, db := testService(t)
	seedAuction(t, db, "AUC_1", "seller", 100)

	// Equal to the starting price is rejected, twice
	for i := 0; i < 2; i++ {
		_, err := service.PlaceBid("AUC_1", "buyerA", decimal.NewFromInt(100))
		var tooLow *TooLowError
		require.ErrorAs(t, err, &tooLow)
		require.True(t, tooLow.Floor.Equal(decimal.NewFromInt(100)))
	}

	// Strictly above is accepted
	bid, err := service.PlaceBid("AUC_1", "buyerA", decimal.NewFromInt(101))
	require.NoError(t, err)
	require.True(t, bid.Amount.Equal(decimal.NewFromInt(101)))
	require.False(t, bid.PlacedAt.IsZero())

	// Back below the new floor is rejected with the new floor
	_, err = service.PlaceBid("AUC_1", "buyerB", decimal.NewFromInt(100))
	var tooLow *TooLowError
	require.ErrorAs(t, err, &tooLow)
	require.True(t, tooLow.Floor.Equal(decimal.NewFromInt(101)))
}

func TestPlaceBid_MonotonicLedger(t *testing.T) {
	service, db := testService(t)
	seedAuction(t, db, "AUC_1", "seller", 100)

	amounts := []int64{150, 120, 200, 200, 175, 250}
	for _, amount := range amounts {
		// Rejections leave no trace in the ledger
		_, _ = service.PlaceBid("AUC_1", "buyerA", decimal.NewFromInt(amount))
	}

	bids, err := service.GetDB().BidsFor("AUC_1")
	require.NoError(t, err)
	require.Len(t, bids, 3) // 150, 200, 250

	// Descending by amount, each strictly smaller than the one before
	for i := 1; i < len(bids); i++ {
		require.True(t, bids[i].Amount.LessThan(bids[i-1].Amount),
			"ledger not strictly monotonic: %s then %s", bids[i-1].Amount, bids[i].Amount)
	}
}

func TestPlaceBid_RejectsClosedAndMissingAuctions(t *testing.T) {
	service, db := testService(t)

	_, err := service.PlaceBid("AUC_missing", "buyerA", decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrAuctionNotOpen)

	seedAuction(t, db, "AUC_closed", "seller", 100)
	require.NoError(t, db.Model(&types.Auction{}).
		Where("auction_id = ?", "AUC_closed").
		Update("status", types.StatusClosed).Error)

	_, err = service.PlaceBid("AUC_closed", "buyerA", decimal.NewFromInt(200))
	require.ErrorIs(t, err, ErrAuctionNotOpen)
}

func TestPlaceBid_SellerForbidden(t *testing.T) {
	service, db := testService(t)
	seedAuction(t, db, "AUC_1", "seller", 100)

	_, err := service.PlaceBid("AUC_1", "seller", decimal.NewFromInt(500))
	require.ErrorIs(t, err, ErrSellerBid)
}

func TestPlaceBid_ConcurrentBidsOneWinner(t *testing.T) {
	service, db := testService(t)
	seedAuction(t, db, "AUC_1", "seller", 100)

	// Two concurrent bids of 150 against a floor of 100: exactly one is
	// accepted, the other is rejected against the fresh floor of 150.
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, bidder := range []string{"buyerA", "buyerB"} {
		wg.Add(1)
		go func(bidderID string) {
			defer wg.Done()
			_, err := service.PlaceBid("AUC_1", bidderID, decimal.NewFromInt(150))
			results <- err
		}(bidder)
	}
	wg.Wait()
	close(results)

	var acceptedCount, tooLowCount int
	for err := range results {
		if err == nil {
			acceptedCount++
			continue
		}
		var tooLow *TooLowError
		require.ErrorAs(t, err, &tooLow)
		require.True(t, tooLow.Floor.Equal(decimal.NewFromInt(150)))
		tooLowCount++
	}
	require.Equal(t, 1, acceptedCount)
	require.Equal(t, 1, tooLowCount)

	bids, err := service.GetDB().BidsFor("AUC_1")
	require.NoError(t, err)
	require.Len(t, bids, 1)
}

func TestPlaceBid_NotificationFanOut(t *testing.T) {
	db := testDB(t)
	sender := &fakeSender{}
	notifier := notification.NewService(db, sender)
	service := NewService(db, notifier, locks.NewKeyedMutex())

	seedAuction(t, db, "AUC_1", "seller", 100)
	seedUser(t, db, "seller", "Sam Seller")
	seedUser(t, db, "buyerA", "Alice")
	seedUser(t, db, "buyerB", "Bob")

	_, err := service.PlaceBid("AUC_1", "buyerA", decimal.NewFromInt(150))
	require.NoError(t, err)

	// Seller and bidder are notified on the first bid
	require.Equal(t, 1, countNotifications(t, db, "seller", types.CategoryBidReceived))
	require.Equal(t, 1, countNotifications(t, db, "buyerA", types.CategoryBidPlaced))
	require.Equal(t, 0, countNotifications(t, db, "buyerA", types.CategoryBidSuperseded))

	// A higher bid by another bidder supersedes the previous leader
	_, err = service.PlaceBid("AUC_1", "buyerB", decimal.NewFromInt(200))
	require.NoError(t, err)
	require.Equal(t, 1, countNotifications(t, db, "buyerA", types.CategoryBidSuperseded))

	// Raising your own leading bid does not notify yourself as superseded
	_, err = service.PlaceBid("AUC_1", "buyerB", decimal.NewFromInt(250))
	require.NoError(t, err)
	require.Equal(t, 0, countNotifications(t, db, "buyerB", types.CategoryBidSuperseded))

	require.NotEmpty(t, sender.sent)
}

func TestListBids(t *testing.T) {
	service, db := testService(t)
	seedAuction(t, db, "AUC_1", "seller", 100)

	for _, amount := range []int64{110, 130, 170} {
		_, err := service.PlaceBid("AUC_1", "buyerA", decimal.NewFromInt(amount))
		require.NoError(t, err)
	}

	bids, err := service.ListBids("AUC_1")
	require.NoError(t, err)
	require.Len(t, bids, 3)
	require.True(t, bids[0].Amount.Equal(decimal.NewFromInt(170)))

	_, err = service.ListBids("AUC_missing")
	require.True(t, errors.Is(err, auction.ErrNotFound))
}
