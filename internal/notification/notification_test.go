package notification

import (
	"errors"
	"testing"

	"github.com/ksred/auction-api/internal/types"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeSender struct {
	sent    []string
	failAll bool
}

func (f *fakeSender) Send(to, subject, textBody, htmlBody string) error {
	if f.failAll {
		return errors.New("connection refused")
	}
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

	require.NoError(t, db.AutoMigrate(&types.Notification{}, &types.User{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, userID, email string) {
	t.Helper()
	require.NoError(t, db.Create(&types.User{
		UserID:      userID,
		DisplayName: "User " + userID,
		Email:       email,
	}).Error)
}

func TestNotify_RecordAndEmail(t *testing.T) {
	db := testDB(t)
	sender := &fakeSender{}
	service := NewService(db, sender)
	seedUser(t, db, "user_1", "user1@example.com")

	err := service.Notify(Event{
		RecipientID: "user_1",
		Category:    types.CategoryBidReceived,
		Subject:     "New bid",
		Message:     "A bid of $50 was placed on your auction.",
		AuctionID:   "AUC_1",
	})
	require.NoError(t, err)

	records, err := service.ListForRecipient("user_1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Contains(t, records[0].NotificationID, "NTF_")
	require.Equal(t, types.CategoryBidReceived, records[0].Category)
	require.False(t, records[0].Read)

	require.Equal(t, []string{"user1@example.com"}, sender.sent)
}

func TestNotify_EmailFailureStillRecords(t *testing.T) {
	db := testDB(t)
	service := NewService(db, &fakeSender{failAll: true})
	seedUser(t, db, "user_1", "user1@example.com")

	err := service.Notify(Event{
		RecipientID: "user_1",
		Category:    types.CategoryAuctionLost,
		Subject:     "Auction finished",
		Message:     "You did not win.",
		AuctionID:   "AUC_1",
	})
	require.NoError(t, err)

	records, err := service.ListForRecipient("user_1")
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestNotify_UnknownRecipientSkipsEmail(t *testing.T) {
	db := testDB(t)
	sender := &fakeSender{}
	service := NewService(db, sender)

	err := service.Notify(Event{
		RecipientID: "ghost",
		Category:    types.CategoryBidPlaced,
		Message:     "Your bid was placed.",
		AuctionID:   "AUC_1",
	})
	require.NoError(t, err)

	records, err := service.ListForRecipient("ghost")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Empty(t, sender.sent)
}

func TestDeliver_ContinuesPastFailures(t *testing.T) {
	db := testDB(t)
	sender := &fakeSender{failAll: true}
	service := NewService(db, sender)
	seedUser(t, db, "user_1", "user1@example.com")
	seedUser(t, db, "user_2", "user2@example.com")

	service.Deliver([]Event{
		{RecipientID: "user_1", Category: types.CategoryAuctionWon, Message: "won", AuctionID: "AUC_1"},
		{RecipientID: "user_2", Category: types.CategoryAuctionLost, Message: "lost", AuctionID: "AUC_1"},
	})

	for _, recipient := range []string{"user_1", "user_2"} {
		records, err := service.ListForRecipient(recipient)
		require.NoError(t, err)
		require.Len(t, records, 1)
	}
}

func TestMarkRead(t *testing.T) {
	db := testDB(t)
	service := NewService(db, &fakeSender{})

	require.NoError(t, service.Notify(Event{
		RecipientID: "user_1",
		Category:    types.CategoryBidSuperseded,
		Message:     "You have been outbid.",
		AuctionID:   "AUC_1",
	}))

	records, err := service.ListForRecipient("user_1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	notificationID := records[0].NotificationID

	// Another user cannot mark it
	require.ErrorIs(t, service.MarkRead(notificationID, "user_2"), ErrNotFound)

	require.NoError(t, service.MarkRead(notificationID, "user_1"))

	records, err = service.ListForRecipient("user_1")
	require.NoError(t, err)
	require.True(t, records[0].Read)

	require.ErrorIs(t, service.MarkRead("NTF_missing", "user_1"), ErrNotFound)
}
