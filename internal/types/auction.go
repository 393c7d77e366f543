package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Auction statuses
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Notification categories
const (
	CategoryBidReceived   = "BID_RECEIVED"
	CategoryBidPlaced     = "BID_PLACED"
	CategoryBidSuperseded = "BID_SUPERSEDED"
	CategoryAuctionWon    = "AUCTION_WON"
	CategoryAuctionLost   = "AUCTION_LOST"
	CategoryProductSold   = "PRODUCT_SOLD"
)

type Auction struct {
	gorm.Model     `json:"-"`
	AuctionID      string          `gorm:"uniqueIndex" json:"auction_id"`
	SellerID       string          `gorm:"index" json:"seller_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	ImageURL       string          `json:"image_url,omitempty"`
	StartingPrice  decimal.Decimal `gorm:"type:decimal(20,2)" json:"starting_price"`
	Status         string          `json:"status"` // OPEN, CLOSED
	ClosesAt       *time.Time      `json:"closes_at,omitempty"`
	WinnerID       string          `json:"winner_id,omitempty"`
	WinningAmount  decimal.Decimal `gorm:"type:decimal(20,2)" json:"winning_amount"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
	PaymentDetails string          `json:"payment_details,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Bid struct {
	gorm.Model `json:"-"`
	BidID      string          `gorm:"uniqueIndex" json:"bid_id"`
	AuctionID  string          `gorm:"index:idx_bids_auction_amount,priority:1" json:"auction_id"`
	BidderID   string          `json:"bidder_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,2);index:idx_bids_auction_amount,priority:2,sort:desc" json:"amount"`
	PlacedAt   time.Time       `json:"placed_at"`
}

type Notification struct {
	gorm.Model     `json:"-"`
	NotificationID string    `gorm:"uniqueIndex" json:"notification_id"`
	RecipientID    string    `gorm:"index" json:"recipient_id"`
	Category       string    `json:"category"`
	Message        string    `json:"message"`
	AuctionID      string    `json:"auction_id,omitempty"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

type User struct {
	gorm.Model  `json:"-"`
	UserID      string    `gorm:"uniqueIndex" json:"user_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}
