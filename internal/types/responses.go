package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// AwardResponse represents the outcome of a manual award
type AwardResponse struct {
	AuctionID     string          `json:"auction_id"`
	WinnerID      string          `json:"winner_id"`
	WinningAmount decimal.Decimal `json:"winning_amount"`
	LosingBidders []string        `json:"losing_bidders"`
	Timestamp     time.Time       `json:"timestamp"`
}

// SweepResponse represents the outcome of one expiry sweep pass
type SweepResponse struct {
	ClosedAuctionIDs []string  `json:"closed_auction_ids"`
	Timestamp        time.Time `json:"timestamp"`
}
