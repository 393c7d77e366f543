package closing

import (
	"github.com/ksred/auction-api/internal/types"
	"github.com/shopspring/decimal"
)

// Settlement is the derived outcome of a closed auction: at most one winner,
// the winning amount, and the distinct losing bidders.
type Settlement struct {
	AuctionID     string          `json:"auction_id"`
	WinnerID      string          `json:"winner_id,omitempty"`
	WinningAmount decimal.Decimal `json:"winning_amount"`
	LosingBidders []string        `json:"losing_bidders"`
}

// HasWinner reports whether the ledger produced a winner
func (s Settlement) HasWinner() bool {
	return s.WinnerID != ""
}

// Resolve computes the settlement for an auction from a snapshot of its bid
// ledger. The winner is the bidder of the maximum-amount bid; the ledger's
// strict monotonicity guarantees there are no ties. Losers are every
// distinct bidder other than the winner. Resolve is pure and safe to call
// repeatedly; the closing transition, not resolution, is what happens
// exactly once.
func Resolve(auctionID string, bids []types.Bid) Settlement {
	if len(bids) == 0 {
		return Settlement{AuctionID: auctionID}
	}

	winning := bids[0]
	for _, b := range bids[1:] {
		if b.Amount.GreaterThan(winning.Amount) {
			winning = b
		}
	}

	return Settlement{
		AuctionID:     auctionID,
		WinnerID:      winning.BidderID,
		WinningAmount: winning.Amount,
		LosingBidders: losersOf(bids, winning.BidderID),
	}
}

// ResolveWithWinner computes the settlement with the winner pinned to a
// seller-chosen bidder on a manual award. The winning
// amount is the pinned bidder's highest bid. The second return value is
// false when the pinned bidder has no bid on the auction.
func ResolveWithWinner(auctionID string, bids []types.Bid, winnerID string) (Settlement, bool) {
	var winning *types.Bid
	for i := range bids {
		if bids[i].BidderID != winnerID {
			continue
		}
		if winning == nil || bids[i].Amount.GreaterThan(winning.Amount) {
			winning = &bids[i]
		}
	}

	if winning == nil {
		return Settlement{AuctionID: auctionID}, false
	}

	return Settlement{
		AuctionID:     auctionID,
		WinnerID:      winnerID,
		WinningAmount: winning.Amount,
		LosingBidders: losersOf(bids, winnerID),
	}, true
}

// losersOf returns the distinct bidders other than the winner, in order of
// first appearance in the snapshot
func losersOf(bids []types.Bid, winnerID string) []string {
	seen := make(map[string]bool)
	losers := make([]string, 0)
	for _, b := range bids {
		if b.BidderID == winnerID || seen[b.BidderID] {
			continue
		}
		seen[b.BidderID] = true
		losers = append(losers, b.BidderID)
	}
	return losers
}
