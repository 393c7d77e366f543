package bidding

import (
	"errors"
	"fmt"

	"github.com/ksred/auction-api/internal/types"
	"github.com/shopspring/decimal"
)

var (
	ErrAuctionNotOpen = errors.New("auction not found or no longer open")
	ErrSellerBid      = errors.New("seller may not bid on own auction")
	ErrInvalidAmount  = errors.New("bid amount must be positive")
)

// TooLowError rejects a bid that does not strictly exceed the current floor.
// It carries the floor so a client can immediately retry with a corrected
// amount.
type TooLowError struct {
	Floor decimal.Decimal
}

func (e *TooLowError) Error() string {
	return fmt.Sprintf("bid must be strictly greater than the current floor of %s", e.Floor.String())
}

// Floor returns the minimum amount a new bid must strictly exceed: the
// leading bid's amount when one exists, otherwise the auction's starting
// price.
func Floor(auction *types.Auction, leading *types.Bid) decimal.Decimal {
	if leading != nil {
		return leading.Amount
	}
	return auction.StartingPrice
}

// Evaluate is the pure bid-acceptance decision: given the auction record and
// the current leading bid, is the proposed bid acceptable? It mutates
// nothing; on acceptance the caller appends to the ledger. Callers must hold
// the auction's lock across Evaluate and the append so two concurrent bids
// cannot both be accepted against the same stale floor.
func Evaluate(auction *types.Auction, leading *types.Bid, bidderID string, amount decimal.Decimal) error {
	if auction == nil || auction.Status != types.StatusOpen {
		return ErrAuctionNotOpen
	}

	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	if bidderID == auction.SellerID {
		return ErrSellerBid
	}

	// Equality is rejected: bids must strictly improve the price.
	if floor := Floor(auction, leading); !amount.GreaterThan(floor) {
		return &TooLowError{Floor: floor}
	}

	return nil
}
