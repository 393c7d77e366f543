package bidding

import (
	"errors"
	"testing"

	"github.com/ksred/auction-api/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func openAuction(sellerID string, startingPrice int64) *types.Auction {
	return &types.Auction{
		AuctionID:     "AUC_test",
		SellerID:      sellerID,
		StartingPrice: decimal.NewFromInt(startingPrice),
		Status:        types.StatusOpen,
	}
}

func bidOf(bidderID string, amount int64) *types.Bid {
	return &types.Bid{
		BidID:     "BID_test",
		AuctionID: "AUC_test",
		BidderID:  bidderID,
		Amount:    decimal.NewFromInt(amount),
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name          string
		auction       *types.Auction
		leading       *types.Bid
		bidderID      string
		amount        int64
		expectedError error
		expectedFloor int64
	}{
		{
			name:     "first_bid_above_starting_price",
			auction:  openAuction("seller", 100),
			bidderID: "buyer1",
			amount:   101,
		},
		{
			name:          "first_bid_equal_to_starting_price",
			auction:       openAuction("seller", 100),
			bidderID:      "buyer1",
			amount:        100,
			expectedFloor: 100,
		},
		{
			name:          "first_bid_below_starting_price",
			auction:       openAuction("seller", 100),
			bidderID:      "buyer1",
			amount:        99,
			expectedFloor: 100,
		},
		{
			name:     "outbid_leading",
			auction:  openAuction("seller", 100),
			leading:  bidOf("buyer1", 150),
			bidderID: "buyer2",
			amount:   151,
		},
		{
			name:          "equal_to_leading",
			auction:       openAuction("seller", 100),
			leading:       bidOf("buyer1", 150),
			bidderID:      "buyer2",
			amount:        150,
			expectedFloor: 150,
		},
		{
			name:          "missing_auction",
			auction:       nil,
			bidderID:      "buyer1",
			amount:        200,
			expectedError: ErrAuctionNotOpen,
		},
		{
			name: "closed_auction",
			auction: &types.Auction{
				AuctionID:     "AUC_test",
				SellerID:      "seller",
				StartingPrice: decimal.NewFromInt(100),
				Status:        types.StatusClosed,
			},
			bidderID:      "buyer1",
			amount:        200,
			expectedError: ErrAuctionNotOpen,
		},
		{
			name:          "seller_bids_on_own_auction",
			auction:       openAuction("seller", 100),
			bidderID:      "seller",
			amount:        200,
			expectedError: ErrSellerBid,
		},
		{
			name:          "zero_amount",
			auction:       openAuction("seller", 100),
			bidderID:      "buyer1",
			amount:        0,
			expectedError: ErrInvalidAmount,
		},
		{
			name:          "negative_amount",
			auction:       openAuction("seller", 100),
			bidderID:      "buyer1",
			amount:        -50,
			expectedError: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Evaluate(tt.auction, tt.leading, tt.bidderID, decimal.NewFromInt(tt.amount))

			if tt.expectedError != nil {
				require.ErrorIs(t, err, tt.expectedError)
				return
			}
			if tt.expectedFloor != 0 {
				var tooLow *TooLowError
				require.ErrorAs(t, err, &tooLow)
				require.True(t, tooLow.Floor.Equal(decimal.NewFromInt(tt.expectedFloor)),
					"expected floor %d, got %s", tt.expectedFloor, tooLow.Floor)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestFloor(t *testing.T) {
	auc := openAuction("seller", 100)

	require.True(t, Floor(auc, nil).Equal(decimal.NewFromInt(100)))
	require.True(t, Floor(auc, bidOf("buyer1", 250)).Equal(decimal.NewFromInt(250)))
}

func TestTooLowErrorCarriesFloor(t *testing.T) {
	err := Evaluate(openAuction("seller", 100), nil, "buyer1", decimal.NewFromInt(100))

	var tooLow *TooLowError
	require.True(t, errors.As(err, &tooLow))
	require.Contains(t, tooLow.Error(), "100")
}
