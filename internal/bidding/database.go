package bidding

import (
	"errors"

	"github.com/ksred/auction-api/internal/types"
	"gorm.io/gorm"
)

// Database is the bid ledger: an append-only store of accepted bids per
// auction. Validation happens upstream; the ledger only records.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Append records an accepted bid. It never rejects on its own.
func (d *Database) Append(bid *types.Bid) error {
	return d.db.Create(bid).Error
}

// BidsFor returns all bids for an auction, descending by amount
func (d *Database) BidsFor(auctionID string) ([]types.Bid, error) {
	var bids []types.Bid
	if err := d.db.Where("auction_id = ?", auctionID).
		Order("amount DESC").
		Find(&bids).Error; err != nil {
		return nil, err
	}
	return bids, nil
}

// HighestBid returns the current leading bid for an auction, or nil when the
// ledger is empty
func (d *Database) HighestBid(auctionID string) (*types.Bid, error) {
	var bid types.Bid
	if err := d.db.Where("auction_id = ?", auctionID).
		Order("amount DESC").
		First(&bid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bid, nil
}

// HighestBidBy returns a given bidder's highest bid on an auction, or nil
// when the bidder has no bid on record
func (d *Database) HighestBidBy(auctionID, bidderID string) (*types.Bid, error) {
	var bid types.Bid
	if err := d.db.Where("auction_id = ? AND bidder_id = ?", auctionID, bidderID).
		Order("amount DESC").
		First(&bid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bid, nil
}

// DistinctBidders returns the distinct bidder IDs with at least one bid on
// the auction, excluding the given bidder
func (d *Database) DistinctBidders(auctionID, excluding string) ([]string, error) {
	var bidders []string
	if err := d.db.Model(&types.Bid{}).
		Where("auction_id = ? AND bidder_id <> ?", auctionID, excluding).
		Distinct().
		Pluck("bidder_id", &bidders).Error; err != nil {
		return nil, err
	}
	return bidders, nil
}
