package migrations

import (
	"github.com/ksred/auction-api/internal/types"
	"gorm.io/gorm"
)

// AddBidAmountIndex creates the bids table with its (auction_id, amount
// descending) lookup index, which backs the leading-bid query on every bid
// validation.
func AddBidAmountIndex(db *gorm.DB) error {
	return db.AutoMigrate(&types.Bid{})
}
