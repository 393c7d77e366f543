package migrations

import (
	"github.com/ksred/auction-api/internal/types"
	"gorm.io/gorm"
)

// AddAwardColumns migrates the auctions table, adding the settlement outcome
// columns (winner, winning amount, advisory payment method and details)
// recorded at closing time.
func AddAwardColumns(db *gorm.DB) error {
	return db.AutoMigrate(&types.Auction{})
}
