package auction

import (
	"errors"
	"time"

	"github.com/ksred/auction-api/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("auction not found")
	ErrAlreadyClosed = errors.New("auction already closed")
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateAuction(auction *types.Auction) error {
	return d.db.Create(auction).Error
}

// Get retrieves an auction by its ID, returning nil when no such auction
// exists
func (d *Database) Get(auctionID string) (*types.Auction, error) {
	var auction types.Auction
	if err := d.db.Where("auction_id = ?", auctionID).First(&auction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &auction, nil
}

func (d *Database) ListAuctions() ([]types.Auction, error) {
	var auctions []types.Auction
	if err := d.db.Order("created_at DESC").Find(&auctions).Error; err != nil {
		return nil, err
	}
	return auctions, nil
}

func (d *Database) ListBySeller(sellerID string) ([]types.Auction, error) {
	var auctions []types.Auction
	if err := d.db.Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Find(&auctions).Error; err != nil {
		return nil, err
	}
	return auctions, nil
}

// ListExpired returns all open auctions whose closing time is at or before
// the given instant. Auctions without a closing time are manual-close-only
// and never expire.
func (d *Database) ListExpired(now time.Time) ([]types.Auction, error) {
	var auctions []types.Auction
	if err := d.db.Where("status = ? AND closes_at IS NOT NULL AND closes_at <= ?", types.StatusOpen, now).
		Find(&auctions).Error; err != nil {
		return nil, err
	}
	return auctions, nil
}

// MarkClosed transitions an auction from OPEN to CLOSED. The transition is a
// single conditional update so that of any number of concurrent callers,
// exactly one observes a fresh transition; the rest get ErrAlreadyClosed.
func (d *Database) MarkClosed(auctionID string) error {
	result := d.db.Model(&types.Auction{}).
		Where("auction_id = ? AND status = ?", auctionID, types.StatusOpen).
		Update("status", types.StatusClosed)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		existing, err := d.Get(auctionID)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrNotFound
		}
		return ErrAlreadyClosed
	}

	return nil
}

// RecordAward stores the settlement outcome on a closed auction row. The
// payment method and details are advisory strings chosen by the seller on a
// manual award; the sweep leaves them empty.
func (d *Database) RecordAward(auctionID, winnerID string, amount decimal.Decimal, paymentMethod, paymentDetails string) error {
	return d.db.Model(&types.Auction{}).
		Where("auction_id = ?", auctionID).
		Updates(map[string]interface{}{
			"winner_id":       winnerID,
			"winning_amount":  amount,
			"payment_method":  paymentMethod,
			"payment_details": paymentDetails,
		}).Error
}
