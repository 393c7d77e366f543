package bidding

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/auction-api/internal/auction"
	"github.com/ksred/auction-api/internal/locks"
	"github.com/ksred/auction-api/internal/notification"
	"github.com/ksred/auction-api/internal/types"
	"github.com/ksred/auction-api/internal/users"
	"github.com/ksred/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service handles bid placement against open auctions
type Service struct {
	db       *Database
	auctions *auction.Database
	users    *users.Database
	notifier *notification.Service
	locks    *locks.KeyedMutex
}

func NewService(gormDB *gorm.DB, notifier *notification.Service, auctionLocks *locks.KeyedMutex) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		auctions: auction.NewDatabase(gormDB),
		users:    users.NewDatabase(gormDB),
		notifier: notifier,
		locks:    auctionLocks,
	}
}

// PlaceBid validates and records a bid. The auction's lock is held across
// the read of the current floor, the validation, and the append, so two
// concurrent bids for the same auction are serialized and the loser is
// rejected against the fresh floor. On acceptance the seller, the bidder,
// and a superseded previous leader are notified; notification failures never
// fail the bid.
func (s *Service) PlaceBid(auctionID, bidderID string, amount decimal.Decimal) (*types.Bid, error) {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	auc, err := s.auctions.Get(auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch auction %s: %w", auctionID, err)
	}

	leading, err := s.db.HighestBid(auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leading bid for auction %s: %w", auctionID, err)
	}

	if err := Evaluate(auc, leading, bidderID, amount); err != nil {
		return nil, err
	}

	bid := &types.Bid{
		BidID:     "BID_" + uuid.New().String(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		PlacedAt:  time.Now(),
	}

	if err := s.db.Append(bid); err != nil {
		return nil, fmt.Errorf("failed to record bid for auction %s: %w", auctionID, err)
	}

	log.Info().
		Str("service", "bidding").
		Str("auction_id", auctionID).
		Str("bidder_id", bidderID).
		Str("amount", amount.String()).
		Msg("bid accepted")

	s.notifier.Deliver(s.bidEvents(auc, bid, leading))

	return bid, nil
}

// ListBids returns all bids for an auction, descending by amount
func (s *Service) ListBids(auctionID string) ([]types.Bid, error) {
	auc, err := s.auctions.Get(auctionID)
	if err != nil {
		return nil, err
	}
	if auc == nil {
		return nil, auction.ErrNotFound
	}

	return s.db.BidsFor(auctionID)
}

// GetDB exposes the bid ledger to sibling services
func (s *Service) GetDB() *Database {
	return s.db
}

// bidEvents builds the notification batch for an accepted bid: seller first,
// then the bidder, then the previous leader if this bid superseded someone
// else's.
func (s *Service) bidEvents(auc *types.Auction, bid *types.Bid, superseded *types.Bid) []notification.Event {
	bidderName := s.displayName(bid.BidderID)

	events := []notification.Event{
		{
			RecipientID: auc.SellerID,
			Category:    types.CategoryBidReceived,
			Subject:     fmt.Sprintf("New bid on your auction: %s", auc.Name),
			Message:     fmt.Sprintf("%s placed a bid of $%s on your auction %s.", bidderName, bid.Amount.String(), auc.Name),
			AuctionID:   auc.AuctionID,
		},
		{
			RecipientID: bid.BidderID,
			Category:    types.CategoryBidPlaced,
			Subject:     fmt.Sprintf("Bid of $%s placed on %s", bid.Amount.String(), auc.Name),
			Message:     fmt.Sprintf("You bid $%s on %s. Good luck in the auction!", bid.Amount.String(), auc.Name),
			AuctionID:   auc.AuctionID,
		},
	}

	if superseded != nil && superseded.BidderID != bid.BidderID {
		events = append(events, notification.Event{
			RecipientID: superseded.BidderID,
			Category:    types.CategoryBidSuperseded,
			Subject:     fmt.Sprintf("Your bid has been outbid on %s", auc.Name),
			Message: fmt.Sprintf("Your bid of $%s on %s has been outbid. The current price is $%s. Bid again if you want to win!",
				superseded.Amount.String(), auc.Name, bid.Amount.String()),
			AuctionID: auc.AuctionID,
		})
	}

	return events
}

func (s *Service) displayName(userID string) string {
	user, err := s.users.GetUser(userID)
	if err != nil || user == nil {
		return userID
	}
	return user.DisplayName
}

// GinHandlers contains HTTP handlers for bidding endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PlaceBidHandler handles POST requests to place a bid on an auction.
// The bidder is the authenticated user.
func (h *GinHandlers) PlaceBidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bidderID := c.GetString("userID")
		if bidderID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		auctionID := c.Param("auction_id")

		var request struct {
			Amount decimal.Decimal `json:"amount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		bid, err := h.service.PlaceBid(auctionID, bidderID, request.Amount)
		if err != nil {
			var tooLow *TooLowError
			switch {
			case errors.As(err, &tooLow):
				response.Fail(c, 400, response.ErrCodeBidTooLow, tooLow.Error(), gin.H{"floor": tooLow.Floor})
			case errors.Is(err, ErrAuctionNotOpen):
				response.Fail(c, 404, response.ErrCodeAuctionClosed, err.Error(), nil)
			case errors.Is(err, ErrSellerBid):
				response.Forbidden(c, err.Error())
			case errors.Is(err, ErrInvalidAmount):
				response.BadRequest(c, err.Error())
			default:
				response.Handle(c, nil, err)
			}
			return
		}

		response.Success(c, bid)
	}
}

// ListBidsHandler handles GET requests for an auction's bids
func (h *GinHandlers) ListBidsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")

		bids, err := h.service.ListBids(auctionID)
		if err == auction.ErrNotFound {
			response.NotFound(c, "Auction not found")
			return
		}
		response.Handle(c, bids, err)
	}
}
