package closing

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/auction-api/internal/auction"
	"github.com/ksred/auction-api/internal/bidding"
	"github.com/ksred/auction-api/internal/locks"
	"github.com/ksred/auction-api/internal/notification"
	"github.com/ksred/auction-api/internal/types"
	"github.com/ksred/auction-api/internal/users"
	"github.com/ksred/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrForbidden = errors.New("only the auction's seller may award it")
	ErrNoSuchBid = errors.New("chosen bidder has no bid on this auction")
)

// Closer transitions auctions from open to closed and drives the settlement
// notification fan-out. Both trigger paths, the seller-initiated manual
// award and the expiry sweep, converge on the same close routine.
type Closer struct {
	auctions *auction.Database
	ledger   *bidding.Database
	users    *users.Database
	notifier *notification.Service
	locks    *locks.KeyedMutex
	now      func() time.Time
}

func NewCloser(gormDB *gorm.DB, notifier *notification.Service, auctionLocks *locks.KeyedMutex) *Closer {
	return &Closer{
		auctions: auction.NewDatabase(gormDB),
		ledger:   bidding.NewDatabase(gormDB),
		users:    users.NewDatabase(gormDB),
		notifier: notifier,
		locks:    auctionLocks,
		now:      time.Now,
	}
}

// WithClock overrides the closer's clock, used by the sweep tests
func (c *Closer) WithClock(now func() time.Time) *Closer {
	c.now = now
	return c
}

// AwardManually closes an auction with the winner pinned to a seller-chosen
// bidder, which need not be the highest bidder. The payment method and
// details are advisory strings recorded on the auction.
func (c *Closer) AwardManually(auctionID, sellerID, winnerBidderID, paymentMethod, paymentDetails string) (*Settlement, error) {
	unlock := c.locks.Lock(auctionID)
	defer unlock()

	auc, err := c.auctions.Get(auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch auction %s: %w", auctionID, err)
	}
	if auc == nil {
		return nil, auction.ErrNotFound
	}

	if auc.SellerID != sellerID {
		log.Warn().
			Str("service", "closing").
			Str("auction_id", auctionID).
			Str("caller_id", sellerID).
			Msg("non-seller attempted manual award")
		return nil, ErrForbidden
	}

	if auc.Status != types.StatusOpen {
		return nil, auction.ErrAlreadyClosed
	}

	winnerBid, err := c.ledger.HighestBidBy(auctionID, winnerBidderID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bids for auction %s: %w", auctionID, err)
	}
	if winnerBid == nil {
		return nil, ErrNoSuchBid
	}

	return c.close(auc, winnerBidderID, paymentMethod, paymentDetails)
}

// RunExpirySweep finds all open auctions whose closing time is at or before
// now and closes each one independently; a failure on one auction never
// aborts the rest. It returns the IDs of the auctions this pass freshly
// closed.
func (c *Closer) RunExpirySweep(now time.Time) ([]string, error) {
	logger := log.With().Str("service", "closing").Logger()

	expired, err := c.auctions.ListExpired(now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired auctions: %w", err)
	}

	logger.Info().Int("expired_count", len(expired)).Msg("processing expired auctions")

	closed := make([]string, 0, len(expired))
	for i := range expired {
		auc := expired[i]

		if err := c.closeExpired(&auc); err != nil {
			if errors.Is(err, auction.ErrAlreadyClosed) {
				// Lost the race to a manual award; nothing left to do here.
				continue
			}
			logger.Error().
				Err(err).
				Str("auction_id", auc.AuctionID).
				Msg("failed to close expired auction, continuing sweep")
			continue
		}
		closed = append(closed, auc.AuctionID)
	}

	return closed, nil
}

func (c *Closer) closeExpired(auc *types.Auction) error {
	unlock := c.locks.Lock(auc.AuctionID)
	defer unlock()

	_, err := c.close(auc, "", "", "")
	return err
}

// close is the single close routine: transition the auction record, resolve
// the settlement, record the award, and fan out notifications. Callers hold
// the auction's lock. If the status transition loses to a concurrent closer,
// this invocation aborts without re-notifying.
func (c *Closer) close(auc *types.Auction, pinnedWinnerID, paymentMethod, paymentDetails string) (*Settlement, error) {
	logger := log.With().
		Str("service", "closing").
		Str("auction_id", auc.AuctionID).
		Logger()

	if err := c.auctions.MarkClosed(auc.AuctionID); err != nil {
		return nil, err
	}

	bids, err := c.ledger.BidsFor(auc.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read bid ledger for auction %s: %w", auc.AuctionID, err)
	}

	var settlement Settlement
	if pinnedWinnerID != "" {
		var ok bool
		settlement, ok = ResolveWithWinner(auc.AuctionID, bids, pinnedWinnerID)
		if !ok {
			// The pinned bidder was verified before the transition; the
			// ledger is append-only so this cannot happen.
			return nil, ErrNoSuchBid
		}
	} else {
		settlement = Resolve(auc.AuctionID, bids)
	}

	if settlement.HasWinner() {
		if err := c.auctions.RecordAward(auc.AuctionID, settlement.WinnerID, settlement.WinningAmount, paymentMethod, paymentDetails); err != nil {
			logger.Error().Err(err).Msg("failed to record award on closed auction")
		}
	}

	logger.Info().
		Str("winner_id", settlement.WinnerID).
		Str("winning_amount", settlement.WinningAmount.String()).
		Int("losing_bidders", len(settlement.LosingBidders)).
		Msg("auction closed")

	c.notifier.Deliver(c.settlementEvents(auc, settlement))

	return &settlement, nil
}

// settlementEvents builds the closing notification batch: winner first, then
// the seller, then each loser. A no-winner settlement produces no events;
// the auction still closes.
func (c *Closer) settlementEvents(auc *types.Auction, settlement Settlement) []notification.Event {
	if !settlement.HasWinner() {
		return nil
	}

	winnerName := c.displayName(settlement.WinnerID)
	amount := settlement.WinningAmount.String()

	events := []notification.Event{
		{
			RecipientID: settlement.WinnerID,
			Category:    types.CategoryAuctionWon,
			Subject:     "Auction won!",
			Message:     fmt.Sprintf("Congratulations! You won the auction for %s with a bid of $%s.", auc.Name, amount),
			AuctionID:   auc.AuctionID,
		},
		{
			RecipientID: auc.SellerID,
			Category:    types.CategoryProductSold,
			Subject:     "Product sold",
			Message:     fmt.Sprintf("Your auction %s has been sold for $%s to %s.", auc.Name, amount, winnerName),
			AuctionID:   auc.AuctionID,
		},
	}

	for _, loserID := range settlement.LosingBidders {
		events = append(events, notification.Event{
			RecipientID: loserID,
			Category:    types.CategoryAuctionLost,
			Subject:     "Auction finished",
			Message:     fmt.Sprintf("The auction for %s has finished. Unfortunately you were not the winner.", auc.Name),
			AuctionID:   auc.AuctionID,
		})
	}

	return events
}

func (c *Closer) displayName(userID string) string {
	user, err := c.users.GetUser(userID)
	if err != nil || user == nil {
		return userID
	}
	return user.DisplayName
}

// GinHandlers contains HTTP handlers for closing endpoints
type GinHandlers struct {
	closer *Closer
}

func NewGinHandlers(closer *Closer) *GinHandlers {
	return &GinHandlers{
		closer: closer,
	}
}

// AwardHandler handles POST requests for a seller-initiated award.
// The caller is the authenticated user and must be the auction's seller.
func (h *GinHandlers) AwardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID := c.GetString("userID")
		if sellerID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		auctionID := c.Param("auction_id")

		var request struct {
			WinnerID       string `json:"winner_id" binding:"required"`
			PaymentMethod  string `json:"payment_method"`
			PaymentDetails string `json:"payment_details"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		settlement, err := h.closer.AwardManually(auctionID, sellerID, request.WinnerID, request.PaymentMethod, request.PaymentDetails)
		if err != nil {
			switch {
			case errors.Is(err, auction.ErrNotFound):
				response.NotFound(c, "Auction not found")
			case errors.Is(err, ErrForbidden):
				response.Forbidden(c, err.Error())
			case errors.Is(err, auction.ErrAlreadyClosed):
				response.Fail(c, 409, response.ErrCodeAlreadyClosed, err.Error(), nil)
			case errors.Is(err, ErrNoSuchBid):
				response.Fail(c, 400, response.ErrCodeNoSuchBid, err.Error(), nil)
			default:
				response.Handle(c, nil, err)
			}
			return
		}

		response.Success(c, types.AwardResponse{
			AuctionID:     settlement.AuctionID,
			WinnerID:      settlement.WinnerID,
			WinningAmount: settlement.WinningAmount,
			LosingBidders: settlement.LosingBidders,
			Timestamp:     time.Now(),
		})
	}
}

// SweepHandler handles POST requests to run one expiry sweep immediately
func (h *GinHandlers) SweepHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		closed, err := h.closer.RunExpirySweep(h.closer.now())
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, types.SweepResponse{
			ClosedAuctionIDs: closed,
			Timestamp:        time.Now(),
		})
	}
}
