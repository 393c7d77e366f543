package auction

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/auction-api/internal/types"
	"github.com/ksred/auction-api/pkg/response"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidStartingPrice = errors.New("starting price must be positive")
	ErrClosesAtInPast       = errors.New("closing time must be in the future")
)

// CreateAuctionRequest is the validated input for a new listing. Request
// bodies are bound to this struct at the boundary; nothing loosely typed
// reaches the engine.
type CreateAuctionRequest struct {
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description" binding:"required"`
	Category      string          `json:"category" binding:"required"`
	ImageURL      string          `json:"image_url"`
	StartingPrice decimal.Decimal `json:"starting_price" binding:"required"`
	ClosesAt      *time.Time      `json:"closes_at"`
}

// Service handles auction listing operations
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateAuction creates a new open listing for the given seller. The closing
// time, once set here, is immutable; bidding never renegotiates it.
func (s *Service) CreateAuction(sellerID string, req CreateAuctionRequest) (*types.Auction, error) {
	if !req.StartingPrice.IsPositive() {
		return nil, ErrInvalidStartingPrice
	}
	if req.ClosesAt != nil && !req.ClosesAt.After(time.Now()) {
		return nil, ErrClosesAtInPast
	}

	auction := &types.Auction{
		AuctionID:     "AUC_" + uuid.New().String(),
		SellerID:      sellerID,
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		ImageURL:      req.ImageURL,
		StartingPrice: req.StartingPrice,
		Status:        types.StatusOpen,
		ClosesAt:      req.ClosesAt,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := s.db.CreateAuction(auction); err != nil {
		return nil, err
	}
	return auction, nil
}

// GetAuction retrieves a single auction by ID
func (s *Service) GetAuction(auctionID string) (*types.Auction, error) {
	auction, err := s.db.Get(auctionID)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, ErrNotFound
	}
	return auction, nil
}

// ListAuctions returns all listings, newest first
func (s *Service) ListAuctions() ([]types.Auction, error) {
	return s.db.ListAuctions()
}

// ListBySeller returns all listings owned by a seller, newest first
func (s *Service) ListBySeller(sellerID string) ([]types.Auction, error) {
	return s.db.ListBySeller(sellerID)
}

// GetDB exposes the auction database wrapper to sibling services
func (s *Service) GetDB() *Database {
	return s.db
}

// GinHandlers contains HTTP handlers for auction listing endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateAuctionHandler handles POST requests to create a new listing.
// The seller is the authenticated user.
func (h *GinHandlers) CreateAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID := c.GetString("userID")
		if sellerID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		var req CreateAuctionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		auction, err := h.service.CreateAuction(sellerID, req)
		if err == ErrInvalidStartingPrice || err == ErrClosesAtInPast {
			response.BadRequest(c, err.Error())
			return
		}
		response.Handle(c, auction, err)
	}
}

// GetAuctionHandler handles GET requests for a single auction
func (h *GinHandlers) GetAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")

		auction, err := h.service.GetAuction(auctionID)
		if err == ErrNotFound {
			response.NotFound(c, "Auction not found")
			return
		}
		response.Handle(c, auction, err)
	}
}

// ListAuctionsHandler handles GET requests for all listings
func (h *GinHandlers) ListAuctionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctions, err := h.service.ListAuctions()
		response.Handle(c, auctions, err)
	}
}

// ListBySellerHandler handles GET requests for a seller's listings
func (h *GinHandlers) ListBySellerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID := c.Param("seller_id")

		auctions, err := h.service.ListBySeller(sellerID)
		response.Handle(c, auctions, err)
	}
}
