package users

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/auction-api/internal/types"
	"github.com/ksred/auction-api/pkg/response"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("user not found")

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateUser(user *types.User) error {
	return d.db.Create(user).Error
}

// GetUser retrieves a user by its ID, returning nil when no such user exists
func (d *Database) GetUser(userID string) (*types.User, error) {
	var user types.User
	if err := d.db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Service is the user directory consumed by the bidding and closing engine
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// Register creates a new directory entry with a generated user ID
func (s *Service) Register(displayName, email string) (*types.User, error) {
	user := &types.User{
		UserID:      "USR_" + uuid.New().String(),
		DisplayName: displayName,
		Email:       email,
		CreatedAt:   time.Now(),
	}

	if err := s.db.CreateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Get retrieves a user by ID
func (s *Service) Get(userID string) (*types.User, error) {
	user, err := s.db.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// GetDB exposes the directory's database wrapper to sibling services
func (s *Service) GetDB() *Database {
	return s.db
}

// GinHandlers contains HTTP handlers for user directory endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RegisterUserHandler handles POST requests to register a new user
func (h *GinHandlers) RegisterUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			DisplayName string `json:"display_name" binding:"required"`
			Email       string `json:"email" binding:"required,email"`
		}

		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		user, err := h.service.Register(request.DisplayName, request.Email)
		response.Handle(c, user, err)
	}
}

// GetUserHandler handles GET requests for a single directory entry
func (h *GinHandlers) GetUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")

		user, err := h.service.Get(userID)
		if err == ErrNotFound {
			response.NotFound(c, "User not found")
			return
		}
		response.Handle(c, user, err)
	}
}
