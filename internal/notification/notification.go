package notification

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/auction-api/internal/email"
	"github.com/ksred/auction-api/internal/types"
	"github.com/ksred/auction-api/internal/users"
	"github.com/ksred/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Event is one (recipient, category) notification to deliver. The bidding
// service and the auction closer build event lists and hand them to the
// fan-out as a separate step, so settlement logic is testable without a real
// email transport.
type Event struct {
	RecipientID string
	Category    string
	Subject     string
	Message     string
	AuctionID   string
}

// Service persists notification records and attempts best-effort email
// delivery for each one
type Service struct {
	db     *Database
	users  *users.Database
	sender email.Sender
}

func NewService(gormDB *gorm.DB, sender email.Sender) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		users:  users.NewDatabase(gormDB),
		sender: sender,
	}
}

// Notify creates one notification record and attempts one email delivery.
// The error return covers only the record creation; email failures are
// logged and swallowed so they never roll back the record or abort sibling
// notifications.
func (s *Service) Notify(ev Event) error {
	logger := log.With().
		Str("service", "notification").
		Str("recipient_id", ev.RecipientID).
		Str("category", ev.Category).
		Logger()

	record := &types.Notification{
		NotificationID: "NTF_" + uuid.New().String(),
		RecipientID:    ev.RecipientID,
		Category:       ev.Category,
		Message:        ev.Message,
		AuctionID:      ev.AuctionID,
		CreatedAt:      time.Now(),
	}

	if err := s.db.CreateNotification(record); err != nil {
		logger.Error().Err(err).Msg("failed to create notification record")
		return err
	}

	recipient, err := s.users.GetUser(ev.RecipientID)
	if err != nil || recipient == nil {
		logger.Warn().Err(err).Msg("recipient not found in user directory, skipping email")
		return nil
	}

	htmlBody := fmt.Sprintf("<h2>%s</h2><p>Dear %s,</p><p>%s</p>", ev.Subject, recipient.DisplayName, ev.Message)
	if err := s.sender.Send(recipient.Email, ev.Subject, ev.Message, htmlBody); err != nil {
		logger.Error().Err(err).Str("email", recipient.Email).Msg("failed to send notification email")
	}

	return nil
}

// Deliver fans out a batch of events, processing each independently so one
// failure does not block the rest
func (s *Service) Deliver(events []Event) {
	for _, ev := range events {
		if err := s.Notify(ev); err != nil {
			log.Error().
				Err(err).
				Str("service", "notification").
				Str("recipient_id", ev.RecipientID).
				Str("category", ev.Category).
				Msg("notification delivery failed, continuing with remaining events")
		}
	}
}

// ListForRecipient returns all notifications addressed to a recipient
func (s *Service) ListForRecipient(recipientID string) ([]types.Notification, error) {
	return s.db.ListForRecipient(recipientID)
}

// MarkRead marks a recipient's notification as read
func (s *Service) MarkRead(notificationID, recipientID string) error {
	return s.db.MarkRead(notificationID, recipientID)
}

// GinHandlers contains HTTP handlers for notification endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ListNotificationsHandler handles GET requests for the authenticated user's
// notifications
func (h *GinHandlers) ListNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		notifications, err := h.service.ListForRecipient(userID)
		response.Handle(c, notifications, err)
	}
}

// MarkReadHandler handles POST requests to mark one notification as read
func (h *GinHandlers) MarkReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		notificationID := c.Param("notification_id")

		if err := h.service.MarkRead(notificationID, userID); err != nil {
			if err == ErrNotFound {
				response.NotFound(c, "Notification not found")
				return
			}
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"message": "notification marked as read"})
	}
}
