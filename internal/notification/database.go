package notification

import (
	"errors"

	"github.com/ksred/auction-api/internal/types"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("notification not found")

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateNotification(n *types.Notification) error {
	return d.db.Create(n).Error
}

// ListForRecipient returns a recipient's notifications, newest first
func (d *Database) ListForRecipient(recipientID string) ([]types.Notification, error) {
	var notifications []types.Notification
	if err := d.db.Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead flips the read flag on a notification owned by the given
// recipient. Recipients cannot mark each other's notifications.
func (d *Database) MarkRead(notificationID, recipientID string) error {
	result := d.db.Model(&types.Notification{}).
		Where("notification_id = ? AND recipient_id = ?", notificationID, recipientID).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
