package entity

import (
	"errors"
	"time"

	"tshe-crm/pkg/models"
)

var (
	ErrNotFound = errors.New("notification not found")

	// ErrInvalidTask marks queue tasks that can never be delivered.
	ErrInvalidTask = errors.New("invalid notification task")
)

// Notification is one persisted message for a user about a post workflow event.
type Notification struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"user_id"`
	Type      models.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	PostID    *string                 `json:"post_id,omitempty"`
	IsRead    bool                    `json:"is_read"`
	Data      map[string]interface{}  `json:"data,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// LiveChannel is the Redis pub/sub channel carrying a user's new notifications.
func LiveChannel(userID string) string {
	return "notifications:" + userID
}
