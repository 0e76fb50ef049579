package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationModel struct {
	ID        string         `gorm:"column:id;type:uuid;primaryKey"`
	UserID    string         `gorm:"column:user_id;type:uuid;not null;index"`
	Type      string         `gorm:"column:type;type:varchar(50);not null"`
	Title     string         `gorm:"column:title;type:varchar(255);not null"`
	Message   string         `gorm:"column:message;type:text;not null"`
	PostID    *string        `gorm:"column:post_id;type:uuid"`
	IsRead    bool           `gorm:"column:is_read;not null;default:false"`
	Data      datatypes.JSON `gorm:"column:data;type:jsonb"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (NotificationModel) TableName() string {
	return "notifications"
}

func (m *NotificationModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
