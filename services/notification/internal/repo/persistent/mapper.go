package persistent

import (
	"encoding/json"
	"fmt"

	"tshe-crm/pkg/models"
	"tshe-crm/services/notification/internal/entity"
	"tshe-crm/services/notification/internal/model"

	"gorm.io/datatypes"
)

func ToNotificationEntity(m *model.NotificationModel) (*entity.Notification, error) {
	if m == nil {
		return nil, nil
	}

	n := &entity.Notification{
		ID:        m.ID,
		UserID:    m.UserID,
		Type:      models.NotificationType(m.Type),
		Title:     m.Title,
		Message:   m.Message,
		PostID:    m.PostID,
		IsRead:    m.IsRead,
		CreatedAt: m.CreatedAt,
	}
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, &n.Data); err != nil {
			return nil, fmt.Errorf("failed to decode notification data: %w", err)
		}
	}
	return n, nil
}

func ToNotificationEntities(ms []model.NotificationModel) ([]*entity.Notification, error) {
	out := make([]*entity.Notification, 0, len(ms))
	for i := range ms {
		n, err := ToNotificationEntity(&ms[i])
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func ToNotificationModel(n *entity.Notification) (*model.NotificationModel, error) {
	m := &model.NotificationModel{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		PostID:    n.PostID,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
	if len(n.Data) > 0 {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode notification data: %w", err)
		}
		m.Data = datatypes.JSON(raw)
	}
	return m, nil
}
