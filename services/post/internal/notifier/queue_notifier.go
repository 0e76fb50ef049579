package notifier

import (
	"context"
	"errors"
	"time"

	"tshe-crm/pkg/logger"
	"tshe-crm/pkg/models"
	"tshe-crm/pkg/queue"
)

var ErrQueueUnavailable = errors.New("notification queue unavailable")

// TaskPublisher is the part of the RabbitMQ client the notifier needs.
type TaskPublisher interface {
	PublishNotificationTask(ctx context.Context, task *queue.NotificationTask) error
}

// QueueNotifier hands workflow notifications to the notification service over RabbitMQ.
type QueueNotifier struct {
	publisher TaskPublisher
	logger    *logger.Logger
	now       func() time.Time
}

func NewQueueNotifier(publisher TaskPublisher, logger *logger.Logger) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, logger: logger, now: time.Now}
}

func (n *QueueNotifier) Notify(ctx context.Context, userID string, notificationType models.NotificationType, title, message, postID string) error {
	if n.publisher == nil {
		return ErrQueueUnavailable
	}

	task := &queue.NotificationTask{
		UserID:    userID,
		Type:      string(notificationType),
		Title:     title,
		Message:   message,
		PostID:    postID,
		Priority:  notificationType.Priority(),
		CreatedAt: n.now().UTC(),
	}

	n.logger.Info("[NOTIFICATION QUEUE] Publishing %s for user_id=%s, post_id=%s", notificationType, userID, postID)
	return n.publisher.PublishNotificationTask(ctx, task)
}
