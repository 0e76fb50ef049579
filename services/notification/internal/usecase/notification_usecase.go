package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tshe-crm/pkg/logger"
	"tshe-crm/pkg/models"
	"tshe-crm/pkg/queue"
	"tshe-crm/pkg/tracing"
	"tshe-crm/services/notification/internal/entity"
	"tshe-crm/services/notification/internal/repo/persistent"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrQueueUnavailable = errors.New("notification queue is not available")
	ErrInvalidInput     = errors.New("invalid input")
)

// LivePublisher fans new notifications out to connected clients. *redis.Client satisfies it.
type LivePublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// QueueInspector reports the backlog of undelivered tasks. *queue.Client satisfies it.
type QueueInspector interface {
	GetQueueLength() (int, error)
}

type ListNotificationsInput struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

type NotificationUseCase interface {
	HandleNotificationTask(ctx context.Context, task *queue.NotificationTask) error
	ListNotifications(ctx context.Context, userID string, input ListNotificationsInput) ([]*entity.Notification, int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id, userID string) (*entity.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, id, userID string) error
	QueueLength() (int, error)
}

type notificationUseCase struct {
	notificationRepo persistent.NotificationRepository
	live             LivePublisher
	queue            QueueInspector
	logger           *logger.Logger
}

// NewNotificationUseCase builds the use case. live and inspector may be nil.
func NewNotificationUseCase(notificationRepo persistent.NotificationRepository, live LivePublisher, inspector QueueInspector, logger *logger.Logger) NotificationUseCase {
	return &notificationUseCase{
		notificationRepo: notificationRepo,
		live:             live,
		queue:            inspector,
		logger:           logger,
	}
}

// HandleNotificationTask stores a task from the post service and pushes it to the live stream.
// Tasks that can never be stored fail with entity.ErrInvalidTask.
func (uc *notificationUseCase) HandleNotificationTask(ctx context.Context, task *queue.NotificationTask) (err error) {
	ctx, span := tracing.StartSpan(ctx, "notification.deliver",
		attribute.String("user.id", task.UserID), attribute.String("notification.type", task.Type))
	defer func() { tracing.EndSpan(span, err) }()

	notification, err := notificationFromTask(task)
	if err != nil {
		uc.logger.Warn("[NOTIFICATION HANDLER] Dropping task for user %s: %v", task.UserID, err)
		return err
	}

	exists, err := uc.notificationRepo.UserExists(ctx, notification.UserID)
	if err != nil {
		return err
	}
	if !exists {
		uc.logger.Warn("[NOTIFICATION HANDLER] Dropping %s task: unknown recipient %s", task.Type, task.UserID)
		return fmt.Errorf("%w: unknown recipient %s", entity.ErrInvalidTask, task.UserID)
	}

	if err := uc.notificationRepo.Create(ctx, notification); err != nil {
		return err
	}
	uc.logger.Info("[NOTIFICATION HANDLER] Stored %s notification %s for user %s", notification.Type, notification.ID, notification.UserID)

	uc.publishLive(ctx, notification)
	return nil
}

func notificationFromTask(task *queue.NotificationTask) (*entity.Notification, error) {
	if _, err := uuid.Parse(task.UserID); err != nil {
		return nil, fmt.Errorf("%w: invalid user id %q", entity.ErrInvalidTask, task.UserID)
	}
	notificationType := models.NotificationType(task.Type)
	if !notificationType.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", entity.ErrInvalidTask, task.Type)
	}
	title := strings.TrimSpace(task.Title)
	message := strings.TrimSpace(task.Message)
	if title == "" || message == "" {
		return nil, fmt.Errorf("%w: title and message are required", entity.ErrInvalidTask)
	}

	n := &entity.Notification{
		UserID:  task.UserID,
		Type:    notificationType,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"priority": task.Priority,
		},
	}
	if task.PostID != "" {
		if _, err := uuid.Parse(task.PostID); err != nil {
			return nil, fmt.Errorf("%w: invalid post id %q", entity.ErrInvalidTask, task.PostID)
		}
		postID := task.PostID
		n.PostID = &postID
	}
	if !task.CreatedAt.IsZero() {
		n.Data["queued_at"] = task.CreatedAt.UTC()
	}
	return n, nil
}

// publishLive is best effort; the stored row is the source of truth.
func (uc *notificationUseCase) publishLive(ctx context.Context, n *entity.Notification) {
	if uc.live == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		uc.logger.Warn("Failed to encode notification %s for live stream: %v", n.ID, err)
		return
	}
	receivers, err := uc.live.Publish(ctx, entity.LiveChannel(n.UserID), payload).Result()
	if err != nil {
		uc.logger.Warn("Failed to publish notification %s: %v", n.ID, err)
		return
	}
	uc.logger.Info("[NOTIFICATION HANDLER] Published notification %s to %d live subscriber(s)", n.ID, receivers)
}

func (uc *notificationUseCase) ListNotifications(ctx context.Context, userID string, input ListNotificationsInput) ([]*entity.Notification, int64, error) {
	if input.Limit < 0 || input.Offset < 0 {
		return nil, 0, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidInput)
	}
	return uc.notificationRepo.ListByUser(ctx, userID, persistent.ListFilter{
		UnreadOnly: input.UnreadOnly,
		Limit:      input.Limit,
		Offset:     input.Offset,
	})
}

func (uc *notificationUseCase) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return uc.notificationRepo.CountUnread(ctx, userID)
}

func (uc *notificationUseCase) MarkRead(ctx context.Context, id, userID string) (*entity.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, entity.ErrNotFound
	}
	return uc.notificationRepo.MarkRead(ctx, id, userID)
}

func (uc *notificationUseCase) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := uc.notificationRepo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	uc.logger.Info("Marked %d notification(s) read for user %s", updated, userID)
	return updated, nil
}

func (uc *notificationUseCase) DeleteNotification(ctx context.Context, id, userID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return entity.ErrNotFound
	}
	return uc.notificationRepo.Delete(ctx, id, userID)
}

func (uc *notificationUseCase) QueueLength() (int, error) {
	if uc.queue == nil {
		return 0, ErrQueueUnavailable
	}
	return uc.queue.GetQueueLength()
}
