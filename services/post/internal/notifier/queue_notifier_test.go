package notifier

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"tshe-crm/pkg/logger"
	"tshe-crm/pkg/models"
	"tshe-crm/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishNotificationTask(ctx context.Context, task *queue.NotificationTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func TestQueueNotifier_Notify(t *testing.T) {
	publisher := new(MockPublisher)
	n := NewQueueNotifier(publisher, logger.NewWithWriter(io.Discard, io.Discard))
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	publisher.On("PublishNotificationTask", mock.Anything, mock.MatchedBy(func(task *queue.NotificationTask) bool {
		return task.UserID == "approver-1" &&
			task.Type == "APPROVAL_REQUEST" &&
			task.PostID == "post-1" &&
			task.Priority == 8 &&
			task.CreatedAt.Equal(fixed)
	})).Return(nil)

	err := n.Notify(context.Background(), "approver-1", models.NotificationApprovalRequest, "Approval requested", "msg", "post-1")
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestQueueNotifier_PublishError(t *testing.T) {
	publisher := new(MockPublisher)
	n := NewQueueNotifier(publisher, logger.NewWithWriter(io.Discard, io.Discard))
	publisher.On("PublishNotificationTask", mock.Anything, mock.Anything).Return(errors.New("channel closed"))

	err := n.Notify(context.Background(), "u", models.NotificationPostRejected, "t", "m", "p")
	assert.EqualError(t, err, "channel closed")
}

func TestQueueNotifier_NoPublisher(t *testing.T) {
	n := NewQueueNotifier(nil, logger.NewWithWriter(io.Discard, io.Discard))

	err := n.Notify(context.Background(), "u", models.NotificationPostApproved, "t", "m", "p")
	assert.ErrorIs(t, err, ErrQueueUnavailable)
}
