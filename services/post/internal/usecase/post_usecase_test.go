package usecase

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"tshe-crm/pkg/logger"
	"tshe-crm/pkg/models"
	"tshe-crm/services/post/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	creatorID = "0b0d6c4e-5f29-4a8e-9d55-1a2b3c4d5e01"
	approverA = "0b0d6c4e-5f29-4a8e-9d55-1a2b3c4d5e0a"
	approverB = "0b0d6c4e-5f29-4a8e-9d55-1a2b3c4d5e0b"
	approverC = "0b0d6c4e-5f29-4a8e-9d55-1a2b3c4d5e0c"
	adminID   = "0b0d6c4e-5f29-4a8e-9d55-1a2b3c4d5eaa"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID string, notificationType models.NotificationType, title, message, postID string) error {
	args := m.Called(ctx, userID, notificationType, title, message, postID)
	return args.Error(0)
}

func (m *MockNotifier) expect(userID string, notificationType models.NotificationType) *mock.Call {
	return m.On("Notify", mock.Anything, userID, notificationType, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
}

type testEnv struct {
	uc       *postUseCase
	repo     *fakePostRepository
	notifier *MockNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := newFakePostRepository()
	repo.users[creatorID] = "Dana"
	repo.users[approverA] = "Alice"
	repo.users[approverB] = "Bob"
	repo.users[approverC] = "Carol"

	notifier := new(MockNotifier)
	uc := NewPostUseCase(repo, notifier, nil, nil, logger.NewWithWriter(io.Discard, io.Discard)).(*postUseCase)
	uc.now = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }

	return &testEnv{uc: uc, repo: repo, notifier: notifier}
}

func validInput(approvers ...string) CreatePostInput {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(14 * 24 * time.Hour)
	return CreatePostInput{
		Caption:     "Spring open day",
		StartDate:   &start,
		EndDate:     &end,
		ApproverIDs: approvers,
	}
}

func (e *testEnv) createPost(t *testing.T, approvers ...string) *entity.Post {
	t.Helper()
	e.notifier.expect(approvers[0], models.NotificationApprovalRequest)
	post, err := e.uc.CreatePost(context.Background(), creatorID, validInput(approvers...), nil)
	require.NoError(t, err)
	return post
}

func assertKind(t *testing.T, err error, kind entity.ErrorKind, msg string) {
	t.Helper()
	var domainErr *entity.Error
	require.True(t, errors.As(err, &domainErr), "expected workflow error, got %v", err)
	assert.Equal(t, kind, domainErr.Kind)
	assert.Equal(t, msg, domainErr.Message)
}

func approvalStatuses(p *entity.Post) []entity.ApprovalStatus {
	out := make([]entity.ApprovalStatus, len(p.Approvals))
	for i, a := range p.Approvals {
		out[i] = a.Status
	}
	return out
}

func TestCreatePost_ThreeApprovers(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.On("Notify", mock.Anything, approverA, models.NotificationApprovalRequest,
		"Approval requested", `Dana requested your approval for post "Spring open day"`, mock.Anything).Return(nil).Once()

	post, err := env.uc.CreatePost(context.Background(), creatorID, validInput(approverA, approverB, approverC), nil)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusPendingApproval, post.Status)
	require.Len(t, post.Approvals, 3)
	for i, id := range []string{approverA, approverB, approverC} {
		assert.Equal(t, id, post.Approvals[i].ApproverID)
		assert.Equal(t, i+1, post.Approvals[i].Order)
		assert.Equal(t, entity.ApprovalPending, post.Approvals[i].Status)
	}
	env.notifier.AssertExpectations(t)
	env.notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestCreatePost_ValidationOrder(t *testing.T) {
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	before := start.Add(-24 * time.Hour)
	negative := -10.0
	badID := "not-a-uuid"

	tests := []struct {
		name   string
		mutate func(in *CreatePostInput)
		msg    string
	}{
		{"missing caption wins over missing approvers", func(in *CreatePostInput) { in.Caption = "  "; in.ApproverIDs = nil }, entity.MsgRequiredFields},
		{"missing start date", func(in *CreatePostInput) { in.StartDate = nil }, entity.MsgRequiredFields},
		{"missing end date", func(in *CreatePostInput) { in.EndDate = nil }, entity.MsgRequiredFields},
		{"nil approvers", func(in *CreatePostInput) { in.ApproverIDs = nil }, entity.MsgApproverRequired},
		{"empty approvers wins over bad range", func(in *CreatePostInput) { in.ApproverIDs = []string{}; in.StartDate = &start; in.EndDate = &before }, entity.MsgApproverRequired},
		{"end before start", func(in *CreatePostInput) { in.StartDate = &start; in.EndDate = &before }, entity.MsgEndBeforeStart},
		{"negative budget", func(in *CreatePostInput) { in.Budget = &negative }, entity.MsgNegativeBudget},
		{"duplicate approver", func(in *CreatePostInput) { in.ApproverIDs = []string{approverA, approverA} }, entity.MsgDuplicateApprover},
		{"malformed approver", func(in *CreatePostInput) { in.ApproverIDs = []string{badID} }, "invalid approver id"},
		{"malformed campaign", func(in *CreatePostInput) { in.CampaignID = &badID }, "invalid campaign_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			in := validInput(approverA, approverB)
			tt.mutate(&in)

			_, err := env.uc.CreatePost(context.Background(), creatorID, in, nil)
			assertKind(t, err, entity.KindValidation, tt.msg)
			assert.Empty(t, env.repo.posts)
			env.notifier.AssertNumberOfCalls(t, "Notify", 0)
		})
	}
}

func TestCreatePost_SameDayRangeAllowed(t *testing.T) {
	env := newTestEnv(t)
	in := validInput(approverA)
	in.EndDate = in.StartDate
	env.notifier.expect(approverA, models.NotificationApprovalRequest)

	_, err := env.uc.CreatePost(context.Background(), creatorID, in, nil)
	assert.NoError(t, err)
}

func TestCreatePost_NotificationFailureIsSwallowed(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.On("Notify", mock.Anything, approverA, models.NotificationApprovalRequest, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("broker down")).Once()

	post, err := env.uc.CreatePost(context.Background(), creatorID, validInput(approverA), nil)
	require.NoError(t, err)
	assert.Contains(t, env.repo.posts, post.ID)
}

func TestCreatePost_NotificationPanicIsRecovered(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.On("Notify", mock.Anything, approverA, models.NotificationApprovalRequest, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("nil channel") }).Return(nil).Once()

	var post *entity.Post
	var err error
	assert.NotPanics(t, func() {
		post, err = env.uc.CreatePost(context.Background(), creatorID, validInput(approverA), nil)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, post.ID)
}

func TestCreatePost_RepositoryError(t *testing.T) {
	env := newTestEnv(t)
	env.repo.createErr = errors.New("connection reset")

	_, err := env.uc.CreatePost(context.Background(), creatorID, validInput(approverA), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create post")
	assert.Equal(t, entity.ErrorKind(""), entity.KindOf(err))
}

func TestApprovePost_FirstOfThree(t *testing.T) {
	env := newTestEnv(t)
	post := env.createPost(t, approverA, approverB, approverC)

	env.notifier.On("Notify", mock.Anything, creatorID, models.NotificationApprovalProgress,
		"Approval progress", `Alice approved your post "Spring open day" (1 of 3)`, post.ID).Return(nil).Once()
	env.notifier.expect(approverB, models.NotificationApprovalRequest)

	updated, err := env.uc.ApprovePost(context.Background(), post.ID, approverA, nil)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusPendingApproval, updated.Status)
	assert.Equal(t, []entity.ApprovalStatus{entity.ApprovalApproved, entity.ApprovalPending, entity.ApprovalPending}, approvalStatuses(updated))
	assert.Nil(t, updated.Approvals[0].Comment)
	require.NotNil(t, updated.Approvals[0].DecidedAt)

	stored := env.repo.posts[post.ID]
	assert.Equal(t, entity.StatusPendingApproval, stored.Status)
	assert.Equal(t, approverB, stored.CurrentApproval().ApproverID)
	env.notifier.AssertExpectations(t)
}

func TestApprovePost_AllInOrder(t *testing.T) {
	env := newTestEnv(t)
	post := env.createPost(t, approverA, approverB, approverC)
	ctx := context.Background()

	env.notifier.expect(creatorID, models.NotificationApprovalProgress).Twice()
	env.notifier.expect(approverB, models.NotificationApprovalRequest)
	env.notifier.expect(approverC, models.NotificationApprovalRequest)
	env.notifier.On("Notify", mock.Anything, creatorID, models.NotificationPostApproved,
		"Post approved", `Your post "Spring open day" was fully approved`, post.ID).Return(nil).Once()

	comment := "  looks good  "
	_, err := env.uc.ApprovePost(ctx, post.ID, approverA, &comment)
	require.NoError(t, err)
	_, err = env.uc.ApprovePost(ctx, post.ID, approverB, nil)
	require.NoError(t, err)
	updated, err := env.uc.ApprovePost(ctx, post.ID, approverC, nil)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusApproved, updated.Status)
	assert.Equal(t, entity.StatusApproved, env.repo.posts[post.ID].Status)
	assert.Equal(t, "looks good", *env.repo.posts[post.ID].Approvals[0].Comment)
	env.notifier.AssertExpectations(t)
}

func TestApprovePost_SingleApproverApprovesPost(t *testing.T) {
	env := newTestEnv(t)
	post := env.createPost(t, approverA)
	env.notifier.expect(creatorID, models.NotificationPostApproved)

	updated, err := env.uc.ApprovePost(context.Background(), post.ID, approverA, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, updated.Status)
	env.notifier.AssertExpectations(t)
}

func TestApprovePost_Preconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("missing post", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.uc.ApprovePost(ctx, "00000000-0000-0000-0000-000000000000", approverA, nil)
		assertKind(t, err, entity.KindNotFound, entity.MsgPostNotFound)
	})

	t.Run("not an approver", func(t *testing.T) {
		env := newTestEnv(t)
		post := env.createPost(t, approverA)
		_, err := env.uc.ApprovePost(ctx, post.ID, creatorID, nil)
		assertKind(t, err, entity.KindForbidden, entity.MsgNotApprover)
	})

	t.Run("not your turn", func(t *testing.T) {
		env := newTestEnv(t)
		post := env.createPost(t, approverA, approverB, approverC)
		writes := env.repo.writes

		_, err := env.uc.ApprovePost(ctx, post.ID, approverC, nil)
		assertKind(t, err, entity.KindConflict, entity.MsgNotYourTurn)
		assert.Equal(t, writes, env.repo.writes)
		assert.Equal(t, []entity.ApprovalStatus{entity.ApprovalPending, entity.ApprovalPending, entity.ApprovalPending}, approvalStatuses(env.repo.posts[post.ID]))
	})

	t.Run("already processed", func(t *testing.T) {
		env := newTestEnv(t)
		post := env.createPost(t, approverA, approverB)
		env.notifier.expect(creatorID, models.NotificationApprovalProgress)
		env.notifier.expect(approverB, models.NotificationApprovalRequest)

		_, err := env.uc.ApprovePost(ctx, post.ID, approverA, nil)
		require.NoError(t, err)
		_, err = env.uc.ApprovePost(ctx, post.ID, approverA, nil)
		assertKind(t, err, entity.KindConflict, entity.MsgAlreadyProcessed)
	})

	t.Run("post already rejected", func(t *testing.T) {
		env := newTestEnv(t)
		post := env.createPost(t, approverA, approverB, approverC)
		env.notifier.expect(creatorID, models.NotificationApprovalProgress)
		env.notifier.expect(approverB, models.NotificationApprovalRequest)
		env.notifier.expect(creatorID, models.NotificationPostRejected)

		_, err := env.uc.ApprovePost(ctx, post.ID, approverA, nil)
		require.NoError(t, err)
		_, err = env.uc.RejectPost(ctx, post.ID, approverB, "bad image")
		require.NoError(t, err)

		_, err = env.uc.ApprovePost(ctx, post.ID, approverC, nil)
		assertKind(t, err, entity.KindConflict, entity.MsgPostNotPending)
	})
}

func TestApprovePost_RollsBackWhenPostUpdateFails(t *testing.T) {
	env := newTestEnv(t)
	post := env.createPost(t, approverA)
	env.repo.setErr = errors.New("deadlock detected")

	_, err := env.uc.ApprovePost(context.Background(), post.ID, approverA, nil)
	require.Error(t, err)

	stored := env.repo.posts[post.ID]
	assert.Equal(t, entity.ApprovalPending, stored.Approvals[0].Status)
	assert.Equal(t, entity.StatusPendingApproval, stored.Status)
	env.notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestRejectPost_AfterFirstApproval(t *testing.T) {
	env := newTestEnv(t)
	post := env.createPost(t, approverA, approverB, approverC)
	ctx := context.Background()
	env.notifier.expect(creatorID, models.NotificationApprovalProgress)
	env.notifier.expect(approverB, models.NotificationApprovalRequest)
	env.notifier.On("Notify", mock.Anything, creatorID, models.NotificationPostRejected,
		"Post rejected", `Bob rejected your post "Spring open day": bad image`, post.ID).Return(nil).Once()

	_, err := env.uc.ApprovePost(ctx, post.ID, approverA, nil)
	require.NoError(t, err)

	updated, err := env.uc.RejectPost(ctx, post.ID, approverB, "bad image")
	require.NoError(t, err)

	assert.Equal(t, entity.StatusRejected, updated.Status)
	assert.Equal(t, []entity.ApprovalStatus{entity.ApprovalApproved, entity.ApprovalRejected, entity.ApprovalPending}, approvalStatuses(env.repo.posts[post.ID]))
	assert.Equal(t, "bad image", *env.repo.posts[post.ID].Approvals[1].Comment)
	env.notifier.AssertExpectations(t)
}

func TestRejectPost_FirstApproverEndsWorkflow(t *testing.T) {
	env := newTestEnv(t)
	post := env.createPost(t, approverA, approverB)
	env.notifier.expect(creatorID, models.NotificationPostRejected)

	updated, err := env.uc.RejectPost(context.Background(), post.ID, approverA, "off brand")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, updated.Status)

	pending, err := env.uc.ListPendingApprovals(context.Background(), approverB)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRejectPost_BlankCommentBeforeAnyRead(t *testing.T) {
	env := newTestEnv(t)
	post := env.createPost(t, approverA)
	writes := env.repo.writes

	for _, comment := range []string{"", "   ", "\n\t"} {
		_, err := env.uc.RejectPost(context.Background(), post.ID, approverA, comment)
		assertKind(t, err, entity.KindValidation, entity.MsgCommentRequired)
	}

	_, err := env.uc.RejectPost(context.Background(), "missing", approverA, "")
	assertKind(t, err, entity.KindValidation, entity.MsgCommentRequired)
	assert.Equal(t, writes, env.repo.writes)
}

func TestRejectPost_NotYourTurn(t *testing.T) {
	env := newTestEnv(t)
	post := env.createPost(t, approverA, approverB)

	_, err := env.uc.RejectPost(context.Background(), post.ID, approverB, "no")
	assertKind(t, err, entity.KindConflict, entity.MsgNotYourTurn)
	assert.Equal(t, entity.StatusPendingApproval, env.repo.posts[post.ID].Status)
}

func TestListPendingApprovals_OnlyCurrentTurn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.createPost(t, approverA, approverB)
	second := env.createPost(t, approverB, approverA)
	third := env.createPost(t, approverB)

	pendingB, err := env.uc.ListPendingApprovals(ctx, approverB)
	require.NoError(t, err)
	require.Len(t, pendingB, 2)
	assert.Equal(t, third.ID, pendingB[0].ID)
	assert.Equal(t, second.ID, pendingB[1].ID)

	env.notifier.expect(creatorID, models.NotificationApprovalProgress)
	env.notifier.expect(approverB, models.NotificationApprovalRequest)
	_, err = env.uc.ApprovePost(ctx, first.ID, approverA, nil)
	require.NoError(t, err)

	pendingB, err = env.uc.ListPendingApprovals(ctx, approverB)
	require.NoError(t, err)
	assert.Len(t, pendingB, 3)

	pendingA, err := env.uc.ListPendingApprovals(ctx, approverA)
	require.NoError(t, err)
	assert.Empty(t, pendingA)

	for _, p := range pendingB {
		a := p.ApprovalFor(approverB)
		require.NotNil(t, a)
		assert.True(t, entity.IsCurrentTurn(*a, p.Approvals))
	}
}

func TestUpdatePost_Guards(t *testing.T) {
	ctx := context.Background()
	caption := "Updated caption"

	t.Run("creator edits pending post", func(t *testing.T) {
		env := newTestEnv(t)
		post := env.createPost(t, approverA)

		updated, err := env.uc.UpdatePost(ctx, post.ID, creatorID, UpdatePostInput{Caption: &caption})
		require.NoError(t, err)
		assert.Equal(t, caption, updated.Caption)
		assert.Equal(t, caption, env.repo.posts[post.ID].Caption)
		assert.Len(t, env.repo.posts[post.ID].Approvals, 1)
	})

	t.Run("other user forbidden", func(t *testing.T) {
		env := newTestEnv(t)
		post := env.createPost(t, approverA)

		_, err := env.uc.UpdatePost(ctx, post.ID, approverA, UpdatePostInput{Caption: &caption})
		assertKind(t, err, entity.KindForbidden, entity.MsgNotCreator)
	})

	t.Run("rejected post is still editable", func(t *testing.T) {
		env := newTestEnv(t)
		post := env.createPost(t, approverA)
		env.notifier.expect(creatorID, models.NotificationPostRejected)
		_, err := env.uc.RejectPost(ctx, post.ID, approverA, "typo")
		require.NoError(t, err)

		_, err = env.uc.UpdatePost(ctx, post.ID, creatorID, UpdatePostInput{Caption: &caption})
		assert.NoError(t, err)
		assert.Equal(t, entity.StatusRejected, env.repo.posts[post.ID].Status)
	})

	t.Run("approved post is frozen", func(t *testing.T) {
		env := newTestEnv(t)
		post := env.createPost(t, approverA)
		env.notifier.expect(creatorID, models.NotificationPostApproved)
		_, err := env.uc.ApprovePost(ctx, post.ID, approverA, nil)
		require.NoError(t, err)

		_, err = env.uc.UpdatePost(ctx, post.ID, creatorID, UpdatePostInput{Caption: &caption})
		assertKind(t, err, entity.KindConflict, entity.MsgPostFinalized)
	})

	t.Run("date range rechecked", func(t *testing.T) {
		env := newTestEnv(t)
		post := env.createPost(t, approverA)
		end := post.StartDate.Add(-time.Hour)

		_, err := env.uc.UpdatePost(ctx, post.ID, creatorID, UpdatePostInput{EndDate: &end})
		assertKind(t, err, entity.KindValidation, entity.MsgEndBeforeStart)
	})
}

func TestDeleteAndPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("admin deletes another user's post", func(t *testing.T) {
		env := newTestEnv(t)
		post := env.createPost(t, approverA)

		err := env.uc.DeletePost(ctx, post.ID, adminID, models.RoleAdmin)
		require.NoError(t, err)
		assert.NotContains(t, env.repo.posts, post.ID)
	})

	t.Run("non-creator staff cannot delete", func(t *testing.T) {
		env := newTestEnv(t)
		post := env.createPost(t, approverA)

		err := env.uc.DeletePost(ctx, post.ID, approverA, models.RoleManager)
		assertKind(t, err, entity.KindForbidden, entity.MsgDeleteForbidden)
	})

	t.Run("publish requires approval", func(t *testing.T) {
		env := newTestEnv(t)
		post := env.createPost(t, approverA)

		_, err := env.uc.PublishPost(ctx, post.ID, creatorID, models.RoleStaff)
		assertKind(t, err, entity.KindConflict, entity.MsgPostNotApproved)
	})

	t.Run("published post cannot be deleted or edited", func(t *testing.T) {
		env := newTestEnv(t)
		post := env.createPost(t, approverA)
		env.notifier.expect(creatorID, models.NotificationPostApproved)
		_, err := env.uc.ApprovePost(ctx, post.ID, approverA, nil)
		require.NoError(t, err)

		_, err = env.uc.PublishPost(ctx, post.ID, approverA, models.RoleManager)
		assertKind(t, err, entity.KindForbidden, entity.MsgPublishForbidden)

		published, err := env.uc.PublishPost(ctx, post.ID, creatorID, models.RoleStaff)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPublished, published.Status)

		err = env.uc.DeletePost(ctx, post.ID, adminID, models.RoleAdmin)
		assertKind(t, err, entity.KindConflict, entity.MsgPostPublished)

		caption := "late change"
		_, err = env.uc.UpdatePost(ctx, post.ID, creatorID, UpdatePostInput{Caption: &caption})
		assertKind(t, err, entity.KindConflict, entity.MsgPostFinalized)
	})
}

func TestListPosts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createPost(t, approverA)
	rejected := env.createPost(t, approverA)
	env.notifier.expect(creatorID, models.NotificationPostRejected)
	_, err := env.uc.RejectPost(ctx, rejected.ID, approverA, "no")
	require.NoError(t, err)

	posts, err := env.uc.ListPosts(ctx, ListPostsInput{Status: "rejected"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, rejected.ID, posts[0].ID)

	_, err = env.uc.ListPosts(ctx, ListPostsInput{Status: "DRAFT"})
	assertKind(t, err, entity.KindValidation, entity.MsgInvalidStatus)

	_, err = env.uc.ListPosts(ctx, ListPostsInput{Limit: -1})
	assert.True(t, errors.Is(err, entity.ErrValidation))
}

func TestGetPost(t *testing.T) {
	env := newTestEnv(t)
	post := env.createPost(t, approverA, approverB)

	got, err := env.uc.GetPost(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, approverA, got.CurrentApproval().ApproverID)

	_, err = env.uc.GetPost(context.Background(), "missing")
	assert.True(t, errors.Is(err, entity.ErrNotFound))
}
