package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostStatus_CanTransitionTo(t *testing.T) {
	allowed := map[[2]PostStatus]bool{
		{StatusPendingApproval, StatusApproved}: true,
		{StatusPendingApproval, StatusRejected}: true,
		{StatusApproved, StatusPublished}:       true,
	}
	all := []PostStatus{StatusPendingApproval, StatusApproved, StatusRejected, StatusPublished}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]PostStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestApprovalStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, ApprovalPending.CanTransitionTo(ApprovalApproved))
	assert.True(t, ApprovalPending.CanTransitionTo(ApprovalRejected))
	assert.False(t, ApprovalApproved.CanTransitionTo(ApprovalPending))
	assert.False(t, ApprovalRejected.CanTransitionTo(ApprovalApproved))
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusPublished.Valid())
	assert.False(t, PostStatus("DRAFT").Valid())
}

func TestError_IsAndKind(t *testing.T) {
	err := fmt.Errorf("approve: %w", NewConflictError(MsgNotYourTurn))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.True(t, errors.Is(err, NewConflictError(MsgNotYourTurn)))
	assert.False(t, errors.Is(err, NewConflictError(MsgAlreadyProcessed)))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
	assert.Equal(t, "CONFLICT: not your turn", NewConflictError(MsgNotYourTurn).Error())
}

func TestSourcesOf(t *testing.T) {
	assert.ElementsMatch(t, []PostStatus{StatusPendingApproval}, SourcesOf(StatusApproved))
	assert.ElementsMatch(t, []PostStatus{StatusApproved}, SourcesOf(StatusPublished))
	assert.Empty(t, SourcesOf(StatusPendingApproval))
}
