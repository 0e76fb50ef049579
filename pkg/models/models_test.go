package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUser_BeforeCreate(t *testing.T) {
	user := &User{
		Email: "test@example.com",
		Name:  "Test User",
	}

	err := user.BeforeCreate(nil)
	assert.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, RoleStaff, user.Role)
}

func TestUser_BeforeCreate_WithID(t *testing.T) {
	existingID := "existing-id-123"
	user := &User{
		ID:    existingID,
		Email: "test@example.com",
		Role:  RoleAdmin,
	}

	err := user.BeforeCreate(nil)
	assert.NoError(t, err)
	assert.Equal(t, existingID, user.ID)
	assert.Equal(t, RoleAdmin, user.Role)
}

func TestUser_Password(t *testing.T) {
	user := &User{}
	require.NoError(t, user.SetPassword("password123"))

	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
}

func TestUserRole_Valid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleManager.Valid())
	assert.True(t, RoleStaff.Valid())
	assert.False(t, UserRole("viewer").Valid())
}

func TestNotificationType(t *testing.T) {
	assert.True(t, NotificationApprovalRequest.Valid())
	assert.False(t, NotificationType("NEW_POST").Valid())

	assert.Greater(t, NotificationApprovalRequest.Priority(), NotificationApprovalProgress.Priority())
	assert.Greater(t, NotificationPostRejected.Priority(), NotificationPostApproved.Priority())
}
