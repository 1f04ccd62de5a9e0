package services

import (
	"context"
	"testing"

	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := NewUserService(repositories.NewUserRepository(db))

	created, err := svc.Create(ctx, &CreateUserInput{
		Username:   "librarian",
		Email:      "librarian@example.com",
		Department: "Front Desk",
		Password:   "long-enough-pass",
		Role:       "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, "admin", created.Role)
	assert.True(t, created.IsActive)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := svc.Create(ctx, &CreateUserInput{
			Username: "librarian",
			Email:    "other@example.com",
			Password: "long-enough-pass",
			Role:     "user",
		})
		assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	})

	t.Run("update role and deactivate", func(t *testing.T) {
		inactive := false
		updated, err := svc.Update(ctx, created.ID, &UpdateUserInput{
			Username:   "librarian",
			Email:      "librarian@example.com",
			Department: "Archives",
			Role:       "user",
			IsActive:   &inactive,
		})
		require.NoError(t, err)
		assert.Equal(t, "user", updated.Role)
		assert.Equal(t, "Archives", updated.Department)
		assert.False(t, updated.IsActive)
	})

	t.Run("update unknown user", func(t *testing.T) {
		_, err := svc.Update(ctx, 9999, &UpdateUserInput{
			Username: "ghost",
			Email:    "ghost@example.com",
			Role:     "user",
		})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("list", func(t *testing.T) {
		users, total, err := svc.List(ctx, 0, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, users, 1)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, created.ID))
		_, err := svc.GetByID(ctx, created.ID)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}
