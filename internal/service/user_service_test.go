package service

import (
	"context"
	"testing"

	"github.com/azadjordan/megadie-sub000/internal/model"
	"github.com/azadjordan/megadie-sub000/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_Register(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.accounts.Register(ctx, RegisterUserRequest{
		Username: "sara",
		Email:    "sara@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	// New accounts are always customers with zeroed balances
	assert.Equal(t, model.RoleCustomer, resp.Role)
	assert.Equal(t, "0.00", resp.WalletBalance)
	assert.Equal(t, "0.00", resp.OutstandingBalance)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := env.accounts.Register(ctx, RegisterUserRequest{
			Username: "sara",
			Email:    "other@example.com",
			Password: "secret123",
		})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := env.accounts.Register(ctx, RegisterUserRequest{
			Username: "sara2",
			Email:    "sara@example.com",
			Password: "secret123",
		})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	})
}

func TestUserService_Login(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.accounts.Register(ctx, RegisterUserRequest{
		Username: "sara",
		Email:    "sara@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		resp, pair, err := env.accounts.Login(ctx, LoginUserRequest{
			Email:    "sara@example.com",
			Password: "secret123",
		})
		require.NoError(t, err)
		assert.Equal(t, "sara", resp.Username)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := env.accounts.Login(ctx, LoginUserRequest{
			Email:    "sara@example.com",
			Password: "wrong",
		})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := env.accounts.Login(ctx, LoginUserRequest{
			Email:    "nobody@example.com",
			Password: "secret123",
		})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})
}

func TestUserService_RefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.accounts.Register(ctx, RegisterUserRequest{
		Username: "sara",
		Email:    "sara@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	_, pair, err := env.accounts.Login(ctx, LoginUserRequest{
		Email:    "sara@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	rotated, err := env.accounts.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The consumed token is gone; replaying it is rejected
	_, err = env.accounts.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	// The rotated token still works
	_, err = env.accounts.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)

	t.Run("missing token", func(t *testing.T) {
		_, err := env.accounts.Refresh(ctx, "")
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
	})
}

func TestUserService_Logout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.accounts.Register(ctx, RegisterUserRequest{
		Username: "sara",
		Email:    "sara@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	_, pair, err := env.accounts.Login(ctx, LoginUserRequest{
		Email:    "sara@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	require.NoError(t, env.accounts.Logout(ctx, pair.RefreshToken))

	_, err = env.accounts.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
}

func TestUserService_UpdateUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.accounts.Register(ctx, RegisterUserRequest{
		Username: "sara",
		Email:    "sara@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	t.Run("promote to admin", func(t *testing.T) {
		updated, err := env.accounts.UpdateUser(ctx, resp.ID.String(), UpdateUserRequest{Role: model.RoleAdmin})
		require.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, updated.Role)
	})

	t.Run("invalid role", func(t *testing.T) {
		_, err := env.accounts.UpdateUser(ctx, resp.ID.String(), UpdateUserRequest{Role: "superuser"})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})

	t.Run("username collision", func(t *testing.T) {
		_, err := env.accounts.Register(ctx, RegisterUserRequest{
			Username: "omar",
			Email:    "omar@example.com",
			Password: "secret123",
		})
		require.NoError(t, err)

		_, err = env.accounts.UpdateUser(ctx, resp.ID.String(), UpdateUserRequest{Username: "omar"})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	})
}

func TestUserService_DeleteUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.accounts.Register(ctx, RegisterUserRequest{
		Username: "sara",
		Email:    "sara@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	_, pair, err := env.accounts.Login(ctx, LoginUserRequest{
		Email:    "sara@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	require.NoError(t, env.accounts.DeleteUser(ctx, resp.ID.String()))

	_, err = env.accounts.GetUserByID(ctx, resp.ID.String())
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	// Sessions die with the account
	_, err = env.accounts.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
}
