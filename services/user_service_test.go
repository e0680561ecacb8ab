package services_test

import (
	"chat-rooms/auth"
	"chat-rooms/domain"
	"chat-rooms/errors"
	"chat-rooms/mocks"
	"chat-rooms/services"
	"context"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestUserService_Update_Self_Only(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := services.NewUserService(mockRepo, cheapParams, logs.GetLoggerFromLevel(slog.LevelDebug))

	// Given user 2 trying to rename user 1
	mockRepo.EXPECT().UpdateUser(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.Update(context.Background(), domain.Identity{UserID: 2}, 1, auth.UpdateUserRequest{Username: lo.ToPtr("mallory")})

	req.ErrorIs(err, errors.ErrForbidden)
}

func TestUserService_Update_Applies_Set_Fields(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := services.NewUserService(mockRepo, cheapParams, logs.GetLoggerFromLevel(slog.LevelDebug))

	existing := domain.User{ID: 1, Email: "old@example.com", Username: "alice", PasswordHash: "old-hash"}
	mockRepo.EXPECT().GetUser(gomock.Any(), domain.UserID(1)).Return(existing, nil)
	mockRepo.EXPECT().UpdateUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, user domain.User) (domain.User, error) { return user, nil })

	updated, err := svc.Update(context.Background(), domain.Identity{UserID: 1}, 1, auth.UpdateUserRequest{
		Email:    lo.ToPtr("New@Example.com"),
		Password: lo.ToPtr("ComplexPass123!"),
	})

	req.NoError(err)
	req.Equal("alice", updated.Username)
	req.Equal("new@example.com", updated.Email)
	req.NotEqual("old-hash", updated.PasswordHash)
	match, err := auth.ComparePassword("ComplexPass123!", updated.PasswordHash)
	req.NoError(err)
	req.True(match)
}

func TestUserService_Delete(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := services.NewUserService(mockRepo, cheapParams, logs.GetLoggerFromLevel(slog.LevelDebug))

	mockRepo.EXPECT().DeleteUser(gomock.Any(), domain.UserID(1)).Return(nil)

	req.ErrorIs(svc.Delete(context.Background(), domain.Identity{UserID: 2}, 1), errors.ErrForbidden)
	req.NoError(svc.Delete(context.Background(), domain.Identity{UserID: 1}, 1))
}
