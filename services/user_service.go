//go:generate go run go.uber.org/mock/mockgen -source=user_service.go -destination=../mocks/mock_user_service.go -package=mocks
package services

import (
	"chat-rooms/auth"
	"chat-rooms/domain"
	"chat-rooms/errors"
	"chat-rooms/infrastructure/storage"
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type IUserService interface {
	Get(ctx context.Context, id domain.UserID) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, actor domain.Identity, id domain.UserID, req auth.UpdateUserRequest) (domain.User, error)
	Delete(ctx context.Context, actor domain.Identity, id domain.UserID) error
}

type UserService struct {
	users  storage.IUserRepository
	params auth.PasswordParams
	log    *slog.Logger
}

func NewUserService(users storage.IUserRepository, params auth.PasswordParams, log *slog.Logger) *UserService {
	return &UserService{users: users, params: params, log: log}
}

var _ IUserService = (*UserService)(nil)

func (s *UserService) Get(ctx context.Context, id domain.UserID) (domain.User, error) {
	return s.users.GetUser(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.users.ListUsers(ctx)
}

// Update lets a user change their own account only. A changed email makes
// every token issued before it unusable.
func (s *UserService) Update(ctx context.Context, actor domain.Identity, id domain.UserID, req auth.UpdateUserRequest) (domain.User, error) {
	if actor.UserID != id {
		return domain.User{}, fmt.Errorf("%w: user %d updating user %d", errors.ErrForbidden, actor.UserID, id)
	}
	if err := auth.ValidateUpdate(req); err != nil {
		return domain.User{}, err
	}

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Password != nil {
		if user.PasswordHash, err = auth.HashPassword(*req.Password, s.params); err != nil {
			return domain.User{}, fmt.Errorf("hashing password: %w", err)
		}
	}

	updated, err := s.users.UpdateUser(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info("User updated", "user_id", id)
	return updated, nil
}

func (s *UserService) Delete(ctx context.Context, actor domain.Identity, id domain.UserID) error {
	if actor.UserID != id {
		return fmt.Errorf("%w: user %d deleting user %d", errors.ErrForbidden, actor.UserID, id)
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.Info("User deleted", "user_id", id)
	return nil
}
