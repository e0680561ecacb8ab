//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"chat-rooms/auth"
	"chat-rooms/domain"
	"chat-rooms/errors"
	"chat-rooms/infrastructure/storage"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
)

type IAuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (domain.User, error)
	Login(ctx context.Context, email, password string) (Session, error)
}

// Session is what a successful login hands back to the client.
type Session struct {
	Token string
	User  domain.User
}

type AuthService struct {
	users  storage.IUserRepository
	tokens *auth.TokenManager
	params auth.PasswordParams
	log    *slog.Logger
}

func NewAuthService(users storage.IUserRepository, tokens *auth.TokenManager, params auth.PasswordParams, log *slog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, params: params, log: log}
}

var _ IAuthService = (*AuthService)(nil)

func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest) (domain.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	// Validation runs before the expensive hash.
	if err := auth.ValidateRegister(req); err != nil {
		return domain.User{}, err
	}

	hash, err := auth.HashPassword(req.Password, s.params)
	if err != nil {
		return domain.User{}, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, req.Email, req.Username, hash)
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info("User registered", "user_id", user.ID)
	return user, nil
}

// Login never tells an unknown email from a wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return Session{}, errors.ErrInvalidCredentials
		}
		return Session{}, err
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		s.log.Debug("Login refused", "user_id", user.ID)
		return Session{}, errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return Session{Token: token, User: user}, nil
}
