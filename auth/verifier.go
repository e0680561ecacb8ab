package auth

import (
	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/errors"
	"chat-rooms/internal/await"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier is the credential verifier shared by the websocket handshake and
// the REST middleware. It never trusts the token alone: the user is re-read
// on every call so a deleted or changed account invalidates its tokens at
// next use.
type Verifier struct {
	tokens *TokenManager
	users  contract.IUserLookup
	log    *slog.Logger
}

func NewVerifier(tokens *TokenManager, users contract.IUserLookup, log *slog.Logger) *Verifier {
	return &Verifier{tokens: tokens, users: users, log: log}
}

var _ contract.ICredentialVerifier = (*Verifier)(nil)

func (v *Verifier) Verify(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, errors.ErrTokenMissing
	}

	claims, err := v.tokens.Parse(token)
	if err != nil {
		return domain.Identity{}, classifyTokenError(err)
	}
	if claims.UserID <= 0 {
		return domain.Identity{}, fmt.Errorf("%w: no user in claims", errors.ErrTokenInvalid)
	}

	user, err := await.Do(ctx, func(ctx context.Context) (domain.User, error) {
		return v.users.GetUser(ctx, domain.UserID(claims.UserID))
	})
	switch {
	case stderrors.Is(err, errors.ErrUserNotFound):
		return domain.Identity{}, fmt.Errorf("%w: id %d", errors.ErrUserNotFound, claims.UserID)
	case err != nil:
		v.log.Warn("User lookup failed during verification", "user_id", claims.UserID, "error", err)
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}

	if user.Email != claims.Email {
		return domain.Identity{}, fmt.Errorf("%w: email changed for id %d", errors.ErrUserNotFound, claims.UserID)
	}
	return user.Identity(), nil
}

func classifyTokenError(err error) error {
	switch {
	case stderrors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", errors.ErrTokenMalformed, err)
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", errors.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", errors.ErrTokenInvalid, err)
	}
}
