package auth

import (
	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/errors"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type contextKey string

const identityKey contextKey = "identity"

// CookieName is the cookie set by the login endpoint.
const CookieName = "authToken"

// TokenFromRequest looks at the Authorization header, then the token query
// parameter, then the auth cookie.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Middleware rejects requests without a valid credential and injects the
// resolved identity into the request context.
func Middleware(verifier contract.ICredentialVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := verifier.Verify(r.Context(), TokenFromRequest(r))
			if err != nil {
				kind := errors.KindOf(err)
				log.Debug("Request rejected", "path", r.URL.Path, "kind", kind, "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(errors.HTTPStatus(kind))
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   string(kind),
					"message": errors.StableMessage(kind),
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}
