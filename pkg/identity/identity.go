// Package identity resolves the current user of a request. Credentials are
// never checked here: tokens are issued elsewhere and only verified.
package identity

import (
	"context"
	"errors"
	"net/http"

	apperrors "carrental/pkg/errors"
	"carrental/pkg/logger"
	"carrental/pkg/model"
)

var ErrInvalidCredentials = errors.New("invalid identity credentials")

// Provider resolves the user behind a request. It returns (nil, nil) when the
// request carries no identity at all.
type Provider interface {
	Resolve(r *http.Request) (*model.User, error)
}

type contextKey struct{}

func WithUser(ctx context.Context, user model.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// CurrentUser returns the user stored by Middleware.
func CurrentUser(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(contextKey{}).(model.User)
	return user, ok
}

func IsAuthenticated(ctx context.Context) bool {
	_, ok := CurrentUser(ctx)
	return ok
}

// RequireUser returns the current user or an UNAUTHORIZED error.
func RequireUser(ctx context.Context) (model.User, error) {
	user, ok := CurrentUser(ctx)
	if !ok {
		return model.User{}, apperrors.Unauthorized("Authentication required")
	}
	return user, nil
}

// UserID is a request key function for per-user rate limiting and
// idempotency scoping.
func UserID(r *http.Request) string {
	user, _ := CurrentUser(r.Context())
	return user.ID
}

// Chain tries each provider in order and returns the first identity found.
type Chain []Provider

func (c Chain) Resolve(r *http.Request) (*model.User, error) {
	for _, p := range c {
		user, err := p.Resolve(r)
		if err != nil || user != nil {
			return user, err
		}
	}
	return nil, nil
}

// Middleware attaches the resolved user to the request context. Anonymous
// requests pass through; requests with bad credentials are rejected.
func Middleware(provider Provider, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := provider.Resolve(r)
			if err != nil {
				log.Warn("Rejected request identity",
					"path", r.URL.Path,
					"error", err,
				)
				appErr := apperrors.Unauthorized("Invalid credentials")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="rentals"`)
				w.WriteHeader(appErr.StatusCode())
				_, _ = w.Write(appErr.ToJSON())
				return
			}

			if user != nil {
				r = r.WithContext(WithUser(r.Context(), *user))
			}
			next.ServeHTTP(w, r)
		})
	}
}
