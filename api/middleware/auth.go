package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// AccountChecker confirms that the subject of a token still exists.
type AccountChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Auth validates a bearer token and seeds the request context with the claims.
// Requests without a usable token are rejected with 401.
func Auth(cfg config.JWTConfig, accounts AccountChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r, cfg, accounts, logg)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth behaves like Auth but lets anonymous callers through. A
// missing, malformed or expired token, or one whose account is gone, leaves
// the request unauthenticated so the guest identity applies.
func OptionalAuth(cfg config.JWTConfig, accounts AccountChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r, cfg, accounts, logg)
			if err != nil {
				if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
				if logg != nil && bearerToken(r) != "" {
					logg.Warn(logg.WithField(r.Context(), "reason", err.Error()), "auth.optional.ignored")
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, accounts AccountChecker, logg *logger.Logger) (context.Context, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}

	if accounts != nil {
		ok, err := accounts.Exists(r.Context(), claims.AccountID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate account")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account unavailable")
		}
	}

	ctx := WithAccount(r.Context(), claims.AccountID, string(claims.Role))
	if logg != nil {
		ctx = logg.WithAccountID(ctx, claims.AccountID.String())
		ctx = logg.WithField(ctx, "actor_role", string(claims.Role))
	}
	return ctx, nil
}

func bearerToken(r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
