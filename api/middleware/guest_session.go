package middleware

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

// GuestSession reads the guest session cookie. Anonymous callers without a
// valid handle get a fresh one; authenticated callers keep whatever handle
// they carried so it can be merged.
func GuestSession(cfg config.CartConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := ""
			if cookie, err := r.Cookie(cfg.SessionCookie); err == nil && security.ValidSessionHandle(cookie.Value) {
				session = cookie.Value
			}

			if _, authed := AccountIDFromContext(r.Context()); session == "" && !authed {
				handle, err := security.NewSessionHandle()
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue guest session"))
					return
				}
				session = handle
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.SessionCookie,
					Value:    handle,
					Path:     "/",
					MaxAge:   int(cfg.GuestTTL.Seconds()),
					HttpOnly: true,
					Secure:   cfg.SecureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}

			if session == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// CartIdentity resolves the cart owner once per request: the account when
// authenticated, otherwise the guest session.
func CartIdentity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var identity cart.Identity
			if accountID, ok := AccountIDFromContext(r.Context()); ok {
				identity = cart.Account(accountID)
			} else {
				identity = cart.Guest(SessionFromContext(r.Context()))
			}
			if err := identity.Validate(); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := withCartIdentity(r.Context(), identity)
			if logg != nil {
				ctx = logg.WithCartIdentity(ctx, string(identity.Kind()), identity.Key())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
