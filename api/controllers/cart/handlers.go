package cart

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const noGuestCartMessage = "no guest cart to merge"

// CartFetch returns the priced cart of the resolved identity.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFor(w, r, svc, logg)
		if !ok {
			return
		}

		quote, err := svc.Get(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// CartAddLine adds a variant, summing quantities when it is already present.
func CartAddLine(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFor(w, r, svc, logg)
		if !ok {
			return
		}

		var body AddLineRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.AddLine(r.Context(), identity, body.VariantID, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, quote)
	}
}

func CartSetQuantity(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFor(w, r, svc, logg)
		if !ok {
			return
		}

		variantID, err := validators.ParseUUIDParam(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body SetQuantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.SetLineQuantity(r.Context(), identity, variantID, *body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

func CartRemoveLine(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFor(w, r, svc, logg)
		if !ok {
			return
		}

		variantID, err := validators.ParseUUIDParam(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.RemoveLine(r.Context(), identity, variantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// CartMerge folds the caller's guest cart into their account cart. Requires
// an authenticated account; the guest side comes from the session cookie.
func CartMerge(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		accountID, ok := middleware.AccountIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		session := middleware.SessionFromContext(r.Context())
		if session == "" {
			quote, err := svc.Get(r.Context(), cartsvc.Account(accountID))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccessMessage(w, http.StatusOK, &cartsvc.MergeResult{Cart: quote}, noGuestCartMessage)
			return
		}

		result, err := svc.Merge(r.Context(), session, accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result.MergedLines == 0 && len(result.DroppedLines) == 0 {
			responses.WriteSuccessMessage(w, http.StatusOK, result, noGuestCartMessage)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func identityFor(w http.ResponseWriter, r *http.Request, svc cartsvc.Service, logg *logger.Logger) (cartsvc.Identity, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
		return cartsvc.Identity{}, false
	}
	identity, ok := middleware.CartIdentityFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart identity missing"))
		return cartsvc.Identity{}, false
	}
	return identity, true
}
