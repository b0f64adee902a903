package orders

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const maxPaymentIntentIDLen = 255

// PlaceOrderRequest is the body of POST /orders.
type PlaceOrderRequest struct {
	ShippingAddressID uuid.UUID `json:"shipping_address_id" validate:"required"`
	BillingAddressID  uuid.UUID `json:"billing_address_id" validate:"required"`
	PaymentIntentID   string    `json:"payment_intent_id" validate:"required"`
}

// UpdateStatusRequest is the body of the admin status endpoint.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Place runs checkout for the caller's account cart and returns the order.
func Place(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		accountID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body PlaceOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), checkout.Request{
			AccountID:         accountID,
			ShippingAddressID: body.ShippingAddressID,
			BillingAddressID:  body.BillingAddressID,
			PaymentIntentID:   validators.SanitizeString(body.PaymentIntentID, maxPaymentIntentIDLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalorders.FromModel(*order))
	}
}

// List returns the caller's orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		accountID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), accountID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list := internalorders.OrderList{
			Orders:     make([]internalorders.OrderDTO, 0, len(page.Orders)),
			NextCursor: page.NextCursor,
		}
		for _, row := range page.Orders {
			list.Orders = append(list.Orders, internalorders.FromModel(row))
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order of the caller. Orders of other accounts are
// reported as not found.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		accountID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), accountID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.FromModel(*order))
	}
}

// AdminUpdateStatus moves an order along its fulfilment lifecycle.
func AdminUpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body UpdateStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := enums.OrderStatus(strings.ToLower(strings.TrimSpace(body.Status)))

		order, err := svc.UpdateStatus(r.Context(), orderID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.FromModel(*order))
	}
}

func requireAccount(r *http.Request) (uuid.UUID, error) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return accountID, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	query := r.URL.Query()
	params := pagination.Params{Cursor: strings.TrimSpace(query.Get("cursor"))}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer").
				WithDetails(map[string]any{"field": "limit"})
		}
		params.Limit = limit
	}
	return params, nil
}
