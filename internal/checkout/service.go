package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/google/uuid"
)

type cartQuoter interface {
	QuoteAccount(ctx context.Context, accountID uuid.UUID) (*pricing.Quote, error)
}

type stockReader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Variant, error)
}

type orderPlacer interface {
	PlaceOrder(ctx context.Context, input orders.PlaceOrderInput) (*models.Order, error)
}

// Request is a checkout submitted by an authenticated account.
type Request struct {
	AccountID         uuid.UUID
	ShippingAddressID uuid.UUID
	BillingAddressID  uuid.UUID
	PaymentIntentID   string
}

// Service turns a paid payment intent plus the account cart into an order.
type Service interface {
	Execute(ctx context.Context, req Request) (*models.Order, error)
}

// ServiceParams bundles the checkout dependencies.
type ServiceParams struct {
	Carts   cartQuoter
	Stock   stockReader
	Gateway payments.Gateway
	Orders  orderPlacer
	Metrics *metrics.CheckoutMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	carts   cartQuoter
	stock   stockReader
	gateway payments.Gateway
	orders  orderPlacer
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("cart quoter required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order placer required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		carts:   params.Carts,
		stock:   params.Stock,
		gateway: params.Gateway,
		orders:  params.Orders,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Execute walks one checkout attempt through its states:
//
//	initiated -> stock_validated -> committed
//
// leaving early as aborted (cart or stock problems), gateway_rejected
// (payment not confirmed for the exact payable amount) or failed.
// The stock check here is advisory; PlaceOrder re-checks under row locks and
// re-prices the locked cart against the amount the intent captured.
func (s *service) Execute(ctx context.Context, req Request) (*models.Order, error) {
	a := &attempt{svc: s, started: s.now(), state: enums.CheckoutStateInitiated}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"account_id":        req.AccountID.String(),
			"payment_intent_id": req.PaymentIntentID,
		})
	}
	a.log(ctx, nil)

	if req.AccountID == uuid.Nil {
		return nil, a.finish(ctx, enums.CheckoutStateAborted, pkgerrors.New(pkgerrors.CodeUnauthorized, "account is required"))
	}

	quote, err := s.carts.QuoteAccount(ctx, req.AccountID)
	if err != nil {
		return nil, a.finish(ctx, stateForError(err), err)
	}
	if err := quote.RequireAvailable(); err != nil {
		return nil, a.finish(ctx, enums.CheckoutStateAborted, err)
	}
	if len(quote.Lines) == 0 {
		return nil, a.finish(ctx, enums.CheckoutStateAborted, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty"))
	}
	if err := s.precheckStock(ctx, quote); err != nil {
		return nil, a.finish(ctx, stateForError(err), err)
	}
	a.advance(ctx, enums.CheckoutStateStockValidated)

	intent, err := s.gateway.Confirm(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, a.finish(ctx, stateForError(err), err)
	}
	if err := verifyIntent(intent, quote, req.AccountID); err != nil {
		return nil, a.finish(ctx, enums.CheckoutStateGatewayRejected, err)
	}

	order, err := s.orders.PlaceOrder(ctx, orders.PlaceOrderInput{
		AccountID:         req.AccountID,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		PaymentReference:  intent.ID,
		PaidMinor:         intent.AmountMinor,
	})
	if err != nil {
		return nil, a.finish(ctx, stateForError(err), err)
	}
	a.finish(ctx, enums.CheckoutStateCommitted, nil)
	s.metrics.ObserveOrderValue(order.TotalAmount.InexactFloat64())
	return order, nil
}

func (s *service) precheckStock(ctx context.Context, quote *pricing.Quote) error {
	ids := make([]uuid.UUID, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		ids = append(ids, line.VariantID)
	}
	variants, err := s.stock.FindByIDs(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read stock")
	}
	available := make(map[uuid.UUID]int, len(variants))
	for _, v := range variants {
		available[v.ID] = v.StockQuantity
	}
	for _, line := range quote.Lines {
		if line.Quantity > available[line.VariantID] {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{"variant_id": line.VariantID, "available": available[line.VariantID]})
		}
	}
	return nil
}

func verifyIntent(intent *payments.Intent, quote *pricing.Quote, accountID uuid.UUID) error {
	if intent == nil {
		return pkgerrors.New(pkgerrors.CodePaymentRejected, "payment intent not found")
	}
	if intent.Status != payments.IntentStatusSucceeded {
		return pkgerrors.New(pkgerrors.CodePaymentRejected, "payment not completed").
			WithDetails(map[string]any{"status": intent.Status})
	}
	if intent.AccountID != accountID.String() {
		return pkgerrors.New(pkgerrors.CodePaymentRejected, "payment intent belongs to another account")
	}
	if !strings.EqualFold(intent.Currency, quote.Currency) {
		return pkgerrors.New(pkgerrors.CodePaymentRejected, "payment currency does not match cart").
			WithDetails(map[string]any{"paid_currency": intent.Currency, "currency": quote.Currency})
	}
	if intent.AmountMinor != quote.PayableMinor() {
		return pkgerrors.New(pkgerrors.CodePaymentRejected, "payment amount does not match cart").
			WithDetails(map[string]any{"paid": intent.AmountMinor, "payable": quote.PayableMinor()})
	}
	return nil
}

// stateForError classifies a failure into the terminal state it ends in.
func stateForError(err error) enums.CheckoutState {
	typed := pkgerrors.As(err)
	if typed == nil {
		return enums.CheckoutStateFailed
	}
	switch typed.Code() {
	case pkgerrors.CodePaymentRejected:
		return enums.CheckoutStateGatewayRejected
	case pkgerrors.CodeInternal, pkgerrors.CodeDependency:
		return enums.CheckoutStateFailed
	default:
		return enums.CheckoutStateAborted
	}
}

type attempt struct {
	svc     *service
	started time.Time
	state   enums.CheckoutState
}

func (a *attempt) advance(ctx context.Context, next enums.CheckoutState) {
	a.state = next
	a.log(ctx, nil)
}

// finish records the terminal state and returns err unchanged.
func (a *attempt) finish(ctx context.Context, state enums.CheckoutState, err error) error {
	a.state = state
	a.svc.metrics.ObserveOutcome(state.String(), a.svc.now().Sub(a.started))
	a.log(ctx, err)
	return err
}

func (a *attempt) log(ctx context.Context, err error) {
	logg := a.svc.logg
	if logg == nil {
		return
	}
	ctx = logg.WithField(ctx, "checkout_state", a.state.String())
	switch {
	case a.state == enums.CheckoutStateFailed:
		logg.Error(ctx, "checkout failed", err)
	case err != nil:
		logg.Warn(logg.WithField(ctx, "reason", err.Error()), "checkout stopped")
	case a.state.IsTerminal():
		logg.Info(ctx, "checkout committed")
	default:
		logg.Debug(ctx, "checkout state changed")
	}
}
