package payments

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/stripe/stripe-go/v82"
)

type intentAPI interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// StripeGateway implements Gateway with the Stripe PaymentIntents API.
type StripeGateway struct {
	api intentAPI
}

func NewStripeGateway(api intentAPI) (*StripeGateway, error) {
	if api == nil {
		return nil, errors.New("stripe client required")
	}
	return &StripeGateway{api: api}, nil
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error) {
	if amountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	pi, err := g.api.CreatePaymentIntent(ctx, amountMinor, strings.ToLower(currency), metadata)
	if err != nil {
		return nil, gatewayError(err, "create payment intent")
	}
	return intentFromStripe(pi), nil
}

// Confirm fetches the intent so checkout can verify it was paid.
func (g *StripeGateway) Confirm(ctx context.Context, intentID string) (*Intent, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_intent_id is required")
	}
	pi, err := g.api.GetPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, gatewayError(err, "retrieve payment intent")
	}
	return intentFromStripe(pi), nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       IntentStatus(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		AccountID:    pi.Metadata[MetadataAccountID],
	}
}

// gatewayError maps Stripe request errors. Invalid or unknown intents are the
// caller's fault; everything else is an upstream failure.
func gatewayError(err error, message string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			return pkgerrors.Wrap(pkgerrors.CodePaymentRejected, err, message).
				WithDetails(map[string]any{"gateway_code": string(stripeErr.Code)})
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
