package payments

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuoter struct {
	quote *pricing.Quote
	err   error
}

func (s stubQuoter) QuoteAccount(context.Context, uuid.UUID) (*pricing.Quote, error) {
	return s.quote, s.err
}

type recordingGateway struct {
	amount   int64
	currency string
	metadata map[string]string
	calls    int
}

func (g *recordingGateway) CreateIntent(_ context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error) {
	g.calls++
	g.amount, g.currency, g.metadata = amountMinor, currency, metadata
	return &Intent{ID: "pi_test", AmountMinor: amountMinor, Currency: currency, Status: IntentStatusRequiresPayment}, nil
}

func (g *recordingGateway) Confirm(context.Context, string) (*Intent, error) {
	return nil, nil
}

func quoteFor(t *testing.T, price string, qty int) *pricing.Quote {
	t.Helper()
	id := uuid.New()
	calc := pricing.NewCalculator(decimal.RequireFromString("10.00"), "usd")
	quote, err := calc.Quote(
		[]pricing.Item{{VariantID: id, Quantity: qty}},
		map[uuid.UUID]decimal.Decimal{id: decimal.RequireFromString(price)},
	)
	require.NoError(t, err)
	return quote
}

func TestCreateIntentUsesServerPayable(t *testing.T) {
	t.Parallel()

	gw := &recordingGateway{}
	accountID := uuid.New()
	svc, err := NewService(gw, stubQuoter{quote: quoteFor(t, "27.50", 2)}, nil)
	require.NoError(t, err)

	intent, err := svc.CreateIntent(context.Background(), accountID)
	require.NoError(t, err)
	assert.EqualValues(t, 6500, gw.amount)
	assert.EqualValues(t, 6500, intent.AmountMinor)
	assert.Equal(t, "usd", gw.currency)
	assert.Equal(t, accountID.String(), gw.metadata["account_id"])
}

func TestCreateIntentEmptyCart(t *testing.T) {
	t.Parallel()

	gw := &recordingGateway{}
	empty, err := pricing.NewCalculator(decimal.RequireFromString("10.00"), "usd").Quote(nil, nil)
	require.NoError(t, err)
	svc, err := NewService(gw, stubQuoter{quote: empty}, nil)
	require.NoError(t, err)

	_, err = svc.CreateIntent(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart), "got %v", err)
	assert.Zero(t, gw.calls)
}

func TestCreateIntentRefusesUnavailableItems(t *testing.T) {
	t.Parallel()

	gw := &recordingGateway{}
	quote := quoteFor(t, "5.00", 1)
	quote.Unavailable = []uuid.UUID{uuid.New()}
	svc, err := NewService(gw, stubQuoter{quote: quote}, nil)
	require.NoError(t, err)

	_, err = svc.CreateIntent(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	assert.Zero(t, gw.calls)
}
