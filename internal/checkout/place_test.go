package checkout

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// storedCartQuoter prices the persisted account cart.
type storedCartQuoter struct {
	carts  cart.CartRepository
	prices *pricing.Service
}

func (q storedCartQuoter) QuoteAccount(ctx context.Context, accountID uuid.UUID) (*pricing.Quote, error) {
	c, err := q.carts.FindByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	items := make([]pricing.Item, 0, len(c.Lines))
	for _, line := range c.Lines {
		items = append(items, pricing.Item{VariantID: line.VariantID, Quantity: line.Quantity})
	}
	return q.prices.QuoteItems(ctx, items)
}

type storedCheckout struct {
	conn    *gorm.DB
	svc     Service
	gateway *stubGateway
	metrics *metrics.CheckoutMetrics
	account models.Account
	address models.Address
	cartID  uuid.UUID
}

func newStoredCheckout(t *testing.T, paidMinor int64) *storedCheckout {
	t.Helper()
	conn := dbtest.Open(t)
	ledger := inventory.NewRepository(conn)
	carts := cart.NewRepository(conn)
	calc := pricing.NewCalculator(decimal.RequireFromString("10.00"), "usd")
	prices, err := pricing.NewService(calc, ledger)
	require.NoError(t, err)
	placer, err := orders.NewService(orders.ServiceParams{
		Repo:       orders.NewRepository(conn),
		Carts:      carts,
		Inventory:  ledger,
		Calculator: calc,
		Tx:         db.NewFromConn(conn),
	})
	require.NoError(t, err)

	account := dbtest.SeedAccount(t, conn)
	c := models.Cart{AccountID: account.ID}
	require.NoError(t, conn.Create(&c).Error)

	sc := &storedCheckout{
		conn: conn,
		gateway: &stubGateway{intent: &payments.Intent{
			ID:          "pi_stored",
			Status:      payments.IntentStatusSucceeded,
			AmountMinor: paidMinor,
			Currency:    "usd",
			AccountID:   account.ID.String(),
		}},
		metrics: metrics.NewCheckoutMetrics(prometheus.NewRegistry()),
		account: account,
		address: dbtest.SeedAddress(t, conn, account.ID),
		cartID:  c.ID,
	}
	sc.svc, err = NewService(ServiceParams{
		Carts:   storedCartQuoter{carts: carts, prices: prices},
		Stock:   ledger,
		Gateway: sc.gateway,
		Orders:  placer,
		Metrics: sc.metrics,
	})
	require.NoError(t, err)
	return sc
}

func (sc *storedCheckout) addLine(t *testing.T, variantID uuid.UUID, qty int) {
	t.Helper()
	require.NoError(t, sc.conn.Create(&models.CartLine{CartID: sc.cartID, VariantID: variantID, Quantity: qty}).Error)
}

func (sc *storedCheckout) request() Request {
	return Request{
		AccountID:         sc.account.ID,
		ShippingAddressID: sc.address.ID,
		BillingAddressID:  sc.address.ID,
		PaymentIntentID:   "pi_stored",
	}
}

func TestExecutePlacesPaidCart(t *testing.T) {
	sc := newStoredCheckout(t, 3000)
	a := dbtest.SeedVariant(t, sc.conn, "20.00", 5)
	sc.addLine(t, a.ID, 1)

	order, err := sc.svc.Execute(context.Background(), sc.request())
	require.NoError(t, err)
	assert.Equal(t, "20.00", order.TotalAmount.StringFixed(2))
	assert.Equal(t, 4, dbtest.Stock(t, sc.conn, a.ID))
}

func TestExecuteRefusesLinesAddedWhilePaymentConfirms(t *testing.T) {
	sc := newStoredCheckout(t, 3000)
	a := dbtest.SeedVariant(t, sc.conn, "20.00", 5)
	b := dbtest.SeedVariant(t, sc.conn, "500.00", 100)
	sc.addLine(t, a.ID, 1)
	sc.gateway.onConfirm = func() { sc.addLine(t, b.ID, 4) }

	_, err := sc.svc.Execute(context.Background(), sc.request())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentRejected), "got %v", err)

	var orderCount int64
	require.NoError(t, sc.conn.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)
	assert.Equal(t, 5, dbtest.Stock(t, sc.conn, a.ID))
	assert.Equal(t, 100, dbtest.Stock(t, sc.conn, b.ID))
	assert.Equal(t, 1.0, testutil.ToFloat64(sc.metrics.OutcomeCounter("gateway_rejected")))
}
