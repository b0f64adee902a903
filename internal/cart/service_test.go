package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type memoryGuests struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	setErr  error
	takeErr error
}

func newMemoryGuests() *memoryGuests {
	return &memoryGuests{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryGuests) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryGuests) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryGuests) GetDel(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeErr != nil {
		return "", m.takeErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	delete(m.values, key)
	return v, nil
}

func (m *memoryGuests) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryGuests) GuestCartKey(session string) string {
	return "sf:guest_cart:" + session
}

func (m *memoryGuests) has(session string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[m.GuestCartKey(session)]
	return ok
}

type harness struct {
	conn    *gorm.DB
	guests  *memoryGuests
	svc     Service
	metrics *metrics.CartMetrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	ledger := inventory.NewRepository(conn)
	quotes, err := pricing.NewService(pricing.NewCalculator(decimal.RequireFromString("10.00"), "usd"), ledger)
	if err != nil {
		t.Fatalf("pricing service: %v", err)
	}
	guests := newMemoryGuests()
	cartMetrics := metrics.NewCartMetrics(prometheus.NewRegistry())
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Tx:       db.NewFromConn(conn),
		Guests:   guests,
		GuestTTL: time.Hour,
		Variants: ledger,
		Pricing:  quotes,
		Metrics:  cartMetrics,
	})
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	return &harness{conn: conn, guests: guests, svc: svc, metrics: cartMetrics}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestGuestCartAddAndGet(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := dbtest.SeedVariant(t, h.conn, "20.00", 10)
	b := dbtest.SeedVariant(t, h.conn, "15.00", 10)
	guest := Guest("session-1")

	if _, err := h.svc.AddLine(ctx, guest, a.ID, 2); err != nil {
		t.Fatalf("add a: %v", err)
	}
	quote, err := h.svc.AddLine(ctx, guest, b.ID, 1)
	if err != nil {
		t.Fatalf("add b: %v", err)
	}
	if got := quote.Subtotal.StringFixed(2); got != "55.00" {
		t.Fatalf("expected subtotal 55.00, got %s", got)
	}
	if got := quote.Payable.StringFixed(2); got != "65.00" {
		t.Fatalf("expected payable 65.00, got %s", got)
	}

	again, err := h.svc.Get(ctx, guest)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(again.Lines) != 2 || again.Lines[0].VariantID != a.ID {
		t.Fatalf("unexpected lines: %+v", again.Lines)
	}
	if ttl := h.guests.ttls["sf:guest_cart:session-1"]; ttl != time.Hour {
		t.Fatalf("expected ttl refreshed to 1h, got %v", ttl)
	}
}

func TestAddLineValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v := dbtest.SeedVariant(t, h.conn, "5.00", 1)

	if _, err := h.svc.AddLine(ctx, Guest("s"), v.ID, 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for qty 0, got %v", err)
	}
	if _, err := h.svc.AddLine(ctx, Guest("s"), uuid.New(), 1); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown variant, got %v", err)
	}
	if _, err := h.svc.AddLine(ctx, Guest(""), v.ID, 1); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for empty session, got %v", err)
	}
}

func TestAccountCartLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, h.conn)
	v := dbtest.SeedVariant(t, h.conn, "12.50", 5)
	owner := Account(account.ID)

	empty, err := h.svc.Get(ctx, owner)
	if err != nil {
		t.Fatalf("get empty: %v", err)
	}
	if len(empty.Lines) != 0 || !empty.Payable.IsZero() {
		t.Fatalf("expected empty free cart, got %+v", empty)
	}

	if _, err := h.svc.AddLine(ctx, owner, v.ID, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := h.svc.AddLine(ctx, owner, v.ID, 2); err != nil {
		t.Fatalf("add again: %v", err)
	}
	quote, err := h.svc.SetLineQuantity(ctx, owner, v.ID, 4)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if quote.Lines[0].Quantity != 4 || quote.Subtotal.StringFixed(2) != "50.00" {
		t.Fatalf("unexpected quote: %+v", quote)
	}

	var rows int64
	h.conn.Model(&models.CartLine{}).Count(&rows)
	if rows != 1 {
		t.Fatalf("expected a single cart line row, got %d", rows)
	}

	if _, err := h.svc.SetLineQuantity(ctx, owner, uuid.New(), 1); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for missing line, got %v", err)
	}
	if _, err := h.svc.SetLineQuantity(ctx, owner, v.ID, 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	quote, err = h.svc.RemoveLine(ctx, owner, v.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(quote.Lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", quote.Lines)
	}
	if _, err := h.svc.RemoveLine(ctx, owner, v.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
}

func TestAccountCartClear(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, h.conn)
	v := dbtest.SeedVariant(t, h.conn, "1.00", 5)
	owner := Account(account.ID)

	if err := h.svc.Clear(ctx, owner); err != nil {
		t.Fatalf("clear without cart: %v", err)
	}
	if _, err := h.svc.AddLine(ctx, owner, v.ID, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := h.svc.Clear(ctx, owner); err != nil {
		t.Fatalf("clear: %v", err)
	}
	quote, err := h.svc.Get(ctx, owner)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(quote.Lines) != 0 {
		t.Fatalf("expected cleared cart, got %+v", quote.Lines)
	}
}

func TestGuestCartEmptiedDeletesKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v := dbtest.SeedVariant(t, h.conn, "3.00", 5)
	guest := Guest("gone")

	if _, err := h.svc.AddLine(ctx, guest, v.ID, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := h.svc.RemoveLine(ctx, guest, v.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if h.guests.has("gone") {
		t.Fatal("expected guest key to be deleted once empty")
	}
}

func TestGuestCartBackendFailure(t *testing.T) {
	h := newHarness(t)
	v := dbtest.SeedVariant(t, h.conn, "3.00", 5)
	h.guests.setErr = errors.New("connection reset")

	_, err := h.svc.AddLine(context.Background(), Guest("s"), v.ID, 1)
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if !strings.Contains(err.Error(), "write guest cart") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestGuestCartSurvivesDeletedVariant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	live := dbtest.SeedVariant(t, h.conn, "20.00", 10)
	doomed := dbtest.SeedVariant(t, h.conn, "15.00", 10)
	guest := Guest("stale")

	for _, id := range []uuid.UUID{live.ID, doomed.ID} {
		if _, err := h.svc.AddLine(ctx, guest, id, 1); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	if err := h.conn.Delete(&models.Variant{}, "id = ?", doomed.ID).Error; err != nil {
		t.Fatalf("delete variant: %v", err)
	}

	view, err := h.svc.Get(ctx, guest)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].VariantID != live.ID {
		t.Fatalf("expected only the live line, got %+v", view.Lines)
	}
	if len(view.Unavailable) != 1 || view.Unavailable[0] != doomed.ID {
		t.Fatalf("expected deleted variant flagged, got %v", view.Unavailable)
	}
	if got := view.Payable.StringFixed(2); got != "30.00" {
		t.Fatalf("expected payable 30.00, got %s", got)
	}

	view, err = h.svc.AddLine(ctx, guest, live.ID, 2)
	if err != nil {
		t.Fatalf("add to cart with stale line: %v", err)
	}
	if view.Lines[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %+v", view.Lines)
	}

	view, err = h.svc.RemoveLine(ctx, guest, doomed.ID)
	if err != nil {
		t.Fatalf("remove stale line: %v", err)
	}
	if len(view.Unavailable) != 0 {
		t.Fatalf("expected no unavailable lines, got %v", view.Unavailable)
	}
}

type failingQuoter struct{}

func (failingQuoter) QuoteItems(context.Context, []pricing.Item) (*pricing.Quote, error) {
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "load variant prices")
}

func TestWriteStandsWhenPricingFails(t *testing.T) {
	conn := dbtest.Open(t)
	guests := newMemoryGuests()
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Tx:       db.NewFromConn(conn),
		Guests:   guests,
		GuestTTL: time.Hour,
		Variants: inventory.NewRepository(conn),
		Pricing:  failingQuoter{},
	})
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	v := dbtest.SeedVariant(t, conn, "4.00", 3)

	view, err := svc.AddLine(context.Background(), Guest("unpriced"), v.ID, 1)
	if err != nil {
		t.Fatalf("expected saved add to succeed, got %v", err)
	}
	if len(view.Lines) != 0 || len(view.Unavailable) != 1 || view.Unavailable[0] != v.ID {
		t.Fatalf("expected unpriced view, got %+v", view)
	}
	if !guests.has("unpriced") {
		t.Fatal("expected guest cart to be stored")
	}

	if _, err := svc.Get(context.Background(), Guest("unpriced")); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected read to surface the pricing failure, got %v", err)
	}
}

func TestMergeCommitsWhenPricingFails(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := inventory.NewRepository(conn)
	guests := newMemoryGuests()
	params := ServiceParams{
		Repo:     NewRepository(conn),
		Tx:       db.NewFromConn(conn),
		Guests:   guests,
		GuestTTL: time.Hour,
		Variants: ledger,
	}
	quotes, err := pricing.NewService(pricing.NewCalculator(decimal.RequireFromString("10.00"), "usd"), ledger)
	if err != nil {
		t.Fatalf("pricing service: %v", err)
	}
	params.Pricing = quotes
	seeding, err := NewService(params)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	params.Pricing = failingQuoter{}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}

	ctx := context.Background()
	account := dbtest.SeedAccount(t, conn)
	v := dbtest.SeedVariant(t, conn, "8.00", 5)
	if _, err := seeding.AddLine(ctx, Guest("pre-login"), v.ID, 2); err != nil {
		t.Fatalf("seed guest: %v", err)
	}

	result, err := svc.Merge(ctx, "pre-login", account.ID)
	if err != nil {
		t.Fatalf("expected committed merge to succeed, got %v", err)
	}
	if result.MergedLines != 1 || len(result.Cart.Unavailable) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if guests.has("pre-login") {
		t.Fatal("expected guest cart to stay claimed")
	}
	var rows int64
	conn.Model(&models.CartLine{}).Count(&rows)
	if rows != 1 {
		t.Fatalf("expected merged account line, got %d rows", rows)
	}
}
