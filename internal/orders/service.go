package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service places orders and serves order history.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
	List(ctx context.Context, accountID uuid.UUID, page pagination.Params) (*Page, error)
	Get(ctx context.Context, accountID, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
}

// ServiceParams bundles the dependencies of the orders service.
type ServiceParams struct {
	Repo       Repository
	Carts      cart.CartRepository
	Inventory  inventory.Ledger
	Calculator *pricing.Calculator
	Tx         txRunner
	Logger     *logger.Logger
}

type service struct {
	repo  Repository
	carts cart.CartRepository
	stock inventory.Ledger
	calc  *pricing.Calculator
	tx    txRunner
	logg  *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Calculator == nil {
		return nil, fmt.Errorf("pricing calculator required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:  params.Repo,
		carts: params.Carts,
		stock: params.Inventory,
		calc:  params.Calculator,
		tx:    params.Tx,
		logg:  params.Logger,
	}, nil
}

// PlaceOrder converts the account cart into an order in one transaction.
// The cart row and every variant row stay locked until commit, so two
// checkouts competing for the last unit serialize and the loser sees the
// decremented stock.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if err := validatePlaceOrder(input); err != nil {
		return nil, err
	}

	var orderID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		carts := s.carts.WithTx(tx)
		stock := s.stock.WithTx(tx)

		for _, addressID := range []uuid.UUID{input.ShippingAddressID, input.BillingAddressID} {
			owned, err := repo.AddressOwned(ctx, input.AccountID, addressID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check address ownership")
			}
			if !owned {
				return pkgerrors.New(pkgerrors.CodeNotFound, "address not found").
					WithDetails(map[string]any{"address_id": addressID})
			}
		}

		accountCart, err := carts.LockByAccount(ctx, input.AccountID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyCart()
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock cart")
		}
		cartLines, err := carts.ListLines(ctx, accountCart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart lines")
		}
		if len(cartLines) == 0 {
			return emptyCart()
		}

		variantIDs := make([]uuid.UUID, 0, len(cartLines))
		for _, line := range cartLines {
			variantIDs = append(variantIDs, line.VariantID)
		}
		locked, err := stock.LockForUpdate(ctx, variantIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock variants")
		}
		available := make(map[uuid.UUID]int, len(locked))
		for _, v := range locked {
			available[v.ID] = v.StockQuantity
		}
		for _, line := range cartLines {
			if line.Quantity > available[line.VariantID] {
				return insufficientStock(line.VariantID, available[line.VariantID])
			}
		}

		prices := inventory.PriceIndex(locked)
		items := make([]pricing.Item, 0, len(cartLines))
		for _, line := range cartLines {
			items = append(items, pricing.Item{VariantID: line.VariantID, Quantity: line.Quantity})
		}
		// The stored total is the item subtotal. Shipping is charged through
		// the payment intent but not recorded on the order.
		total, err := s.calc.Subtotal(items, prices)
		if err != nil {
			return err
		}
		if payable := pricing.MinorUnits(s.calc.Payable(total)); payable != input.PaidMinor {
			return pkgerrors.New(pkgerrors.CodePaymentRejected, "cart changed after payment").
				WithDetails(map[string]any{"paid": input.PaidMinor, "payable": payable})
		}

		order := &models.Order{
			AccountID:         input.AccountID,
			ShippingAddressID: input.ShippingAddressID,
			BillingAddressID:  input.BillingAddressID,
			TotalAmount:       total,
			PaymentReference:  input.PaymentReference,
			Status:            enums.OrderStatusPending,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "payment reference already used")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		lines := make([]models.OrderLine, 0, len(cartLines))
		for _, line := range cartLines {
			lines = append(lines, models.OrderLine{
				OrderID:   order.ID,
				VariantID: line.VariantID,
				Quantity:  line.Quantity,
				Price:     prices[line.VariantID].Round(pricing.MinorUnitPlaces),
			})
		}
		if err := repo.CreateLines(ctx, lines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order lines")
		}

		for _, line := range cartLines {
			ok, err := stock.Decrement(ctx, line.VariantID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
			}
			if !ok {
				return insufficientStock(line.VariantID, available[line.VariantID])
			}
		}

		if err := carts.DeleteLines(ctx, accountCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		orderID = order.ID
		return nil
	})
	if err != nil {
		s.logFailure(ctx, input, err)
		return nil, err
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
			"total":    order.TotalAmount.StringFixed(2),
			"lines":    len(order.Lines),
		}), "order placed")
	}
	return order, nil
}

// List returns one page of the account's orders, newest first.
func (s *service) List(ctx context.Context, accountID uuid.UUID, page pagination.Params) (*Page, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account is required")
	}
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]any{"field": "cursor"})
	}
	limit := pagination.NormalizeLimit(page.Limit)
	rows, err := s.repo.ListByAccount(ctx, accountID, pagination.LimitWithBuffer(page.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}

	result := &Page{Orders: rows}
	if len(rows) > limit {
		result.Orders = rows[:limit]
		last := result.Orders[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}

// Get returns one order. Orders of other accounts are reported as missing.
func (s *service) Get(ctx context.Context, accountID, orderID uuid.UUID) (*models.Order, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, orderNotFound()
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.AccountID != accountID {
		return nil, orderNotFound()
	}
	return order, nil
}

// UpdateStatus moves an order along its fulfillment lifecycle. Setting the
// current status again is a no-op.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": status})
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return orderNotFound()
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if order.Status == status {
			return nil
		}
		if !CanTransition(order.Status, status) {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cannot move order from %s to %s", order.Status, status))
		}
		if err := repo.UpdateStatus(ctx, order.ID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	return order, nil
}

func (s *service) logFailure(ctx context.Context, input PlaceOrderInput, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"account_id":        input.AccountID.String(),
		"payment_reference": input.PaymentReference,
	})
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeInternal {
		s.logg.Warn(s.logg.WithField(ctx, "code", string(typed.Code())), "place order rejected")
		return
	}
	s.logg.Error(ctx, "place order failed", err)
}

func validatePlaceOrder(input PlaceOrderInput) error {
	if input.AccountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "account is required")
	}
	missing := []string{}
	if input.ShippingAddressID == uuid.Nil {
		missing = append(missing, "shipping_address_id")
	}
	if input.BillingAddressID == uuid.Nil {
		missing = append(missing, "billing_address_id")
	}
	if strings.TrimSpace(input.PaymentReference) == "" {
		missing = append(missing, "payment_intent_id")
	}
	if input.PaidMinor <= 0 {
		missing = append(missing, "paid_amount")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "missing required fields").
			WithDetails(map[string]any{"fields": missing})
	}
	return nil
}

func emptyCart() error {
	return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
}

func insufficientStock(variantID uuid.UUID, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{"variant_id": variantID, "available": available})
}

func orderNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}
