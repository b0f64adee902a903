package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/internal/addresses"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlaceOrderInput carries the checkout request of an authenticated account.
// PaidMinor is the amount the payment intent captured, in minor units; the
// locked cart must price to exactly that payable.
type PlaceOrderInput struct {
	AccountID         uuid.UUID
	ShippingAddressID uuid.UUID
	BillingAddressID  uuid.UUID
	PaymentReference  string
	PaidMinor         int64
}

// OrderLineDTO is an order line as returned to clients.
type OrderLineDTO struct {
	VariantID   uuid.UUID       `json:"variant_id"`
	ProductName string          `json:"product_name,omitempty"`
	Size        string          `json:"size,omitempty"`
	Color       string          `json:"color,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderDTO is the client view of an order.
type OrderDTO struct {
	OrderID           uuid.UUID             `json:"order_id"`
	Status            enums.OrderStatus     `json:"status"`
	TotalAmount       decimal.Decimal       `json:"total_amount"`
	PaymentReference  string                `json:"payment_reference"`
	ShippingAddressID uuid.UUID             `json:"shipping_address_id"`
	BillingAddressID  uuid.UUID             `json:"billing_address_id"`
	ShippingAddress   *addresses.AddressDTO `json:"shipping_address,omitempty"`
	BillingAddress    *addresses.AddressDTO `json:"billing_address,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	Lines             []OrderLineDTO        `json:"lines"`
}

// OrderList wraps one page of an account's history.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// Page is a slice of order history plus the cursor of the following page.
type Page struct {
	Orders     []models.Order
	NextCursor string
}

// FromModel maps a persisted order to its client view.
func FromModel(order models.Order) OrderDTO {
	lines := make([]OrderLineDTO, 0, len(order.Lines))
	for _, line := range order.Lines {
		dto := OrderLineDTO{
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			Price:     line.Price,
			LineTotal: line.LineTotal(),
		}
		if line.Variant != nil {
			dto.Size = line.Variant.Size
			dto.Color = line.Variant.Color
			if line.Variant.Product != nil {
				dto.ProductName = line.Variant.Product.Name
			}
		}
		lines = append(lines, dto)
	}
	return OrderDTO{
		OrderID:           order.ID,
		Status:            order.Status,
		TotalAmount:       order.TotalAmount,
		PaymentReference:  order.PaymentReference,
		ShippingAddressID: order.ShippingAddressID,
		BillingAddressID:  order.BillingAddressID,
		ShippingAddress:   addressView(order.ShippingAddress),
		BillingAddress:    addressView(order.BillingAddress),
		CreatedAt:         order.CreatedAt,
		Lines:             lines,
	}
}

func addressView(a *models.Address) *addresses.AddressDTO {
	if a == nil {
		return nil
	}
	dto := addresses.FromModel(*a)
	return &dto
}
