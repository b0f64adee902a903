package models

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is written once at checkout. Only Status changes afterwards.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	AccountID         uuid.UUID         `gorm:"column:account_id;type:uuid;not null;index"`
	ShippingAddressID uuid.UUID         `gorm:"column:shipping_address_id;type:uuid;not null"`
	BillingAddressID  uuid.UUID         `gorm:"column:billing_address_id;type:uuid;not null"`
	TotalAmount       decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaymentReference  string            `gorm:"column:payment_reference;not null;uniqueIndex"`
	Status            enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Lines             []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ShippingAddress   *Address          `gorm:"foreignKey:ShippingAddressID;references:ID"`
	BillingAddress    *Address          `gorm:"foreignKey:BillingAddressID;references:ID"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	if o.Status == "" {
		o.Status = enums.OrderStatusPending
	}
	return nil
}

// OrderLine snapshots the unit price paid for a variant.
type OrderLine struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	VariantID uuid.UUID       `gorm:"column:variant_id;type:uuid;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Variant   *Variant        `gorm:"foreignKey:VariantID;references:ID"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// LineTotal is quantity times the snapshotted price.
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
