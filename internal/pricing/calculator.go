package pricing

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinorUnitPlaces is the number of decimal places of the store currency.
const MinorUnitPlaces = 2

// Item is a quantity of one variant to be priced.
type Item struct {
	VariantID uuid.UUID
	Quantity  int
}

// PricedLine is an Item with the unit price it was priced at.
type PricedLine struct {
	VariantID uuid.UUID       `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Quote is the full price breakdown of a set of items. Unavailable lists
// variants that could not be priced; they are excluded from every total.
type Quote struct {
	Lines       []PricedLine    `json:"items"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Shipping    decimal.Decimal `json:"shipping"`
	Payable     decimal.Decimal `json:"payable"`
	Currency    string          `json:"currency"`
	Unavailable []uuid.UUID     `json:"unavailable_variant_ids,omitempty"`
}

// PayableMinor is the payable amount in the gateway's integer representation.
func (q *Quote) PayableMinor() int64 {
	return MinorUnits(q.Payable)
}

// RequireAvailable fails when any item could not be priced.
func (q *Quote) RequireAvailable() error {
	if len(q.Unavailable) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "cart contains items that are no longer available").
		WithDetails(map[string]any{"unavailable_variant_ids": q.Unavailable})
}

// Calculator derives totals from quantities and current unit prices. It holds
// no state besides configuration and never caches a result.
type Calculator struct {
	shipping decimal.Decimal
	currency string
}

func NewCalculator(shipping decimal.Decimal, currency string) *Calculator {
	return &Calculator{shipping: shipping.Round(MinorUnitPlaces), currency: currency}
}

// Shipping returns the flat surcharge added by Payable.
func (c *Calculator) Shipping() decimal.Decimal {
	return c.shipping
}

func (c *Calculator) Currency() string {
	return c.currency
}

// Subtotal is the sum of quantity times current unit price over items.
func (c *Calculator) Subtotal(items []Item, prices map[uuid.UUID]decimal.Decimal) (decimal.Decimal, error) {
	lines, err := priceLines(items, prices)
	if err != nil {
		return decimal.Zero, err
	}
	return sumLines(lines), nil
}

// Payable adds the flat shipping surcharge to subtotal.
func (c *Calculator) Payable(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Add(c.shipping).Round(MinorUnitPlaces)
}

// Quote prices every item. An empty item set ships nothing and is free.
func (c *Calculator) Quote(items []Item, prices map[uuid.UUID]decimal.Decimal) (*Quote, error) {
	lines, err := priceLines(items, prices)
	if err != nil {
		return nil, err
	}
	quote := &Quote{
		Lines:    lines,
		Subtotal: sumLines(lines),
		Shipping: decimal.Zero,
		Currency: c.currency,
	}
	if len(lines) > 0 {
		quote.Shipping = c.shipping
	}
	quote.Payable = quote.Subtotal.Add(quote.Shipping).Round(MinorUnitPlaces)
	return quote, nil
}

// MinorUnits converts a currency amount into integer cents.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(MinorUnitPlaces).Shift(MinorUnitPlaces).IntPart()
}

func priceLines(items []Item, prices map[uuid.UUID]decimal.Decimal) ([]PricedLine, error) {
	lines := make([]PricedLine, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"variant_id": item.VariantID})
		}
		price, ok := prices[item.VariantID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("variant %s has no price", item.VariantID)).
				WithDetails(map[string]any{"variant_id": item.VariantID})
		}
		unit := price.Round(MinorUnitPlaces)
		lines = append(lines, PricedLine{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: unit,
			LineTotal: unit.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(MinorUnitPlaces),
		})
	}
	return lines, nil
}

func sumLines(lines []PricedLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal)
	}
	return total.Round(MinorUnitPlaces)
}
