package cart

import (
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
)

// Line is one variant in a cart. Quantity is always >= 1.
type Line struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}

// Lines holds at most one Line per variant. Methods return a new slice and
// leave the receiver untouched.
type Lines []Line

func (l Lines) index(variantID uuid.UUID) int {
	for i, line := range l {
		if line.VariantID == variantID {
			return i
		}
	}
	return -1
}

// Add appends a line or increments the existing line for the variant.
func (l Lines) Add(variantID uuid.UUID, qty int) (Lines, error) {
	if qty < 1 {
		return nil, invalidQuantity()
	}
	out := append(Lines(nil), l...)
	if i := out.index(variantID); i >= 0 {
		out[i].Quantity += qty
		return out, nil
	}
	return append(out, Line{VariantID: variantID, Quantity: qty}), nil
}

// Set replaces the quantity of an existing line.
func (l Lines) Set(variantID uuid.UUID, qty int) (Lines, error) {
	if qty < 1 {
		return nil, invalidQuantity()
	}
	i := l.index(variantID)
	if i < 0 {
		return nil, lineNotFound(variantID)
	}
	out := append(Lines(nil), l...)
	out[i].Quantity = qty
	return out, nil
}

// Remove drops the line for the variant.
func (l Lines) Remove(variantID uuid.UUID) (Lines, error) {
	i := l.index(variantID)
	if i < 0 {
		return nil, lineNotFound(variantID)
	}
	out := make(Lines, 0, len(l)-1)
	out = append(out, l[:i]...)
	return append(out, l[i+1:]...), nil
}

// VariantIDs lists the variants referenced by the lines.
func (l Lines) VariantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(l))
	for _, line := range l {
		ids = append(ids, line.VariantID)
	}
	return ids
}

// Items converts the lines into pricing input.
func (l Lines) Items() []pricing.Item {
	items := make([]pricing.Item, 0, len(l))
	for _, line := range l {
		items = append(items, pricing.Item{VariantID: line.VariantID, Quantity: line.Quantity})
	}
	return items
}

func invalidQuantity() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
		WithDetails(map[string]any{"field": "quantity"})
}

func lineNotFound(variantID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "item not found in cart").
		WithDetails(map[string]any{"variant_id": variantID})
}
