package cart

import "github.com/google/uuid"

// AddLineRequest is the body of POST /cart.
type AddLineRequest struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// SetQuantityRequest is the body of PUT /cart/{variantId}. A pointer keeps an
// explicit zero distinguishable from a missing field.
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=1"`
}
