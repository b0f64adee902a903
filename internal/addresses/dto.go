package addresses

import (
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
)

// CreateAddressRequest is the payload accepted when saving an address.
type CreateAddressRequest struct {
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	State      string  `json:"state" validate:"required"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country" validate:"required,len=2"`
	IsDefault  bool    `json:"is_default"`
}

// AddressDTO is the client view of an address.
type AddressDTO struct {
	ID         uuid.UUID `json:"id"`
	Line1      string    `json:"line1"`
	Line2      *string   `json:"line2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	IsDefault  bool      `json:"is_default"`
}

func (r CreateAddressRequest) toModel(accountID uuid.UUID) *models.Address {
	return &models.Address{
		AccountID:  accountID,
		Line1:      strings.TrimSpace(r.Line1),
		Line2:      r.Line2,
		City:       strings.TrimSpace(r.City),
		State:      strings.TrimSpace(r.State),
		PostalCode: strings.TrimSpace(r.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(r.Country)),
		IsDefault:  r.IsDefault,
	}
}

func FromModel(a models.Address) AddressDTO {
	return AddressDTO{
		ID:         a.ID,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		IsDefault:  a.IsDefault,
	}
}
