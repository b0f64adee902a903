package pricing

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type variantReader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Variant, error)
}

// Service quotes items against prices read from the catalog on every call.
type Service struct {
	calc     *Calculator
	variants variantReader
}

func NewService(calc *Calculator, variants variantReader) (*Service, error) {
	if calc == nil {
		return nil, fmt.Errorf("pricing calculator required")
	}
	if variants == nil {
		return nil, fmt.Errorf("variant reader required")
	}
	return &Service{calc: calc, variants: variants}, nil
}

// Calculator exposes the pure calculator for callers that already hold prices.
func (s *Service) Calculator() *Calculator {
	return s.calc
}

// QuoteItems loads current prices for items and prices them. Items whose
// variant no longer exists are reported in Quote.Unavailable.
func (s *Service) QuoteItems(ctx context.Context, items []Item) (*Quote, error) {
	if len(items) == 0 {
		return s.calc.Quote(nil, nil)
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.VariantID)
	}
	variants, err := s.variants.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant prices")
	}
	prices := make(map[uuid.UUID]decimal.Decimal, len(variants))
	for _, v := range variants {
		prices[v.ID] = v.Price
	}
	priced := make([]Item, 0, len(items))
	var unavailable []uuid.UUID
	for _, item := range items {
		if _, ok := prices[item.VariantID]; !ok {
			unavailable = append(unavailable, item.VariantID)
			continue
		}
		priced = append(priced, item)
	}
	quote, err := s.calc.Quote(priced, prices)
	if err != nil {
		return nil, err
	}
	quote.Unavailable = unavailable
	return quote, nil
}
