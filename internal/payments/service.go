package payments

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/google/uuid"
)

type cartQuoter interface {
	QuoteAccount(ctx context.Context, accountID uuid.UUID) (*pricing.Quote, error)
}

// Service opens payment intents for the payable amount of an account cart.
type Service interface {
	CreateIntent(ctx context.Context, accountID uuid.UUID) (*Intent, error)
}

type service struct {
	gateway Gateway
	carts   cartQuoter
	logg    *logger.Logger
}

func NewService(gateway Gateway, carts cartQuoter, logg *logger.Logger) (Service, error) {
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart quoter required")
	}
	return &service{gateway: gateway, carts: carts, logg: logg}, nil
}

// CreateIntent prices the account cart server-side and opens an intent for
// its payable amount. The client never supplies the amount.
func (s *service) CreateIntent(ctx context.Context, accountID uuid.UUID) (*Intent, error) {
	quote, err := s.carts.QuoteAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := quote.RequireAvailable(); err != nil {
		return nil, err
	}
	if len(quote.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}
	intent, err := s.gateway.CreateIntent(ctx, quote.PayableMinor(), quote.Currency, map[string]string{
		MetadataAccountID: accountID.String(),
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"payment_intent_id": intent.ID,
			"amount":            intent.AmountMinor,
		}), "payment intent created")
	}
	return intent, nil
}
