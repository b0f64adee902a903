package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/google/uuid"
)

const (
	mergeResultMerged = "merged"
	mergeResultNoop   = "noop"
	mergeResultFailed = "failed"
)

type variantLookup interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Variant, error)
}

type quoter interface {
	QuoteItems(ctx context.Context, items []pricing.Item) (*pricing.Quote, error)
}

// Service manages guest and account carts.
type Service interface {
	Get(ctx context.Context, id Identity) (*pricing.Quote, error)
	AddLine(ctx context.Context, id Identity, variantID uuid.UUID, qty int) (*pricing.Quote, error)
	SetLineQuantity(ctx context.Context, id Identity, variantID uuid.UUID, qty int) (*pricing.Quote, error)
	RemoveLine(ctx context.Context, id Identity, variantID uuid.UUID) (*pricing.Quote, error)
	Clear(ctx context.Context, id Identity) error
	Merge(ctx context.Context, session string, accountID uuid.UUID) (*MergeResult, error)
}

// MergeResult reports what a guest-to-account merge did.
type MergeResult struct {
	MergedLines  int            `json:"merged_lines"`
	DroppedLines []uuid.UUID    `json:"dropped_variant_ids,omitempty"`
	Cart         *pricing.Quote `json:"cart"`
}

// ServiceParams bundles the dependencies of the cart service.
type ServiceParams struct {
	Repo     CartRepository
	Tx       txRunner
	Guests   GuestBackend
	GuestTTL time.Duration
	Variants variantLookup
	Pricing  quoter
	Metrics  *metrics.CartMetrics
	Logger   *logger.Logger
}

type service struct {
	repo     CartRepository
	tx       txRunner
	guests   GuestBackend
	guestTTL time.Duration
	variants variantLookup
	pricing  quoter
	metrics  *metrics.CartMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Guests == nil {
		return nil, fmt.Errorf("guest cart backend required")
	}
	if params.Variants == nil {
		return nil, fmt.Errorf("variant lookup required")
	}
	if params.Pricing == nil {
		return nil, fmt.Errorf("pricing service required")
	}
	if params.GuestTTL <= 0 {
		return nil, fmt.Errorf("guest cart ttl must be positive")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		guests:   params.Guests,
		guestTTL: params.GuestTTL,
		variants: params.Variants,
		pricing:  params.Pricing,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

func (s *service) storeFor(id Identity) (lineStore, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if id.Kind() == KindAccount {
		return newAccountStore(s.repo, s.tx, id.AccountID()), nil
	}
	return newGuestStore(s.guests, id.Session(), s.guestTTL), nil
}

func (s *service) Get(ctx context.Context, id Identity) (*pricing.Quote, error) {
	store, err := s.storeFor(id)
	if err != nil {
		return nil, err
	}
	lines, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.pricing.QuoteItems(ctx, lines.Items())
}

func (s *service) AddLine(ctx context.Context, id Identity, variantID uuid.UUID, qty int) (*pricing.Quote, error) {
	store, err := s.storeFor(id)
	if err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, invalidQuantity()
	}
	if err := s.requireVariant(ctx, variantID); err != nil {
		return nil, err
	}
	lines, err := store.Mutate(ctx, func(current Lines) (Lines, error) {
		return current.Add(variantID, qty)
	})
	if err != nil {
		return nil, err
	}
	return s.viewAfterWrite(ctx, lines), nil
}

func (s *service) SetLineQuantity(ctx context.Context, id Identity, variantID uuid.UUID, qty int) (*pricing.Quote, error) {
	store, err := s.storeFor(id)
	if err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, invalidQuantity()
	}
	lines, err := store.Mutate(ctx, func(current Lines) (Lines, error) {
		return current.Set(variantID, qty)
	})
	if err != nil {
		return nil, err
	}
	return s.viewAfterWrite(ctx, lines), nil
}

func (s *service) RemoveLine(ctx context.Context, id Identity, variantID uuid.UUID) (*pricing.Quote, error) {
	store, err := s.storeFor(id)
	if err != nil {
		return nil, err
	}
	lines, err := store.Mutate(ctx, func(current Lines) (Lines, error) {
		return current.Remove(variantID)
	})
	if err != nil {
		return nil, err
	}
	return s.viewAfterWrite(ctx, lines), nil
}

func (s *service) Clear(ctx context.Context, id Identity) error {
	store, err := s.storeFor(id)
	if err != nil {
		return err
	}
	return store.Clear(ctx)
}

// Merge folds the guest cart of session into the account cart. The guest
// cart is claimed with GETDEL before the transaction starts, so a repeated
// merge of the same session finds nothing to do. Claimed lines are written
// back if the account cart cannot be updated.
func (s *service) Merge(ctx context.Context, session string, accountID uuid.UUID) (*MergeResult, error) {
	guestID, accountOwner := Guest(session), Account(accountID)
	if err := guestID.Validate(); err != nil {
		return nil, err
	}
	if err := accountOwner.Validate(); err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"account_id": accountID.String(), "cart_key": session})
	}

	guest := newGuestStore(s.guests, session, s.guestTTL)
	claimed, err := guest.Take(ctx)
	if err != nil {
		s.metrics.ObserveMerge(mergeResultFailed, 0)
		return nil, err
	}
	if len(claimed) == 0 {
		s.metrics.ObserveMerge(mergeResultNoop, 0)
		view, err := s.Get(ctx, accountOwner)
		if err != nil {
			return nil, err
		}
		return &MergeResult{Cart: view}, nil
	}

	known, dropped, err := s.partitionKnown(ctx, claimed)
	if err != nil {
		s.restoreGuest(ctx, guest, claimed)
		s.metrics.ObserveMerge(mergeResultFailed, 0)
		return nil, err
	}
	for _, variantID := range dropped {
		s.warn(s.withField(ctx, "variant_id", variantID.String()), "dropping guest cart line for unknown variant")
	}

	account := newAccountStore(s.repo, s.tx, accountID)
	lines, err := account.Mutate(ctx, func(current Lines) (Lines, error) {
		next := current
		for _, line := range known {
			var addErr error
			if next, addErr = next.Add(line.VariantID, line.Quantity); addErr != nil {
				return nil, addErr
			}
		}
		return next, nil
	})
	if err != nil {
		s.restoreGuest(ctx, guest, claimed)
		s.metrics.ObserveMerge(mergeResultFailed, 0)
		return nil, err
	}
	s.metrics.ObserveMerge(mergeResultMerged, len(known))
	s.info(ctx, fmt.Sprintf("merged %d guest cart lines", len(known)))

	return &MergeResult{MergedLines: len(known), DroppedLines: dropped, Cart: s.viewAfterWrite(ctx, lines)}, nil
}

// viewAfterWrite prices lines that are already stored. The write stands even
// when pricing fails; the cart is then returned unpriced with every variant
// listed as unavailable.
func (s *service) viewAfterWrite(ctx context.Context, lines Lines) *pricing.Quote {
	quote, err := s.pricing.QuoteItems(ctx, lines.Items())
	if err == nil {
		return quote
	}
	if s.logg != nil {
		s.logg.Error(ctx, "price cart after write", err)
	}
	return &pricing.Quote{Lines: []pricing.PricedLine{}, Unavailable: lines.VariantIDs()}
}

func (s *service) partitionKnown(ctx context.Context, lines Lines) (Lines, []uuid.UUID, error) {
	variants, err := s.variants.FindByIDs(ctx, lines.VariantIDs())
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variants")
	}
	exists := make(map[uuid.UUID]struct{}, len(variants))
	for _, v := range variants {
		exists[v.ID] = struct{}{}
	}
	known := make(Lines, 0, len(lines))
	var dropped []uuid.UUID
	for _, line := range lines {
		if _, ok := exists[line.VariantID]; ok {
			known = append(known, line)
			continue
		}
		dropped = append(dropped, line.VariantID)
	}
	return known, dropped, nil
}

func (s *service) restoreGuest(ctx context.Context, guest *guestStore, lines Lines) {
	if err := guest.Restore(ctx, lines); err != nil && s.logg != nil {
		s.logg.Error(ctx, "restore guest cart after failed merge", err)
	}
}

func (s *service) requireVariant(ctx context.Context, variantID uuid.UUID) error {
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant_id is required").
			WithDetails(map[string]any{"field": "variant_id"})
	}
	ok, err := s.variants.Exists(ctx, variantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check variant")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant does not exist").
			WithDetails(map[string]any{"variant_id": variantID})
	}
	return nil
}

func (s *service) withField(ctx context.Context, key string, value any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithField(ctx, key, value)
}

func (s *service) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

// AccountQuoter prices account carts for callers that only deal in account ids.
type AccountQuoter struct {
	Carts Service
}

func (q AccountQuoter) QuoteAccount(ctx context.Context, accountID uuid.UUID) (*pricing.Quote, error) {
	return q.Carts.Get(ctx, Account(accountID))
}
