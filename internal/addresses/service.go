package addresses

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the saved addresses of an account.
type Service interface {
	Create(ctx context.Context, accountID uuid.UUID, req CreateAddressRequest) (*AddressDTO, error)
	List(ctx context.Context, accountID uuid.UUID) ([]AddressDTO, error)
	FindOwned(ctx context.Context, accountID, addressID uuid.UUID) (*AddressDTO, error)
}

type service struct {
	repo *Repository
	tx   txRunner
}

func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// Create stores a new address. Marking it default clears the flag on the
// account's other addresses in the same transaction.
func (s *service) Create(ctx context.Context, accountID uuid.UUID, req CreateAddressRequest) (*AddressDTO, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account is required")
	}
	address := req.toModel(accountID)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if address.IsDefault {
			if err := repo.ClearDefault(ctx, accountID); err != nil {
				return err
			}
		}
		return repo.Create(ctx, address)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create address")
	}
	dto := FromModel(*address)
	return &dto, nil
}

func (s *service) List(ctx context.Context, accountID uuid.UUID) ([]AddressDTO, error) {
	rows, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

func (s *service) FindOwned(ctx context.Context, accountID, addressID uuid.UUID) (*AddressDTO, error) {
	row, err := s.repo.FindOwned(ctx, accountID, addressID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
	}
	dto := FromModel(*row)
	return &dto, nil
}
