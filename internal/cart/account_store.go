package cart

import (
	"context"
	"errors"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// accountStore keeps an account cart in the database. Mutations lock the
// cart row so concurrent writers for the same account serialize.
type accountStore struct {
	repo      CartRepository
	tx        txRunner
	accountID uuid.UUID
}

func newAccountStore(repo CartRepository, tx txRunner, accountID uuid.UUID) *accountStore {
	return &accountStore{repo: repo, tx: tx, accountID: accountID}
}

func (s *accountStore) Load(ctx context.Context) (Lines, error) {
	cart, err := s.repo.FindByAccount(ctx, s.accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Lines{}, nil
	}
	if err != nil {
		return nil, storageError(pkgerrors.CodeInternal, err, "load account cart")
	}
	return linesFromRows(cart.Lines), nil
}

func (s *accountStore) Mutate(ctx context.Context, fn mutation) (Lines, error) {
	var next Lines
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.LockOrCreate(ctx, s.accountID)
		if err != nil {
			return err
		}
		rows, err := repo.ListLines(ctx, cart.ID)
		if err != nil {
			return err
		}
		next, err = fn(linesFromRows(rows))
		if err != nil {
			return err
		}
		return repo.SyncLines(ctx, cart.ID, rows, next)
	})
	if err != nil {
		return nil, storageError(pkgerrors.CodeInternal, err, "update account cart")
	}
	return next, nil
}

func (s *accountStore) Clear(ctx context.Context) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.LockByAccount(ctx, s.accountID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return repo.DeleteLines(ctx, cart.ID)
	})
	return storageError(pkgerrors.CodeInternal, err, "clear account cart")
}
