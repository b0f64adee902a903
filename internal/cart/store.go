package cart

import (
	"context"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// mutation transforms the current lines into the next ones. Returning an
// error leaves the stored cart untouched.
type mutation func(Lines) (Lines, error)

// lineStore is the storage-specific half of a cart. The service resolves an
// Identity to exactly one store and never branches on the owner kind again.
type lineStore interface {
	Load(ctx context.Context) (Lines, error)
	Mutate(ctx context.Context, fn mutation) (Lines, error)
	Clear(ctx context.Context) error
}

// storageError tags raw backend failures while passing through errors that
// already carry a code, such as those raised by a mutation.
func storageError(code pkgerrors.Code, err error, message string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(code, err, message)
}
