package cart

import (
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
)

// IdentityKind distinguishes guest carts from account carts.
type IdentityKind string

const (
	KindGuest   IdentityKind = "guest"
	KindAccount IdentityKind = "account"
)

// Identity names the owner of a cart. It is either a guest session handle or
// an account id, never both. Build it with Guest or Account.
type Identity struct {
	kind      IdentityKind
	session   string
	accountID uuid.UUID
}

// Guest identifies the cart bound to a browser session.
func Guest(session string) Identity {
	return Identity{kind: KindGuest, session: strings.TrimSpace(session)}
}

// Account identifies the durable cart of a registered account.
func Account(accountID uuid.UUID) Identity {
	return Identity{kind: KindAccount, accountID: accountID}
}

func (i Identity) Kind() IdentityKind   { return i.kind }
func (i Identity) Session() string      { return i.session }
func (i Identity) AccountID() uuid.UUID { return i.accountID }

// Key is the session handle or the account id, for logging.
func (i Identity) Key() string {
	if i.kind == KindAccount {
		return i.accountID.String()
	}
	return i.session
}

// Validate rejects zero identities and empty keys.
func (i Identity) Validate() error {
	switch i.kind {
	case KindGuest:
		if i.session == "" {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "guest session is required")
		}
	case KindAccount:
		if i.accountID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "account is required")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "cart identity is required")
	}
	return nil
}
