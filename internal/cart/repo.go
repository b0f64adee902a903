package cart

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRepository defines the persistence surface for account carts.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByAccount(ctx context.Context, accountID uuid.UUID) (*models.Cart, error)
	LockByAccount(ctx context.Context, accountID uuid.UUID) (*models.Cart, error)
	LockOrCreate(ctx context.Context, accountID uuid.UUID) (*models.Cart, error)
	ListLines(ctx context.Context, cartID uuid.UUID) ([]models.CartLine, error)
	SyncLines(ctx context.Context, cartID uuid.UUID, current []models.CartLine, next Lines) error
	DeleteLines(ctx context.Context, cartID uuid.UUID) error
}

// Repository persists account carts with GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByAccount loads the account cart and its lines without locking.
func (r *Repository) FindByAccount(ctx context.Context, accountID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("account_id = ?", accountID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// LockByAccount reads the cart row FOR UPDATE. Returns gorm.ErrRecordNotFound
// when the account never had a cart.
func (r *Repository) LockByAccount(ctx context.Context, accountID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ?", accountID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// LockOrCreate ensures the account has a cart row and locks it.
func (r *Repository) LockOrCreate(ctx context.Context, accountID uuid.UUID) (*models.Cart, error) {
	seed := models.Cart{AccountID: accountID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "account_id"}}, DoNothing: true}).
		Create(&seed).Error; err != nil {
		return nil, err
	}
	return r.LockByAccount(ctx, accountID)
}

// ListLines returns the lines of a cart in insertion order.
func (r *Repository) ListLines(ctx context.Context, cartID uuid.UUID) ([]models.CartLine, error) {
	var rows []models.CartLine
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SyncLines writes the difference between current and next: removed lines are
// deleted, changed quantities updated and new variants inserted.
func (r *Repository) SyncLines(ctx context.Context, cartID uuid.UUID, current []models.CartLine, next Lines) error {
	tx := r.db.WithContext(ctx)

	wanted := make(map[uuid.UUID]int, len(next))
	for _, line := range next {
		wanted[line.VariantID] = line.Quantity
	}

	existing := make(map[uuid.UUID]models.CartLine, len(current))
	for _, row := range current {
		existing[row.VariantID] = row
		qty, keep := wanted[row.VariantID]
		switch {
		case !keep:
			if err := tx.Delete(&models.CartLine{}, "id = ?", row.ID).Error; err != nil {
				return err
			}
		case qty != row.Quantity:
			if err := tx.Model(&models.CartLine{}).
				Where("id = ?", row.ID).
				Update("quantity", qty).Error; err != nil {
				return err
			}
		}
	}

	var inserts []models.CartLine
	for _, line := range next {
		if _, ok := existing[line.VariantID]; ok {
			continue
		}
		inserts = append(inserts, models.CartLine{CartID: cartID, VariantID: line.VariantID, Quantity: line.Quantity})
	}
	if len(inserts) == 0 {
		return nil
	}
	return tx.Create(&inserts).Error
}

// DeleteLines empties a cart.
func (r *Repository) DeleteLines(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartLine{}).Error
}

func linesFromRows(rows []models.CartLine) Lines {
	out := make(Lines, 0, len(rows))
	for _, row := range rows {
		out = append(out, Line{VariantID: row.VariantID, Quantity: row.Quantity})
	}
	return out
}
