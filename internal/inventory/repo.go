package inventory

import (
	"context"
	"sort"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger is the persistence surface over variant stock and prices.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Variant, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	LockForUpdate(ctx context.Context, ids []uuid.UUID) ([]models.Variant, error)
	Decrement(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) error
}

// Repository implements Ledger with GORM.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByIDs loads the variants that exist among ids. Unknown ids are skipped.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Variant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Variant
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// LockForUpdate reads the variants with a row lock held until the surrounding
// transaction ends. Rows are locked in id order so concurrent checkouts that
// share variants cannot deadlock.
func (r *Repository) LockForUpdate(ctx context.Context, ids []uuid.UUID) ([]models.Variant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ordered := SortedIDs(ids)
	var rows []models.Variant
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ordered).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Decrement subtracts qty from stock only when enough remains. It reports
// false when the guard rejected the update.
func (r *Repository) Decrement(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ? AND stock_quantity >= ?", id, qty).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ?", id).
		Update("price", price)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SortedIDs returns a deduplicated copy of ids in ascending order.
func SortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// PriceIndex maps variant ids to their current unit price.
func PriceIndex(variants []models.Variant) map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(variants))
	for _, v := range variants {
		out[v.ID] = v.Price
	}
	return out
}
