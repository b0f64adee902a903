package addresses

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).Create(address).Error
}

// ClearDefault unsets the default flag on every address of the account.
func (r *Repository) ClearDefault(ctx context.Context, accountID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("account_id = ? AND is_default = ?", accountID, true).
		Update("is_default", false).Error
}

func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Address, error) {
	var rows []models.Address
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("is_default DESC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOwned loads the address only when it belongs to accountID.
func (r *Repository) FindOwned(ctx context.Context, accountID, addressID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", addressID, accountID).
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}
