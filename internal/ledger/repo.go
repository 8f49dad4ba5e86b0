package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/repo"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/pagination"
)

// Repository manages persistence for inventory log entries. Entries are only
// ever inserted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry *models.InventoryLog) error
	ListByProduct(ctx context.Context, productID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.InventoryLog, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryLog, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Append(ctx context.Context, entry *models.InventoryLog) error {
	return r.base.DB(ctx).Create(entry).Error
}

func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.InventoryLog, error) {
	query := r.base.DB(ctx).Where("product_id = ?", productID).Scopes(cursor.After(""))

	var entries []models.InventoryLog
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryLog, error) {
	var entries []models.InventoryLog
	if err := r.base.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
