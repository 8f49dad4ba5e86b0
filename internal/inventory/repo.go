package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/repo"
	"github.com/angelmondragon/shopcore/pkg/db/models"
)

// StockSnapshot is the observed stock row a compare-and-set is based on.
type StockSnapshot struct {
	ProductID     uuid.UUID
	StockQuantity int
	IsActive      bool
}

// Repository reads and conditionally updates product stock.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Snapshot(ctx context.Context, productID uuid.UUID) (*StockSnapshot, error)
	CompareAndSetStock(ctx context.Context, productID uuid.UUID, observed, next int) error
}

type repository struct {
	base repo.Base
}

// NewRepository returns an inventory repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Snapshot(ctx context.Context, productID uuid.UUID) (*StockSnapshot, error) {
	var product models.Product
	err := r.base.DB(ctx).
		Select("id", "stock_quantity", "is_active").
		Where("id = ?", productID).
		Take(&product).Error
	if err != nil {
		return nil, repo.NotFound(err, "product")
	}
	return &StockSnapshot{
		ProductID:     product.ID,
		StockQuantity: product.StockQuantity,
		IsActive:      product.IsActive,
	}, nil
}

// CompareAndSetStock writes next only if the row still holds observed.
func (r *repository) CompareAndSetStock(ctx context.Context, productID uuid.UUID, observed, next int) error {
	result := r.base.DB(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity = ?", productID, observed).
		Updates(map[string]any{
			"stock_quantity": next,
			"updated_at":     time.Now().UTC(),
		})
	return repo.Affected(result, "product stock")
}
