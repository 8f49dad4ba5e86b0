package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/repo"
	"github.com/angelmondragon/shopcore/pkg/db/models"
)

// Repository persists customer addresses.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, address *models.Address) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Address, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Address, error)
	CountOrderReferences(ctx context.Context, id uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CustomerExists(ctx context.Context, customerID uuid.UUID) (bool, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns an address repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, address *models.Address) error {
	return r.base.DB(ctx).Create(address).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var address models.Address
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&address).Error; err != nil {
		return nil, repo.NotFound(err, "address")
	}
	return &address, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Address, error) {
	var addresses []models.Address
	if err := r.base.DB(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Find(&addresses).Error; err != nil {
		return nil, err
	}
	return addresses, nil
}

func (r *repository) CountOrderReferences(ctx context.Context, id uuid.UUID) (int64, error) {
	var n int64
	err := r.base.DB(ctx).
		Model(&models.Order{}).
		Where("shipping_address_id = ? OR billing_address_id = ?", id, id).
		Count(&n).Error
	return n, err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.base.DB(ctx).Where("id = ?", id).Delete(&models.Address{}).Error
}

func (r *repository) CustomerExists(ctx context.Context, customerID uuid.UUID) (bool, error) {
	var n int64
	err := r.base.DB(ctx).Model(&models.Customer{}).Where("id = ?", customerID).Count(&n).Error
	return n > 0, err
}
