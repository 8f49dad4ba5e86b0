package coupons

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/repo"
	"github.com/angelmondragon/shopcore/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, coupon *models.Coupon) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	IncrementUses(ctx context.Context, id uuid.UUID, observed int) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, coupon *models.Coupon) error {
	return r.base.DB(ctx).Create(coupon).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&coupon).Error; err != nil {
		return nil, repo.NotFound(err, "coupon")
	}
	return &coupon, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.base.DB(ctx).Where("code = ?", code).Take(&coupon).Error; err != nil {
		return nil, repo.NotFound(err, "coupon")
	}
	return &coupon, nil
}

// IncrementUses bumps uses_count from observed, refusing when another
// redemption got there first or the cap is reached.
func (r *repository) IncrementUses(ctx context.Context, id uuid.UUID, observed int) error {
	result := r.base.DB(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND uses_count = ?", id, observed).
		Where("max_uses IS NULL OR max_uses > ?", observed).
		Updates(map[string]any{
			"uses_count": observed + 1,
			"updated_at": time.Now().UTC(),
		})
	return repo.Affected(result, "coupon usage")
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result := r.base.DB(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": active, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repo.NotFound(gorm.ErrRecordNotFound, "coupon")
	}
	return nil
}
