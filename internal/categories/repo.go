package categories

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
	Create(ctx context.Context, category *models.Category) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	SetParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error
	DetachChildren(ctx context.Context, parentID uuid.UUID) error
	CountProducts(ctx context.Context, id uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
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

func (r *repository) Create(ctx context.Context, category *models.Category) error {
	return r.base.DB(ctx).Create(category).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&category).Error; err != nil {
		return nil, repo.NotFound(err, "category")
	}
	return &category, nil
}

func (r *repository) SetParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	return r.base.DB(ctx).
		Model(&models.Category{}).
		Where("id = ?", id).
		Updates(map[string]any{"parent_category_id": parentID, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) DetachChildren(ctx context.Context, parentID uuid.UUID) error {
	return r.base.DB(ctx).
		Model(&models.Category{}).
		Where("parent_category_id = ?", parentID).
		Updates(map[string]any{"parent_category_id": nil, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) CountProducts(ctx context.Context, id uuid.UUID) (int64, error) {
	var n int64
	err := r.base.DB(ctx).Model(&models.Product{}).Where("category_id = ?", id).Count(&n).Error
	return n, err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.base.DB(ctx).Where("id = ?", id).Delete(&models.Category{}).Error
}
