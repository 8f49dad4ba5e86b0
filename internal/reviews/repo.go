package reviews

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/repo"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/pagination"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, review *models.Review) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	Exists(ctx context.Context, productID, customerID uuid.UUID) (bool, error)
	ProductExists(ctx context.Context, id uuid.UUID) (bool, error)
	CustomerExists(ctx context.Context, id uuid.UUID) (bool, error)
	SetApproved(ctx context.Context, id uuid.UUID, approved bool) error
	ListApproved(ctx context.Context, productID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Review, error)
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

func (r *repository) Create(ctx context.Context, review *models.Review) error {
	return r.base.DB(ctx).Create(review).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&review).Error; err != nil {
		return nil, repo.NotFound(err, "review")
	}
	return &review, nil
}

func (r *repository) Exists(ctx context.Context, productID, customerID uuid.UUID) (bool, error) {
	return r.exists(ctx, &models.Review{}, "product_id = ? AND customer_id = ?", productID, customerID)
}

func (r *repository) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, &models.Product{}, "id = ?", id)
}

func (r *repository) CustomerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, &models.Customer{}, "id = ?", id)
}

func (r *repository) exists(ctx context.Context, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := r.base.DB(ctx).Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) SetApproved(ctx context.Context, id uuid.UUID, approved bool) error {
	result := r.base.DB(ctx).
		Model(&models.Review{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_approved": approved, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repo.NotFound(gorm.ErrRecordNotFound, "review")
	}
	return nil
}

// ListApproved pages approved reviews newest first.
func (r *repository) ListApproved(ctx context.Context, productID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Review, error) {
	query := r.base.DB(ctx).
		Where("product_id = ? AND is_approved = ?", productID, true).
		Scopes(cursor.After(""))
	var reviews []models.Review
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}
