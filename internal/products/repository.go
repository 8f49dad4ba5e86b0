package products

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shopcore/internal/repo"
	"github.com/angelmondragon/shopcore/pkg/db/models"
)

// Repository persists products and their attributes and images.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindDetailed(ctx context.Context, id uuid.UUID) (*models.Product, error)
	SKUExists(ctx context.Context, sku string) (bool, error)
	CategoryExists(ctx context.Context, id uuid.UUID) (bool, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
	UpsertAttribute(ctx context.Context, attribute *models.ProductAttribute) (*models.ProductAttribute, error)
	CreateImage(ctx context.Context, image *models.ProductImage) error
	FindImage(ctx context.Context, productID, imageID uuid.UUID) (*models.ProductImage, error)
	SetPrimaryImage(ctx context.Context, productID, imageID uuid.UUID) error
	CountOrderItems(ctx context.Context, id uuid.UUID) (int64, error)
	DeleteCascade(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	base repo.Base
}

// NewRepository returns a product repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, product *models.Product) error {
	return r.base.DB(ctx).Omit(clause.Associations).Create(product).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&product).Error; err != nil {
		return nil, repo.NotFound(err, "product")
	}
	return &product, nil
}

func (r *repository) FindDetailed(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.base.DB(ctx).
		Preload("Attributes", func(db *gorm.DB) *gorm.DB { return db.Order("attribute_name ASC") }).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC").Order("created_at ASC") }).
		Where("id = ?", id).
		Take(&product).Error
	if err != nil {
		return nil, repo.NotFound(err, "product")
	}
	return &product, nil
}

func (r *repository) SKUExists(ctx context.Context, sku string) (bool, error) {
	var n int64
	err := r.base.DB(ctx).Model(&models.Product{}).Where("sku = ?", sku).Count(&n).Error
	return n > 0, err
}

func (r *repository) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	err := r.base.DB(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	result := r.base.DB(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repo.NotFound(gorm.ErrRecordNotFound, "product")
	}
	return nil
}

// UpsertAttribute inserts or overwrites the value for (product, name) and
// returns the stored row.
func (r *repository) UpsertAttribute(ctx context.Context, attribute *models.ProductAttribute) (*models.ProductAttribute, error) {
	db := r.base.DB(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "attribute_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"attribute_value"}),
	}).Create(attribute).Error
	if err != nil {
		return nil, err
	}

	var stored models.ProductAttribute
	if err := db.Where("product_id = ? AND attribute_name = ?", attribute.ProductID, attribute.Name).Take(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *repository) CreateImage(ctx context.Context, image *models.ProductImage) error {
	return r.base.DB(ctx).Create(image).Error
}

func (r *repository) FindImage(ctx context.Context, productID, imageID uuid.UUID) (*models.ProductImage, error) {
	var image models.ProductImage
	if err := r.base.DB(ctx).Where("id = ? AND product_id = ?", imageID, productID).Take(&image).Error; err != nil {
		return nil, repo.NotFound(err, "product image")
	}
	return &image, nil
}

// SetPrimaryImage flags imageID as primary and clears the flag on every other
// image of the product.
func (r *repository) SetPrimaryImage(ctx context.Context, productID, imageID uuid.UUID) error {
	db := r.base.DB(ctx)
	if err := db.Model(&models.ProductImage{}).
		Where("product_id = ? AND id <> ?", productID, imageID).
		Update("is_primary", false).Error; err != nil {
		return err
	}
	return db.Model(&models.ProductImage{}).
		Where("product_id = ? AND id = ?", productID, imageID).
		Update("is_primary", true).Error
}

func (r *repository) CountOrderItems(ctx context.Context, id uuid.UUID) (int64, error) {
	var n int64
	err := r.base.DB(ctx).Model(&models.OrderItem{}).Where("product_id = ?", id).Count(&n).Error
	return n, err
}

// DeleteCascade removes the product with its dependent rows. Callers must
// have checked that no order items reference it.
func (r *repository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	db := r.base.DB(ctx)
	for _, model := range []any{
		&models.CartItem{},
		&models.Review{},
		&models.InventoryLog{},
		&models.ProductAttribute{},
		&models.ProductImage{},
	} {
		if err := db.Where("product_id = ?", id).Delete(model).Error; err != nil {
			return err
		}
	}
	return db.Where("id = ?", id).Delete(&models.Product{}).Error
}
