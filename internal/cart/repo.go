package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shopcore/internal/repo"
	"github.com/angelmondragon/shopcore/pkg/db/models"
)

// Repository exposes persistence operations for shopping carts.
type Repository struct {
	base repo.Base
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{base: r.base.WithTx(tx)}
}

// FindByCustomer loads the customer's cart with its lines, oldest first.
func (r *Repository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*models.ShoppingCart, error) {
	var cart models.ShoppingCart
	err := r.base.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Where("customer_id = ?", customerID).
		Take(&cart).Error
	if err != nil {
		return nil, repo.NotFound(err, "cart")
	}
	return &cart, nil
}

// EnsureCart returns the customer's cart, creating it if the customer has
// none yet.
func (r *Repository) EnsureCart(ctx context.Context, customerID uuid.UUID) (*models.ShoppingCart, error) {
	db := r.base.DB(ctx)
	cart := models.ShoppingCart{CustomerID: customerID}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}},
		DoNothing: true,
	}).Create(&cart).Error; err != nil {
		return nil, err
	}
	var stored models.ShoppingCart
	if err := db.Where("customer_id = ?", customerID).Take(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// AddQuantity inserts the line or increments the existing one.
func (r *Repository) AddQuantity(ctx context.Context, cartID, productID uuid.UUID, qty int) error {
	item := models.CartItem{CartID: cartID, ProductID: productID, Quantity: qty}
	return r.base.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":   gorm.Expr("cart_items.quantity + ?", qty),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&item).Error
}

// SetQuantity overwrites an existing line. A missing line is NOT_FOUND.
func (r *Repository) SetQuantity(ctx context.Context, cartID, productID uuid.UUID, qty int) error {
	result := r.base.DB(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Updates(map[string]any{"quantity": qty, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repo.NotFound(gorm.ErrRecordNotFound, "cart item")
	}
	return nil
}

// RemoveProducts deletes the lines for productIDs and reports how many went.
func (r *Repository) RemoveProducts(ctx context.Context, cartID uuid.UUID, productIDs []uuid.UUID) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}
	result := r.base.DB(ctx).
		Where("cart_id = ? AND product_id IN ?", cartID, productIDs).
		Delete(&models.CartItem{})
	return result.RowsAffected, result.Error
}

// Clear empties the cart.
func (r *Repository) Clear(ctx context.Context, cartID uuid.UUID) error {
	return r.base.DB(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}
