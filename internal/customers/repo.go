package customers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/repo"
	"github.com/angelmondragon/shopcore/pkg/db/models"
)

// Repository persists customers and the rows that hang off them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, customer *models.Customer) error
	CreateCart(ctx context.Context, cart *models.ShoppingCart) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
	CountOrders(ctx context.Context, customerID uuid.UUID) (int64, error)
	DeleteCascade(ctx context.Context, customerID uuid.UUID) error
}

type repository struct {
	base repo.Base
}

// NewRepository returns a customer repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, customer *models.Customer) error {
	return r.base.DB(ctx).Create(customer).Error
}

func (r *repository) CreateCart(ctx context.Context, cart *models.ShoppingCart) error {
	return r.base.DB(ctx).Create(cart).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&customer).Error; err != nil {
		return nil, repo.NotFound(err, "customer")
	}
	return &customer, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.base.DB(ctx).Where("email = ?", email).Take(&customer).Error; err != nil {
		return nil, repo.NotFound(err, "customer")
	}
	return &customer, nil
}

func (r *repository) CountOrders(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var n int64
	err := r.base.DB(ctx).Model(&models.Order{}).Where("customer_id = ?", customerID).Count(&n).Error
	return n, err
}

// DeleteCascade removes the customer with its reviews, cart and addresses.
// Callers must have checked that no orders reference the customer.
func (r *repository) DeleteCascade(ctx context.Context, customerID uuid.UUID) error {
	db := r.base.DB(ctx)
	carts := db.Model(&models.ShoppingCart{}).Select("id").Where("customer_id = ?", customerID)

	steps := []func() error{
		func() error { return db.Where("customer_id = ?", customerID).Delete(&models.Review{}).Error },
		func() error { return db.Where("cart_id IN (?)", carts).Delete(&models.CartItem{}).Error },
		func() error { return db.Where("customer_id = ?", customerID).Delete(&models.ShoppingCart{}).Error },
		func() error { return db.Where("customer_id = ?", customerID).Delete(&models.Address{}).Error },
		func() error { return db.Where("id = ?", customerID).Delete(&models.Customer{}).Error },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
