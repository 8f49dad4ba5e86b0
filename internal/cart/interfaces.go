package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service
// and by checkout when it converts a cart into an order.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*models.ShoppingCart, error)
	EnsureCart(ctx context.Context, customerID uuid.UUID) (*models.ShoppingCart, error)
	AddQuantity(ctx context.Context, cartID, productID uuid.UUID, qty int) error
	SetQuantity(ctx context.Context, cartID, productID uuid.UUID, qty int) error
	RemoveProducts(ctx context.Context, cartID uuid.UUID, productIDs []uuid.UUID) (int64, error)
	Clear(ctx context.Context, cartID uuid.UUID) error
}

type productLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}
