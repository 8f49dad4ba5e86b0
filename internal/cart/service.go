package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/validate"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages a customer's shopping cart.
type Service interface {
	Get(ctx context.Context, customerID uuid.UUID) (*models.ShoppingCart, error)
	AddItem(ctx context.Context, input ItemInput) (*models.ShoppingCart, error)
	SetQuantity(ctx context.Context, input ItemInput) (*models.ShoppingCart, error)
	RemoveItem(ctx context.Context, customerID, productID uuid.UUID) (*models.ShoppingCart, error)
	Clear(ctx context.Context, customerID uuid.UUID) error
}

// ItemInput addresses one cart line. AddItem requires Quantity > 0;
// SetQuantity treats 0 as removal.
type ItemInput struct {
	CustomerID uuid.UUID `json:"customer_id" validate:"required"`
	ProductID  uuid.UUID `json:"product_id" validate:"required"`
	Quantity   int       `json:"quantity" validate:"gte=0,lte=10000"`
}

type service struct {
	tx       txRunner
	repo     CartRepository
	products productLookup
}

// NewService builds the cart service.
func NewService(tx txRunner, repo CartRepository, products productLookup) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	return &service{tx: tx, repo: repo, products: products}, nil
}

func (s *service) Get(ctx context.Context, customerID uuid.UUID) (*models.ShoppingCart, error) {
	if customerID == uuid.Nil {
		return nil, validate.Field("customer_id", "is required")
	}
	return s.repo.FindByCustomer(ctx, customerID)
}

// AddItem adds Quantity of the product to the cart, merging with an
// existing line.
func (s *service) AddItem(ctx context.Context, input ItemInput) (*models.ShoppingCart, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.Quantity == 0 {
		return nil, validate.Field("quantity", "must be greater than 0")
	}

	if err := s.checkProduct(ctx, input.ProductID); err != nil {
		return nil, err
	}

	var cart *models.ShoppingCart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.EnsureCart(ctx, input.CustomerID)
		if err != nil {
			return err
		}
		if err := repo.AddQuantity(ctx, current.ID, input.ProductID, input.Quantity); err != nil {
			return err
		}
		cart, err = repo.FindByCustomer(ctx, input.CustomerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *service) SetQuantity(ctx context.Context, input ItemInput) (*models.ShoppingCart, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.Quantity == 0 {
		return s.RemoveItem(ctx, input.CustomerID, input.ProductID)
	}

	var cart *models.ShoppingCart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByCustomer(ctx, input.CustomerID)
		if err != nil {
			return err
		}
		if err := repo.SetQuantity(ctx, current.ID, input.ProductID, input.Quantity); err != nil {
			return err
		}
		cart, err = repo.FindByCustomer(ctx, input.CustomerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *service) RemoveItem(ctx context.Context, customerID, productID uuid.UUID) (*models.ShoppingCart, error) {
	var cart *models.ShoppingCart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		removed, err := repo.RemoveProducts(ctx, current.ID, []uuid.UUID{productID})
		if err != nil {
			return err
		}
		if removed == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		cart, err = repo.FindByCustomer(ctx, customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *service) Clear(ctx context.Context, customerID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		return repo.Clear(ctx, current.ID)
	})
}

// checkProduct keeps missing and inactive products out of carts.
func (s *service) checkProduct(ctx context.Context, productID uuid.UUID) error {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	if !product.IsActive {
		return validate.Field("product_id", "product is not available")
	}
	return nil
}
