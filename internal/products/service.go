package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/ledger"
	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
	"github.com/angelmondragon/shopcore/pkg/validate"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the product catalog. Stock levels after creation belong
// to the inventory service.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*models.Product, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Product, error)
	UpsertAttribute(ctx context.Context, id uuid.UUID, name, value string) (*models.ProductAttribute, error)
	AddImage(ctx context.Context, input AddImageInput) (*models.ProductImage, error)
	SetPrimaryImage(ctx context.Context, productID, imageID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateInput describes a new catalog product.
type CreateInput struct {
	CategoryID   uuid.UUID       `json:"category_id" validate:"required"`
	SKU          string          `json:"sku" validate:"required,max=64"`
	Name         string          `json:"name" validate:"required,max=255"`
	Description  *string         `json:"description"`
	Price        decimal.Decimal `json:"price" validate:"gte=0"`
	Cost         decimal.Decimal `json:"cost" validate:"gte=0"`
	Weight       decimal.Decimal `json:"weight" validate:"gte=0"`
	InitialStock int             `json:"initial_stock" validate:"gte=0"`
	Inactive     bool            `json:"inactive"`
}

// AddImageInput attaches an image to a product.
type AddImageInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	URL       string    `json:"url" validate:"required,url,max=2048"`
	AltText   *string   `json:"alt_text" validate:"omitempty,max=255"`
	IsPrimary bool      `json:"is_primary"`
	SortOrder int       `json:"sort_order" validate:"gte=0"`
}

type service struct {
	tx     txRunner
	repo   Repository
	ledger ledger.Service
	logg   *logger.Logger
}

// NewService wires the catalog service.
func NewService(tx txRunner, repo Repository, ledgerSvc ledger.Service, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{tx: tx, repo: repo, ledger: ledgerSvc, logg: logg}, nil
}

// Create inserts the product and records any initial stock as an "in"
// ledger entry.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	input.SKU = strings.TrimSpace(input.SKU)
	input.Name = strings.TrimSpace(input.Name)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	product := &models.Product{
		CategoryID:    input.CategoryID,
		SKU:           input.SKU,
		Name:          input.Name,
		Description:   input.Description,
		Price:         input.Price.Round(2),
		Cost:          input.Cost.Round(2),
		Weight:        input.Weight.Round(3),
		StockQuantity: input.InitialStock,
		IsActive:      !input.Inactive,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.CategoryExists(ctx, input.CategoryID)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		taken, err := repo.SKUExists(ctx, input.SKU)
		if err != nil {
			return err
		}
		if taken {
			return skuTaken(input.SKU)
		}
		if err := repo.Create(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "") {
				return skuTaken(input.SKU)
			}
			return err
		}
		if input.InitialStock == 0 {
			return nil
		}
		_, err = s.ledger.Record(ctx, tx, ledger.RecordInput{
			ProductID:      product.ID,
			ChangeType:     enums.InventoryChangeIn,
			QuantityChange: input.InitialStock,
			NewStockLevel:  input.InitialStock,
			Reason:         "initial stock",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithProductID(ctx, product.ID.String()), "product created")
	return product, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.repo.FindDetailed(ctx, id)
}

func (s *service) UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*models.Product, error) {
	if price.IsNegative() {
		return nil, validate.Field("price", "must be at least 0")
	}
	if err := s.repo.Update(ctx, id, map[string]any{"price": price.Round(2)}); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// SetActive toggles whether the product can be ordered.
func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Product, error) {
	if err := s.repo.Update(ctx, id, map[string]any{"is_active": active}); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) UpsertAttribute(ctx context.Context, id uuid.UUID, name, value string) (*models.ProductAttribute, error) {
	name = strings.TrimSpace(name)
	if err := validate.Var("attribute_name", name, "required,max=100"); err != nil {
		return nil, err
	}
	if err := validate.Var("attribute_value", value, "max=1000"); err != nil {
		return nil, err
	}

	var stored *models.ProductAttribute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, id); err != nil {
			return err
		}
		attribute, err := repo.UpsertAttribute(ctx, &models.ProductAttribute{ProductID: id, Name: name, Value: value})
		stored = attribute
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *service) AddImage(ctx context.Context, input AddImageInput) (*models.ProductImage, error) {
	input.URL = strings.TrimSpace(input.URL)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	image := &models.ProductImage{
		ProductID: input.ProductID,
		URL:       input.URL,
		AltText:   input.AltText,
		IsPrimary: input.IsPrimary,
		SortOrder: input.SortOrder,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, input.ProductID); err != nil {
			return err
		}
		if err := repo.CreateImage(ctx, image); err != nil {
			return err
		}
		if !image.IsPrimary {
			return nil
		}
		return repo.SetPrimaryImage(ctx, image.ProductID, image.ID)
	})
	if err != nil {
		return nil, err
	}
	return image, nil
}

func (s *service) SetPrimaryImage(ctx context.Context, productID, imageID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindImage(ctx, productID, imageID); err != nil {
			return err
		}
		return repo.SetPrimaryImage(ctx, productID, imageID)
	})
}

// Delete removes a product that has never been ordered.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, id); err != nil {
			return err
		}
		refs, err := repo.CountOrderItems(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return pkgerrors.New(pkgerrors.CodeConstraint, "product is referenced by orders").
				WithDetails(map[string]any{"order_items": refs})
		}
		return repo.DeleteCascade(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithProductID(ctx, id.String()), "product deleted")
	return nil
}

func skuTaken(sku string) error {
	return pkgerrors.New(pkgerrors.CodeConstraint, "sku already exists").
		WithDetails(map[string]any{"sku": sku})
}
