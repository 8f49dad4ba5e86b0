package categories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/validate"
)

// maxDepth bounds parent-chain walks so corrupt data cannot loop forever.
const maxDepth = 64

type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Category, error)
	Reparent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) (*models.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Path(ctx context.Context, id uuid.UUID) ([]models.Category, error)
}

type CreateInput struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Description *string    `json:"description" validate:"omitempty,max=1000"`
	ParentID    *uuid.UUID `json:"parent_category_id"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	tx   txRunner
	repo Repository
}

func NewService(tx txRunner, repo Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Category, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	category := &models.Category{
		Name:             input.Name,
		Description:      input.Description,
		ParentCategoryID: input.ParentID,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.ParentID != nil {
			if _, err := repo.FindByID(ctx, *input.ParentID); err != nil {
				return err
			}
		}
		return repo.Create(ctx, category)
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// Reparent moves a category under parentID, or to the root when parentID is
// nil. Moving a category beneath itself or one of its descendants is
// rejected.
func (s *service) Reparent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) (*models.Category, error) {
	var category *models.Category
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if parentID != nil {
			if *parentID == id {
				return cycleError(id)
			}
			ancestors, err := walk(ctx, repo, *parentID)
			if err != nil {
				return err
			}
			for _, ancestor := range ancestors {
				if ancestor.ID == id {
					return cycleError(id)
				}
			}
		}
		if err := repo.SetParent(ctx, id, parentID); err != nil {
			return err
		}
		current.ParentCategoryID = parentID
		category = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// Delete removes a category with no products. Child categories become roots.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, id); err != nil {
			return err
		}
		products, err := repo.CountProducts(ctx, id)
		if err != nil {
			return err
		}
		if products > 0 {
			return pkgerrors.New(pkgerrors.CodeConstraint, "category has products").
				WithDetails(map[string]any{"products": products})
		}
		if err := repo.DetachChildren(ctx, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
}

// Path returns the breadcrumb from the root down to id.
func (s *service) Path(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	chain, err := walk(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// walk follows parent links from id up to the root, id first.
func walk(ctx context.Context, repo Repository, id uuid.UUID) ([]models.Category, error) {
	chain := make([]models.Category, 0, 4)
	next := &id
	for next != nil {
		if len(chain) >= maxDepth {
			return nil, pkgerrors.New(pkgerrors.CodeConstraint, "category hierarchy too deep")
		}
		category, err := repo.FindByID(ctx, *next)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *category)
		next = category.ParentCategoryID
	}
	return chain, nil
}

func cycleError(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeConstraint, "category cannot be its own ancestor").
		WithDetails(map[string]any{"category_id": id.String()})
}
