package reviews

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
	"github.com/angelmondragon/shopcore/pkg/pagination"
	"github.com/angelmondragon/shopcore/pkg/validate"
)

type Service interface {
	CreateReview(ctx context.Context, input CreateInput) (*models.Review, error)
	Approve(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ListApproved(ctx context.Context, productID uuid.UUID, params pagination.Params) (*Page, error)
}

type CreateInput struct {
	ProductID  uuid.UUID `json:"product_id" validate:"required"`
	CustomerID uuid.UUID `json:"customer_id" validate:"required"`
	Rating     int       `json:"rating" validate:"min=1,max=5"`
	Title      *string   `json:"title" validate:"omitempty,max=255"`
	Comment    *string   `json:"comment" validate:"omitempty,max=5000"`
}

// Page is one page of approved reviews.
type Page struct {
	Reviews    []models.Review `json:"reviews"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, logg: logg}, nil
}

// CreateReview stores an unapproved review. A customer reviews a product at
// most once.
func (s *service) CreateReview(ctx context.Context, input CreateInput) (*models.Review, error) {
	input.Title = trimmed(input.Title)
	input.Comment = trimmed(input.Comment)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	if ok, err := s.repo.ProductExists(ctx, input.ProductID); err != nil {
		return nil, err
	} else if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if ok, err := s.repo.CustomerExists(ctx, input.CustomerID); err != nil {
		return nil, err
	} else if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	if dup, err := s.repo.Exists(ctx, input.ProductID, input.CustomerID); err != nil {
		return nil, err
	} else if dup {
		return nil, duplicate(input.ProductID)
	}

	review := &models.Review{
		ProductID:  input.ProductID,
		CustomerID: input.CustomerID,
		Rating:     input.Rating,
		Title:      input.Title,
		Comment:    input.Comment,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, duplicate(input.ProductID)
		}
		return nil, err
	}

	logCtx := s.logg.WithProductID(ctx, input.ProductID.String())
	s.logg.Info(s.logg.WithField(logCtx, "rating", review.Rating), "review created")
	return review, nil
}

func (s *service) Approve(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	if err := s.repo.SetApproved(ctx, id, true); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) ListApproved(ctx context.Context, productID uuid.UUID, params pagination.Params) (*Page, error) {
	limit, cursor, err := params.Resolve()
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListApproved(ctx, productID, pagination.LimitWithBuffer(limit), cursor)
	if err != nil {
		return nil, err
	}
	rows, next := pagination.Trim(rows, limit, func(r models.Review) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return &Page{Reviews: rows, NextCursor: next}, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	if out == "" {
		return nil
	}
	return &out
}

func duplicate(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeConstraint, "customer already reviewed this product").
		WithDetails(map[string]any{"product_id": productID.String()})
}
