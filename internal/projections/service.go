// Package projections serves the read-only ProductDetails and OrderSummaries
// views. Queries run outside write transactions and never lock rows.
package projections

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopcore/pkg/pagination"
)

const ratingDecimalPlaces = 2

type Service interface {
	ProductDetails(ctx context.Context, productID uuid.UUID) (*ProductDetails, error)
	ListProductDetails(ctx context.Context, params pagination.Params) (*ProductPage, error)
	OrderSummary(ctx context.Context, orderID uuid.UUID) (*OrderSummary, error)
	// OrderSummaries lists every customer's orders when customerID is nil.
	OrderSummaries(ctx context.Context, customerID *uuid.UUID, params pagination.Params) (*OrderPage, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("projection repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ProductDetails(ctx context.Context, productID uuid.UUID) (*ProductDetails, error) {
	row, err := s.repo.ProductDetails(ctx, productID)
	if err != nil {
		return nil, err
	}
	row.AverageRating = row.AverageRating.Round(ratingDecimalPlaces)
	return row, nil
}

func (s *service) ListProductDetails(ctx context.Context, params pagination.Params) (*ProductPage, error) {
	limit, cursor, err := params.Resolve()
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListProductDetails(ctx, pagination.LimitWithBuffer(limit), cursor)
	if err != nil {
		return nil, err
	}
	rows, next := pagination.Trim(rows, limit, func(row ProductDetails) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ProductID}
	})
	for i := range rows {
		rows[i].AverageRating = rows[i].AverageRating.Round(ratingDecimalPlaces)
	}
	return &ProductPage{Products: rows, NextCursor: next}, nil
}

func (s *service) OrderSummary(ctx context.Context, orderID uuid.UUID) (*OrderSummary, error) {
	return s.repo.OrderSummary(ctx, orderID)
}

func (s *service) OrderSummaries(ctx context.Context, customerID *uuid.UUID, params pagination.Params) (*OrderPage, error) {
	limit, cursor, err := params.Resolve()
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListOrderSummaries(ctx, customerID, pagination.LimitWithBuffer(limit), cursor)
	if err != nil {
		return nil, err
	}
	rows, next := pagination.Trim(rows, limit, func(row OrderSummary) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.OrderID}
	})
	return &OrderPage{Orders: rows, NextCursor: next}, nil
}
