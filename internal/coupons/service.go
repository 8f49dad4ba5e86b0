package coupons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/validate"
)

// Rejection reasons produced by Evaluate.
const (
	ReasonNotFound      = "coupon_not_found"
	ReasonInactive      = "coupon_inactive"
	ReasonNotStarted    = "coupon_not_started"
	ReasonExpired       = "coupon_expired"
	ReasonExhausted     = "coupon_exhausted"
	ReasonMinimumNotMet = "coupon_minimum_not_met"
)

const (
	maxPercentageDiscount = 100
	discountDecimalPlaces = 2
)

var hundred = decimal.NewFromInt(maxPercentageDiscount)

type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Coupon, error)
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	Evaluate(ctx context.Context, tx *gorm.DB, codes []string, subtotal decimal.Decimal, now time.Time) ([]Application, error)
	Redeem(ctx context.Context, tx *gorm.DB, coupon models.Coupon) error
	Deactivate(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
}

type CreateInput struct {
	Code          string             `json:"code" validate:"required,max=50"`
	Description   *string            `json:"description" validate:"omitempty,max=500"`
	DiscountType  enums.DiscountType `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal    `json:"discount_value" validate:"gte=0"`
	MinimumOrder  decimal.Decimal    `json:"minimum_order" validate:"gte=0"`
	MaxUses       *int               `json:"max_uses" validate:"omitempty,gte=1"`
	StartDate     time.Time          `json:"start_date" validate:"required"`
	EndDate       time.Time          `json:"end_date" validate:"required,gtefield=StartDate"`
}

// Application is a coupon accepted for an order together with the discount
// it grants.
type Application struct {
	Coupon   models.Coupon
	Discount decimal.Decimal
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo}, nil
}

// NormalizeCode is the canonical stored form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Coupon, error) {
	input.Code = NormalizeCode(input.Code)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.DiscountType == enums.DiscountTypePercentage && input.DiscountValue.GreaterThan(hundred) {
		return nil, validate.Field("discount_value", "percentage cannot exceed 100")
	}

	coupon := &models.Coupon{
		Code:          input.Code,
		Description:   input.Description,
		DiscountType:  input.DiscountType,
		DiscountValue: input.DiscountValue.Round(discountDecimalPlaces),
		MinimumOrder:  input.MinimumOrder.Round(discountDecimalPlaces),
		MaxUses:       input.MaxUses,
		StartDate:     input.StartDate.UTC(),
		EndDate:       input.EndDate.UTC(),
		IsActive:      true,
	}
	if _, err := s.repo.FindByCode(ctx, coupon.Code); err == nil {
		return nil, codeTaken(coupon.Code)
	} else if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, codeTaken(coupon.Code)
		}
		return nil, err
	}
	return coupon, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return s.repo.FindByCode(ctx, NormalizeCode(code))
}

// Evaluate resolves codes in order and prices each against subtotal. Every
// discount is capped by what is left of the subtotal after the previous
// ones, so the discounted subtotal never drops below zero.
func (s *service) Evaluate(ctx context.Context, tx *gorm.DB, codes []string, subtotal decimal.Decimal, now time.Time) ([]Application, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	repo := s.repo.WithTx(tx)
	remaining := subtotal
	applied := make([]Application, 0, len(codes))
	for _, raw := range codes {
		code := NormalizeCode(raw)
		coupon, err := repo.FindByCode(ctx, code)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return nil, rejected(ReasonNotFound, code)
			}
			return nil, err
		}
		if reason := eligibility(*coupon, subtotal, now); reason != "" {
			return nil, rejected(reason, code)
		}

		discount := Discount(*coupon, subtotal)
		if discount.GreaterThan(remaining) {
			discount = remaining
		}
		remaining = remaining.Sub(discount)
		applied = append(applied, Application{Coupon: *coupon, Discount: discount})
	}
	return applied, nil
}

// Redeem consumes one use of coupon, based on the uses_count observed when it
// was evaluated. Losing the race is a CONCURRENCY_CONFLICT.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, coupon models.Coupon) error {
	return s.repo.WithTx(tx).IncrementUses(ctx, coupon.ID, coupon.UsesCount)
}

// Deactivate stops the coupon from being applied to new orders.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// Discount is the undiscounted value of coupon against subtotal: a rounded
// percentage of it, or the fixed amount capped at the subtotal.
func Discount(coupon models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		return subtotal.Mul(coupon.DiscountValue).Div(hundred).Round(discountDecimalPlaces)
	default:
		return decimal.Min(coupon.DiscountValue, subtotal)
	}
}

func eligibility(coupon models.Coupon, subtotal decimal.Decimal, now time.Time) string {
	switch {
	case !coupon.IsActive:
		return ReasonInactive
	case now.Before(coupon.StartDate):
		return ReasonNotStarted
	case now.After(coupon.EndDate):
		return ReasonExpired
	case coupon.Exhausted():
		return ReasonExhausted
	case subtotal.LessThan(coupon.MinimumOrder):
		return ReasonMinimumNotMet
	}
	return ""
}

func rejected(reason, code string) error {
	return pkgerrors.New(pkgerrors.CodeOrderRejected, "coupon cannot be applied").
		WithDetails(map[string]any{"reason": reason, "code": code})
}

func codeTaken(code string) error {
	return pkgerrors.New(pkgerrors.CodeConstraint, "coupon code already exists").
		WithDetails(map[string]any{"code": code})
}
