package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
	"github.com/angelmondragon/shopcore/pkg/security"
	"github.com/angelmondragon/shopcore/pkg/validate"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages customer accounts.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Customer, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RegisterInput is the data needed to open an account.
type RegisterInput struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	Password  string  `json:"password" validate:"required,min=8,max=128"`
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  string  `json:"last_name" validate:"required,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
}

type service struct {
	tx     txRunner
	repo   Repository
	hasher security.PasswordHasher
	logg   *logger.Logger
}

// NewService wires the customer service.
func NewService(tx txRunner, repo Repository, hasher security.PasswordHasher, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{tx: tx, repo: repo, hasher: hasher, logg: logg}, nil
}

// Register creates the customer and its empty cart in one transaction.
func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Customer, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	customer := &models.Customer{
		Email:        input.Email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        trimmed(input.Phone),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByEmail(ctx, customer.Email); err == nil {
			return emailTaken()
		} else if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return err
		}
		if err := repo.Create(ctx, customer); err != nil {
			if db.IsUniqueViolation(err, "") {
				return emailTaken()
			}
			return err
		}
		return repo.CreateCart(ctx, &models.ShoppingCart{CustomerID: customer.ID})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithCustomerID(ctx, customer.ID.String()), "customer registered")
	return customer, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	if id == uuid.Nil {
		return nil, validate.Field("customer_id", "is required")
	}
	return s.repo.FindByID(ctx, id)
}

// Delete removes a customer that has never ordered. Orders keep a restrict
// reference to their customer, so a customer with orders stays.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return validate.Field("customer_id", "is required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, id); err != nil {
			return err
		}
		orders, err := repo.CountOrders(ctx, id)
		if err != nil {
			return err
		}
		if orders > 0 {
			return pkgerrors.New(pkgerrors.CodeConstraint, "customer has orders").
				WithDetails(map[string]any{"orders": orders})
		}
		return repo.DeleteCascade(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithCustomerID(ctx, id.String()), "customer deleted")
	return nil
}

func emailTaken() error {
	return pkgerrors.New(pkgerrors.CodeConstraint, "email already registered").
		WithDetails(map[string]any{"field": "email"})
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
