package address

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/validate"
)

// Rejection reasons returned by EnsureOwned.
const (
	ReasonAddressNotFound     = "address_not_found"
	ReasonAddressNotOwned     = "address_not_owned"
	ReasonAddressTypeMismatch = "address_type_mismatch"
)

type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Address, error)
	List(ctx context.Context, customerID uuid.UUID) ([]models.Address, error)
	Delete(ctx context.Context, customerID, addressID uuid.UUID) error
	EnsureOwned(ctx context.Context, tx *gorm.DB, customerID, addressID uuid.UUID, kind enums.AddressType) (*models.Address, error)
}

type CreateInput struct {
	CustomerID  uuid.UUID         `json:"customer_id" validate:"required"`
	AddressType enums.AddressType `json:"address_type" validate:"required,oneof=billing shipping"`
	Line1       string            `json:"line1" validate:"required,max=255"`
	Line2       *string           `json:"line2" validate:"omitempty,max=255"`
	City        string            `json:"city" validate:"required,max=100"`
	State       string            `json:"state" validate:"required,max=100"`
	PostalCode  string            `json:"postal_code" validate:"required,max=20"`
	Country     string            `json:"country" validate:"required,len=2"`
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
		return nil, fmt.Errorf("address repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Address, error) {
	input.Country = strings.ToUpper(strings.TrimSpace(input.Country))
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	exists, err := s.repo.CustomerExists(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}

	address := &models.Address{
		CustomerID:  input.CustomerID,
		AddressType: input.AddressType,
		Line1:       strings.TrimSpace(input.Line1),
		Line2:       input.Line2,
		City:        strings.TrimSpace(input.City),
		State:       strings.TrimSpace(input.State),
		PostalCode:  strings.TrimSpace(input.PostalCode),
		Country:     input.Country,
	}
	if err := s.repo.Create(ctx, address); err != nil {
		return nil, err
	}
	return address, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID) ([]models.Address, error) {
	if customerID == uuid.Nil {
		return nil, validate.Field("customer_id", "is required")
	}
	return s.repo.ListByCustomer(ctx, customerID)
}

// Delete removes an address the customer owns, unless an order still points
// at it.
func (s *service) Delete(ctx context.Context, customerID, addressID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		address, err := repo.FindByID(ctx, addressID)
		if err != nil {
			return err
		}
		if address.CustomerID != customerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		refs, err := repo.CountOrderReferences(ctx, addressID)
		if err != nil {
			return err
		}
		if refs > 0 {
			return pkgerrors.New(pkgerrors.CodeConstraint, "address is referenced by orders").
				WithDetails(map[string]any{"orders": refs})
		}
		return repo.Delete(ctx, addressID)
	})
}

// EnsureOwned loads the address inside tx and checks it belongs to the
// customer and has the expected type.
func (s *service) EnsureOwned(ctx context.Context, tx *gorm.DB, customerID, addressID uuid.UUID, kind enums.AddressType) (*models.Address, error) {
	address, err := s.repo.WithTx(tx).FindByID(ctx, addressID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, rejected(ReasonAddressNotFound, kind, addressID)
		}
		return nil, err
	}
	if address.CustomerID != customerID {
		return nil, rejected(ReasonAddressNotOwned, kind, addressID)
	}
	if address.AddressType != kind {
		return nil, rejected(ReasonAddressTypeMismatch, kind, addressID)
	}
	return address, nil
}

func rejected(reason string, kind enums.AddressType, addressID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeOrderRejected, fmt.Sprintf("%s address rejected", kind)).
		WithDetails(map[string]any{
			"reason":     reason,
			"address_id": addressID.String(),
		})
}
