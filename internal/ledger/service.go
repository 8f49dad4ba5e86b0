package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/pagination"
)

// Service records and reads stock ledger entries.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.InventoryLog, error)
	History(ctx context.Context, productID uuid.UUID, params pagination.Params) (*HistoryPage, error)
	ForOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryLog, error)
}

type service struct {
	repo Repository
}

// RecordInput captures one applied stock change.
type RecordInput struct {
	ProductID      uuid.UUID
	OrderID        *uuid.UUID
	ChangeType     enums.InventoryChangeType
	QuantityChange int
	NewStockLevel  int
	Reason         string
}

// HistoryPage is one page of a product's ledger, newest first.
type HistoryPage struct {
	Entries    []models.InventoryLog
	NextCursor string
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// Record appends an entry inside tx. The sign of QuantityChange must agree
// with ChangeType: in and return add stock, out removes it, adjustment may
// go either way.
func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.InventoryLog, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if !input.ChangeType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid change type %q", input.ChangeType))
	}
	if err := checkSign(input.ChangeType, input.QuantityChange); err != nil {
		return nil, err
	}
	if input.NewStockLevel < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "new stock level cannot be negative")
	}

	entry := &models.InventoryLog{
		ProductID:      input.ProductID,
		OrderID:        input.OrderID,
		ChangeType:     input.ChangeType,
		QuantityChange: input.QuantityChange,
		NewStockLevel:  input.NewStockLevel,
		Reason:         strings.TrimSpace(input.Reason),
	}
	if entry.Reason == "" {
		entry.Reason = string(input.ChangeType)
	}

	if err := s.repo.WithTx(tx).Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) History(ctx context.Context, productID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	limit, cursor, err := params.Resolve()
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.ListByProduct(ctx, productID, pagination.LimitWithBuffer(limit), cursor)
	if err != nil {
		return nil, err
	}
	entries, next := pagination.Trim(entries, limit, func(e models.InventoryLog) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	return &HistoryPage{Entries: entries, NextCursor: next}, nil
}

func (s *service) ForOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryLog, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.repo.ListByOrder(ctx, orderID)
}

func checkSign(changeType enums.InventoryChangeType, qty int) error {
	if qty == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity change cannot be zero")
	}
	switch changeType {
	case enums.InventoryChangeIn, enums.InventoryChangeReturn:
		if qty < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s entries must add stock", changeType))
		}
	case enums.InventoryChangeOut:
		if qty > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "out entries must remove stock")
		}
	}
	return nil
}
