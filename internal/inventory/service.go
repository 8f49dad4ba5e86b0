package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/ledger"
	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
	"github.com/angelmondragon/shopcore/pkg/metrics"
	"github.com/angelmondragon/shopcore/pkg/outbox"
	"github.com/angelmondragon/shopcore/pkg/outbox/payloads"
	"github.com/angelmondragon/shopcore/pkg/pagination"
	"github.com/angelmondragon/shopcore/pkg/validate"
)

// ReasonInsufficientStock is the rejection reason when a change would take
// stock below zero.
const ReasonInsufficientStock = "insufficient_stock"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns every mutation of products.stock_quantity.
type Service interface {
	// Apply runs one compare-and-set stock change inside tx and appends the
	// matching ledger entry. Callers own the transaction and the retry loop.
	Apply(ctx context.Context, tx *gorm.DB, change Change) (*models.InventoryLog, error)
	AdjustInventory(ctx context.Context, input AdjustInput) (*models.InventoryLog, error)
	ReceiveStock(ctx context.Context, input ReceiveInput) (*models.InventoryLog, error)
	History(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ledger.HistoryPage, error)
}

// Change is a signed stock delta for a single product.
type Change struct {
	ProductID  uuid.UUID
	Delta      int
	ChangeType enums.InventoryChangeType
	OrderID    *uuid.UUID
	Reason     string
}

// AdjustInput is a manual correction. Delta may be negative.
type AdjustInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Delta     int       `json:"delta" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=500"`
}

// ReceiveInput records incoming stock.
type ReceiveInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
	Reason    string    `json:"reason" validate:"max=500"`
}

type service struct {
	tx      txRunner
	repo    Repository
	ledger  ledger.Service
	outbox  outbox.Emitter
	metrics *metrics.OrderMetrics
	logg    *logger.Logger
	retry   db.RetryPolicy
}

// NewService wires the inventory service.
func NewService(
	tx txRunner,
	repo Repository,
	ledgerSvc ledger.Service,
	emitter outbox.Emitter,
	orderMetrics *metrics.OrderMetrics,
	logg *logger.Logger,
	retry db.RetryPolicy,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:      tx,
		repo:    repo,
		ledger:  ledgerSvc,
		outbox:  emitter,
		metrics: orderMetrics,
		logg:    logg,
		retry:   retry,
	}, nil
}

func (s *service) Apply(ctx context.Context, tx *gorm.DB, change Change) (*models.InventoryLog, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if change.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock change cannot be zero")
	}

	repo := s.repo.WithTx(tx)
	snapshot, err := repo.Snapshot(ctx, change.ProductID)
	if err != nil {
		return nil, err
	}

	next := snapshot.StockQuantity + change.Delta
	if next < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeOrderRejected, "insufficient stock").
			WithDetails(map[string]any{
				"reason":     ReasonInsufficientStock,
				"product_id": change.ProductID.String(),
				"available":  snapshot.StockQuantity,
				"requested":  -change.Delta,
			})
	}

	if err := repo.CompareAndSetStock(ctx, change.ProductID, snapshot.StockQuantity, next); err != nil {
		return nil, err
	}

	return s.ledger.Record(ctx, tx, ledger.RecordInput{
		ProductID:      change.ProductID,
		OrderID:        change.OrderID,
		ChangeType:     change.ChangeType,
		QuantityChange: change.Delta,
		NewStockLevel:  next,
		Reason:         change.Reason,
	})
}

func (s *service) AdjustInventory(ctx context.Context, input AdjustInput) (*models.InventoryLog, error) {
	input.Reason = strings.TrimSpace(input.Reason)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	return s.applyStandalone(ctx, Change{
		ProductID:  input.ProductID,
		Delta:      input.Delta,
		ChangeType: enums.InventoryChangeAdjustment,
		Reason:     input.Reason,
	})
}

func (s *service) ReceiveStock(ctx context.Context, input ReceiveInput) (*models.InventoryLog, error) {
	input.Reason = strings.TrimSpace(input.Reason)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.Reason == "" {
		input.Reason = "stock received"
	}
	return s.applyStandalone(ctx, Change{
		ProductID:  input.ProductID,
		Delta:      input.Quantity,
		ChangeType: enums.InventoryChangeIn,
		Reason:     input.Reason,
	})
}

func (s *service) History(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ledger.HistoryPage, error) {
	return s.ledger.History(ctx, productID, params)
}

// applyStandalone runs change in its own transaction, replaying it when the
// stock row moved underneath it.
func (s *service) applyStandalone(ctx context.Context, change Change) (*models.InventoryLog, error) {
	ctx = s.logg.WithProductID(ctx, change.ProductID.String())

	policy := s.retry
	policy.OnRetry = func(attempt int, err error) {
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "retrying inventory change after conflict")
	}

	var entry *models.InventoryLog
	err := db.RetryOnConflict(ctx, policy, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			applied, err := s.Apply(ctx, tx, change)
			if err != nil {
				return err
			}
			entry = applied
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventInventoryAdjusted,
				AggregateType: enums.AggregateProduct,
				AggregateID:   change.ProductID,
				Actor:         outbox.SystemActor("inventory"),
				Data: payloads.InventoryAdjustedEvent{
					ProductID:      change.ProductID,
					ChangeType:     applied.ChangeType,
					QuantityChange: applied.QuantityChange,
					NewStockLevel:  applied.NewStockLevel,
					Reason:         applied.Reason,
				},
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncInventoryChange(string(entry.ChangeType))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"change_type":     entry.ChangeType,
		"quantity_change": entry.QuantityChange,
		"new_stock_level": entry.NewStockLevel,
	})
	s.logg.Info(logCtx, "inventory adjusted")
	return entry, nil
}
