package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/inventory"
	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
	"github.com/angelmondragon/shopcore/pkg/metrics"
	"github.com/angelmondragon/shopcore/pkg/outbox"
	"github.com/angelmondragon/shopcore/pkg/outbox/payloads"
	"github.com/angelmondragon/shopcore/pkg/validate"
)

// Rejection reasons returned by RecordPayment and ConfirmPayment.
const (
	ReasonOrderClosed           = "order_closed"
	ReasonOrderFullyPaid        = "order_fully_paid"
	ReasonPaymentExceedsBalance = "payment_exceeds_balance"
)

const paymentDecimalPlaces = 2

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines order lifecycle operations after placement.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Payment, error)
	ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Payment, error)
	TransitionOrderStatus(ctx context.Context, input TransitionInput) (*models.Order, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outbox.Emitter
	inventory InventoryRestorer
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
	retry     db.RetryPolicy
}

// NewService wires the order lifecycle service.
func NewService(
	repo Repository,
	tx txRunner,
	emitter outbox.Emitter,
	restorer InventoryRestorer,
	orderMetrics *metrics.OrderMetrics,
	logg *logger.Logger,
	retry db.RetryPolicy,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if restorer == nil {
		return nil, fmt.Errorf("inventory restorer required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    emitter,
		inventory: restorer,
		metrics:   orderMetrics,
		logg:      logg,
		retry:     retry,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.repo.FindDetailed(ctx, id)
}

func (s *service) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return s.repo.ListPendingBefore(ctx, cutoff, limit)
}

// RecordPayment opens a pending payment for at most the outstanding balance.
// Only completed payments count towards what has been paid.
func (s *service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Payment, error) {
	input.Amount = input.Amount.Round(paymentDecimalPlaces)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, input.OrderID)
		if err != nil {
			return err
		}
		outstanding, err := outstandingBalance(ctx, repo, order)
		if err != nil {
			return err
		}
		if input.Amount.GreaterThan(outstanding) {
			return validate.Field("amount", "exceeds outstanding balance of "+outstanding.StringFixed(paymentDecimalPlaces))
		}

		payment = &models.Payment{
			OrderID: order.ID,
			Method:  input.Method,
			Amount:  input.Amount,
			Status:  enums.PaymentStatusPending,
		}
		return repo.CreatePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, input.OrderID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"payment_id": payment.ID.String(), "amount": payment.Amount.String()})
	s.logg.Info(logCtx, "payment recorded")
	return payment, nil
}

// ConfirmPayment settles a pending payment. A successful payment moves a
// pending order to processing; it is rejected when the order has closed or
// completed payments already cover its amount.
func (s *service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Payment, error) {
	if input.TransactionID != nil {
		trimmed := strings.TrimSpace(*input.TransactionID)
		input.TransactionID = &trimmed
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	policy := s.retryPolicy(ctx)
	var (
		payment  *models.Payment
		promoted bool
	)
	err := db.RetryOnConflict(ctx, policy, func(ctx context.Context) error {
		promoted = false
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			current, err := repo.FindPayment(ctx, input.PaymentID)
			if err != nil {
				return err
			}
			if current.Status != enums.PaymentStatusPending {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition, "payment is not pending").
					WithDetails(map[string]any{"status": current.Status})
			}
			if input.TransactionID != nil {
				taken, err := repo.TransactionIDTaken(ctx, *input.TransactionID)
				if err != nil {
					return err
				}
				if taken {
					return transactionTaken(*input.TransactionID)
				}
			}

			order, err := repo.LockByID(ctx, current.OrderID)
			if err != nil {
				return err
			}
			if input.Success {
				outstanding, err := outstandingBalance(ctx, repo, order)
				if err != nil {
					return err
				}
				if current.Amount.GreaterThan(outstanding) {
					return pkgerrors.Rejected(ReasonPaymentExceedsBalance, "payment exceeds outstanding balance").
						WithDetails(map[string]any{
							"reason":      ReasonPaymentExceedsBalance,
							"outstanding": outstanding.StringFixed(paymentDecimalPlaces),
						})
				}
			}

			now := time.Now().UTC()
			next := enums.PaymentStatusFailed
			fields := map[string]any{}
			if input.TransactionID != nil {
				fields["transaction_id"] = *input.TransactionID
			}
			if input.Success {
				next = enums.PaymentStatusCompleted
				fields["payment_date"] = now
			}
			if err := repo.CompareAndSetPaymentStatus(ctx, current.ID, current.Status, next, fields); err != nil {
				if input.TransactionID != nil && db.IsUniqueViolation(err, "ux_payments_transaction_id") {
					return transactionTaken(*input.TransactionID)
				}
				return err
			}
			current.Status = next
			current.TransactionID = input.TransactionID
			if input.Success {
				current.PaymentDate = &now
			}
			payment = current

			if !input.Success {
				return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventPaymentFailed,
					AggregateType: enums.AggregatePayment,
					AggregateID:   current.ID,
					Actor:         outbox.SystemActor("payments"),
					Data: payloads.PaymentFailedEvent{
						PaymentID: current.ID,
						OrderID:   current.OrderID,
						Method:    current.Method,
						Amount:    current.Amount,
						FailedAt:  now,
					},
				})
			}

			event := payloads.PaymentCompletedEvent{
				PaymentID: current.ID,
				OrderID:   current.OrderID,
				Method:    current.Method,
				Amount:    current.Amount,
				PaidAt:    now,
			}
			if input.TransactionID != nil {
				event.TransactionID = *input.TransactionID
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentCompleted,
				AggregateType: enums.AggregatePayment,
				AggregateID:   current.ID,
				Actor:         outbox.SystemActor("payments"),
				Data:          event,
			}); err != nil {
				return err
			}

			if order.Status != enums.OrderStatusPending {
				return nil
			}
			if err := repo.CompareAndSetStatus(ctx, order.ID, order.Status, enums.OrderStatusProcessing, nil); err != nil {
				return err
			}
			promoted = true
			return s.emitStatusChanged(ctx, tx, order, enums.OrderStatusProcessing, false, now, outbox.SystemActor("payments"))
		})
	})
	if err != nil {
		return nil, err
	}

	if promoted {
		s.metrics.IncTransition(string(enums.OrderStatusProcessing))
	}
	logCtx := s.logg.WithOrderID(ctx, payment.OrderID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"payment_id": payment.ID.String(),
		"status":     payment.Status,
		"promoted":   promoted,
	})
	s.logg.Info(logCtx, "payment confirmed")
	return payment, nil
}

// TransitionOrderStatus applies one edge of the order state machine. Entering
// cancelled or refunded returns every ordered unit to stock.
func (s *service) TransitionOrderStatus(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Status.IsValid() {
		return nil, validate.Field("status", "unknown order status")
	}
	actor := input.Actor
	if actor == nil {
		actor = outbox.SystemActor("orders")
	}

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	policy := s.retryPolicy(ctx)
	var (
		order    *models.Order
		previous enums.OrderStatus
	)
	err := db.RetryOnConflict(ctx, policy, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			current, err := repo.FindDetailed(ctx, input.OrderID)
			if err != nil {
				return err
			}
			if !current.Status.CanTransitionTo(input.Status) {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order status transition not allowed").
					WithDetails(map[string]any{"from": current.Status, "to": input.Status})
			}

			now := time.Now().UTC()
			fields := map[string]any{}
			switch input.Status {
			case enums.OrderStatusCancelled:
				fields["cancelled_at"] = now
				current.CancelledAt = &now
			case enums.OrderStatusRefunded:
				fields["refunded_at"] = now
				current.RefundedAt = &now
			}
			if err := repo.CompareAndSetStatus(ctx, current.ID, current.Status, input.Status, fields); err != nil {
				return err
			}
			previous = current.Status
			current.Status = input.Status

			restored := input.Status.RestoresStock()
			if restored {
				if err := s.restoreStock(ctx, tx, current); err != nil {
					return err
				}
			}
			if input.Status == enums.OrderStatusRefunded {
				if _, err := repo.RefundCompletedPayments(ctx, current.ID); err != nil {
					return err
				}
			}
			order = current
			return s.emitStatusChanged(ctx, tx, &models.Order{ID: current.ID, CustomerID: current.CustomerID, Status: previous}, input.Status, restored, now, actor)
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(order.Status))
	logCtx := s.logg.WithFields(ctx, map[string]any{"from": previous, "to": order.Status})
	s.logg.Info(logCtx, "order status changed")
	return order, nil
}

// restoreStock returns each product's ordered quantity with one return entry
// per product, in product order so concurrent restores lock rows alike.
func (s *service) restoreStock(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	quantities := make(map[uuid.UUID]int, len(order.Items))
	productIDs := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		if _, seen := quantities[item.ProductID]; !seen {
			productIDs = append(productIDs, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}
	sort.Slice(productIDs, func(i, j int) bool {
		return productIDs[i].String() < productIDs[j].String()
	})

	orderID := order.ID
	for _, productID := range productIDs {
		if _, err := s.inventory.Apply(ctx, tx, inventory.Change{
			ProductID:  productID,
			Delta:      quantities[productID],
			ChangeType: enums.InventoryChangeReturn,
			OrderID:    &orderID,
			Reason:     "order " + string(order.Status),
		}); err != nil {
			return err
		}
		s.metrics.IncInventoryChange(string(enums.InventoryChangeReturn))
	}
	return nil
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, order *models.Order, next enums.OrderStatus, restored bool, at time.Time, actor *outbox.ActorRef) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		OccurredAt:    at,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        order.ID,
			CustomerID:     order.CustomerID,
			PreviousStatus: order.Status,
			Status:         next,
			StockRestored:  restored,
			ChangedAt:      at,
		},
	})
}

func (s *service) retryPolicy(ctx context.Context) db.RetryPolicy {
	policy := s.retry
	policy.OnRetry = func(attempt int, err error) {
		s.metrics.IncConflictRetry()
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "retrying order update after conflict")
	}
	return policy
}

// outstandingBalance returns the unpaid remainder of an open order. Cancelled,
// refunded and fully paid orders are rejected.
func outstandingBalance(ctx context.Context, repo Repository, order *models.Order) (decimal.Decimal, error) {
	if order.Status.IsTerminal() {
		return decimal.Zero, pkgerrors.Rejected(ReasonOrderClosed, "order no longer accepts payments").
			WithDetails(map[string]any{"reason": ReasonOrderClosed, "status": order.Status})
	}
	paid, err := repo.CompletedPaymentTotal(ctx, order.ID)
	if err != nil {
		return decimal.Zero, err
	}
	outstanding := order.TotalAmount.Sub(paid)
	if !outstanding.IsPositive() {
		return decimal.Zero, pkgerrors.Rejected(ReasonOrderFullyPaid, "order is already paid")
	}
	return outstanding, nil
}

func transactionTaken(transactionID string) error {
	return pkgerrors.New(pkgerrors.CodeConstraint, "transaction id already recorded").
		WithDetails(map[string]any{"transaction_id": transactionID})
}
