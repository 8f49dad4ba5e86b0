package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/inventory"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
)

// Repository defines persistence operations for orders and their payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindDetailed(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, customerID uuid.UUID, key string) (*models.Order, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, observed, next enums.OrderStatus, fields map[string]any) error
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	CompletedPaymentTotal(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)
	TransactionIDTaken(ctx context.Context, transactionID string) (bool, error)
	CompareAndSetPaymentStatus(ctx context.Context, id uuid.UUID, observed, next enums.PaymentStatus, fields map[string]any) error
	RefundCompletedPayments(ctx context.Context, orderID uuid.UUID) (int64, error)
}

// InventoryRestorer puts ordered stock back when an order is cancelled or
// refunded.
type InventoryRestorer interface {
	Apply(ctx context.Context, tx *gorm.DB, change inventory.Change) (*models.InventoryLog, error)
}
