package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shopcore/internal/repo"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
)

type repository struct {
	base repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

// Create inserts the order together with its items and coupon rows.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.base.DB(ctx).Omit("Payments").Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&order).Error; err != nil {
		return nil, repo.NotFound(err, "order")
	}
	return &order, nil
}

// LockByID reads the order with a row lock held until the transaction ends.
// SQLite drops the locking clause.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.base.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&order).Error
	if err != nil {
		return nil, repo.NotFound(err, "order")
	}
	return &order, nil
}

func (r *repository) FindDetailed(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.base.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Preload("Coupons").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Where("id = ?", id).
		Take(&order).Error
	if err != nil {
		return nil, repo.NotFound(err, "order")
	}
	return &order, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, customerID uuid.UUID, key string) (*models.Order, error) {
	var order models.Order
	err := r.base.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Preload("Coupons").
		Where("customer_id = ? AND idempotency_key = ?", customerID, key).
		Take(&order).Error
	if err != nil {
		return nil, repo.NotFound(err, "order")
	}
	return &order, nil
}

// CompareAndSetStatus moves the order from observed to next, writing any
// extra fields in the same statement.
func (r *repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, observed, next enums.OrderStatus, fields map[string]any) error {
	updates := map[string]any{"status": next, "updated_at": time.Now().UTC()}
	for key, value := range fields {
		updates[key] = value
	}
	result := r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, observed).
		Updates(updates)
	return repo.Affected(result, "order status")
}

// ListPendingBefore returns the oldest pending orders placed before cutoff.
func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.base.DB(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.base.DB(ctx).Create(payment).Error
}

func (r *repository) FindPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&payment).Error; err != nil {
		return nil, repo.NotFound(err, "payment")
	}
	return &payment, nil
}

// CompletedPaymentTotal sums completed payments in Go so numeric columns
// keep their precision on every driver.
func (r *repository) CompletedPaymentTotal(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	var payments []models.Payment
	err := r.base.DB(ctx).
		Select("amount").
		Where("order_id = ? AND status = ?", orderID, enums.PaymentStatusCompleted).
		Find(&payments).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, payment := range payments {
		total = total.Add(payment.Amount)
	}
	return total, nil
}

func (r *repository) TransactionIDTaken(ctx context.Context, transactionID string) (bool, error) {
	var count int64
	err := r.base.DB(ctx).
		Model(&models.Payment{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CompareAndSetPaymentStatus(ctx context.Context, id uuid.UUID, observed, next enums.PaymentStatus, fields map[string]any) error {
	updates := map[string]any{"status": next, "updated_at": time.Now().UTC()}
	for key, value := range fields {
		updates[key] = value
	}
	result := r.base.DB(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, observed).
		Updates(updates)
	return repo.Affected(result, "payment status")
}

func (r *repository) RefundCompletedPayments(ctx context.Context, orderID uuid.UUID) (int64, error) {
	result := r.base.DB(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentStatusCompleted).
		Updates(map[string]any{"status": enums.PaymentStatusRefunded, "updated_at": time.Now().UTC()})
	return result.RowsAffected, result.Error
}
