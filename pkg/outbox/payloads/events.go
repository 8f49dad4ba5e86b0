package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopcore/pkg/enums"
)

// OrderLine is a placed line as it was priced at checkout.
type OrderLine struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

// OrderPlacedEvent is emitted when checkout commits a new order.
type OrderPlacedEvent struct {
	OrderID        uuid.UUID       `json:"order_id" validate:"required"`
	CustomerID     uuid.UUID       `json:"customer_id" validate:"required"`
	Lines          []OrderLine     `json:"lines" validate:"required,min=1,dive"`
	CouponCodes    []string        `json:"coupon_codes,omitempty"`
	SubtotalAmount decimal.Decimal `json:"subtotal_amount" validate:"gte=0"`
	DiscountAmount decimal.Decimal `json:"discount_amount" validate:"gte=0"`
	TotalAmount    decimal.Decimal `json:"total_amount" validate:"gte=0"`
	FromCart       bool            `json:"from_cart"`
	PlacedAt       time.Time       `json:"placed_at" validate:"required"`
}

// OrderStatusChangedEvent is emitted for every committed status transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id" validate:"required"`
	CustomerID     uuid.UUID         `json:"customer_id" validate:"required"`
	PreviousStatus enums.OrderStatus `json:"previous_status" validate:"required"`
	Status         enums.OrderStatus `json:"status" validate:"required"`
	StockRestored  bool              `json:"stock_restored"`
	ChangedAt      time.Time         `json:"changed_at" validate:"required"`
}

// PaymentCompletedEvent is emitted when a payment is confirmed.
type PaymentCompletedEvent struct {
	PaymentID     uuid.UUID           `json:"payment_id" validate:"required"`
	OrderID       uuid.UUID           `json:"order_id" validate:"required"`
	Method        enums.PaymentMethod `json:"method" validate:"required"`
	Amount        decimal.Decimal     `json:"amount" validate:"gt=0"`
	TransactionID string              `json:"transaction_id,omitempty"`
	PaidAt        time.Time           `json:"paid_at" validate:"required"`
}

// PaymentFailedEvent is emitted when a payment attempt is declined.
type PaymentFailedEvent struct {
	PaymentID uuid.UUID           `json:"payment_id" validate:"required"`
	OrderID   uuid.UUID           `json:"order_id" validate:"required"`
	Method    enums.PaymentMethod `json:"method" validate:"required"`
	Amount    decimal.Decimal     `json:"amount" validate:"gt=0"`
	FailedAt  time.Time           `json:"failed_at" validate:"required"`
}

// InventoryAdjustedEvent is emitted for manual stock changes.
type InventoryAdjustedEvent struct {
	ProductID      uuid.UUID                 `json:"product_id" validate:"required"`
	ChangeType     enums.InventoryChangeType `json:"change_type" validate:"required"`
	QuantityChange int                       `json:"quantity_change" validate:"ne=0"`
	NewStockLevel  int                       `json:"new_stock_level" validate:"gte=0"`
	Reason         string                    `json:"reason"`
}
