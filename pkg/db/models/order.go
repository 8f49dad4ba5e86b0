package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/enums"
)

// Order is the aggregate created by checkout. Amounts are snapshotted at
// placement time and never recomputed from current catalog prices.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID        uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index:idx_orders_customer_created,priority:1;uniqueIndex:ux_orders_customer_idempotency,priority:1"`
	ShippingAddressID uuid.UUID         `gorm:"column:shipping_address_id;type:uuid;not null"`
	BillingAddressID  uuid.UUID         `gorm:"column:billing_address_id;type:uuid;not null"`
	Status            enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;index:idx_orders_status_created,priority:1"`
	SubtotalAmount    decimal.Decimal   `gorm:"column:subtotal_amount;type:numeric(12,2);not null"`
	DiscountAmount    decimal.Decimal   `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TaxAmount         decimal.Decimal   `gorm:"column:tax_amount;type:numeric(12,2);not null;check:chk_orders_tax,tax_amount >= 0"`
	ShippingAmount    decimal.Decimal   `gorm:"column:shipping_amount;type:numeric(12,2);not null;check:chk_orders_shipping,shipping_amount >= 0"`
	TotalAmount       decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null;check:chk_orders_total,total_amount >= 0"`
	IdempotencyKey    *string           `gorm:"column:idempotency_key;uniqueIndex:ux_orders_customer_idempotency,priority:2"`
	FromCart          bool              `gorm:"column:from_cart;not null"`
	OrderDate         time.Time         `gorm:"column:order_date;not null"`
	CancelledAt       *time.Time        `gorm:"column:cancelled_at"`
	RefundedAt        *time.Time        `gorm:"column:refunded_at"`
	Items             []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments          []Payment         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Coupons           []OrderCoupon     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime;index:idx_orders_customer_created,priority:2;index:idx_orders_status_created,priority:2"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// ExpectedTotal applies subtotal + tax + shipping - discount.
func (o Order) ExpectedTotal() decimal.Decimal {
	return o.SubtotalAmount.Add(o.TaxAmount).Add(o.ShippingAmount).Sub(o.DiscountAmount)
}

// RecomputeTotal refreshes SubtotalAmount from the loaded items and discount
// amount from the loaded coupons, then sets TotalAmount.
func (o *Order) RecomputeTotal() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.Subtotal())
	}
	discount := decimal.Zero
	for _, coupon := range o.Coupons {
		discount = discount.Add(coupon.DiscountAmount)
	}
	o.SubtotalAmount = subtotal
	o.DiscountAmount = discount
	o.TotalAmount = o.ExpectedTotal()
}

// OrderItem is one line of an order. Subtotal is derived, never stored.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index:idx_order_items_order"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index:idx_order_items_product"`
	Quantity  int             `gorm:"column:quantity;not null;check:chk_order_items_quantity,quantity > 0"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null;check:chk_order_items_unit_price,unit_price >= 0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Subtotal is quantity multiplied by the snapshotted unit price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
