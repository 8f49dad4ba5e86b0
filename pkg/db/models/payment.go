package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/enums"
)

// Payment is an attempt to settle (part of) an order.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index:idx_payments_order_created,priority:1"`
	Method        enums.PaymentMethod `gorm:"column:payment_method;type:payment_method_enum;not null"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null;check:chk_payments_amount,amount >= 0"`
	Status        enums.PaymentStatus `gorm:"column:status;type:payment_status_enum;not null"`
	TransactionID *string             `gorm:"column:transaction_id;uniqueIndex:ux_payments_transaction_id"`
	PaymentDate   *time.Time          `gorm:"column:payment_date"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime;index:idx_payments_order_created,priority:2"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
