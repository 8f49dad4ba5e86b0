package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/enums"
)

// Coupon is a redeemable discount. MaxUses nil means unlimited.
type Coupon struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code          string             `gorm:"column:code;not null;uniqueIndex:ux_coupons_code"`
	Description   *string            `gorm:"column:description"`
	DiscountType  enums.DiscountType `gorm:"column:discount_type;type:discount_type_enum;not null"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null;check:chk_coupons_value,discount_value >= 0"`
	MinimumOrder  decimal.Decimal    `gorm:"column:minimum_order;type:numeric(12,2);not null;check:chk_coupons_minimum,minimum_order >= 0"`
	MaxUses       *int               `gorm:"column:max_uses"`
	UsesCount     int                `gorm:"column:uses_count;not null;default:0;check:chk_coupons_uses,uses_count >= 0"`
	StartDate     time.Time          `gorm:"column:start_date;not null"`
	EndDate       time.Time          `gorm:"column:end_date;not null"`
	IsActive      bool               `gorm:"column:is_active;not null"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// InWindow reports whether now falls inside [StartDate, EndDate].
func (c Coupon) InWindow(now time.Time) bool {
	return !now.Before(c.StartDate) && !now.After(c.EndDate)
}

// Exhausted reports whether a bounded coupon has no uses left.
func (c Coupon) Exhausted() bool {
	return c.MaxUses != nil && c.UsesCount >= *c.MaxUses
}

// OrderCoupon records a coupon applied to an order. DiscountAmount is the
// value granted at placement time, independent of later coupon edits.
type OrderCoupon struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_order_coupons_order_coupon,priority:1"`
	CouponID       uuid.UUID       `gorm:"column:coupon_id;type:uuid;not null;uniqueIndex:ux_order_coupons_order_coupon,priority:2"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null;check:chk_order_coupons_discount,discount_amount >= 0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (c *OrderCoupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
