package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is a customer's rating of a product. Only approved reviews count
// toward catalog aggregates.
type Review struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_reviews_product_customer,priority:1"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:ux_reviews_product_customer,priority:2"`
	Rating     int       `gorm:"column:rating;not null;check:chk_reviews_rating,rating >= 1 AND rating <= 5"`
	Title      *string   `gorm:"column:title"`
	Comment    *string   `gorm:"column:comment"`
	IsApproved bool      `gorm:"column:is_approved;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
