package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category is a node in the catalog tree. Deleting a parent nulls the link.
type Category struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ParentCategoryID *uuid.UUID `gorm:"column:parent_category_id;type:uuid;index:idx_categories_parent"`
	Name             string     `gorm:"column:name;not null"`
	Description      *string    `gorm:"column:description"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
