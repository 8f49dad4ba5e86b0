package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/enums"
)

// Address belongs to exactly one customer and is typed billing or shipping.
type Address struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID  uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index:idx_addresses_customer"`
	AddressType enums.AddressType `gorm:"column:address_type;type:address_type_enum;not null"`
	Line1       string            `gorm:"column:line1;not null"`
	Line2       *string           `gorm:"column:line2"`
	City        string            `gorm:"column:city;not null"`
	State       string            `gorm:"column:state;not null"`
	PostalCode  string            `gorm:"column:postal_code;not null"`
	Country     string            `gorm:"column:country;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (a *Address) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
