package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/enums"
)

// InventoryLog is an append-only stock ledger entry. NewStockLevel is the
// product's stock right after the change was applied.
type InventoryLog struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	ProductID      uuid.UUID                 `gorm:"column:product_id;type:uuid;not null;index:idx_inventory_logs_product_created,priority:1"`
	OrderID        *uuid.UUID                `gorm:"column:order_id;type:uuid;index:idx_inventory_logs_order"`
	ChangeType     enums.InventoryChangeType `gorm:"column:change_type;type:inventory_change_type_enum;not null"`
	QuantityChange int                       `gorm:"column:quantity_change;not null"`
	NewStockLevel  int                       `gorm:"column:new_stock_level;not null;check:chk_inventory_logs_level,new_stock_level >= 0"`
	Reason         string                    `gorm:"column:reason;not null"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime;index:idx_inventory_logs_product_created,priority:2"`
}

func (l *InventoryLog) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
