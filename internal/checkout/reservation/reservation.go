// Package reservation takes ordered units out of stock for a new order.
package reservation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/checkout/helpers"
	"github.com/angelmondragon/shopcore/internal/inventory"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
)

// StockApplier is the inventory surface reservations run through.
type StockApplier interface {
	Apply(ctx context.Context, tx *gorm.DB, change inventory.Change) (*models.InventoryLog, error)
}

// ReserveInventory decrements stock for every line inside tx, visiting
// products in id order. The first rejected or conflicting line aborts the
// reservation and the caller's transaction must roll back.
func ReserveInventory(ctx context.Context, tx *gorm.DB, applier StockApplier, orderID uuid.UUID, lines []helpers.Line) ([]models.InventoryLog, error) {
	if applier == nil {
		return nil, fmt.Errorf("stock applier required")
	}
	entries := make([]models.InventoryLog, 0, len(lines))
	for _, line := range helpers.SortByProduct(lines) {
		entry, err := applier.Apply(ctx, tx, inventory.Change{
			ProductID:  line.ProductID,
			Delta:      -line.Quantity,
			ChangeType: enums.InventoryChangeOut,
			OrderID:    &orderID,
			Reason:     "order placed",
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}
