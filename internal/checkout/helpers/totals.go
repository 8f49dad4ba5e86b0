package helpers

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopcore/pkg/db/models"
)

// Subtotal sums quantity times unit price across items.
func Subtotal(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
