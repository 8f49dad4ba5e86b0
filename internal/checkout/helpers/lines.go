package helpers

import (
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopcore/pkg/db/models"
)

// Line is one requested product and quantity.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// MergeLines sums quantities of repeated products, keeping the order in which
// each product first appeared.
func MergeLines(lines []Line) []Line {
	if len(lines) == 0 {
		return nil
	}
	index := make(map[uuid.UUID]int, len(lines))
	merged := make([]Line, 0, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

// LinesFromCart converts cart items into order lines.
func LinesFromCart(items []models.CartItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return MergeLines(lines)
}

// SortByProduct returns a copy of lines ordered by product id. Stock rows are
// always touched in this order.
func SortByProduct(lines []Line) []Line {
	sorted := append([]Line(nil), lines...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})
	return sorted
}

// ProductIDs lists the product of every line.
func ProductIDs(lines []Line) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}
