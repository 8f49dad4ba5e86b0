package enums

import "fmt"

// InventoryChangeType classifies an inventory ledger entry.
type InventoryChangeType string

const (
	InventoryChangeIn         InventoryChangeType = "in"
	InventoryChangeOut        InventoryChangeType = "out"
	InventoryChangeAdjustment InventoryChangeType = "adjustment"
	InventoryChangeReturn     InventoryChangeType = "return"
)

var validInventoryChangeTypes = []InventoryChangeType{
	InventoryChangeIn,
	InventoryChangeOut,
	InventoryChangeAdjustment,
	InventoryChangeReturn,
}

// String implements fmt.Stringer.
func (c InventoryChangeType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known InventoryChangeType.
func (c InventoryChangeType) IsValid() bool {
	for _, candidate := range validInventoryChangeTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseInventoryChangeType converts raw input into an InventoryChangeType.
func ParseInventoryChangeType(value string) (InventoryChangeType, error) {
	for _, candidate := range validInventoryChangeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory change type %q", value)
}
