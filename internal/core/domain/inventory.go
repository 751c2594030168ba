package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

// InventoryItem is a quantity of a named item held in one bucket of a warehouse.
type InventoryItem struct {
	ItemName string          `json:"item_name"`
	Weight   decimal.Decimal `json:"weight"`
	Quantity decimal.Decimal `json:"quantity"`
}

type Warehouse struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	State            string          `json:"state"`
	City             string          `json:"city"`
	VirtualInventory []InventoryItem `json:"virtual_inventory"`
	BilledInventory  []InventoryItem `json:"billed_inventory"`
}

// Clone returns a deep copy so callers can plan changes without touching the original snapshot.
func (w Warehouse) Clone() Warehouse {
	c := w
	c.VirtualInventory = slices.Clone(w.VirtualInventory)
	c.BilledInventory = slices.Clone(w.BilledInventory)
	return c
}

// FindBilled returns the index of the billed entry with the given item name, or -1.
func (w Warehouse) FindBilled(itemName string) int {
	for i, item := range w.BilledInventory {
		if item.ItemName == itemName {
			return i
		}
	}
	return -1
}

// FindVirtual returns the index of the virtual entry with the given item name, or -1.
func (w Warehouse) FindVirtual(itemName string) int {
	for i, item := range w.VirtualInventory {
		if item.ItemName == itemName {
			return i
		}
	}
	return -1
}

// TotalQuantity sums virtual and billed quantity of one item.
func (w Warehouse) TotalQuantity(itemName string) decimal.Decimal {
	total := decimal.Zero
	for _, item := range w.VirtualInventory {
		if item.ItemName == itemName {
			total = total.Add(item.Quantity)
		}
	}
	for _, item := range w.BilledInventory {
		if item.ItemName == itemName {
			total = total.Add(item.Quantity)
		}
	}
	return total
}
