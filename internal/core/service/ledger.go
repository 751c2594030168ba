package service

import (
	"fmt"
	"slices"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
	"github.com/rl1809/inventory-reconciler/internal/port"
	"github.com/shopspring/decimal"
)

// TransferPlan is the change-set of one virtual to billed transfer, computed on a copy of the snapshot.
type TransferPlan struct {
	Source         domain.InventoryItem
	Quantity       decimal.Decimal
	VirtualAfter   decimal.Decimal
	BilledAfter    decimal.Decimal
	RemovesVirtual bool
	AppendsBilled  bool

	// Result is the snapshot the store is expected to hold once the transfer is persisted.
	Result  domain.Warehouse
	Persist port.InventoryTransfer
}

func (p *TransferPlan) NoOp() bool {
	return p.Quantity.IsZero()
}

// PlanTransfer validates moving requested units of the virtual entry at sourceIndex into billed
// inventory and returns the resulting change-set. The input snapshot is left untouched.
func PlanTransfer(w domain.Warehouse, sourceIndex int, requested decimal.Decimal) (*TransferPlan, error) {
	if sourceIndex < 0 || sourceIndex >= len(w.VirtualInventory) {
		return nil, fmt.Errorf("%w: virtual inventory index %d", ErrItemNotFound, sourceIndex)
	}
	if requested.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeQuantity, requested)
	}

	source := w.VirtualInventory[sourceIndex]
	if d := Validate(requested, source.Quantity); !d.Accepted {
		return nil, &ValidationError{Item: source.ItemName, Reason: d.Reason}
	}

	result := w.Clone()
	billedIdx := result.FindBilled(source.ItemName)

	plan := &TransferPlan{
		Source:       source,
		Quantity:     requested,
		VirtualAfter: source.Quantity,
		Result:       result,
		Persist: port.InventoryTransfer{
			ItemName: source.ItemName,
			Weight:   source.Weight,
			Quantity: requested,
			BillType: domain.BillTypeBilled,
		},
	}
	if billedIdx >= 0 {
		plan.BilledAfter = result.BilledInventory[billedIdx].Quantity
	}
	if plan.NoOp() {
		return plan, nil
	}

	plan.VirtualAfter = source.Quantity.Sub(requested)
	result.VirtualInventory[sourceIndex].Quantity = plan.VirtualAfter

	if billedIdx >= 0 {
		plan.BilledAfter = result.BilledInventory[billedIdx].Quantity.Add(requested)
		result.BilledInventory[billedIdx].Quantity = plan.BilledAfter
	} else {
		plan.AppendsBilled = true
		plan.BilledAfter = requested
		result.BilledInventory = append(result.BilledInventory, domain.InventoryItem{
			ItemName: source.ItemName,
			Weight:   source.Weight,
			Quantity: requested,
		})
	}

	if plan.VirtualAfter.IsZero() {
		plan.RemovesVirtual = true
		result.VirtualInventory = slices.Delete(result.VirtualInventory, sourceIndex, sourceIndex+1)
	}

	plan.Result = result
	return plan, nil
}
