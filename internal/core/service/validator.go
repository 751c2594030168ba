package service

import (
	"fmt"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
	"github.com/shopspring/decimal"
)

type Decision struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

func exceedsReason(available decimal.Decimal) string {
	return fmt.Sprintf("Quantity exceeds available virtual quantity of %s", available.String())
}

// Validate decides whether requested can be taken from available. It never mutates anything.
func Validate(requested, available decimal.Decimal) Decision {
	if requested.GreaterThan(available) {
		return Decision{Reason: exceedsReason(available)}
	}
	return Decision{Accepted: true}
}

// ValidateBatch checks every requested quantity against its line item's ordered quantity.
// The result holds a reason per rejected item and is empty when the batch is acceptable.
func ValidateBatch(order domain.Order, requested map[string]decimal.Decimal) map[string]string {
	reasons := make(map[string]string)
	for name, qty := range requested {
		item, ok := order.Item(name)
		if !ok {
			reasons[name] = fmt.Sprintf("Item %s not found in order", name)
			continue
		}
		if d := Validate(qty, item.Quantity); !d.Accepted {
			reasons[name] = d.Reason
		}
	}
	return reasons
}

// validateRemaining keeps billedQuantity <= quantity using the store's latest billed figures.
func validateRemaining(order domain.Order, requested map[string]decimal.Decimal) map[string]string {
	reasons := make(map[string]string)
	for name, qty := range requested {
		item, ok := order.Item(name)
		if !ok {
			continue
		}
		if d := Validate(qty, item.Remaining()); !d.Accepted {
			reasons[name] = d.Reason
		}
	}
	return reasons
}
