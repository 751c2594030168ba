package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransferKind string

const (
	TransferKindInventory TransferKind = "inventory"
	TransferKindBilling   TransferKind = "billing"
)

// TransferRecord is a journal entry for a transfer the store has confirmed.
type TransferRecord struct {
	ID          string          `json:"id"`
	Kind        TransferKind    `json:"kind"`
	WarehouseID string          `json:"warehouse_id"`
	OrderID     string          `json:"order_id,omitempty"`
	ItemName    string          `json:"item_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	BillType    BillType        `json:"bill_type"`
	RequestID   string          `json:"request_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Session struct {
	ID          string `json:"id"`
	WarehouseID string `json:"warehouse_id"`
}
