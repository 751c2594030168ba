package port

import (
	"context"
	"errors"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrRejected         = errors.New("rejected by store")
)

// InventoryTransfer is the body of a virtual to billed inventory persist call.
type InventoryTransfer struct {
	ItemName string
	Weight   decimal.Decimal
	Quantity decimal.Decimal
	BillType domain.BillType
}

// BillTypeUpdate is one line of a part-wise bill type update. Quantity is a delta.
type BillTypeUpdate struct {
	Name     string
	Quantity decimal.Decimal
	BillType domain.BillType
}

// Store is the external Order/Warehouse backend. It owns durable state.
type Store interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	UpdateOrder(ctx context.Context, id string, order domain.Order) (*domain.Order, error)
	// UpdateBillTypePartWise bills part of each named line item in a single call
	UpdateBillTypePartWise(ctx context.Context, orderID string, items []BillTypeUpdate) error

	ListWarehouses(ctx context.Context) ([]domain.Warehouse, error)
	GetWarehouse(ctx context.Context, id string) (*domain.Warehouse, error)
	CreateWarehouse(ctx context.Context, w domain.Warehouse) (*domain.Warehouse, error)
	FilterWarehouses(ctx context.Context, state, city string) ([]domain.Warehouse, error)
	// UpdateInventoryItem moves quantity from virtual to billed inventory
	UpdateInventoryItem(ctx context.Context, warehouseID string, transfer InventoryTransfer) error
}
