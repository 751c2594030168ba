package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
	"github.com/rl1809/inventory-reconciler/internal/port"
)

// MemoryStore is an in-process stand-in for the Order/Warehouse backend with the same
// transfer and billing rules. Used when no STORE_BASE_URL is configured and in tests.
type MemoryStore struct {
	mu         sync.RWMutex
	warehouses []domain.Warehouse
	orders     []domain.Order
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) ListOrders(ctx context.Context) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, cloneOrder(o))
	}
	return out, nil
}

func (m *MemoryStore) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if m.orderIndex(order.ID) >= 0 {
		return nil, fmt.Errorf("%w: order %s already exists", port.ErrRejected, order.ID)
	}
	now := m.now()
	order.CreatedAt, order.UpdatedAt = now, now

	m.orders = append(m.orders, cloneOrder(order))
	created := cloneOrder(order)
	return &created, nil
}

func (m *MemoryStore) UpdateOrder(ctx context.Context, id string, order domain.Order) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.orderIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: order %s", port.ErrNotFound, id)
	}
	order.ID = id
	order.CreatedAt = m.orders[i].CreatedAt
	order.UpdatedAt = m.now()
	m.orders[i] = cloneOrder(order)

	updated := cloneOrder(order)
	return &updated, nil
}

// UpdateBillTypePartWise adds each quantity to the line item's billed quantity. The whole call
// is rejected if any item is unknown or would be billed beyond its ordered quantity.
func (m *MemoryStore) UpdateBillTypePartWise(ctx context.Context, orderID string, items []port.BillTypeUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.orderIndex(orderID)
	if i < 0 {
		return fmt.Errorf("%w: order %s", port.ErrNotFound, orderID)
	}
	order := cloneOrder(m.orders[i])

	for _, u := range items {
		j := slices.IndexFunc(order.Items, func(it domain.OrderLineItem) bool { return it.Name == u.Name })
		if j < 0 {
			return fmt.Errorf("%w: item %s not in order %s", port.ErrRejected, u.Name, orderID)
		}
		if u.Quantity.IsNegative() {
			return fmt.Errorf("%w: negative quantity for %s", port.ErrRejected, u.Name)
		}
		billed := order.Items[j].BilledQuantity.Add(u.Quantity)
		if billed.GreaterThan(order.Items[j].Quantity) {
			return fmt.Errorf("%w: %s billed %s exceeds quantity %s", port.ErrRejected, u.Name, billed, order.Items[j].Quantity)
		}
		order.Items[j].BilledQuantity = billed
	}

	order.UpdatedAt = m.now()
	m.orders[i] = order
	return nil
}

func (m *MemoryStore) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Warehouse, 0, len(m.warehouses))
	for _, w := range m.warehouses {
		out = append(out, w.Clone())
	}
	return out, nil
}

func (m *MemoryStore) GetWarehouse(ctx context.Context, id string) (*domain.Warehouse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.warehouseIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: warehouse %s", port.ErrNotFound, id)
	}
	w := m.warehouses[i].Clone()
	return &w, nil
}

func (m *MemoryStore) CreateWarehouse(ctx context.Context, w domain.Warehouse) (*domain.Warehouse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if m.warehouseIndex(w.ID) >= 0 {
		return nil, fmt.Errorf("%w: warehouse %s already exists", port.ErrRejected, w.ID)
	}
	if w.VirtualInventory == nil {
		w.VirtualInventory = []domain.InventoryItem{}
	}
	if w.BilledInventory == nil {
		w.BilledInventory = []domain.InventoryItem{}
	}

	m.warehouses = append(m.warehouses, w.Clone())
	created := w.Clone()
	return &created, nil
}

func (m *MemoryStore) FilterWarehouses(ctx context.Context, state, city string) ([]domain.Warehouse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Warehouse
	for _, w := range m.warehouses {
		if state != "" && w.State != state {
			continue
		}
		if city != "" && w.City != city {
			continue
		}
		out = append(out, w.Clone())
	}
	return out, nil
}

// UpdateInventoryItem moves quantity of the named virtual entry to billed inventory.
func (m *MemoryStore) UpdateInventoryItem(ctx context.Context, warehouseID string, t port.InventoryTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.warehouseIndex(warehouseID)
	if i < 0 {
		return fmt.Errorf("%w: warehouse %s", port.ErrNotFound, warehouseID)
	}
	w := m.warehouses[i].Clone()

	v := w.FindVirtual(t.ItemName)
	if v < 0 {
		return fmt.Errorf("%w: item %s not in virtual inventory", port.ErrRejected, t.ItemName)
	}
	if !t.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", port.ErrRejected)
	}
	if t.Quantity.GreaterThan(w.VirtualInventory[v].Quantity) {
		return fmt.Errorf("%w: insufficient virtual quantity for %s", port.ErrRejected, t.ItemName)
	}

	remaining := w.VirtualInventory[v].Quantity.Sub(t.Quantity)
	if remaining.IsZero() {
		w.VirtualInventory = slices.Delete(w.VirtualInventory, v, v+1)
	} else {
		w.VirtualInventory[v].Quantity = remaining
	}

	if b := w.FindBilled(t.ItemName); b >= 0 {
		w.BilledInventory[b].Quantity = w.BilledInventory[b].Quantity.Add(t.Quantity)
	} else {
		w.BilledInventory = append(w.BilledInventory, domain.InventoryItem{
			ItemName: t.ItemName,
			Weight:   t.Weight,
			Quantity: t.Quantity,
		})
	}

	m.warehouses[i] = w
	return nil
}

// AddVirtualStock records stock arriving in a warehouse's virtual inventory.
func (m *MemoryStore) AddVirtualStock(ctx context.Context, warehouseID string, item domain.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.warehouseIndex(warehouseID)
	if i < 0 {
		return fmt.Errorf("%w: warehouse %s", port.ErrNotFound, warehouseID)
	}
	if !item.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", port.ErrRejected)
	}

	w := m.warehouses[i].Clone()
	if v := w.FindVirtual(item.ItemName); v >= 0 {
		w.VirtualInventory[v].Quantity = w.VirtualInventory[v].Quantity.Add(item.Quantity)
	} else {
		w.VirtualInventory = append(w.VirtualInventory, item)
	}
	m.warehouses[i] = w
	return nil
}

func (m *MemoryStore) orderIndex(id string) int {
	return slices.IndexFunc(m.orders, func(o domain.Order) bool { return o.ID == id })
}

func (m *MemoryStore) warehouseIndex(id string) int {
	return slices.IndexFunc(m.warehouses, func(w domain.Warehouse) bool { return w.ID == id })
}

func cloneOrder(o domain.Order) domain.Order {
	c := o
	c.Items = append([]domain.OrderLineItem(nil), o.Items...)
	c.ReminderDays = append([]int(nil), o.ReminderDays...)
	return c
}
