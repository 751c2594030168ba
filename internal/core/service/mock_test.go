package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
	"github.com/rl1809/inventory-reconciler/internal/port"
)

// Mock Store
type mockStore struct {
	mu         sync.Mutex
	warehouses map[string]domain.Warehouse
	orders     []domain.Order

	updateInventoryCalls int
	billCalls            int
	lastBill             []port.BillTypeUpdate

	failPersist   error
	failReread    bool
	persisted     bool
	failListOrder error
}

func newMockStore(warehouses ...domain.Warehouse) *mockStore {
	m := &mockStore{warehouses: make(map[string]domain.Warehouse)}
	for _, w := range warehouses {
		m.warehouses[w.ID] = w.Clone()
	}
	return m
}

func (m *mockStore) ListOrders(ctx context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failListOrder != nil {
		return nil, m.failListOrder
	}
	if m.failReread && m.persisted {
		return nil, port.ErrStoreUnavailable
	}
	out := make([]domain.Order, len(m.orders))
	for i, o := range m.orders {
		o.Items = slices.Clone(o.Items)
		out[i] = o
	}
	return out, nil
}

func (m *mockStore) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.ID == "" {
		order.ID = fmt.Sprintf("ord-%d", len(m.orders)+1)
	}
	m.orders = append(m.orders, order)
	return &order, nil
}

func (m *mockStore) UpdateOrder(ctx context.Context, id string, order domain.Order) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == id {
			order.ID = id
			m.orders[i] = order
			return &order, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *mockStore) UpdateBillTypePartWise(ctx context.Context, orderID string, items []port.BillTypeUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.billCalls++
	m.lastBill = items
	if m.failPersist != nil {
		return m.failPersist
	}
	for i := range m.orders {
		if m.orders[i].ID != orderID {
			continue
		}
		for _, u := range items {
			for j := range m.orders[i].Items {
				if m.orders[i].Items[j].Name == u.Name {
					m.orders[i].Items[j].BilledQuantity = m.orders[i].Items[j].BilledQuantity.Add(u.Quantity)
				}
			}
		}
		m.persisted = true
		return nil
	}
	return port.ErrNotFound
}

func (m *mockStore) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Warehouse
	for _, w := range m.warehouses {
		out = append(out, w.Clone())
	}
	return out, nil
}

func (m *mockStore) GetWarehouse(ctx context.Context, id string) (*domain.Warehouse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReread && m.persisted {
		return nil, port.ErrStoreUnavailable
	}
	w, ok := m.warehouses[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	c := w.Clone()
	return &c, nil
}

func (m *mockStore) CreateWarehouse(ctx context.Context, w domain.Warehouse) (*domain.Warehouse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == "" {
		w.ID = fmt.Sprintf("wh-%d", len(m.warehouses)+1)
	}
	m.warehouses[w.ID] = w.Clone()
	return &w, nil
}

func (m *mockStore) FilterWarehouses(ctx context.Context, state, city string) ([]domain.Warehouse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Warehouse
	for _, w := range m.warehouses {
		if (state == "" || w.State == state) && (city == "" || w.City == city) {
			out = append(out, w.Clone())
		}
	}
	return out, nil
}

func (m *mockStore) UpdateInventoryItem(ctx context.Context, warehouseID string, t port.InventoryTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateInventoryCalls++
	if m.failPersist != nil {
		return m.failPersist
	}

	w, ok := m.warehouses[warehouseID]
	if !ok {
		return port.ErrNotFound
	}
	w = w.Clone()
	v := w.FindVirtual(t.ItemName)
	if v < 0 || t.Quantity.GreaterThan(w.VirtualInventory[v].Quantity) {
		return port.ErrRejected
	}
	w.VirtualInventory[v].Quantity = w.VirtualInventory[v].Quantity.Sub(t.Quantity)
	if w.VirtualInventory[v].Quantity.IsZero() {
		w.VirtualInventory = slices.Delete(w.VirtualInventory, v, v+1)
	}
	if b := w.FindBilled(t.ItemName); b >= 0 {
		w.BilledInventory[b].Quantity = w.BilledInventory[b].Quantity.Add(t.Quantity)
	} else {
		w.BilledInventory = append(w.BilledInventory, domain.InventoryItem{ItemName: t.ItemName, Weight: t.Weight, Quantity: t.Quantity})
	}
	m.warehouses[warehouseID] = w
	m.persisted = true
	return nil
}

func (m *mockStore) warehouse(id string) domain.Warehouse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warehouses[id].Clone()
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	locks          map[string]string
	idempotencySet map[string]bool
	lockCalls      int
	seq            int
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{locks: make(map[string]string), idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockCalls++
	if _, held := m.locks[key]; held {
		return "", false, nil
	}
	m.seq++
	token := fmt.Sprintf("token-%d", m.seq)
	m.locks[key] = token
	return token, true, nil
}

func (m *mockCacheRepo) ReleaseLock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] == token {
		delete(m.locks, key)
	}
	return nil
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ClearIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

// Mock SessionRepository
type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]string
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]string)}
}

func (m *mockSessionRepo) GetActiveWarehouse(ctx context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID], nil
}

func (m *mockSessionRepo) SetActiveWarehouse(ctx context.Context, sessionID, warehouseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = warehouseID
	return nil
}

func (m *mockSessionRepo) ClearActiveWarehouse(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// Mock JournalRepository
type mockJournal struct {
	mu      sync.Mutex
	records []domain.TransferRecord
}

func (m *mockJournal) Record(ctx context.Context, r domain.TransferRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *mockJournal) ListByWarehouse(ctx context.Context, warehouseID string, limit int) ([]domain.TransferRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TransferRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.records[i].WarehouseID == warehouseID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func oilWarehouse(virtual string) domain.Warehouse {
	return domain.Warehouse{
		ID:   "wh-1",
		Name: "Main",
		VirtualInventory: []domain.InventoryItem{
			{ItemName: "Oil", Weight: qty("1"), Quantity: qty(virtual)},
		},
		BilledInventory: []domain.InventoryItem{},
	}
}
