package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
	"github.com/rl1809/inventory-reconciler/internal/port"
)

type WarehouseService struct {
	store    port.Store
	sessions *SessionService
	logger   *zap.Logger
}

func NewWarehouseService(store port.Store, sessions *SessionService, logger *zap.Logger) *WarehouseService {
	return &WarehouseService{store: store, sessions: sessions, logger: logger}
}

func (s *WarehouseService) List(ctx context.Context) ([]domain.Warehouse, error) {
	ws, err := s.store.ListWarehouses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	return ws, nil
}

func (s *WarehouseService) Get(ctx context.Context, id string) (*domain.Warehouse, error) {
	w, err := s.store.GetWarehouse(ctx, id)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrWarehouseNotFound, id)
		}
		return nil, fmt.Errorf("fetch warehouse %s: %w", id, err)
	}
	return w, nil
}

func (s *WarehouseService) Filter(ctx context.Context, state, city string) ([]domain.Warehouse, error) {
	ws, err := s.store.FilterWarehouses(ctx, strings.TrimSpace(state), strings.TrimSpace(city))
	if err != nil {
		return nil, fmt.Errorf("filter warehouses: %w", err)
	}
	return ws, nil
}

func (s *WarehouseService) Create(ctx context.Context, w domain.Warehouse) (*domain.Warehouse, error) {
	fields := make(map[string]string)
	if strings.TrimSpace(w.Name) == "" {
		fields["name"] = "Name is required"
	}
	if strings.TrimSpace(w.State) == "" {
		fields["state"] = "State is required"
	}
	if strings.TrimSpace(w.City) == "" {
		fields["city"] = "City is required"
	}
	for i, item := range append(append([]domain.InventoryItem(nil), w.VirtualInventory...), w.BilledInventory...) {
		if err := checkQuantityBounds(item.Quantity); err != nil {
			fields[fmt.Sprintf("inventory[%d].quantity", i)] = "Quantity is out of range"
		} else if item.Quantity.IsNegative() {
			fields[fmt.Sprintf("inventory[%d].quantity", i)] = "Quantity cannot be negative"
		}
	}
	if len(fields) > 0 {
		return nil, &FieldError{Fields: fields, Cause: ErrInvalidWarehouse}
	}

	created, err := s.store.CreateWarehouse(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("create warehouse: %w", err)
	}
	s.logger.Info("warehouse created", zap.String("warehouse_id", created.ID), zap.String("name", created.Name))
	return created, nil
}

// Inventory returns the session's warehouse as the store currently holds it.
func (s *WarehouseService) Inventory(ctx context.Context, sessionID string) (*domain.Warehouse, error) {
	id, err := s.sessions.ActiveWarehouse(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
