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

// SessionService tracks which warehouse each dashboard session is working in.
// Every query that is scoped to a warehouse resolves it through here.
type SessionService struct {
	sessions port.SessionRepository
	store    port.Store
	logger   *zap.Logger
}

func NewSessionService(sessions port.SessionRepository, store port.Store, logger *zap.Logger) *SessionService {
	return &SessionService{sessions: sessions, store: store, logger: logger}
}

func (s *SessionService) SelectWarehouse(ctx context.Context, sessionID, warehouseID string) (*domain.Warehouse, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrMissingSession
	}
	if strings.TrimSpace(warehouseID) == "" {
		return nil, fmt.Errorf("%w: empty warehouse id", ErrWarehouseNotFound)
	}

	w, err := s.store.GetWarehouse(ctx, warehouseID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrWarehouseNotFound, warehouseID)
		}
		return nil, fmt.Errorf("fetch warehouse %s: %w", warehouseID, err)
	}

	if err := s.sessions.SetActiveWarehouse(ctx, sessionID, w.ID); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.logger.Info("warehouse selected", zap.String("session_id", sessionID), zap.String("warehouse_id", w.ID))
	return w, nil
}

func (s *SessionService) ClearWarehouse(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrMissingSession
	}
	if err := s.sessions.ClearActiveWarehouse(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// ActiveWarehouse returns the selected warehouse id or ErrNoActiveWarehouse.
func (s *SessionService) ActiveWarehouse(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrMissingSession
	}

	id, err := s.sessions.GetActiveWarehouse(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if id == "" {
		return "", ErrNoActiveWarehouse
	}
	return id, nil
}

func (s *SessionService) Session(ctx context.Context, sessionID string) (domain.Session, error) {
	id, err := s.ActiveWarehouse(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{ID: sessionID, WarehouseID: id}, nil
}
