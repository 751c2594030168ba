package port

import (
	"context"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
)

type JournalRepository interface {
	// Record persists a confirmed transfer
	Record(ctx context.Context, record domain.TransferRecord) error

	// ListByWarehouse returns the newest records first
	ListByWarehouse(ctx context.Context, warehouseID string, limit int) ([]domain.TransferRecord, error)
}
