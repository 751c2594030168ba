package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
)

const mysqlDuplicateEntry = 1062

const transfersSchema = `
CREATE TABLE IF NOT EXISTS inventory_transfers (
	id           VARCHAR(36)    NOT NULL PRIMARY KEY,
	kind         VARCHAR(16)    NOT NULL,
	warehouse_id VARCHAR(64)    NOT NULL,
	order_id     VARCHAR(64)    NOT NULL DEFAULT '',
	item_name    VARCHAR(255)   NOT NULL,
	quantity     DECIMAL(20, 6) NOT NULL,
	bill_type    VARCHAR(32)    NOT NULL,
	request_id   VARCHAR(64)    NOT NULL DEFAULT '',
	created_at   DATETIME(6)    NOT NULL,
	INDEX idx_transfers_warehouse (warehouse_id, created_at)
)`

// MySQLAdapter keeps the transfer journal. The DSN must set parseTime=true.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, transfersSchema); err != nil {
		return fmt.Errorf("create inventory_transfers: %w", err)
	}
	return nil
}

// Record is idempotent on the record ID so a retried worker does not double-journal.
func (m *MySQLAdapter) Record(ctx context.Context, r domain.TransferRecord) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO inventory_transfers
			(id, kind, warehouse_id, order_id, item_name, quantity, bill_type, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Kind), r.WarehouseID, r.OrderID, r.ItemName, r.Quantity,
		string(r.BillType), r.RequestID, r.CreatedAt.UTC(),
	)
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListByWarehouse(ctx context.Context, warehouseID string, limit int) ([]domain.TransferRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, kind, warehouse_id, order_id, item_name, quantity, bill_type, request_id, created_at
		FROM inventory_transfers
		WHERE warehouse_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, warehouseID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var out []domain.TransferRecord
	for rows.Next() {
		var (
			r              domain.TransferRecord
			kind, billType string
		)
		if err := rows.Scan(&r.ID, &kind, &r.WarehouseID, &r.OrderID, &r.ItemName,
			&r.Quantity, &billType, &r.RequestID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		r.Kind = domain.TransferKind(kind)
		r.BillType = domain.BillType(billType)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return out, nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}
